// Command withdrawal-service runs the withdrawal HTTP API together with the
// outbox dispatcher. Exactly one instance should run per outbox table; the
// dispatcher has no cross-instance coordination.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	natsio "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/velmie/withdrawal-service/bank"
	"github.com/velmie/withdrawal-service/config"
	"github.com/velmie/withdrawal-service/httpapi"
	"github.com/velmie/withdrawal-service/logging"
	"github.com/velmie/withdrawal-service/memory"
	"github.com/velmie/withdrawal-service/outbox"
	"github.com/velmie/withdrawal-service/postgres"
	kafkapub "github.com/velmie/withdrawal-service/publisher/kafka"
	natspub "github.com/velmie/withdrawal-service/publisher/nats"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, factory, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := buildPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	codec := outbox.NewCodec()
	bank.RegisterWithdrawalCodec(codec)

	dispatcher := outbox.NewDispatcher(store, publisher, codec,
		outbox.WithBatchSize(cfg.BatchSize),
		outbox.WithProcessingInterval(cfg.ProcessingInterval),
		outbox.WithLogger(logging.NewOutboxLogger(logger)),
	)

	service := bank.NewService(factory, logger, cfg.Limits, nil)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(service, store, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	dispatcherDone := make(chan error, 1)
	go func() {
		dispatcherDone <- dispatcher.Run(ctx)
	}()

	serverDone := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		serverDone <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-serverDone:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}

	if err := <-dispatcherDone; err != nil && !outbox.IsShutdown(err) {
		logger.Error().Err(err).Msg("dispatcher stopped with error")
	}

	return nil
}

func buildStore(
	ctx context.Context,
	cfg config.Config,
	logger zerolog.Logger,
) (outbox.Store, bank.UnitOfWorkFactory, func(), error) {
	if cfg.DatabaseURL == "" {
		store := memory.NewStore(nil)

		// Demo mode: a fixed account so the API is usable out of the box.
		demoID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
		store.SeedAccount(bank.Account{ID: demoID, Balance: decimal.NewFromInt(1000)})
		logger.Warn().
			Str("account_id", demoID.String()).
			Msg("no DATABASE_URL set, using in-memory store with a demo account")

		return store, memory.NewFactory(store), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open pool: %w", err)
	}

	if err := applySchema(ctx, pool, cfg.OutboxTable); err != nil {
		pool.Close()

		return nil, nil, nil, err
	}

	store, err := postgres.NewStore(pool, postgres.WithTable(cfg.OutboxTable))
	if err != nil {
		pool.Close()

		return nil, nil, nil, err
	}
	factory, err := postgres.NewFactory(pool, store)
	if err != nil {
		pool.Close()

		return nil, nil, nil, err
	}

	return store, factory, pool.Close, nil
}

func applySchema(ctx context.Context, pool *pgxpool.Pool, table string) error {
	ddl, err := postgres.Schema(table)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply outbox schema: %w", err)
	}

	accountsDDL, err := postgres.AccountsSchema("bank_accounts")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, accountsDDL); err != nil {
		return fmt.Errorf("apply accounts schema: %w", err)
	}

	return nil
}

func buildPublisher(cfg config.Config, logger zerolog.Logger) (outbox.Publisher, func(), error) {
	switch cfg.Publisher {
	case config.PublisherKafka:
		publisher := kafkapub.NewPublisher(cfg.KafkaBrokers,
			kafkapub.WithTopic(cfg.KafkaTopic),
			kafkapub.WithKeyAttribute(cfg.KafkaKeyAttribute),
		)

		return publisher, func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("kafka close failed")
			}
		}, nil

	case config.PublisherNATS:
		conn, err := natsio.Connect(cfg.NATSURL,
			natsio.Name("withdrawal-service"),
			natsio.MaxReconnects(-1),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		publisher := natspub.NewPublisher(conn, cfg.NATSSubjectPrefix)

		return publisher, func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("nats drain failed")
			}
		}, nil

	case config.PublisherLog:
		return outbox.NewLogPublisher(logging.NewOutboxLogger(logger)), func() {}, nil

	default:
		return nil, nil, errors.New("unknown publisher backend")
	}
}
