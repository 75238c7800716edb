// Package config loads service configuration from the environment. A .env
// file in the working directory is merged in first, never overriding
// variables already set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/velmie/withdrawal-service/bank"
)

// Publisher backends selectable via the PUBLISHER variable.
const (
	PublisherLog   = "log"
	PublisherKafka = "kafka"
	PublisherNATS  = "nats"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr string
	LogLevel string

	// DatabaseURL selects the PostgreSQL store; empty runs on the in-memory
	// store with a seeded demo account.
	DatabaseURL string
	OutboxTable string

	ProcessingInterval time.Duration
	BatchSize          int

	Publisher         string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaKeyAttribute string
	NATSURL           string
	NATSSubjectPrefix string

	Limits bank.Limits
}

// Load reads configuration from .env and the process environment.
func Load() (Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:          getString("HTTP_ADDR", ":8080"),
		LogLevel:          getString("LOG_LEVEL", "info"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OutboxTable:       getString("OUTBOX_TABLE", "outbox_events"),
		Publisher:         getString("PUBLISHER", PublisherLog),
		KafkaTopic:        os.Getenv("KAFKA_TOPIC"),
		KafkaKeyAttribute: getString("KAFKA_KEY_ATTRIBUTE", "AccountId"),
		NATSURL:           getString("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubjectPrefix: getString("NATS_SUBJECT_PREFIX", "events"),
	}

	var err error
	if cfg.ProcessingInterval, err = getDuration("OUTBOX_PROCESSING_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BatchSize, err = getInt("OUTBOX_BATCH_SIZE", 10); err != nil {
		return Config{}, err
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	limits := bank.DefaultLimits()
	if limits.MinWithdrawal, err = getDecimal("WITHDRAWAL_MIN", limits.MinWithdrawal); err != nil {
		return Config{}, err
	}
	if limits.MaxWithdrawal, err = getDecimal("WITHDRAWAL_MAX", limits.MaxWithdrawal); err != nil {
		return Config{}, err
	}
	cfg.Limits = limits

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Publisher {
	case PublisherLog, PublisherNATS:
	case PublisherKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("config: PUBLISHER=kafka requires KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("config: unknown PUBLISHER %q", c.Publisher)
	}

	if c.ProcessingInterval <= 0 {
		return fmt.Errorf("config: OUTBOX_PROCESSING_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: OUTBOX_BATCH_SIZE must be positive")
	}
	if c.Limits.MinWithdrawal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("config: WITHDRAWAL_MIN must be positive")
	}
	if c.Limits.MaxWithdrawal.LessThan(c.Limits.MinWithdrawal) {
		return fmt.Errorf("config: WITHDRAWAL_MAX must be at least WITHDRAWAL_MIN")
	}

	return nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}

	return value, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}

	return value, nil
}

func getDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: %s: %w", key, err)
	}

	return value, nil
}
