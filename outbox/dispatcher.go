package outbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Dispatcher is the background worker that moves staged records from the
// Store to the Publisher. It holds no persistent state between cycles: every
// cycle is fetch, per-record dispatch, sleep.
//
// Each record's outcome is committed individually, so one record's failure
// never blocks or reverts its batch siblings. Cycle-level errors (a failed
// fetch) are logged and retried after the processing interval; the loop
// terminates only when the context is canceled.
type Dispatcher struct {
	store     Store
	publisher Publisher
	codec     *Codec
	cfg       DispatcherConfig

	gaugeMu sync.Mutex
	gaugeAt time.Time
}

// CycleResult reports the outcome of one polling cycle.
type CycleResult struct {
	Processed int
	Failed    int
}

// NewDispatcher constructs a Dispatcher with defaults and optional settings.
func NewDispatcher(store Store, publisher Publisher, codec *Codec, opts ...DispatcherOption) *Dispatcher {
	if store == nil {
		panic("outbox: nil Store")
	}
	if publisher == nil {
		panic("outbox: nil Publisher")
	}
	if codec == nil {
		panic("outbox: nil Codec")
	}

	var cfg DispatcherConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Dispatcher{
		store:     store,
		publisher: publisher,
		codec:     codec,
		cfg:       cfg,
	}
}

// Run starts the polling loop and blocks until ctx is canceled. Shutdown is
// observed at the inter-cycle sleep and between records; an in-flight record
// outcome is always committed before the loop exits.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.cfg.Logger.Info("outbox dispatcher started",
		"batch_size", d.cfg.BatchSize,
		"processing_interval", d.cfg.ProcessingInterval.String(),
	)

	for {
		if _, err := d.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			d.cfg.Logger.Error("outbox cycle failed", "err", err)
		}

		if err := d.sleep(ctx, d.cfg.ProcessingInterval); err != nil {
			break
		}
	}

	d.cfg.Logger.Info("outbox dispatcher stopped")

	return nil
}

// ProcessOnce runs a single polling cycle: fetch up to the batch size of
// pending records and dispatch each one. An empty batch is not an error. The
// returned error covers only cycle-level failures; per-record failures are
// recorded on the records themselves.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	defer func() {
		d.cfg.Metrics.ObserveCycleDuration(time.Since(start))
	}()

	var result CycleResult

	records, err := d.store.FetchPending(ctx, d.cfg.BatchSize)
	if err != nil {
		return result, err
	}
	if len(records) == 0 {
		d.maybeSampleBacklog(ctx)

		return result, nil
	}

	d.cfg.Logger.Debug("outbox batch fetched", "count", len(records))

	for i := range records {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if d.dispatch(ctx, records[i]) {
			result.Processed++
		} else {
			result.Failed++
		}
	}

	d.cfg.Metrics.AddProcessed(result.Processed)
	d.cfg.Metrics.AddFailed(result.Failed)

	return result, nil
}

// dispatch delivers one record and commits its outcome. It reports whether
// the record ended up processed.
func (d *Dispatcher) dispatch(ctx context.Context, record Record) bool {
	msg, err := d.codec.Decode(record)
	if err == nil {
		err = d.publisher.Publish(ctx, msg)
	}

	if err != nil {
		d.cfg.Logger.Error("outbox record delivery failed",
			"id", record.ID.String(),
			"event_type", record.EventType,
			"err", err,
		)
		d.markFailed(ctx, record, err)

		return false
	}

	if err := d.store.MarkProcessed(ctx, record.ID, d.cfg.Clock.Now()); err != nil {
		// The publish went out but the mark did not stick; the record will be
		// redelivered on a later cycle, which at-least-once permits.
		d.cfg.Logger.Error("outbox processed mark failed, record will be redelivered",
			"id", record.ID.String(),
			"err", err,
		)

		return false
	}

	d.cfg.Logger.Debug("outbox record processed",
		"id", record.ID.String(),
		"event_type", record.EventType,
	)

	return true
}

func (d *Dispatcher) markFailed(ctx context.Context, record Record, cause error) {
	if err := d.store.MarkFailed(ctx, record.ID, cause.Error()); err != nil {
		d.cfg.Logger.Error("outbox failed mark failed, record may be reprocessed",
			"id", record.ID.String(),
			"err", err,
		)
	}
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// maybeSampleBacklog refreshes the pending/failed gauges at most once per
// gauge interval, and only on otherwise idle cycles.
func (d *Dispatcher) maybeSampleBacklog(ctx context.Context) {
	if d.cfg.GaugeInterval <= 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}

	now := d.cfg.Clock.Now()
	d.gaugeMu.Lock()
	if !d.gaugeAt.IsZero() && now.Before(d.gaugeAt.Add(d.cfg.GaugeInterval)) {
		d.gaugeMu.Unlock()

		return
	}
	d.gaugeAt = now
	d.gaugeMu.Unlock()

	pending, err := d.store.CountPending(ctx)
	if err != nil {
		d.cfg.Logger.Warn("outbox pending count failed", "err", err)

		return
	}
	failed, err := d.store.CountFailed(ctx)
	if err != nil {
		d.cfg.Logger.Warn("outbox failed count failed", "err", err)

		return
	}

	d.cfg.Metrics.SetPending(pending)
	d.cfg.Metrics.SetFailed(failed)
}

// IsShutdown reports whether err is the normal result of context
// cancellation rather than a genuine failure.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
