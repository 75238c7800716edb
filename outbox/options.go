package outbox

import "time"

const (
	defaultBatchSize          = 10
	defaultProcessingInterval = 30 * time.Second
	defaultGaugeInterval      = 0
)

// DispatcherConfig defines how the Dispatcher polls and delivers records.
type DispatcherConfig struct {
	BatchSize          int
	ProcessingInterval time.Duration
	Clock              Clock
	Logger             Logger
	Metrics            Metrics
	GaugeInterval      time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.ProcessingInterval <= 0 {
		c.ProcessingInterval = defaultProcessingInterval
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.GaugeInterval <= 0 {
		c.GaugeInterval = defaultGaugeInterval
	}

	return c
}

// DispatcherOption configures Dispatcher behavior.
type DispatcherOption func(*DispatcherConfig)

// WithBatchSize sets the number of records fetched per polling cycle.
func WithBatchSize(size int) DispatcherOption {
	return func(c *DispatcherConfig) {
		c.BatchSize = size
	}
}

// WithProcessingInterval sets the sleep between polling cycles.
func WithProcessingInterval(interval time.Duration) DispatcherOption {
	return func(c *DispatcherConfig) {
		c.ProcessingInterval = interval
	}
}

// WithClock sets the dispatcher clock.
func WithClock(clock Clock) DispatcherOption {
	return func(c *DispatcherConfig) {
		c.Clock = clock
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger Logger) DispatcherOption {
	return func(c *DispatcherConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the dispatcher metrics recorder.
func WithMetrics(metrics Metrics) DispatcherOption {
	return func(c *DispatcherConfig) {
		c.Metrics = metrics
	}
}

// WithGaugeInterval sets the minimum interval between backlog gauge samples.
// Use a positive value to enable sampling; the default is disabled.
func WithGaugeInterval(interval time.Duration) DispatcherOption {
	return func(c *DispatcherConfig) {
		c.GaugeInterval = interval
	}
}
