package outbox

import "time"

// Clock abstracts time for deterministic tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock uses the system time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Logger provides structured logging hooks. The dispatcher logs only
// operator-facing events; nothing here ever surfaces to API callers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NopLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, ...any) {}

// Metrics captures dispatcher-level telemetry.
type Metrics interface {
	// ObserveCycleDuration records the time spent on one polling cycle.
	ObserveCycleDuration(duration time.Duration)
	// AddProcessed increments the count of records marked processed.
	AddProcessed(count int)
	// AddFailed increments the count of records marked failed.
	AddFailed(count int)
	// SetPending updates the pending backlog gauge.
	SetPending(count int)
	// SetFailed updates the failed backlog gauge.
	SetFailed(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveCycleDuration implements Metrics.
func (NopMetrics) ObserveCycleDuration(time.Duration) {}

// AddProcessed implements Metrics.
func (NopMetrics) AddProcessed(int) {}

// AddFailed implements Metrics.
func (NopMetrics) AddFailed(int) {}

// SetPending implements Metrics.
func (NopMetrics) SetPending(int) {}

// SetFailed implements Metrics.
func (NopMetrics) SetFailed(int) {}
