// Package logging configures zerolog for the service and adapts it to the
// outbox logging port.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/velmie/withdrawal-service/outbox"
)

// New builds the root service logger writing JSON to w at the given level.
// Unknown levels fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(parsed).With().Timestamp().Logger()
}

// OutboxLogger adapts a zerolog logger to the outbox Logger port. Key/value
// pairs become zerolog fields; a trailing odd argument is logged under
// "extra".
type OutboxLogger struct {
	logger zerolog.Logger
}

// NewOutboxLogger wraps logger with the dispatcher's component field.
func NewOutboxLogger(logger zerolog.Logger) OutboxLogger {
	return OutboxLogger{logger: logger.With().Str("component", "outbox").Logger()}
}

// Debug implements outbox.Logger.
func (l OutboxLogger) Debug(msg string, args ...any) {
	emit(l.logger.Debug(), msg, args)
}

// Info implements outbox.Logger.
func (l OutboxLogger) Info(msg string, args ...any) {
	emit(l.logger.Info(), msg, args)
}

// Warn implements outbox.Logger.
func (l OutboxLogger) Warn(msg string, args ...any) {
	emit(l.logger.Warn(), msg, args)
}

// Error implements outbox.Logger.
func (l OutboxLogger) Error(msg string, args ...any) {
	emit(l.logger.Error(), msg, args)
}

var _ outbox.Logger = OutboxLogger{}

func emit(event *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "arg"
		}
		event = event.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		event = event.Interface("extra", args[len(args)-1])
	}
	event.Msg(msg)
}
