package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Command is a request executed through the Pipeline.
type Command interface {
	// CommandName identifies the command for logging and dispatch.
	CommandName() string
}

// Mutation marks a command as state-changing. The unit-of-work middleware
// commits only for commands carrying this capability; the classification is
// structural, never derived from the command's name.
type Mutation interface {
	Command
	Mutates()
}

// HandlerFunc executes a command and returns its result.
type HandlerFunc func(ctx context.Context, cmd Command) (any, error)

// Middleware wraps a HandlerFunc with cross-cutting behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Pipeline is an explicit, ordered chain of middleware around command
// execution. The first middleware passed to NewPipeline is outermost.
type Pipeline struct {
	handler HandlerFunc
}

// NewPipeline composes handler with middleware.
func NewPipeline(handler HandlerFunc, middleware ...Middleware) *Pipeline {
	if handler == nil {
		panic("bank: nil pipeline handler")
	}

	wrapped := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		wrapped = middleware[i](wrapped)
	}

	return &Pipeline{handler: wrapped}
}

// Execute runs cmd through the middleware chain.
func (p *Pipeline) Execute(ctx context.Context, cmd Command) (any, error) {
	return p.handler(ctx, cmd)
}

// WithLogging logs command start, completion, and failure.
func WithLogging(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, cmd Command) (any, error) {
			start := time.Now()
			logger.Info().Str("command", cmd.CommandName()).Msg("command started")

			out, err := next(ctx, cmd)
			if err != nil {
				event := logger.Error()
				if domainErr, ok := AsError(err); ok {
					event = logger.Warn().Str("code", domainErr.Code)
				} else if _, ok := AsValidationError(err); ok {
					event = logger.Warn().Str("code", CodeValidationFailed)
				}
				event.
					Str("command", cmd.CommandName()).
					Dur("elapsed", time.Since(start)).
					Err(err).
					Msg("command failed")

				return nil, err
			}

			logger.Info().
				Str("command", cmd.CommandName()).
				Dur("elapsed", time.Since(start)).
				Msg("command completed")

			return out, nil
		}
	}
}

// WithValidation short-circuits invalid commands before any handler or unit
// of work runs.
func WithValidation(rules Rules) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, cmd Command) (any, error) {
			if fieldErrs := rules.Validate(cmd); len(fieldErrs) > 0 {
				return nil, &ValidationError{Errors: fieldErrs}
			}

			return next(ctx, cmd)
		}
	}
}

// WithUnitOfWork begins a unit of work per command, binds it to the context,
// and commits exactly once iff the command is a Mutation and the handler
// returned no error. Everything else rolls back: the business mutation and
// any staged outbox records are discarded together.
func WithUnitOfWork(factory UnitOfWorkFactory) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, cmd Command) (any, error) {
			uow, err := factory.Begin(ctx)
			if err != nil {
				return nil, fmt.Errorf("begin unit of work: %w", err)
			}

			out, err := next(ContextWithUnitOfWork(ctx, uow), cmd)
			if err != nil {
				if rollbackErr := uow.Rollback(ctx); rollbackErr != nil {
					return nil, errors.Join(err, fmt.Errorf("rollback unit of work: %w", rollbackErr))
				}

				return nil, err
			}

			if _, mutating := cmd.(Mutation); !mutating {
				if rollbackErr := uow.Rollback(ctx); rollbackErr != nil {
					return nil, fmt.Errorf("release unit of work: %w", rollbackErr)
				}

				return out, nil
			}

			if commitErr := uow.Commit(ctx); commitErr != nil {
				rollbackErr := uow.Rollback(ctx)

				return nil, errors.Join(fmt.Errorf("commit unit of work: %w", commitErr), rollbackErr)
			}

			return out, nil
		}
	}
}
