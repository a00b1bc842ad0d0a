package statemachine

import (
	"context"
	"log/slog"
	"time"
)

// Logger provides logging hooks for state machine execution.
type Logger interface {
	StateEntered(ctx context.Context, machine, state string)
	StateExited(ctx context.Context, machine, state, outcome string, duration time.Duration, err error)
	TransitionExecuted(ctx context.Context, machine, from, outcome, to string)
	MachineFinished(ctx context.Context, machine, outcome string, duration time.Duration, err error)
}

// DefaultLogger implements Logger using slog.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger writing to slog.Default().
func NewDefaultLogger() *DefaultLogger {
	return NewSlogLogger(slog.Default())
}

// NewSlogLogger creates a logger writing to the given slog logger.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultLogger{
		logger: logger,
	}
}

// runFields returns the run id and machine path from ctx, if any.
func runFields(ctx context.Context) []any {
	info, ok := RunFromContext(ctx)
	if !ok {
		return nil
	}

	return []any{
		"run_id", info.RunID,
		"path", info.Path,
	}
}

func (l *DefaultLogger) StateEntered(ctx context.Context, machine, state string) {
	fields := append([]any{
		"machine", machine,
		"state", state,
	}, runFields(ctx)...)

	l.logger.DebugContext(ctx, "State entered", fields...)
}

func (l *DefaultLogger) StateExited(
	ctx context.Context, machine, state, outcome string, duration time.Duration, err error,
) {
	fields := append([]any{
		"machine", machine,
		"state", state,
		"duration_ms", duration.Milliseconds(),
	}, runFields(ctx)...)

	if err != nil {
		l.logger.ErrorContext(ctx, "State failed", append(fields, "error", err)...)

		return
	}

	l.logger.DebugContext(ctx, "State exited", append(fields, "outcome", outcome)...)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, machine, from, outcome, to string) {
	fields := append([]any{
		"machine", machine,
		"from", from,
		"outcome", outcome,
		"to", to,
	}, runFields(ctx)...)

	l.logger.InfoContext(ctx, "Transition executed", fields...)
}

func (l *DefaultLogger) MachineFinished(
	ctx context.Context, machine, outcome string, duration time.Duration, err error,
) {
	fields := append([]any{
		"machine", machine,
		"duration_ms", duration.Milliseconds(),
	}, runFields(ctx)...)

	if err != nil {
		l.logger.ErrorContext(ctx, "State machine failed", append(fields, "error", err)...)

		return
	}

	l.logger.InfoContext(ctx, "State machine finished", append(fields, "outcome", outcome)...)
}
