package states

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/amp-labs/nestfsm/statemachine"
)

// Outcomes of CounterState.
const (
	Continue = "continue"
	Done     = "done"
)

// LogState logs a message together with selected blackboard keys and succeeds.
type LogState struct {
	*statemachine.BaseState

	logger  *slog.Logger
	level   slog.Level
	message string
	keys    []string
}

// NewLogState creates a log state. A nil logger uses slog.Default().
func NewLogState(logger *slog.Logger, level slog.Level, message string, keys ...string) *LogState {
	return &LogState{
		BaseState: statemachine.NewBaseState(statemachine.Succeed),
		logger:    logger,
		level:     level,
		message:   message,
		keys:      keys,
	}
}

func (s *LogState) Execute(ctx context.Context, bb *statemachine.Blackboard) (string, error) {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := make([]any, 0, 2*len(s.keys)+4)

	if info, ok := statemachine.RunFromContext(ctx); ok {
		attrs = append(attrs, "run_id", info.RunID, "path", info.Path)
	}

	for _, key := range s.keys {
		val, _ := bb.Get(key)
		attrs = append(attrs, key, val)
	}

	logger.Log(ctx, s.level, s.message, attrs...)

	return statemachine.Succeed, nil
}

// SetState writes fixed values to the blackboard and succeeds.
type SetState struct {
	*statemachine.BaseState

	values map[string]any
}

// NewSetState creates a set state.
func NewSetState(values map[string]any) *SetState {
	return &SetState{
		BaseState: statemachine.NewBaseState(statemachine.Succeed),
		values:    values,
	}
}

func (s *SetState) Execute(_ context.Context, bb *statemachine.Blackboard) (string, error) {
	for key, val := range s.values {
		bb.Set(key, val)
	}

	return statemachine.Succeed, nil
}

// SleepState waits for a fixed duration. It returns statemachine.Cancel when
// canceled or when its context ends first.
type SleepState struct {
	*statemachine.BaseState

	duration time.Duration
}

// NewSleepState creates a sleep state.
func NewSleepState(d time.Duration) *SleepState {
	return &SleepState{
		BaseState: statemachine.NewBaseState(statemachine.Succeed, statemachine.Cancel),
		duration:  d,
	}
}

func (s *SleepState) Execute(ctx context.Context, _ *statemachine.Blackboard) (string, error) {
	timer := time.NewTimer(s.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return statemachine.Succeed, nil
	case <-s.Done():
		return statemachine.Cancel, nil
	case <-ctx.Done():
		return statemachine.Cancel, nil
	}
}

// OutcomeState returns a fixed outcome, or the string stored under a
// blackboard key when one is configured.
type OutcomeState struct {
	*statemachine.BaseState

	outcome string
	key     string
}

// NewOutcomeState creates a state that always returns outcome. Extra outcomes
// may be declared so that it can stand in for a richer state.
func NewOutcomeState(outcome string, declared ...string) *OutcomeState {
	if !slices.Contains(declared, outcome) {
		declared = append([]string{outcome}, declared...)
	}

	return &OutcomeState{
		BaseState: statemachine.NewBaseState(declared...),
		outcome:   outcome,
	}
}

// NewKeyOutcomeState creates a state that returns the string stored under key,
// or fallback when the key is missing.
func NewKeyOutcomeState(key, fallback string, declared ...string) *OutcomeState {
	s := NewOutcomeState(fallback, declared...)
	s.key = key

	return s
}

func (s *OutcomeState) Execute(_ context.Context, bb *statemachine.Blackboard) (string, error) {
	if s.key != "" {
		if val, ok := bb.GetString(s.key); ok {
			return val, nil
		}
	}

	return s.outcome, nil
}

// CopyState copies a blackboard value to another key. It aborts when the
// source key is missing.
type CopyState struct {
	*statemachine.BaseState

	from string
	to   string
}

// NewCopyState creates a copy state.
func NewCopyState(from, to string) *CopyState {
	return &CopyState{
		BaseState: statemachine.NewBaseState(statemachine.Succeed, statemachine.Abort),
		from:      from,
		to:        to,
	}
}

func (s *CopyState) Execute(_ context.Context, bb *statemachine.Blackboard) (string, error) {
	val, ok := bb.Get(s.from)
	if !ok {
		return statemachine.Abort, nil
	}

	bb.Set(s.to, val)

	return statemachine.Succeed, nil
}

// CounterState increments an integer blackboard key and returns Continue
// until the counter reaches limit, then Done.
type CounterState struct {
	*statemachine.BaseState

	key   string
	limit int
}

// NewCounterState creates a counter state.
func NewCounterState(key string, limit int) *CounterState {
	return &CounterState{
		BaseState: statemachine.NewBaseState(Continue, Done),
		key:       key,
		limit:     limit,
	}
}

func (s *CounterState) Execute(_ context.Context, bb *statemachine.Blackboard) (string, error) {
	count := 0

	if val, ok := bb.Get(s.key); ok {
		n, ok := val.(int)
		if !ok {
			return "", fmt.Errorf("counter %q holds %T, not int", s.key, val)
		}

		count = n
	}

	count++
	bb.Set(s.key, count)

	if count >= s.limit {
		return Done, nil
	}

	return Continue, nil
}
