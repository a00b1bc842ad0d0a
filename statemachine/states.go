package statemachine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/atomic"
)

// BaseState carries the declared outcomes and the cancellation flag of a state.
// Concrete states embed a *BaseState created with NewBaseState.
type BaseState struct {
	outcomes []string
	canceled atomic.Bool

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewBaseState creates a base state declaring the given outcomes.
// The outcomes are checked when the state is registered with a StateMachine.
func NewBaseState(outcomes ...string) *BaseState {
	return &BaseState{
		outcomes: slices.Clone(outcomes),
	}
}

// Outcomes returns a copy of the declared outcomes.
func (b *BaseState) Outcomes() []string {
	return slices.Clone(b.outcomes)
}

// Cancel marks the state as canceled and closes the Done channel.
// It is safe to call any number of times from any goroutine.
func (b *BaseState) Cancel() {
	b.canceled.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done == nil {
		b.done = make(chan struct{})
	}

	if !b.closed {
		close(b.done)
		b.closed = true
	}
}

// IsCanceled reports whether Cancel was called since the current execution started.
func (b *BaseState) IsCanceled() bool {
	return b.canceled.Load()
}

// Done returns a channel that is closed once the state is canceled.
func (b *BaseState) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done == nil {
		b.done = make(chan struct{})
	}

	return b.done
}

func (b *BaseState) hasOutcome(outcome string) bool {
	return slices.Contains(b.outcomes, outcome)
}

// ResetCancel re-arms the flag and the Done channel before a new execution.
func (b *BaseState) ResetCancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.canceled.Store(false)

	if b.closed {
		b.done = make(chan struct{})
		b.closed = false
	}
}

// Callback is the body of a CbState.
type Callback func(ctx context.Context, bb *Blackboard) (string, error)

// CbState is a leaf state that runs a callback.
type CbState struct {
	*BaseState

	cb Callback
}

// NewCbState creates a callback state declaring the given outcomes.
func NewCbState(outcomes []string, cb Callback) *CbState {
	return &CbState{
		BaseState: NewBaseState(outcomes...),
		cb:        cb,
	}
}

func (s *CbState) Execute(ctx context.Context, bb *Blackboard) (string, error) {
	if s.cb == nil {
		return "", ErrNilCallback
	}

	return s.cb(ctx, bb)
}

func (s *CbState) String() string {
	return fmt.Sprintf("CbState%v", s.outcomes)
}

// validateOutcomes checks that an outcome set is non-empty with distinct, non-empty labels.
func validateOutcomes(outcomes []string) error {
	if len(outcomes) == 0 {
		return ErrNoOutcomes
	}

	seen := make(map[string]struct{}, len(outcomes))

	for _, outcome := range outcomes {
		if outcome == "" {
			return ErrEmptyOutcome
		}

		if _, dup := seen[outcome]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOutcome, outcome)
		}

		seen[outcome] = struct{}{}
	}

	return nil
}
