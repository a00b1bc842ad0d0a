package statemachine

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/atomic"
)

// RetryState re-executes an inner state while it returns one of the retry
// outcomes, up to maxAttempts executions. It declares the inner state's outcomes.
type RetryState struct {
	*BaseState

	inner       State
	retryOn     []string
	maxAttempts int
	backoff     time.Duration
}

// NewRetryState wraps inner. The wait before attempt n+1 is backoff*n.
func NewRetryState(inner State, maxAttempts int, backoff time.Duration, retryOn ...string) *RetryState {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &RetryState{
		BaseState:   NewBaseState(inner.Outcomes()...),
		inner:       inner,
		retryOn:     slices.Clone(retryOn),
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

func (s *RetryState) Execute(ctx context.Context, bb *Blackboard) (string, error) {
	for attempt := 1; ; attempt++ {
		outcome, err := s.inner.Execute(Rearm(ctx, s, s.inner), bb)
		if err != nil {
			return "", err
		}

		if !slices.Contains(s.retryOn, outcome) || attempt >= s.maxAttempts || s.IsCanceled() {
			return outcome, nil
		}

		select {
		case <-time.After(s.backoff * time.Duration(attempt)):
		case <-s.Done():
			return outcome, nil
		case <-ctx.Done():
			return outcome, nil
		}
	}
}

// Cancel cancels the wrapper and the inner state.
func (s *RetryState) Cancel() {
	s.BaseState.Cancel()
	s.inner.Cancel()
}

// Inner returns the wrapped state.
func (s *RetryState) Inner() State {
	return s.inner
}

// TimeoutState cancels an inner state that runs longer than a deadline and
// reports Timeout once it returns. It declares the inner outcomes plus Timeout.
type TimeoutState struct {
	*BaseState

	inner   State
	timeout time.Duration
}

// NewTimeoutState wraps inner with a deadline.
func NewTimeoutState(inner State, timeout time.Duration) *TimeoutState {
	outcomes := inner.Outcomes()
	if !slices.Contains(outcomes, Timeout) {
		outcomes = append(outcomes, Timeout)
	}

	return &TimeoutState{
		BaseState: NewBaseState(outcomes...),
		inner:     inner,
		timeout:   timeout,
	}
}

func (s *TimeoutState) Execute(ctx context.Context, bb *Blackboard) (string, error) {
	ctx, cancel := context.WithTimeout(Rearm(ctx, s, s.inner), s.timeout)
	defer cancel()

	var expired atomic.Bool

	timer := time.AfterFunc(s.timeout, func() {
		expired.Store(true)
		s.inner.Cancel()
	})
	defer timer.Stop()

	outcome, err := s.inner.Execute(ctx, bb)

	if expired.Load() && (err == nil || errors.Is(err, context.DeadlineExceeded)) {
		return Timeout, nil
	}

	if err != nil {
		return "", err
	}

	return outcome, nil
}

// Cancel cancels the wrapper and the inner state.
func (s *TimeoutState) Cancel() {
	s.BaseState.Cancel()
	s.inner.Cancel()
}

// Inner returns the wrapped state.
func (s *TimeoutState) Inner() State {
	return s.inner
}
