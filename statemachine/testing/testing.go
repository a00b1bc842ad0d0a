// Package testing provides testing utilities for state machine workflows.
package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/stretchr/testify/assert"
)

// Recorder collects execution events from one or more machines.
type Recorder struct {
	mu     sync.Mutex
	events []statemachine.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Hook returns the hook to pass to statemachine.WithHook.
func (r *Recorder) Hook() statemachine.Hook {
	return func(_ context.Context, event statemachine.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.events = append(r.events, event)
	}
}

// Option returns the recorder as a machine option.
func (r *Recorder) Option() statemachine.Option {
	return statemachine.WithHook(r.Hook())
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []statemachine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]statemachine.Event, len(r.events))
	copy(out, r.events)

	return out
}

// Path returns the states started by the named machine, in order.
func (r *Recorder) Path(machine string) []string {
	var path []string

	for _, event := range r.Events() {
		if event.Machine == machine && event.Phase == statemachine.PhaseStart {
			path = append(path, event.State)
		}
	}

	return path
}

// Outcomes returns the raw outcomes returned by states of the named machine, in order.
func (r *Recorder) Outcomes(machine string) []string {
	var outcomes []string

	for _, event := range r.Events() {
		if event.Machine == machine && event.Phase == statemachine.PhaseEnd && event.Err == nil {
			outcomes = append(outcomes, event.Outcome)
		}
	}

	return outcomes
}

// Finished returns the finish events of the named machine.
func (r *Recorder) Finished(machine string) []statemachine.Event {
	var finished []statemachine.Event

	for _, event := range r.Events() {
		if event.Machine == machine && event.Phase == statemachine.PhaseFinish {
			finished = append(finished, event)
		}
	}

	return finished
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

// AssertPath asserts that the named machine executed exactly the given states.
func AssertPath(t *testing.T, r *Recorder, machine string, states ...string) bool {
	t.Helper()

	return assert.Equal(t, states, r.Path(machine), "unexpected path for machine %s", machine)
}
