package states

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/amp-labs/nestfsm/statemachine"
)

// Trace records one execution of a traced state.
type Trace struct {
	State   string
	Outcome string
	Before  map[string]any
	After   map[string]any
	Err     error
}

// Tracer captures blackboard snapshots around state executions for debugging.
type Tracer struct {
	mu     sync.Mutex
	traces []Trace
}

// NewTracer creates an empty tracer.
func NewTracer() *Tracer {
	return &Tracer{}
}

// Wrap returns a state that records every execution of inner under name.
func (t *Tracer) Wrap(name string, inner statemachine.State) *TracedState {
	return &TracedState{
		BaseState: statemachine.NewBaseState(inner.Outcomes()...),
		name:      name,
		inner:     inner,
		tracer:    t,
	}
}

func (t *Tracer) record(trace Trace) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.traces = append(t.traces, trace)
}

// Traces returns the recorded traces in execution order.
func (t *Tracer) Traces() []Trace {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Trace, len(t.traces))
	copy(out, t.traces)

	return out
}

// Report renders every trace with the blackboard keys it changed.
func (t *Tracer) Report() string {
	var sb strings.Builder

	for i, trace := range t.Traces() {
		fmt.Fprintf(&sb, "%d. %s -> %s\n", i+1, trace.State, trace.Outcome)

		if trace.Err != nil {
			fmt.Fprintf(&sb, "   error: %v\n", trace.Err)
		}

		diff := Diff(trace.Before, trace.After)

		for _, key := range slices.Sorted(maps.Keys(diff)) {
			encoded, err := json.Marshal(diff[key])
			if err != nil {
				encoded = fmt.Appendf(nil, "%v", diff[key])
			}

			fmt.Fprintf(&sb, "   %s = %s\n", key, encoded)
		}
	}

	return sb.String()
}

// Diff returns the keys of after whose values differ from before. Removed keys map to nil.
func Diff(before, after map[string]any) map[string]any {
	changed := make(map[string]any)

	for key, val := range after {
		prev, ok := before[key]
		if !ok || fmt.Sprint(prev) != fmt.Sprint(val) {
			changed[key] = val
		}
	}

	for key := range before {
		if _, ok := after[key]; !ok {
			changed[key] = nil
		}
	}

	return changed
}

// TracedState forwards to an inner state and records a Trace per execution.
type TracedState struct {
	*statemachine.BaseState

	name   string
	inner  statemachine.State
	tracer *Tracer
}

func (s *TracedState) Execute(ctx context.Context, bb *statemachine.Blackboard) (string, error) {
	before := bb.Snapshot()

	outcome, err := s.inner.Execute(statemachine.Rearm(ctx, s, s.inner), bb)

	s.tracer.record(Trace{
		State:   s.name,
		Outcome: outcome,
		Before:  before,
		After:   bb.Snapshot(),
		Err:     err,
	})

	return outcome, err
}

// Cancel cancels the wrapper and the inner state.
func (s *TracedState) Cancel() {
	s.BaseState.Cancel()
	s.inner.Cancel()
}

// Inner returns the wrapped state.
func (s *TracedState) Inner() statemachine.State {
	return s.inner
}
