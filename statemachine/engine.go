package statemachine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// StateMachine is a State composed of named child states. Executing it walks
// the graph from the start state, translating each child's outcome through
// that child's transition table until one of the machine's own outcomes is
// reached. Because it is itself a State it can be nested inside another machine.
type StateMachine struct {
	*BaseState

	name   string
	logger Logger
	hooks  []Hook

	// mu guards the fields below. It is never held while a child executes.
	mu      sync.RWMutex
	states  map[string]StateEntry
	order   []string
	start   string
	current string
	// executing is set from entering a child until it returns; pending holds a
	// cancel that arrived while no child was executing.
	executing bool
	pending   bool

	running atomic.Bool
}

// Compile-time check that StateMachine implements State.
var _ State = (*StateMachine)(nil)

// NewStateMachine creates a machine that returns one of outcomes to its caller.
func NewStateMachine(outcomes []string, opts ...Option) (*StateMachine, error) {
	err := validateOutcomes(outcomes)
	if err != nil {
		return nil, fmt.Errorf("invalid machine outcomes: %w", err)
	}

	sm := &StateMachine{
		BaseState: NewBaseState(outcomes...),
		name:      defaultMachineName,
		states:    make(map[string]StateEntry),
	}

	for _, opt := range opts {
		opt(sm)
	}

	return sm, nil
}

// Name returns the machine name used in logs, metrics and spans.
func (sm *StateMachine) Name() string {
	return sm.name
}

// AddState registers a named state with an optional outcome translation table.
// The first registered state becomes the start state unless one was set.
// Transition targets are not checked here; an unknown target fails the
// execution that reaches it.
func (sm *StateMachine) AddState(name string, state State, transitions map[string]string) error {
	if name == "" {
		return ErrEmptyStateName
	}

	if state == nil {
		return fmt.Errorf("state %s: %w", name, ErrNilState)
	}

	if sm.hasOutcome(name) {
		return fmt.Errorf("state %s: %w", name, ErrAmbiguousName)
	}

	err := validateOutcomes(state.Outcomes())
	if err != nil {
		return fmt.Errorf("state %s: %w", name, err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.states[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateState, name)
	}

	sm.states[name] = StateEntry{
		State:       state,
		Transitions: maps.Clone(transitions),
	}
	sm.order = append(sm.order, name)

	if sm.start == "" {
		sm.start = name
	}

	return nil
}

// SetStartState overrides the start state. The name is resolved when the
// machine executes.
func (sm *StateMachine) SetStartState(name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.start = name
}

// StartState returns the name of the start state.
func (sm *StateMachine) StartState() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.start
}

// States returns a copy of the registered states keyed by name.
func (sm *StateMachine) States() map[string]StateEntry {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	states := make(map[string]StateEntry, len(sm.states))
	for name, entry := range sm.states {
		states[name] = StateEntry{
			State:       entry.State,
			Transitions: maps.Clone(entry.Transitions),
		}
	}

	return states
}

// StateNames returns the registered state names in registration order.
func (sm *StateMachine) StateNames() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return slices.Clone(sm.order)
}

// CurrentState returns the name of the executing child state, or "" when idle.
// For nested machines the caller recurses into the returned state.
func (sm *StateMachine) CurrentState() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.current
}

// Cancel requests cooperative cancellation of the machine and of the child
// state executing at the time of the call. A cancel that arrives between two
// children is delivered to the next child when it is entered.
func (sm *StateMachine) Cancel() {
	sm.BaseState.Cancel()

	sm.mu.Lock()

	var active State
	if entry, ok := sm.states[sm.current]; ok && sm.executing {
		active = entry.State
	} else {
		sm.pending = true
	}

	sm.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
}

// ResetCancel re-arms the machine and drops a cancel not yet delivered to a child.
func (sm *StateMachine) ResetCancel() {
	sm.BaseState.ResetCancel()

	sm.mu.Lock()
	sm.pending = false
	sm.mu.Unlock()
}

// Execute runs the machine until a child outcome resolves to one of the
// machine's outcomes. It fails if a child fails, returns an undeclared
// outcome, or produces an outcome with no transition. Cancellation of ctx
// is forwarded as a Cancel request. The forwarding runs on its own goroutine,
// so a ctx that ends just as the last child returns may not be observed.
func (sm *StateMachine) Execute(ctx context.Context, bb *Blackboard) (outcome string, err error) {
	if !sm.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	defer sm.running.Store(false)

	// A parent re-arms its child before making it current, so a cancel that
	// arrives in between must survive.
	if armed, _ := ctx.Value(armedContextKey).(State); armed != sm {
		sm.ResetCancel()
	}

	stop := context.AfterFunc(ctx, sm.Cancel)
	defer stop()

	runID := uuid.NewString()
	ctx = withRun(ctx, runID, sm.name)
	ctx, span := startExecutionSpan(ctx, sm.name, runID)
	started := time.Now()

	activeExecutions.WithLabelValues(sm.name).Inc()

	defer func() {
		sm.setCurrent("")
		activeExecutions.WithLabelValues(sm.name).Dec()
		sm.finish(ctx, runID, outcome, err, time.Since(started))
		endSpan(span, outcome, err)
	}()

	sm.enter(sm.StartState())

	for {
		sm.mu.RLock()
		name := sm.current
		entry, ok := sm.states[name]
		sm.mu.RUnlock()

		if !ok {
			return "", fmt.Errorf("%w: start state %q", ErrStateNotFound, name)
		}

		result, err := sm.executeState(ctx, runID, name, entry, bb)
		if err != nil {
			return "", err
		}

		target, terminal, err := sm.resolve(name, entry, result)
		if err != nil {
			return "", err
		}

		if terminal {
			return target, nil
		}

		sm.transition(ctx, runID, name, result, target)
	}
}

// executeState runs one child state and checks its outcome against its declared set.
func (sm *StateMachine) executeState(
	ctx context.Context, runID, name string, entry StateEntry, bb *Blackboard,
) (string, error) {
	stateCtx, span := startStateSpan(ctx, sm.name, name, runID)
	stateCtx = context.WithValue(stateCtx, armedContextKey, entry.State)

	sm.emit(stateCtx, Event{Machine: sm.name, RunID: runID, State: name, Phase: PhaseStart})

	if sm.logger != nil {
		sm.logger.StateEntered(stateCtx, sm.name, name)
	}

	started := time.Now()
	outcome, err := entry.State.Execute(stateCtx, bb)
	elapsed := time.Since(started)

	sm.mu.Lock()
	sm.executing = false
	sm.mu.Unlock()

	switch {
	case err != nil:
		err = WrapStateError(name, err)
	case !slices.Contains(entry.State.Outcomes(), outcome):
		err = &OutcomeError{State: name, Outcome: outcome, Declared: entry.State.Outcomes()}
	}

	endSpan(span, outcome, err)

	stateExecutionsTotal.WithLabelValues(sm.name, name, outcomeLabel(outcome, err)).Inc()
	stateDuration.WithLabelValues(sm.name, name).Observe(elapsed.Seconds())

	if sm.logger != nil {
		sm.logger.StateExited(stateCtx, sm.name, name, outcome, elapsed, err)
	}

	sm.emit(stateCtx, Event{
		Machine:  sm.name,
		RunID:    runID,
		State:    name,
		Phase:    PhaseEnd,
		Outcome:  outcome,
		Err:      err,
		Duration: elapsed,
	})

	if err != nil {
		return "", err
	}

	return outcome, nil
}

// resolve translates an outcome through the transition table, then matches it
// against the machine outcomes and the registered state names, in that order.
func (sm *StateMachine) resolve(from string, entry StateEntry, outcome string) (string, bool, error) {
	target := outcome
	if mapped, ok := entry.Transitions[outcome]; ok {
		target = mapped
	}

	if sm.hasOutcome(target) {
		return target, true, nil
	}

	sm.mu.RLock()
	_, isState := sm.states[target]
	sm.mu.RUnlock()

	if isState {
		return target, false, nil
	}

	return "", false, &TransitionError{
		From:    from,
		Outcome: outcome,
		Target:  target,
		Err:     ErrUnresolvedTransition,
	}
}

// transition moves the machine to the next state.
func (sm *StateMachine) transition(ctx context.Context, runID, from, outcome, to string) {
	sm.enter(to)

	transitionsTotal.WithLabelValues(sm.name, from, to).Inc()

	if sm.logger != nil {
		sm.logger.TransitionExecuted(ctx, sm.name, from, outcome, to)
	}

	sm.emit(ctx, Event{
		Machine: sm.name,
		RunID:   runID,
		State:   from,
		Phase:   PhaseTransition,
		Outcome: outcome,
		Target:  to,
	})
}

// finish records the result of an execution.
func (sm *StateMachine) finish(ctx context.Context, runID, outcome string, err error, elapsed time.Duration) {
	executionsTotal.WithLabelValues(sm.name, outcomeLabel(outcome, err)).Inc()
	executionDuration.WithLabelValues(sm.name, resultLabel(err)).Observe(elapsed.Seconds())

	if err != nil {
		failuresTotal.WithLabelValues(sm.name, failureKind(err)).Inc()
	}

	if sm.logger != nil {
		sm.logger.MachineFinished(ctx, sm.name, outcome, elapsed, err)
	}

	sm.emit(ctx, Event{
		Machine:  sm.name,
		RunID:    runID,
		Phase:    PhaseFinish,
		Outcome:  outcome,
		Err:      err,
		Duration: elapsed,
	})
}

// enter re-arms the named state and makes it current.
// enter makes name the current state, re-arms it and hands it a pending cancel.
func (sm *StateMachine) enter(name string) {
	sm.mu.Lock()

	entry, ok := sm.states[name]
	if ok {
		ResetCancel(entry.State)
	}

	sm.current = name
	sm.executing = ok
	pending := ok && sm.pending

	if pending {
		sm.pending = false
	}

	sm.mu.Unlock()

	if pending {
		entry.State.Cancel()
	}
}

func (sm *StateMachine) setCurrent(name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.current = name
	sm.executing = false
}

func (sm *StateMachine) emit(ctx context.Context, event Event) {
	for _, hook := range sm.hooks {
		hook(ctx, event)
	}
}

func (sm *StateMachine) String() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	parts := make([]string, 0, len(sm.order))
	for _, name := range sm.order {
		parts = append(parts, fmt.Sprintf("%s: %v", name, sm.states[name].Transitions))
	}

	return fmt.Sprintf("StateMachine(%s)%v {%s}", sm.name, sm.outcomes, strings.Join(parts, ", "))
}
