package testing

import (
	"context"
	"sync"

	"github.com/amp-labs/nestfsm/statemachine"
)

// ScriptedState returns its script of outcomes one per execution, repeating
// the last entry once the script is exhausted.
type ScriptedState struct {
	*statemachine.BaseState

	mu     sync.Mutex
	script []string
	calls  int
	effect func(bb *statemachine.Blackboard)
}

// NewScriptedState creates a state declaring outcomes and returning script in order.
func NewScriptedState(outcomes []string, script ...string) *ScriptedState {
	return &ScriptedState{
		BaseState: statemachine.NewBaseState(outcomes...),
		script:    script,
	}
}

// Returning creates a state that declares outcomes and always returns outcome.
func Returning(outcome string, outcomes ...string) *ScriptedState {
	if len(outcomes) == 0 {
		outcomes = []string{outcome}
	}

	return NewScriptedState(outcomes, outcome)
}

// WithEffect sets a function run against the blackboard on every execution.
func (s *ScriptedState) WithEffect(effect func(bb *statemachine.Blackboard)) *ScriptedState {
	s.effect = effect

	return s
}

func (s *ScriptedState) Execute(_ context.Context, bb *statemachine.Blackboard) (string, error) {
	s.mu.Lock()
	idx := min(s.calls, len(s.script)-1)
	s.calls++
	effect := s.effect
	s.mu.Unlock()

	if effect != nil {
		effect(bb)
	}

	if idx < 0 {
		return "", nil
	}

	return s.script[idx], nil
}

// Calls returns the number of executions.
func (s *ScriptedState) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// BlockingState blocks until it is canceled or its context ends, then returns
// statemachine.Cancel. Started is closed when the first execution begins.
type BlockingState struct {
	*statemachine.BaseState

	once      sync.Once
	started   chan struct{}
	ignoreCtx bool
}

// NewBlockingState creates a blocking state. Its outcomes always include statemachine.Cancel.
func NewBlockingState(outcomes ...string) *BlockingState {
	declared := append([]string{statemachine.Cancel}, outcomes...)

	return &BlockingState{
		BaseState: statemachine.NewBaseState(declared...),
		started:   make(chan struct{}),
	}
}

func (s *BlockingState) Execute(ctx context.Context, _ *statemachine.Blackboard) (string, error) {
	s.once.Do(func() { close(s.started) })

	ctxDone := ctx.Done()
	if s.ignoreCtx {
		ctxDone = nil
	}

	select {
	case <-s.Done():
	case <-ctxDone:
	}

	return statemachine.Cancel, nil
}

// IgnoreContext makes the state wait for Cancel only, ignoring its context.
func (s *BlockingState) IgnoreContext() *BlockingState {
	s.ignoreCtx = true

	return s
}

// Started is closed once the state has started executing.
func (s *BlockingState) Started() <-chan struct{} {
	return s.started
}
