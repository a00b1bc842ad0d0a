package statemachine

import (
	"context"
	"time"
)

const defaultMachineName = "statemachine"

// Event phases reported to hooks.
const (
	PhaseStart      = "start"
	PhaseEnd        = "end"
	PhaseTransition = "transition"
	PhaseFinish     = "finish"
)

// Event describes one step of a machine execution.
//
//   - start: State is about to execute.
//   - end: State returned Outcome (or Err) after Duration.
//   - transition: State's Outcome was resolved to the registered state Target.
//   - finish: the machine returned Outcome (or Err) after Duration; State is empty.
type Event struct {
	Machine  string
	RunID    string
	State    string
	Phase    string
	Outcome  string
	Target   string
	Err      error
	Duration time.Duration
}

// Hook observes machine execution. Hooks run synchronously on the executing
// goroutine and must not call back into the machine's Execute.
type Hook func(ctx context.Context, event Event)

// Option configures a StateMachine.
type Option func(*StateMachine)

// WithName sets the name used in logs, metrics and spans.
func WithName(name string) Option {
	return func(sm *StateMachine) {
		if name != "" {
			sm.name = name
		}
	}
}

// WithLogger sets the logger for execution events.
func WithLogger(logger Logger) Option {
	return func(sm *StateMachine) {
		sm.logger = logger
	}
}

// WithHook adds a hook called for every execution event.
func WithHook(hook Hook) Option {
	return func(sm *StateMachine) {
		if hook != nil {
			sm.hooks = append(sm.hooks, hook)
		}
	}
}
