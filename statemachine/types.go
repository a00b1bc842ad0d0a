package statemachine

import "context"

// Basic outcomes shared by the built-in states.
const (
	Succeed = "succeeded"
	Abort   = "aborted"
	Cancel  = "canceled"
	Timeout = "timeout"
)

// State is a unit of work that terminates with one of its declared outcomes.
//
// Execute must return a member of Outcomes, or an error. Cancel is a
// cooperative request: it never interrupts Execute, the state is expected to
// observe it and return promptly.
type State interface {
	Outcomes() []string
	Execute(ctx context.Context, bb *Blackboard) (string, error)
	Cancel()
}

// StateEntry is a registered state together with its outcome translation table.
type StateEntry struct {
	State       State
	Transitions map[string]string
}

// canceler is implemented by states embedding *BaseState.
type canceler interface {
	ResetCancel()
	IsCanceled() bool
}

// Wrapper is implemented by states that decorate a single inner state.
type Wrapper interface {
	Inner() State
}

// ResetCancel re-arms the cancel flag of s before a new execution. Machines
// call it on every child; wrapper states call it on the state they wrap.
func ResetCancel(s State) {
	if c, ok := s.(canceler); ok {
		c.ResetCancel()
	}
}

// Rearm prepares inner for an execution driven by outer. It resets the cancel
// flag of inner, forwards a cancel already requested on outer and returns a
// context under which a nested machine keeps that cancel instead of resetting it.
func Rearm(ctx context.Context, outer, inner State) context.Context {
	ResetCancel(inner)

	if c, ok := outer.(canceler); ok && c.IsCanceled() {
		inner.Cancel()
	}

	return context.WithValue(ctx, armedContextKey, inner)
}

// Unwrap follows Wrapper states down to the innermost state.
func Unwrap(s State) State {
	for {
		w, ok := s.(Wrapper)
		if !ok {
			return s
		}

		s = w.Inner()
	}
}
