package statemachine

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined error types.
var (
	// ErrInvalidOutcome indicates that a state returned an outcome it did not declare.
	ErrInvalidOutcome = errors.New("outcome is not declared by state")
	// ErrUnresolvedTransition indicates that an outcome matched neither a state nor a machine outcome.
	ErrUnresolvedTransition = errors.New("no transition for outcome")
	// ErrStateNotFound indicates that a referenced state was never registered.
	ErrStateNotFound = errors.New("state not found")
	// ErrDuplicateState indicates that a state name was registered twice.
	ErrDuplicateState = errors.New("duplicate state name")
	// ErrAmbiguousName indicates that a state name collides with one of the machine's outcomes.
	ErrAmbiguousName = errors.New("state name collides with machine outcome")
	// ErrNoOutcomes indicates that an outcome set is empty.
	ErrNoOutcomes = errors.New("at least one outcome is required")
	// ErrDuplicateOutcome indicates that an outcome set has repeated labels.
	ErrDuplicateOutcome = errors.New("duplicate outcome")
	// ErrEmptyOutcome indicates that an outcome label is empty.
	ErrEmptyOutcome = errors.New("outcome label cannot be empty")
	// ErrEmptyStateName indicates that a state was registered without a name.
	ErrEmptyStateName = errors.New("state name is required")
	// ErrNilState indicates that a nil state was registered.
	ErrNilState = errors.New("state cannot be nil")
	// ErrNilCallback indicates that a callback state has no callback.
	ErrNilCallback = errors.New("callback cannot be nil")
	// ErrAlreadyRunning indicates that Execute was called on a machine that is already executing.
	ErrAlreadyRunning = errors.New("state machine is already running")

	// ErrDefinitionNameRequired indicates that a definition has no name.
	ErrDefinitionNameRequired = errors.New("definition name is required")
	// ErrUnknownStateType indicates that no builder is registered for a state type.
	ErrUnknownStateType = errors.New("unknown state type")
	// ErrStateKindConflict indicates that a state definition sets both a type and a nested machine.
	ErrStateKindConflict = errors.New("state must define exactly one of type or machine")
	// ErrInvalidParameter indicates that a state parameter is missing or has the wrong type.
	ErrInvalidParameter = errors.New("invalid state parameter")
)

// StateError wraps a failure raised while a state was executing.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// OutcomeError reports a state that returned an outcome outside its declared set.
type OutcomeError struct {
	State    string
	Outcome  string
	Declared []string
}

func (e *OutcomeError) Error() string {
	return fmt.Sprintf("state %s: outcome %q is not one of [%s]",
		e.State, e.Outcome, strings.Join(e.Declared, ", "))
}

func (e *OutcomeError) Unwrap() error {
	return ErrInvalidOutcome
}

// TransitionError reports an outcome that could not be resolved.
// Outcome is what the state returned, Target is the label after translation.
type TransitionError struct {
	From    string
	Outcome string
	Target  string
	Err     error
}

func (e *TransitionError) Error() string {
	if e.Outcome != e.Target {
		return fmt.Sprintf("transition from %s on %q (translated to %q): %v", e.From, e.Outcome, e.Target, e.Err)
	}

	return fmt.Sprintf("transition from %s on %q: %v", e.From, e.Outcome, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// failureKind classifies an execution error for metrics.
func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidOutcome):
		return "invalid_outcome"
	case errors.Is(err, ErrUnresolvedTransition):
		return "unresolved_transition"
	case errors.Is(err, ErrStateNotFound):
		return "state_not_found"
	case errors.Is(err, ErrAlreadyRunning):
		return "already_running"
	default:
		return "state_error"
	}
}
