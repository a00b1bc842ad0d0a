package statemachine

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks the transition graph ahead of execution: the start state
// must be registered and every transition target must name a registered state
// or one of the machine's outcomes. Nested machines are checked recursively.
//
// Execute never calls Validate; an invalid graph otherwise fails only when
// the offending path is taken.
func (sm *StateMachine) Validate() error {
	var errs []error

	start := sm.StartState()
	states := sm.States()

	if _, ok := states[start]; !ok {
		errs = append(errs, fmt.Errorf("%s: %w: start state %q", sm.name, ErrStateNotFound, start))
	}

	for _, name := range sm.StateNames() {
		entry := states[name]

		for _, outcome := range sortedKeys(entry.Transitions) {
			target := entry.Transitions[outcome]

			if !slices.Contains(entry.State.Outcomes(), outcome) {
				errs = append(errs, fmt.Errorf("%s: %w", sm.name, &OutcomeError{
					State:    name,
					Outcome:  outcome,
					Declared: entry.State.Outcomes(),
				}))
			}

			_, isState := states[target]
			if !isState && !sm.hasOutcome(target) {
				errs = append(errs, fmt.Errorf("%s: %w", sm.name, &TransitionError{
					From:    name,
					Outcome: outcome,
					Target:  target,
					Err:     ErrUnresolvedTransition,
				}))
			}
		}

		// Outcomes without an explicit entry resolve by name.
		for _, outcome := range entry.State.Outcomes() {
			if _, mapped := entry.Transitions[outcome]; mapped {
				continue
			}

			_, isState := states[outcome]
			if !isState && !sm.hasOutcome(outcome) {
				errs = append(errs, fmt.Errorf("%s: %w", sm.name, &TransitionError{
					From:    name,
					Outcome: outcome,
					Target:  outcome,
					Err:     ErrUnresolvedTransition,
				}))
			}
		}

		if nested, ok := Unwrap(entry.State).(*StateMachine); ok {
			err := nested.Validate()
			if err != nil {
				errs = append(errs, WrapStateError(name, err))
			}
		}
	}

	return errors.Join(errs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
