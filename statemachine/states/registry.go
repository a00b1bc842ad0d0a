package states

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/amp-labs/nestfsm/statemachine"
)

// State types registered by DefaultRegistry.
const (
	TypeLog     = "log"
	TypeSet     = "set"
	TypeSleep   = "sleep"
	TypeOutcome = "outcome"
	TypeCopy    = "copy"
	TypeCounter = "counter"
)

// DefaultRegistry returns a registry holding the built-in state types.
// Log states write to logger, or slog.Default() when nil.
func DefaultRegistry(logger *slog.Logger) *statemachine.Registry {
	return statemachine.NewRegistry().
		Register(TypeLog, logBuilder(logger)).
		Register(TypeSet, buildSet).
		Register(TypeSleep, buildSleep).
		Register(TypeOutcome, buildOutcome).
		Register(TypeCopy, buildCopy).
		Register(TypeCounter, buildCounter)
}

func logBuilder(logger *slog.Logger) statemachine.StateBuilder {
	return func(def statemachine.StateDefinition) (statemachine.State, error) {
		p := NewParams(def.Params)

		message, err := p.String("message", true, "")
		if err != nil {
			return nil, err
		}

		levelName, err := p.String("level", false, "info")
		if err != nil {
			return nil, err
		}

		var level slog.Level

		err = level.UnmarshalText([]byte(strings.ToUpper(levelName)))
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", "level", ErrParameterTypeMismatch)
		}

		keys, err := p.Strings("keys", false)
		if err != nil {
			return nil, err
		}

		return NewLogState(logger, level, message, keys...), nil
	}
}

func buildSet(def statemachine.StateDefinition) (statemachine.State, error) {
	values, err := NewParams(def.Params).Map("values", true)
	if err != nil {
		return nil, err
	}

	return NewSetState(values), nil
}

func buildSleep(def statemachine.StateDefinition) (statemachine.State, error) {
	d, err := NewParams(def.Params).Duration("duration", true, 0)
	if err != nil {
		return nil, err
	}

	return NewSleepState(d), nil
}

func buildOutcome(def statemachine.StateDefinition) (statemachine.State, error) {
	p := NewParams(def.Params)

	outcome, err := p.String("outcome", true, "")
	if err != nil {
		return nil, err
	}

	key, err := p.String("key", false, "")
	if err != nil {
		return nil, err
	}

	if key != "" {
		return NewKeyOutcomeState(key, outcome, def.Outcomes...), nil
	}

	return NewOutcomeState(outcome, def.Outcomes...), nil
}

func buildCopy(def statemachine.StateDefinition) (statemachine.State, error) {
	p := NewParams(def.Params)

	from, err := p.String("from", true, "")
	if err != nil {
		return nil, err
	}

	to, err := p.String("to", true, "")
	if err != nil {
		return nil, err
	}

	return NewCopyState(from, to), nil
}

func buildCounter(def statemachine.StateDefinition) (statemachine.State, error) {
	p := NewParams(def.Params)

	key, err := p.String("key", false, "counter")
	if err != nil {
		return nil, err
	}

	limit, err := p.Int("limit", true, 0)
	if err != nil {
		return nil, err
	}

	if limit < 1 {
		return nil, fmt.Errorf("parameter %q must be positive: %w", "limit", statemachine.ErrInvalidParameter)
	}

	return NewCounterState(key, limit), nil
}
