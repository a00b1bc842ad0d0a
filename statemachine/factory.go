package statemachine

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// StateBuilder creates a leaf state from its definition.
type StateBuilder func(def StateDefinition) (State, error)

// Registry maps state types used in definitions to builders.
// Applications register their own types to extend the built-in set.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]StateBuilder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]StateBuilder),
	}
}

// Register registers a builder for a state type, replacing any previous one.
func (r *Registry) Register(stateType string, builder StateBuilder) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.builders[stateType] = builder

	return r
}

// Types returns the registered state types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.builders))
}

// Create builds a leaf state from its definition.
func (r *Registry) Create(def StateDefinition) (State, error) {
	r.mu.RLock()
	builder, ok := r.builders[def.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownStateType, def.Type, r.Types())
	}

	return builder(def)
}

// Build constructs the machine tree described by def. Options are applied to
// every machine in the tree; each machine is named after its definition.
func Build(def *Definition, reg *Registry, opts ...Option) (*StateMachine, error) {
	err := def.Validate()
	if err != nil {
		return nil, err
	}

	return build(def, reg, opts)
}

func build(def *Definition, reg *Registry, opts []Option) (*StateMachine, error) {
	sm, err := NewStateMachine(def.Outcomes, append(slices.Clone(opts), WithName(def.Name))...)
	if err != nil {
		return nil, fmt.Errorf("machine %s: %w", def.Name, err)
	}

	for _, stateDef := range def.States {
		state, err := buildState(stateDef, reg, opts)
		if err != nil {
			return nil, fmt.Errorf("machine %s, state %s: %w", def.Name, stateDef.Name, err)
		}

		err = sm.AddState(stateDef.Name, state, stateDef.Transitions)
		if err != nil {
			return nil, fmt.Errorf("machine %s: %w", def.Name, err)
		}
	}

	if def.Start != "" {
		sm.SetStartState(def.Start)
	}

	return sm, nil
}

func buildState(def StateDefinition, reg *Registry, opts []Option) (State, error) {
	var (
		state State
		err   error
	)

	if def.Machine != nil {
		state, err = build(def.Machine, reg, opts)
	} else {
		state, err = reg.Create(def)
	}

	if err != nil {
		return nil, err
	}

	if def.Retry != nil {
		backoff, err := optionalDuration(def.Retry.Backoff)
		if err != nil {
			return nil, err
		}

		state = NewRetryState(state, def.Retry.Attempts, backoff, def.Retry.On...)
	}

	if def.Timeout != "" {
		timeout, err := optionalDuration(def.Timeout)
		if err != nil {
			return nil, err
		}

		state = NewTimeoutState(state, timeout)
	}

	return state, nil
}

func optionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	return d, nil
}

// ParamString reads a string parameter. A missing key yields def.
func ParamString(params map[string]any, key, def string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return def, nil
	}

	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidParameter, key, raw)
	}

	return s, nil
}

// RequireString reads a mandatory string parameter.
func RequireString(params map[string]any, key string) (string, error) {
	if _, ok := params[key]; !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameter, key)
	}

	return ParamString(params, key, "")
}

// ParamDuration reads a duration parameter written as a Go duration string.
func ParamDuration(params map[string]any, key string, def time.Duration) (time.Duration, error) {
	s, err := ParamString(params, key, "")
	if err != nil {
		return 0, err
	}

	if s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, key, err)
	}

	return d, nil
}
