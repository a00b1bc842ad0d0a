// Package states provides built-in leaf states for YAML definitions and a
// registry that wires them into statemachine.Build.
package states

import (
	"fmt"
	"time"

	"github.com/amp-labs/nestfsm/statemachine"
)

var (
	// ErrParameterNotFound is returned when a required parameter is missing.
	ErrParameterNotFound = fmt.Errorf("%w: parameter not found", statemachine.ErrInvalidParameter)
	// ErrParameterTypeMismatch is returned when a parameter has an unexpected type.
	ErrParameterTypeMismatch = fmt.Errorf("%w: parameter type mismatch", statemachine.ErrInvalidParameter)
	// ErrInvalidDurationFormat is returned when a duration parameter cannot be parsed.
	ErrInvalidDurationFormat = fmt.Errorf("%w: invalid duration format", statemachine.ErrInvalidParameter)
)

// Params reads typed values from a state definition's params block.
type Params struct {
	params map[string]any
}

// NewParams wraps a params block. A nil map behaves as empty.
func NewParams(params map[string]any) *Params {
	return &Params{params: params}
}

func (p *Params) lookup(key string, required bool) (any, bool, error) {
	val, exists := p.params[key]
	if !exists && required {
		return nil, false, fmt.Errorf("required parameter %q: %w", key, ErrParameterNotFound)
	}

	return val, exists, nil
}

// String extracts a string parameter.
func (p *Params) String(key string, required bool, defaultVal string) (string, error) {
	val, exists, err := p.lookup(key, required)
	if err != nil || !exists {
		return defaultVal, err
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T: %w", key, val, ErrParameterTypeMismatch)
	}

	return str, nil
}

// Int extracts an integer parameter. YAML and JSON numbers are both accepted.
func (p *Params) Int(key string, required bool, defaultVal int) (int, error) {
	val, exists, err := p.lookup(key, required)
	if err != nil || !exists {
		return defaultVal, err
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %q must be an integer, got %T: %w", key, val, ErrParameterTypeMismatch)
	}
}

// Duration extracts a duration given as a Go duration string or a number of seconds.
func (p *Params) Duration(key string, required bool, defaultVal time.Duration) (time.Duration, error) {
	val, exists, err := p.lookup(key, required)
	if err != nil || !exists {
		return defaultVal, err
	}

	switch v := val.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w: %w", key, ErrInvalidDurationFormat, err)
		}

		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf(
			"parameter %q must be a duration string or number, got %T: %w",
			key, val, ErrParameterTypeMismatch,
		)
	}
}

// Map extracts an object parameter.
func (p *Params) Map(key string, required bool) (map[string]any, error) {
	val, exists, err := p.lookup(key, required)
	if err != nil || !exists {
		return nil, err
	}

	m, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be an object, got %T: %w", key, val, ErrParameterTypeMismatch)
	}

	return m, nil
}

// Strings extracts a list of strings.
func (p *Params) Strings(key string, required bool) ([]string, error) {
	val, exists, err := p.lookup(key, required)
	if err != nil || !exists {
		return nil, err
	}

	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be a list, got %T: %w", key, val, ErrParameterTypeMismatch)
	}

	result := make([]string, len(items))

	for i, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q[%d] must be a string, got %T: %w", key, i, item, ErrParameterTypeMismatch)
		}

		result[i] = str
	}

	return result, nil
}

// Raw returns a parameter without conversion.
func (p *Params) Raw(key string) (any, bool) {
	val, ok := p.params[key]

	return val, ok
}
