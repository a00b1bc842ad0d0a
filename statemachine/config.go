package statemachine

import (
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Definition describes a state machine tree in YAML.
//
//	name: PIPELINE
//	outcomes: [done, failed]
//	start: FETCH
//	states:
//	  - name: FETCH
//	    type: sleep
//	    params: {duration: 1s}
//	    timeout: 5s
//	    transitions: {succeeded: PROCESS, timeout: failed, canceled: failed}
//	  - name: PROCESS
//	    machine: {...}
//	    transitions: {finished: done}
type Definition struct {
	Name     string            `json:"name"     yaml:"name"`
	Outcomes []string          `json:"outcomes" yaml:"outcomes"`
	Start    string            `json:"start"    yaml:"start"`
	States   []StateDefinition `json:"states"   yaml:"states"`
}

// StateDefinition describes one registered state: either a registered type
// or a nested machine, plus its outcome translation table.
type StateDefinition struct {
	Name        string            `json:"name"        yaml:"name"`
	Type        string            `json:"type"        yaml:"type"`
	Outcomes    []string          `json:"outcomes"    yaml:"outcomes"`
	Params      map[string]any    `json:"params"      yaml:"params"`
	Machine     *Definition       `json:"machine"     yaml:"machine"`
	Transitions map[string]string `json:"transitions" yaml:"transitions"`
	Timeout     string            `json:"timeout"     yaml:"timeout"`
	Retry       *RetryDefinition  `json:"retry"       yaml:"retry"`
}

// RetryDefinition wraps a state in a RetryState.
type RetryDefinition struct {
	Attempts int      `json:"attempts" yaml:"attempts"`
	Backoff  string   `json:"backoff"  yaml:"backoff"`
	On       []string `json:"on"       yaml:"on"`
}

// LoadDefinition reads a definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file %q: %w", path, err)
	}

	return ParseDefinition(data)
}

// LoadDefinitionFromFS reads a definition from a filesystem such as embed.FS.
func LoadDefinitionFromFS(fsys fs.FS, path string) (*Definition, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition from FS: %w", err)
	}

	return ParseDefinition(data)
}

// ParseDefinition parses and checks a YAML definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition

	err := yaml.Unmarshal(data, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	def.applyDefaults()

	err = def.Validate()
	if err != nil {
		return nil, err
	}

	return &def, nil
}

// applyDefaults names nested machines after the state that holds them.
func (d *Definition) applyDefaults() {
	for i := range d.States {
		nested := d.States[i].Machine
		if nested == nil {
			continue
		}

		if nested.Name == "" {
			nested.Name = d.States[i].Name
		}

		nested.applyDefaults()
	}
}

// Validate checks the structure of the definition. It does not check the
// transition graph, which is resolved at execution time.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return ErrDefinitionNameRequired
	}

	err := validateOutcomes(d.Outcomes)
	if err != nil {
		return fmt.Errorf("machine %s: %w", d.Name, err)
	}

	names := make(map[string]bool, len(d.States))

	for i, state := range d.States {
		if state.Name == "" {
			return fmt.Errorf("machine %s, state %d: %w", d.Name, i, ErrEmptyStateName)
		}

		if names[state.Name] {
			return fmt.Errorf("machine %s: %w: %s", d.Name, ErrDuplicateState, state.Name)
		}

		names[state.Name] = true

		if (state.Type == "") == (state.Machine == nil) {
			return fmt.Errorf("machine %s, state %s: %w", d.Name, state.Name, ErrStateKindConflict)
		}

		if state.Timeout != "" {
			timeout, err := time.ParseDuration(state.Timeout)
			if err != nil {
				return fmt.Errorf("machine %s, state %s: %w: timeout: %w", d.Name, state.Name, ErrInvalidParameter, err)
			}

			if timeout <= 0 {
				return fmt.Errorf("machine %s, state %s: %w: timeout must be positive", d.Name, state.Name, ErrInvalidParameter)
			}
		}

		if state.Retry != nil && state.Retry.Backoff != "" {
			if _, err := time.ParseDuration(state.Retry.Backoff); err != nil {
				return fmt.Errorf("machine %s, state %s: %w: retry backoff: %w", d.Name, state.Name, ErrInvalidParameter, err)
			}
		}

		if state.Machine != nil {
			err := state.Machine.Validate()
			if err != nil {
				return fmt.Errorf("machine %s, state %s: %w", d.Name, state.Name, err)
			}
		}
	}

	return nil
}
