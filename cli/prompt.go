// Package cli provides terminal helpers and interactive states for the nestfsm command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/amp-labs/nestfsm/statemachine/states"
	"github.com/manifoldco/promptui"
)

// State types registered by Register.
const (
	TypePrompt = "prompt"
	TypeInput  = "input"
)

var errEmptyInput = errors.New("you must enter something")

// SelectFunc asks the user to pick one of items and returns the choice.
type SelectFunc func(label string, items []string) (string, error)

// InputFunc asks the user for a line of text.
type InputFunc func(label string, allowEmpty bool) (string, error)

// Select picks an item with a promptui select list on the terminal.
func Select(label string, items []string) (string, error) {
	sel := &promptui.Select{
		Label: label,
		Items: items,
		Searcher: func(input string, index int) bool {
			return input != "" && strings.HasPrefix(items[index], input)
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	_, value, err := sel.Run()

	return value, err
}

// Input reads a line of text with a promptui prompt on the terminal.
func Input(label string, allowEmpty bool) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if s == "" && !allowEmpty {
				return errEmptyInput
			}

			return nil
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	return prompt.Run()
}

// interrupted reports whether err means the user left the prompt.
func interrupted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) ||
		errors.Is(err, promptui.ErrAbort)
}

// PromptState lets the user choose the outcome of the state. A pending prompt
// is not interrupted by Cancel; the cancel is honored once the prompt returns.
type PromptState struct {
	*statemachine.BaseState

	label   string
	choices []string
	sel     SelectFunc
}

// NewPromptState creates a prompt offering choices as outcomes.
// statemachine.Cancel is declared as well. A nil sel uses Select.
func NewPromptState(label string, choices []string, sel SelectFunc) *PromptState {
	if sel == nil {
		sel = Select
	}

	return &PromptState{
		BaseState: statemachine.NewBaseState(append(append([]string{}, choices...), statemachine.Cancel)...),
		label:     label,
		choices:   choices,
		sel:       sel,
	}
}

func (s *PromptState) Execute(_ context.Context, _ *statemachine.Blackboard) (string, error) {
	if s.IsCanceled() {
		return statemachine.Cancel, nil
	}

	choice, err := s.sel(s.label, s.choices)

	switch {
	case interrupted(err), s.IsCanceled():
		return statemachine.Cancel, nil
	case err != nil:
		return "", fmt.Errorf("prompt %q: %w", s.label, err)
	default:
		return choice, nil
	}
}

// InputState stores a line typed by the user on the blackboard.
type InputState struct {
	*statemachine.BaseState

	label      string
	key        string
	allowEmpty bool
	input      InputFunc
}

// NewInputState creates a state storing the answer under key. A nil input uses Input.
func NewInputState(label, key string, allowEmpty bool, input InputFunc) *InputState {
	if input == nil {
		input = Input
	}

	return &InputState{
		BaseState:  statemachine.NewBaseState(statemachine.Succeed, statemachine.Cancel),
		label:      label,
		key:        key,
		allowEmpty: allowEmpty,
		input:      input,
	}
}

func (s *InputState) Execute(_ context.Context, bb *statemachine.Blackboard) (string, error) {
	if s.IsCanceled() {
		return statemachine.Cancel, nil
	}

	value, err := s.input(s.label, s.allowEmpty)

	switch {
	case interrupted(err), s.IsCanceled():
		return statemachine.Cancel, nil
	case err != nil:
		return "", fmt.Errorf("input %q: %w", s.label, err)
	}

	bb.Set(s.key, value)

	return statemachine.Succeed, nil
}

// Register adds the interactive state types to reg. A nil sel or input uses
// the terminal.
//
//	states:
//	  - name: CONFIRM
//	    type: prompt
//	    params: {label: "Deploy?", choices: [yes, no]}
//	    transitions: {yes: DEPLOY, no: done, canceled: done}
func Register(reg *statemachine.Registry, sel SelectFunc, input InputFunc) *statemachine.Registry {
	return reg.
		Register(TypePrompt, func(def statemachine.StateDefinition) (statemachine.State, error) {
			p := states.NewParams(def.Params)

			choices, err := p.Strings("choices", true)
			if err != nil {
				return nil, err
			}

			label, err := p.String("label", false, def.Name)
			if err != nil {
				return nil, err
			}

			return NewPromptState(label, choices, sel), nil
		}).
		Register(TypeInput, func(def statemachine.StateDefinition) (statemachine.State, error) {
			p := states.NewParams(def.Params)

			key, err := p.String("key", true, "")
			if err != nil {
				return nil, err
			}

			label, err := p.String("label", false, key)
			if err != nil {
				return nil, err
			}

			allowEmpty, _ := p.Raw("allow_empty")
			flag, _ := allowEmpty.(bool)

			return NewInputState(label, key, flag, input), nil
		})
}
