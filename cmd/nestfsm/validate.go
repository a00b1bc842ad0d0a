package main

import (
	"errors"
	"fmt"

	"github.com/amp-labs/nestfsm/cli"
	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/amp-labs/nestfsm/statemachine/states"
	"github.com/amp-labs/nestfsm/statemachine/viewer"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition.yaml>...",
		Short: "Check definitions without running them",
		Long: `Parse and build each definition, then check that the start state exists and
that every outcome of every state leads to a state or a machine outcome.

Example:
  nestfsm validate examples/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			reg := cli.Register(states.DefaultRegistry(rootOpts.Logger), nil, nil)

			var errs []error

			for _, path := range args {
				sm, err := loadMachine(path, reg)
				if err == nil {
					err = sm.Validate()
				}

				if err != nil {
					fmt.Fprintf(out, "✗ %s\n  %v\n", path, err)
					errs = append(errs, fmt.Errorf("%s: %w", path, err))

					continue
				}

				fmt.Fprintf(out, "✓ %s (%s, %d states)\n", path, sm.Name(), len(viewer.Snapshot(sm.Name(), sm))-1)
			}

			return errors.Join(errs...)
		},
	}
}

// loadMachine reads and builds a definition file.
func loadMachine(path string, reg *statemachine.Registry) (*statemachine.StateMachine, error) {
	def, err := statemachine.LoadDefinition(path)
	if err != nil {
		return nil, err
	}

	return statemachine.Build(def, reg)
}
