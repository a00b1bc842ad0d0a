package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/amp-labs/nestfsm/cli"
	"github.com/amp-labs/nestfsm/sanitize"
	"github.com/amp-labs/nestfsm/statemachine/states"
	"github.com/amp-labs/nestfsm/statemachine/visualizer"
	"github.com/spf13/cobra"
)

// DiagramOptions holds flags for the diagram command.
type DiagramOptions struct {
	*RootOptions

	OutDir     string
	Direction  string
	Fenced     bool
	NoOutcomes bool
}

// NewDiagramCommand creates the diagram command.
func NewDiagramCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagramOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diagram <definition.yaml>...",
		Short: "Render definitions as Mermaid state diagrams",
		Long: `Render each definition as a Mermaid state diagram. Diagrams are printed to
stdout, or written as <machine>.mmd files when --out-dir is set.

Example:
  nestfsm diagram examples/pipeline.yaml --direction LR
  nestfsm diagram examples/*.yaml --out-dir docs/diagrams`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderDiagrams(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "out-dir", "o", "", "write one .mmd file per definition into this directory")
	cmd.Flags().StringVar(&opts.Direction, "direction", "TB", "diagram direction (TB|LR)")
	cmd.Flags().BoolVar(&opts.Fenced, "fenced", false, "wrap diagrams in a ```mermaid block")
	cmd.Flags().BoolVar(&opts.NoOutcomes, "no-outcomes", false, "omit outcome labels on transitions")

	return cmd
}

func renderDiagrams(cmd *cobra.Command, opts *DiagramOptions, paths []string) error {
	reg := cli.Register(states.DefaultRegistry(opts.Logger), nil, nil)
	vopts := visualizer.DefaultOptions().
		WithDirection(opts.Direction).
		WithFenced(opts.Fenced).
		WithShowOutcomes(!opts.NoOutcomes)

	if opts.OutDir != "" {
		err := os.MkdirAll(opts.OutDir, 0o750) //nolint:mnd
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.OutDir, err)
		}
	}

	for _, path := range paths {
		sm, err := loadMachine(path, reg)
		if err != nil {
			return err
		}

		diagram := visualizer.GenerateMermaid(sm.Name(), sm, vopts)

		if opts.OutDir == "" {
			fmt.Fprintln(cmd.OutOrStdout(), diagram)

			continue
		}

		name := sanitize.FileName(sm.Name())
		if name == "" {
			name = "machine"
		}

		target := filepath.Join(opts.OutDir, name+".mmd")

		err = os.WriteFile(target, []byte(diagram+"\n"), 0o600) //nolint:mnd
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}

		opts.Logger.Info("Diagram written", "machine", sm.Name(), "path", target)
	}

	return nil
}
