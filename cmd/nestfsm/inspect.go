package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/nestfsm/http/transport"
	"github.com/amp-labs/nestfsm/statemachine/viewer"
	"github.com/amp-labs/nestfsm/statemachine/visualizer"
	"github.com/spf13/cobra"
)

var errMachineNotFound = errors.New("machine not found")

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions

	URL     string
	Diagram bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [machine]",
		Short: "Query a running viewer",
		Long: `List the machines known to a viewer, or show the active states of one machine.

Example:
  nestfsm inspect
  nestfsm inspect PIPELINE-2 --diagram`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "viewer URL (default VIEWER_URL)")
	cmd.Flags().BoolVar(&opts.Diagram, "diagram", false, "print a Mermaid diagram with the active states highlighted")

	return cmd
}

func inspect(cmd *cobra.Command, opts *InspectOptions, args []string) error {
	url := opts.URL
	if url == "" {
		url = opts.Config.ViewerURL
	}

	rt, err := transport.New(transport.EnableDNSCache, transport.EnableDecompression)
	if err != nil {
		return err
	}

	client := viewer.NewClient(url, rt)
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		names, err := client.Names(cmd.Context())
		if err != nil {
			return err
		}

		for _, name := range names {
			fmt.Fprintln(out, name)
		}

		return nil
	}

	infos, found, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("%w: %s", errMachineNotFound, args[0])
	}

	active := viewer.Active(infos)
	if len(active) == 0 {
		fmt.Fprintf(out, "%s: idle\n", viewer.Root(infos))
	} else {
		fmt.Fprintf(out, "%s: %s\n", viewer.Root(infos), strings.Join(active, " > "))
	}

	if opts.Diagram {
		diagram, err := visualizer.Render(infos, visualizer.DefaultOptions())
		if err != nil {
			return err
		}

		fmt.Fprintln(out, diagram)
	}

	return nil
}
