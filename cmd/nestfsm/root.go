package main

import (
	"log/slog"

	"github.com/amp-labs/nestfsm/logger"
	"github.com/amp-labs/nestfsm/telemetry"
	"github.com/spf13/cobra"
)

const appName = "nestfsm"

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	EnvFile string
	Verbose bool

	Config Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command of the nestfsm CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Hierarchical state machines driven by outcomes",
		Long: `nestfsm runs state machines described in YAML, where every state ends with
an outcome and each outcome names the next state or an outcome of the machine.

Machines nest: a state can itself be a machine. Running machines can be
published to a viewer that serves their live state and Mermaid diagrams.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return telemetry.Shutdown(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "load variables from a .env or .yaml file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDiagramCommand(opts))
	cmd.AddCommand(NewViewerCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// setup loads the environment, then configures telemetry and logging.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	err := applyEnvFile(o.EnvFile)
	if err != nil {
		return err
	}

	o.Config, err = LoadConfig()
	if err != nil {
		return err
	}

	otelCfg, err := telemetry.LoadConfig(appName)
	if err != nil {
		return err
	}

	err = telemetry.Initialize(cmd.Context(), otelCfg)
	if err != nil {
		return err
	}

	logOpts := []logger.Option{
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithHandler(telemetry.LogHandler(appName)),
	}

	if o.Verbose {
		logOpts = append(logOpts, logger.WithMinLevel(slog.LevelDebug))
	}

	o.Logger, err = logger.ConfigureLogging(appName, logOpts...)

	return err
}
