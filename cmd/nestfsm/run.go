package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amp-labs/nestfsm/bgworker"
	"github.com/amp-labs/nestfsm/cli"
	"github.com/amp-labs/nestfsm/http/transport"
	"github.com/amp-labs/nestfsm/logger"
	"github.com/amp-labs/nestfsm/shutdown"
	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/amp-labs/nestfsm/statemachine/states"
	"github.com/amp-labs/nestfsm/statemachine/viewer"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	Instances int
	Workers   int
	Publish   bool
	Redis     bool
	Trace     bool
	Values    map[string]string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <definition.yaml>",
		Short: "Execute a state machine definition",
		Long: `Build the machine described by a YAML definition and execute it until it
returns one of its outcomes. SIGINT or SIGTERM cancel the running machines.

Example:
  nestfsm run examples/pipeline.yaml
  nestfsm run examples/pipeline.yaml --instances 4 --publish
  nestfsm run examples/pipeline.yaml --set retries=3 --trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefinition(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Instances, "instances", "n", 1, "number of instances to run")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "instances running at once (default BACKGROUND_WORKER_COUNT)")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "publish live snapshots to the viewer")
	cmd.Flags().BoolVar(&opts.Redis, "redis", false, "publish snapshots over Redis instead of HTTP")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the blackboard changes of every state")
	cmd.Flags().StringToStringVar(&opts.Values, "set", nil, "initial blackboard values (key=value)")

	return cmd
}

// instanceResult is the result of one machine instance.
type instanceResult struct {
	Name    string
	Outcome string
	Err     error
	Elapsed time.Duration
}

func runDefinition(cmd *cobra.Command, opts *RunOptions, path string) error {
	if opts.Instances < 1 {
		return fmt.Errorf("--instances must be at least 1, got %d", opts.Instances)
	}

	def, err := statemachine.LoadDefinition(path)
	if err != nil {
		return err
	}

	var tracer *states.Tracer

	reg := cli.Register(states.DefaultRegistry(opts.Logger), nil, nil)
	if opts.Trace {
		tracer = states.NewTracer()
		reg = tracedRegistry(reg, tracer)
	}

	probe, err := statemachine.Build(def, reg)
	if err != nil {
		return err
	}

	err = probe.Validate()
	if err != nil {
		return err
	}

	ctx, handler := shutdown.SetupHandler(cmd.Context(), opts.Logger)
	defer handler.Stop()

	var sink viewer.Sink

	if opts.Publish {
		var closeSink func() error

		sink, closeSink, err = newSink(opts)
		if err != nil {
			return err
		}

		defer closeSink() //nolint:errcheck
	}

	workers := opts.Workers
	if workers <= 0 {
		cfg, err := bgworker.LoadConfig()
		if err != nil {
			return err
		}

		workers = cfg.Workers
	}

	pool := bgworker.New[instanceResult](workers)
	defer pool.Stop()

	tasks := make([]func(context.Context) (instanceResult, error), opts.Instances)

	for i := range tasks {
		name := def.Name
		if opts.Instances > 1 {
			name = fmt.Sprintf("%s-%d", def.Name, i+1)
		}

		tasks[i] = func(ctx context.Context) (instanceResult, error) {
			return runInstance(ctx, opts, handler, def, reg, sink, name), nil
		}
	}

	results, err := pool.Run(ctx, tasks...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if tracer != nil {
		fmt.Fprint(out, tracer.Report())
	}

	return report(out, results)
}

func runInstance(
	ctx context.Context,
	opts *RunOptions,
	handler *shutdown.Handler,
	def *statemachine.Definition,
	reg *statemachine.Registry,
	sink viewer.Sink,
	name string,
) instanceResult {
	result := instanceResult{Name: name}
	ctx = logger.With(ctx, "instance", name)
	log := logger.Get(ctx)

	sm, err := statemachine.Build(def, reg, statemachine.WithLogger(statemachine.NewSlogLogger(log)))
	if err != nil {
		result.Err = err

		return result
	}

	handler.BeforeShutdown(sm.Cancel)

	bb := statemachine.NewBlackboard()
	for key, value := range opts.Values {
		bb.Set(key, value)
	}

	group, groupCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	publishCtx, stopPublishing := context.WithCancel(groupCtx)

	if sink != nil {
		publisher := viewer.NewPublisher(name, sm, sink,
			viewer.WithInterval(opts.Config.PublishInterval),
			viewer.WithPublisherLogger(log))

		group.Go(func() error {
			return publisher.Run(publishCtx)
		})
	}

	start := time.Now()
	result.Outcome, result.Err = sm.Execute(ctx, bb)
	result.Elapsed = time.Since(start)

	stopPublishing()
	_ = group.Wait()

	if result.Err != nil {
		log.Error("Machine instance failed", "error", logger.AnnotateError(result.Err,
			"definition", def.Name, "elapsed", result.Elapsed))
	}

	return result
}

// newSink creates the sink publishing snapshots to the viewer.
func newSink(opts *RunOptions) (viewer.Sink, func() error, error) {
	cfg := opts.Config

	if !opts.Redis {
		rt, err := transport.New(transport.EnableDNSCache, transport.EnableDecompression)
		if err != nil {
			return nil, nil, err
		}

		return viewer.NewHTTPSink(cfg.ViewerURL, rt), func() error { return nil }, nil
	}

	compression, err := viewer.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, nil, err
	}

	client := newRedisClient(cfg)

	return viewer.NewRedisSink(client, cfg.ViewerChannel, compression), client.Close, nil
}

func newRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// tracedRegistry returns a registry whose states are wrapped by tracer.
func tracedRegistry(base *statemachine.Registry, tracer *states.Tracer) *statemachine.Registry {
	reg := statemachine.NewRegistry()

	for _, stateType := range base.Types() {
		reg.Register(stateType, func(def statemachine.StateDefinition) (statemachine.State, error) {
			state, err := base.Create(def)
			if err != nil {
				return nil, err
			}

			return tracer.Wrap(def.Name, state), nil
		})
	}

	return reg
}

// report prints one banner line per instance and fails when any instance failed.
func report(out io.Writer, results []instanceResult) error {
	lines := make([]string, 0, len(results))
	errs := make([]error, 0)

	for _, result := range results {
		if result.Err != nil {
			lines = append(lines, fmt.Sprintf(" %s: error after %s", result.Name, result.Elapsed.Round(time.Millisecond)))
			errs = append(errs, fmt.Errorf("%s: %w", result.Name, result.Err))

			continue
		}

		lines = append(lines, fmt.Sprintf(" %s: %s in %s", result.Name, result.Outcome, result.Elapsed.Round(time.Millisecond)))
	}

	fmt.Fprint(out, cli.Banner(strings.Join(lines, "\n"), cli.TerminalWidth(), cli.AlignLeft))

	return errors.Join(errs...)
}
