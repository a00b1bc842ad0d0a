package main

import (
	"context"

	"github.com/amp-labs/nestfsm/logger"
	"github.com/amp-labs/nestfsm/shutdown"
	"github.com/amp-labs/nestfsm/statemachine/viewer"
	"github.com/amp-labs/nestfsm/statemachine/visualizer"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ViewerOptions holds flags for the viewer command.
type ViewerOptions struct {
	*RootOptions

	Addr    string
	Redis   bool
	Channel string
}

// NewViewerCommand creates the viewer command.
func NewViewerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "viewer",
		Short: "Serve the live state of published machines",
		Long: `Collect snapshots posted to /publish, and from a Redis channel with --redis,
and serve the latest snapshot of each machine as JSON and Mermaid diagrams.

Example:
  nestfsm viewer --addr :5000
  nestfsm viewer --redis --channel fsm_viewer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveViewer(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default VIEWER_ADDR)")
	cmd.Flags().BoolVar(&opts.Redis, "redis", false, "also ingest snapshots from Redis")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "Redis channel (default VIEWER_CHANNEL)")

	return cmd
}

func serveViewer(ctx context.Context, opts *ViewerOptions) error {
	cfg := opts.Config

	addr := opts.Addr
	if addr == "" {
		addr = cfg.ViewerAddr
	}

	channel := opts.Channel
	if channel == "" {
		channel = cfg.ViewerChannel
	}

	ctx, handler := shutdown.SetupHandler(logger.WithSubsystem(ctx, "viewer"), opts.Logger)
	defer handler.Stop()

	serverOpts := []viewer.ServerOption{
		viewer.WithServerLogger(logger.Get(ctx)),
		viewer.WithRenderer(func(infos []viewer.StateInfo) string {
			diagram, _ := visualizer.Render(infos, visualizer.DefaultOptions())

			return diagram
		}),
	}

	var client *redis.Client

	if opts.Redis {
		client = newRedisClient(cfg)
		defer client.Close() //nolint:errcheck

		serverOpts = append(serverOpts, viewer.WithReadinessCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	server := viewer.NewServer(viewer.NewStore(cfg.StoreMaxAge, cfg.StoreMaxLen), serverOpts...)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return server.Run(ctx, addr)
	})

	if client != nil {
		group.Go(func() error {
			return server.Subscribe(ctx, client, channel)
		})
	}

	return group.Wait()
}
