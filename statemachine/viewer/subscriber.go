package viewer

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSubscriber is the subset of a Redis client used by Subscribe.
type RedisSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Subscribe ingests snapshots published on a Redis channel into the server
// until ctx is done. Invalid payloads are logged and skipped.
func (s *Server) Subscribe(ctx context.Context, client RedisSubscriber, channel string) error {
	if channel == "" {
		channel = DefaultChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close() //nolint:errcheck

	// Receive surfaces a connection failure before we start draining.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	s.logger.InfoContext(ctx, "Viewer subscribed", "channel", channel)

	return s.consume(ctx, pubsub.Channel())
}

func (s *Server) consume(ctx context.Context, messages <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			err := s.Ingest("redis", []byte(msg.Payload))
			if err != nil {
				s.logger.DebugContext(ctx, "Rejected snapshot",
					"channel", msg.Channel,
					"error", err,
				)
			}
		}
	}
}
