package viewer

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel snapshots are published on.
const DefaultChannel = "fsm_viewer"

// Sink receives encoded snapshots from a Publisher.
type Sink interface {
	Publish(ctx context.Context, payload []byte) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, payload []byte) error

func (f SinkFunc) Publish(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// RedisPublisher is the subset of a Redis client used by RedisSink.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes snapshots on a Redis channel.
type RedisSink struct {
	client      RedisPublisher
	channel     string
	compression Compression
}

// NewRedisSink creates a sink publishing on channel, or DefaultChannel when empty.
func NewRedisSink(client RedisPublisher, channel string, compression Compression) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}

	return &RedisSink{
		client:      client,
		channel:     channel,
		compression: compression,
	}
}

func (s *RedisSink) Publish(ctx context.Context, payload []byte) error {
	data, err := Compress(payload, s.compression)
	if err != nil {
		return err
	}

	err = s.client.Publish(ctx, s.channel, data).Err()
	if err != nil {
		return fmt.Errorf("failed to publish snapshot on %s: %w", s.channel, err)
	}

	return nil
}
