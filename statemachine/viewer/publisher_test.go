package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (s *captureSink) Publish(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.payloads = append(s.payloads, payload)

	return nil
}

func (s *captureSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.payloads)
}

func idleMachine(t *testing.T, name string) *statemachine.StateMachine {
	t.Helper()

	sm, err := statemachine.NewStateMachine([]string{"DONE"}, statemachine.WithName(name))
	require.NoError(t, err)

	state := statemachine.NewCbState([]string{"ok"}, func(context.Context, *statemachine.Blackboard) (string, error) {
		return "ok", nil
	})
	require.NoError(t, sm.AddState("A", state, map[string]string{"ok": "DONE"}))

	return sm
}

func TestPublishOnceDeduplicates(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	pub := NewPublisher("", idleMachine(t, "pub-dedupe"), sink, WithKeepAlive(time.Hour))

	sentTotal := publishTotal.WithLabelValues("pub-dedupe", "sent")
	skippedTotal := publishTotal.WithLabelValues("pub-dedupe", "skipped")
	sentBefore, skippedBefore := testutil.ToFloat64(sentTotal), testutil.ToFloat64(skippedTotal)

	sent, err := pub.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = pub.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)

	assert.Equal(t, 1, sink.Count())
	assert.InDelta(t, 1, testutil.ToFloat64(sentTotal)-sentBefore, 0)
	assert.InDelta(t, 1, testutil.ToFloat64(skippedTotal)-skippedBefore, 0)

	infos, err := Decode(sink.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, "pub-dedupe", Root(infos))
}

func TestPublishOnceWithoutKeepAlive(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	pub := NewPublisher("renamed", idleMachine(t, "pub-every"), sink, WithKeepAlive(0))

	for range 3 {
		sent, err := pub.PublishOnce(context.Background())
		require.NoError(t, err)
		assert.True(t, sent)
	}

	assert.Equal(t, 3, sink.Count())

	infos, err := Decode(sink.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, "renamed", Root(infos))
}

func TestPublishOnceSinkError(t *testing.T) {
	t.Parallel()

	sink := &captureSink{err: errors.New("unreachable")}
	pub := NewPublisher("pub-error", idleMachine(t, "pub-error"), sink)

	errorTotal := publishTotal.WithLabelValues("pub-error", "error")
	errorBefore := testutil.ToFloat64(errorTotal)

	sent, err := pub.PublishOnce(context.Background())
	require.Error(t, err)
	assert.False(t, sent)
	assert.InDelta(t, 1, testutil.ToFloat64(errorTotal)-errorBefore, 0)
}

func TestPublisherRun(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	pub := NewPublisher("pub-run", idleMachine(t, "pub-run"), sink,
		WithInterval(5*time.Millisecond),
		WithKeepAlive(0),
		WithPublisherLogger(slogt.New(t)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- pub.Run(ctx)
	}()

	require.Eventually(t, func() bool { return sink.Count() >= 3 }, 5*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not stop")
	}

	// The final snapshot is published after the context ends.
	assert.GreaterOrEqual(t, sink.Count(), 4)
}

func TestPublisherRunPublishesFinalSnapshot(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	pub := NewPublisher("pub-final", idleMachine(t, "pub-final"), sink, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, pub.Run(ctx))

	// One publish on entry, one final publish despite the unchanged snapshot.
	assert.Equal(t, 2, sink.Count())
}

type fakeRedis struct {
	mu       sync.Mutex
	channel  string
	messages []any
	err      error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}

	f.channel = channel
	f.messages = append(f.messages, message)

	return redis.NewIntResult(1, nil)
}

func TestRedisSink(t *testing.T) {
	t.Parallel()

	client := &fakeRedis{}
	sink := NewRedisSink(client, "", CompressionLZ4)

	payload, err := Encode(sampleInfos("redis-demo"))
	require.NoError(t, err)
	require.NoError(t, sink.Publish(context.Background(), payload))

	assert.Equal(t, DefaultChannel, client.channel)
	require.Len(t, client.messages, 1)

	data, ok := client.messages[0].([]byte)
	require.True(t, ok)

	infos, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "redis-demo", Root(infos))
}

func TestRedisSinkError(t *testing.T) {
	t.Parallel()

	sink := NewRedisSink(&fakeRedis{err: errors.New("connection refused")}, "custom", CompressionNone)

	err := sink.Publish(context.Background(), []byte(`[{"id":0}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
}
