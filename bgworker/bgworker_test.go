package bgworker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTask = errors.New("task failed")

func TestRunKeepsTaskOrder(t *testing.T) {
	t.Parallel()

	pool := New[int](2)
	defer pool.Stop()

	var (
		running atomic.Int32
		peak    atomic.Int32
	)

	tasks := make([]func(context.Context) (int, error), 6)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) {
			now := running.Add(1)
			defer running.Add(-1)

			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)

			return i * i, nil
		}
	}

	results, err := pool.Run(context.Background(), tasks...)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4, 9, 16, 25}, results)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunReturnsError(t *testing.T) {
	t.Parallel()

	pool := New[string](0)
	defer pool.Stop()

	_, err := pool.Run(context.Background(),
		func(context.Context) (string, error) { return "ok", nil },
		func(context.Context) (string, error) { return "", errTask },
	)
	require.ErrorIs(t, err, errTask)
}

func TestLoadConfig(t *testing.T) { //nolint:paralleltest // Uses t.Setenv
	t.Setenv("BACKGROUND_WORKER_COUNT", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)

	t.Setenv("BACKGROUND_WORKER_COUNT", "many")

	_, err = LoadConfig()
	require.Error(t, err)
}
