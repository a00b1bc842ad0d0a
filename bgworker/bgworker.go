// Package bgworker runs batches of independent tasks on a bounded worker pool.
package bgworker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/caarlos0/env/v11"
)

const defaultWorkerCount = 10

// Config holds the worker pool size.
type Config struct {
	Workers int `env:"BACKGROUND_WORKER_COUNT" envDefault:"10"`
}

// LoadConfig reads the pool size from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse worker config: %w", err)
	}

	return cfg, nil
}

// Pool runs tasks producing T with bounded concurrency.
type Pool[T any] struct {
	pool pond.ResultPool[T]
}

// New creates a pool running at most workers tasks at once. Non-positive
// values select the default of 10.
func New[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = defaultWorkerCount
	}

	slog.Debug("Initializing background worker pool", "count", workers)

	return &Pool[T]{pool: pond.NewResultPool[T](workers)}
}

// Run submits every task and waits for all of them. Results are returned in
// task order; the first error is returned once every task has finished.
func (p *Pool[T]) Run(ctx context.Context, tasks ...func(ctx context.Context) (T, error)) ([]T, error) {
	group := p.pool.NewGroup()

	for _, task := range tasks {
		group.SubmitErr(func() (T, error) {
			return task(ctx)
		})
	}

	return group.Wait()
}

// Stop waits for running tasks and releases the workers.
func (p *Pool[T]) Stop() {
	slog.Debug("Stopping background worker pool")
	p.pool.StopAndWait()
	slog.Debug("Background worker pool stopped")
}
