// Package shutdown turns SIGINT and SIGTERM into a canceled context. Hooks
// registered with BeforeShutdown run first, while the context is still alive,
// so running state machines can be asked to cancel cooperatively.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler owns the signal subscription of a process.
type Handler struct {
	mu      sync.Mutex
	hooks   []func()
	done    bool
	signals chan os.Signal
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// SetupHandler subscribes to SIGINT and SIGTERM and returns a context that is
// canceled once a signal arrives or Shutdown is called.
func SetupHandler(parent context.Context, logger *slog.Logger) (context.Context, *Handler) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		signals: make(chan os.Signal, 1),
		cancel:  cancel,
		logger:  logger,
	}

	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-h.signals:
			h.logger.Warn("Received " + sig.String() + ", shutting down...")
			h.Shutdown()
		case <-ctx.Done():
		}
	}()

	return ctx, h
}

// BeforeShutdown registers a hook. Hooks registered after shutdown started
// run immediately.
func (h *Handler) BeforeShutdown(hook func()) {
	h.mu.Lock()

	if h.done {
		h.mu.Unlock()
		hook()

		return
	}

	h.hooks = append(h.hooks, hook)
	h.mu.Unlock()
}

// Shutdown runs the hooks once and cancels the context.
func (h *Handler) Shutdown() {
	h.mu.Lock()

	if h.done {
		h.mu.Unlock()

		return
	}

	h.done = true
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	h.cancel()
}

// Stop unsubscribes from signals and cancels the context without running hooks.
func (h *Handler) Stop() {
	signal.Stop(h.signals)
	h.cancel()
}
