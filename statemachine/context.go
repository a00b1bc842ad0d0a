package statemachine

import (
	"context"
	"slices"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// runContextKey is the key used to store run information in Go context.
	runContextKey contextKey = "statemachine_run"
	// armedContextKey marks the child state a machine re-armed before executing it.
	armedContextKey contextKey = "statemachine_armed"
)

// RunInfo identifies the execution a state is running in.
// Path holds the machine names from the outermost machine down to the current one.
type RunInfo struct {
	RunID string
	Path  []string
}

// RunFromContext returns the run information injected by the innermost executing machine.
func RunFromContext(ctx context.Context) (RunInfo, bool) {
	info, ok := ctx.Value(runContextKey).(RunInfo)

	return info, ok
}

// withRun extends the run path of ctx with a nested machine.
func withRun(ctx context.Context, runID, machine string) context.Context {
	var path []string

	if parent, ok := RunFromContext(ctx); ok {
		path = slices.Clone(parent.Path)
	}

	return context.WithValue(ctx, runContextKey, RunInfo{
		RunID: runID,
		Path:  append(path, machine),
	})
}
