package visualizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/amp-labs/nestfsm/statemachine/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func state(outcomes ...string) statemachine.State {
	return statemachine.NewCbState(outcomes, func(context.Context, *statemachine.Blackboard) (string, error) {
		return outcomes[0], nil
	})
}

// pipeline builds FETCH -> PROCESS{PARSE -> STORE} -> DONE with a retry loop on FETCH.
func pipeline(t *testing.T) *statemachine.StateMachine {
	t.Helper()

	inner, err := statemachine.NewStateMachine([]string{"stored", "invalid"}, statemachine.WithName("PROCESS"))
	require.NoError(t, err)
	require.NoError(t, inner.AddState("PARSE", state("ok", "bad"), map[string]string{"ok": "STORE", "bad": "invalid"}))
	require.NoError(t, inner.AddState("STORE", state("stored"), nil))

	outer, err := statemachine.NewStateMachine([]string{"DONE", "FAILED"}, statemachine.WithName("pipeline"))
	require.NoError(t, err)
	require.NoError(t, outer.AddState("FETCH", state("ok", "retry", "error"),
		map[string]string{"ok": "PROCESS", "retry": "FETCH", "error": "FAILED"}))
	require.NoError(t, outer.AddState("PROCESS", inner, map[string]string{"stored": "DONE", "invalid": "FAILED"}))

	return outer
}

func TestGenerateMermaid(t *testing.T) {
	t.Parallel()

	out := GenerateMermaid("pipeline", pipeline(t), DefaultOptions())

	for _, want := range []string{
		"stateDiagram-v2\n",
		"    direction TB\n",
		"    [*] --> s1\n",
		`    state "FETCH" as s1` + "\n",
		`    state "PROCESS" as s2` + "\n",
		"    state s2 {\n",
		"        [*] --> s3\n",
		`        state "PARSE" as s3` + "\n",
		"        s3 --> s4: ok\n",
		"        s3 --> [*]: bad (invalid)\n",
		"        s4 --> [*]: stored\n",
		"    s1 --> s2: ok\n",
		"    s1 --> s1: retry\n",
		"    s1 --> [*]: error (FAILED)\n",
		"    s2 --> [*]: stored (DONE)\n",
		"    s2 --> [*]: invalid (FAILED)\n",
		"classDef active",
	} {
		assert.Contains(t, out, want)
	}

	assert.NotContains(t, out, "```")
	assert.NotContains(t, out, "class s")
}

func TestGenerateMermaidOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions().
		WithDirection("LR").
		WithShowOutcomes(false).
		WithFenced(true).
		WithHighlightPath([]string{"STORE"})

	out := GenerateMermaid("pipeline", pipeline(t), opts)

	assert.True(t, strings.HasPrefix(out, "```mermaid\nstateDiagram-v2\n"))
	assert.True(t, strings.HasSuffix(out, "```\n"))
	assert.Contains(t, out, "direction LR")
	assert.Contains(t, out, "    s1 --> s2\n")
	assert.NotContains(t, out, ": ok")
	assert.Contains(t, out, "class s4 active")
}

func TestRenderHighlightsActiveStates(t *testing.T) {
	t.Parallel()

	infos := viewer.Snapshot("pipeline", pipeline(t))
	infos[0].CurrentState = 2
	infos[2].CurrentState = 4

	out, err := Render(infos, DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, out, "class s2,s4 active")

	out, err = Render(infos, DefaultOptions().WithHighlightActive(false))
	require.NoError(t, err)
	assert.NotContains(t, out, "active\n")
}

func TestRenderEmpty(t *testing.T) {
	t.Parallel()

	_, err := Render(nil, DefaultOptions())
	require.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestGenerateMermaidFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: greeter
outcomes: [DONE]
states:
  - name: HELLO
    type: fixed
    params:
      outcome: ok
    transitions:
      ok: DONE
`), 0o600))

	reg := statemachine.NewRegistry().Register("fixed", func(def statemachine.StateDefinition) (statemachine.State, error) {
		outcome, err := statemachine.RequireString(def.Params, "outcome")
		if err != nil {
			return nil, err
		}

		return state(outcome), nil
	})

	out, err := GenerateMermaidFromFile(path, reg, DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, out, `state "HELLO" as s1`)
	assert.Contains(t, out, "s1 --> [*]: ok (DONE)")

	_, err = GenerateMermaidFromFile(filepath.Join(t.TempDir(), "missing.yaml"), reg, DefaultOptions())
	require.Error(t, err)
}
