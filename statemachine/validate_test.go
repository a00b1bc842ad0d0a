package statemachine_test

import (
	"testing"
	"time"

	"github.com/amp-labs/nestfsm/statemachine"
	smtest "github.com/amp-labs/nestfsm/statemachine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid graph", func(t *testing.T) {
		t.Parallel()

		sm := newMachine(t, "valid", []string{"done"})
		require.NoError(t, sm.AddState("A", smtest.Returning("ok"), map[string]string{"ok": "B"}))
		require.NoError(t, sm.AddState("B", smtest.Returning("done"), nil))

		require.NoError(t, sm.Validate())
	})

	t.Run("missing start", func(t *testing.T) {
		t.Parallel()

		sm := newMachine(t, "no-start", []string{"done"})

		require.ErrorIs(t, sm.Validate(), statemachine.ErrStateNotFound)
	})

	t.Run("unknown target", func(t *testing.T) {
		t.Parallel()

		sm := newMachine(t, "bad-target", []string{"done"})
		require.NoError(t, sm.AddState("A", smtest.Returning("ok"), map[string]string{"ok": "NOWHERE"}))

		err := sm.Validate()
		require.ErrorIs(t, err, statemachine.ErrUnresolvedTransition)
		assert.Contains(t, err.Error(), "NOWHERE")
	})

	t.Run("unmapped outcome", func(t *testing.T) {
		t.Parallel()

		sm := newMachine(t, "unmapped", []string{"done"})
		require.NoError(t, sm.AddState("A", smtest.Returning("done", "done", "lost"), nil))

		err := sm.Validate()
		require.ErrorIs(t, err, statemachine.ErrUnresolvedTransition)
		assert.Contains(t, err.Error(), "lost")
	})

	t.Run("transition key not declared", func(t *testing.T) {
		t.Parallel()

		sm := newMachine(t, "undeclared-key", []string{"done"})
		require.NoError(t, sm.AddState("A", smtest.Returning("done"), map[string]string{"typo": "done"}))

		require.ErrorIs(t, sm.Validate(), statemachine.ErrInvalidOutcome)
	})

	t.Run("nested machine", func(t *testing.T) {
		t.Parallel()

		child := newMachine(t, "inner-invalid", []string{"x"})
		require.NoError(t, child.AddState("LEAF", smtest.Returning("y"), nil))

		parent := newMachine(t, "outer-invalid", []string{"done"})
		require.NoError(t, parent.AddState("CHILD", child, map[string]string{"x": "done"}))

		err := parent.Validate()
		require.ErrorIs(t, err, statemachine.ErrUnresolvedTransition)

		var stateErr *statemachine.StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, "CHILD", stateErr.State)
	})
	t.Run("nested machine behind a wrapper", func(t *testing.T) {
		t.Parallel()

		child := newMachine(t, "wrapped-invalid", []string{"x"})
		require.NoError(t, child.AddState("LEAF", smtest.Returning("y"), nil))

		parent := newMachine(t, "outer-wrapped", []string{"done"})
		require.NoError(t, parent.AddState("CHILD", statemachine.NewTimeoutState(child, time.Second),
			map[string]string{"x": "done", statemachine.Timeout: "done"}))

		require.ErrorIs(t, parent.Validate(), statemachine.ErrUnresolvedTransition)
	})
}
