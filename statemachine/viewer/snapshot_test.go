package viewer_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/amp-labs/nestfsm/statemachine"
	smtest "github.com/amp-labs/nestfsm/statemachine/testing"
	"github.com/amp-labs/nestfsm/statemachine/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nestedMachine builds OUTER{PREPARE -> INNER{WAIT} -> FINISH} where WAIT blocks until canceled.
func nestedMachine(t *testing.T) (*statemachine.StateMachine, *smtest.BlockingState) {
	t.Helper()

	wait := smtest.NewBlockingState()

	inner, err := statemachine.NewStateMachine([]string{statemachine.Cancel}, statemachine.WithName("INNER"))
	require.NoError(t, err)
	require.NoError(t, inner.AddState("WAIT", wait, nil))

	outer, err := statemachine.NewStateMachine([]string{"DONE", statemachine.Cancel}, statemachine.WithName("OUTER"))
	require.NoError(t, err)
	require.NoError(t, outer.AddState("PREPARE", smtest.Returning("ok"), map[string]string{"ok": "INNER"}))
	require.NoError(t, outer.AddState("INNER", inner, map[string]string{statemachine.Cancel: "FINISH"}))
	require.NoError(t, outer.AddState("FINISH", smtest.Returning("ok"), map[string]string{"ok": "DONE"}))

	return outer, wait
}

func TestSnapshotIdle(t *testing.T) {
	t.Parallel()

	outer, _ := nestedMachine(t)

	infos := viewer.Snapshot("demo", outer)
	require.Len(t, infos, 5)

	assert.Equal(t, viewer.StateInfo{
		ID:           0,
		Parent:       viewer.NoState,
		Name:         "demo",
		Transitions:  map[string]string{},
		Outcomes:     []string{"DONE", statemachine.Cancel},
		IsFSM:        true,
		CurrentState: viewer.NoState,
		StartState:   1,
	}, infos[0])

	names := make([]string, 0, len(infos))
	parents := make([]int, 0, len(infos))

	for i, info := range infos {
		assert.Equal(t, i, info.ID)
		names = append(names, info.Name)
		parents = append(parents, info.Parent)
	}

	assert.Equal(t, []string{"demo", "PREPARE", "INNER", "WAIT", "FINISH"}, names)
	assert.Equal(t, []int{viewer.NoState, 0, 0, 2, 0}, parents)
	assert.True(t, infos[2].IsFSM)
	assert.Equal(t, 3, infos[2].StartState)
	assert.Equal(t, viewer.NoState, infos[1].StartState)
	assert.False(t, infos[3].IsFSM)
	assert.Equal(t, map[string]string{"ok": "INNER"}, infos[1].Transitions)
	assert.Equal(t, "demo", viewer.Root(infos))
	assert.Empty(t, viewer.Active(infos))
}

func TestSnapshotRunning(t *testing.T) {
	t.Parallel()

	outer, wait := nestedMachine(t)

	done := make(chan string, 1)

	go func() {
		outcome, _ := outer.Execute(context.Background(), statemachine.NewBlackboard())
		done <- outcome
	}()

	select {
	case <-wait.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("state never started")
	}

	infos := viewer.Snapshot("demo", outer)
	assert.Equal(t, 2, infos[0].CurrentState)
	assert.Equal(t, 3, infos[2].CurrentState)
	assert.Equal(t, []string{"INNER", "WAIT"}, viewer.Active(infos))

	outer.Cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, "DONE", outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("machine did not finish")
	}

	assert.Empty(t, viewer.Active(viewer.Snapshot("demo", outer)))
}

func TestSnapshotDuringRegistration(t *testing.T) {
	t.Parallel()

	sm, err := statemachine.NewStateMachine([]string{"done"}, statemachine.WithName("GROWING"))
	require.NoError(t, err)

	added := make(chan struct{})

	go func() {
		defer close(added)

		for i := range 200 {
			assert.NoError(t, sm.AddState(fmt.Sprintf("S%d", i), smtest.Returning("done"), nil))
		}
	}()

	for {
		infos := viewer.Snapshot("growing", sm)
		for _, info := range infos[1:] {
			assert.Equal(t, []string{"done"}, info.Outcomes)
		}

		select {
		case <-added:
			assert.Len(t, viewer.Snapshot("growing", sm), 201)

			return
		default:
		}
	}
}

func TestRootEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, viewer.Root(nil))
	assert.Empty(t, viewer.Active(nil))
}

func TestActiveIgnoresBackReferences(t *testing.T) {
	t.Parallel()

	infos := []viewer.StateInfo{
		{ID: 0, Parent: viewer.NoState, Name: "root", IsFSM: true, CurrentState: 1},
		{ID: 1, Parent: 0, Name: "loop", IsFSM: true, CurrentState: 0},
	}

	assert.Equal(t, []string{"loop"}, viewer.Active(infos))
}

func TestSnapshotUnwrapsWrappedMachine(t *testing.T) {
	t.Parallel()

	inner, err := statemachine.NewStateMachine([]string{"ok"}, statemachine.WithName("INNER"))
	require.NoError(t, err)
	require.NoError(t, inner.AddState("STEP", smtest.Returning("ok"), nil))

	outer, err := statemachine.NewStateMachine([]string{"DONE", statemachine.Timeout})
	require.NoError(t, err)

	wrapped := statemachine.NewTimeoutState(inner, time.Second)
	require.NoError(t, outer.AddState("GUARDED", wrapped, map[string]string{"ok": "DONE"}))

	infos := viewer.Snapshot("outer", outer)
	require.Len(t, infos, 3)
	assert.True(t, infos[1].IsFSM)
	assert.Equal(t, []string{"ok", statemachine.Timeout}, infos[1].Outcomes)
	assert.Equal(t, "STEP", infos[2].Name)
	assert.Equal(t, 1, infos[2].Parent)
}
