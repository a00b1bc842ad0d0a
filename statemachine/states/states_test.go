package states

import (
	"context"
	"testing"
	"time"

	"github.com/amp-labs/nestfsm/statemachine"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoYAML = `
name: DEMO
outcomes: [outcome4]
states:
  - name: SET_INT
    type: set
    params: {values: {foo: 3}}
    transitions: {succeeded: COUNT}
  - name: COUNT
    type: counter
    params: {key: loops, limit: 3}
    transitions: {continue: COUNT, done: COPY}
  - name: COPY
    type: copy
    params: {from: foo, to: bar}
    transitions: {succeeded: PRINT, aborted: outcome4}
  - name: PRINT
    type: log
    params: {message: result, keys: [foo, bar, loops], level: debug}
    transitions: {succeeded: outcome4}
`

func TestDefaultRegistryDemo(t *testing.T) {
	t.Parallel()

	def, err := statemachine.ParseDefinition([]byte(demoYAML))
	require.NoError(t, err)

	sm, err := statemachine.Build(def, DefaultRegistry(slogt.New(t)))
	require.NoError(t, err)
	require.NoError(t, sm.Validate())

	bb := statemachine.NewBlackboard()

	outcome, err := sm.Execute(context.Background(), bb)
	require.NoError(t, err)
	assert.Equal(t, "outcome4", outcome)

	bar, ok := bb.GetInt("bar")
	require.True(t, ok)
	assert.Equal(t, 3, bar)

	loops, ok := bb.GetInt("loops")
	require.True(t, ok)
	assert.Equal(t, 3, loops)
}

func TestDefaultRegistryTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{TypeCopy, TypeCounter, TypeLog, TypeOutcome, TypeSet, TypeSleep},
		DefaultRegistry(nil).Types())
}

func TestBuilderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		def  statemachine.StateDefinition
	}{
		{"log without message", statemachine.StateDefinition{Type: TypeLog}},
		{"log bad level", statemachine.StateDefinition{Type: TypeLog, Params: map[string]any{
			"message": "x", "level": "loud",
		}}},
		{"set without values", statemachine.StateDefinition{Type: TypeSet}},
		{"sleep bad duration", statemachine.StateDefinition{Type: TypeSleep, Params: map[string]any{"duration": "soon"}}},
		{"outcome missing", statemachine.StateDefinition{Type: TypeOutcome}},
		{"copy missing to", statemachine.StateDefinition{Type: TypeCopy, Params: map[string]any{"from": "a"}}},
		{"counter zero limit", statemachine.StateDefinition{Type: TypeCounter, Params: map[string]any{"limit": 0}}},
	}

	reg := DefaultRegistry(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := reg.Create(tt.def)
			require.ErrorIs(t, err, statemachine.ErrInvalidParameter)
		})
	}
}

func TestSleepState(t *testing.T) {
	t.Parallel()

	t.Run("elapses", func(t *testing.T) {
		t.Parallel()

		outcome, err := NewSleepState(time.Millisecond).Execute(context.Background(), statemachine.NewBlackboard())
		require.NoError(t, err)
		assert.Equal(t, statemachine.Succeed, outcome)
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()

		s := NewSleepState(time.Hour)
		s.Cancel()

		outcome, err := s.Execute(context.Background(), statemachine.NewBlackboard())
		require.NoError(t, err)
		assert.Equal(t, statemachine.Cancel, outcome)
	})

	t.Run("context done", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		outcome, err := NewSleepState(time.Hour).Execute(ctx, statemachine.NewBlackboard())
		require.NoError(t, err)
		assert.Equal(t, statemachine.Cancel, outcome)
	})

	t.Run("machine cancel", func(t *testing.T) {
		t.Parallel()

		sm, err := statemachine.NewStateMachine([]string{"interrupted", "rested"})
		require.NoError(t, err)
		require.NoError(t, sm.AddState("NAP", NewSleepState(time.Hour), map[string]string{
			statemachine.Cancel:  "interrupted",
			statemachine.Succeed: "rested",
		}))

		done := make(chan string, 1)

		go func() {
			outcome, _ := sm.Execute(context.Background(), statemachine.NewBlackboard())
			done <- outcome
		}()

		require.Eventually(t, func() bool { return sm.CurrentState() == "NAP" }, 5*time.Second, time.Millisecond)
		sm.Cancel()

		select {
		case outcome := <-done:
			assert.Equal(t, "interrupted", outcome)
		case <-time.After(5 * time.Second):
			t.Fatal("sleep was not canceled")
		}
	})
}

func TestOutcomeState(t *testing.T) {
	t.Parallel()

	s := NewOutcomeState("left", "right")
	assert.Equal(t, []string{"left", "right"}, s.Outcomes())

	outcome, err := s.Execute(context.Background(), statemachine.NewBlackboard())
	require.NoError(t, err)
	assert.Equal(t, "left", outcome)

	keyed := NewKeyOutcomeState("choice", "left", "right")
	bb := statemachine.NewBlackboard()

	outcome, err = keyed.Execute(context.Background(), bb)
	require.NoError(t, err)
	assert.Equal(t, "left", outcome)

	bb.Set("choice", "right")

	outcome, err = keyed.Execute(context.Background(), bb)
	require.NoError(t, err)
	assert.Equal(t, "right", outcome)
}

func TestCopyStateMissingKey(t *testing.T) {
	t.Parallel()

	outcome, err := NewCopyState("nope", "dest").Execute(context.Background(), statemachine.NewBlackboard())
	require.NoError(t, err)
	assert.Equal(t, statemachine.Abort, outcome)
}

func TestCounterStateWrongType(t *testing.T) {
	t.Parallel()

	bb := statemachine.NewBlackboard()
	bb.Set("n", "three")

	_, err := NewCounterState("n", 3).Execute(context.Background(), bb)
	require.Error(t, err)
}

func TestParams(t *testing.T) {
	t.Parallel()

	p := NewParams(map[string]any{
		"name":    "x",
		"count":   2,
		"ratio":   2.0,
		"seconds": 2,
		"delay":   "1.5s",
		"list":    []any{"a", "b"},
		"bad":     []any{"a", 1},
	})

	n, err := p.Int("ratio", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	d, err := p.Duration("seconds", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	d, err = p.Duration("delay", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	list, err := p.Strings("list", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	_, err = p.Strings("bad", true)
	require.ErrorIs(t, err, ErrParameterTypeMismatch)

	_, err = p.String("count", false, "")
	require.ErrorIs(t, err, ErrParameterTypeMismatch)

	_, err = p.Map("missing", true)
	require.ErrorIs(t, err, ErrParameterNotFound)

	s, err := p.String("missing", false, "default")
	require.NoError(t, err)
	assert.Equal(t, "default", s)
}

func TestTracer(t *testing.T) {
	t.Parallel()

	tracer := NewTracer()

	sm, err := statemachine.NewStateMachine([]string{"done"})
	require.NoError(t, err)
	require.NoError(t, sm.AddState("SET", tracer.Wrap("SET", NewSetState(map[string]any{"k": "v"})),
		map[string]string{statemachine.Succeed: "COPY"}))
	require.NoError(t, sm.AddState("COPY", tracer.Wrap("COPY", NewCopyState("k", "k2")),
		map[string]string{statemachine.Succeed: "done", statemachine.Abort: "done"}))

	_, err = sm.Execute(context.Background(), statemachine.NewBlackboard())
	require.NoError(t, err)

	traces := tracer.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, map[string]any{"k": "v"}, Diff(traces[0].Before, traces[0].After))
	assert.Equal(t, map[string]any{"k2": "v"}, Diff(traces[1].Before, traces[1].After))

	report := tracer.Report()
	assert.Contains(t, report, "1. SET -> succeeded")
	assert.Contains(t, report, `k2 = "v"`)
}

func TestDiffRemovedKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{"gone": nil}, Diff(map[string]any{"gone": 1}, map[string]any{}))
}
