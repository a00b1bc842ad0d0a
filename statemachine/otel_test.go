package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)

	oldProvider := otel.GetTracerProvider()

	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(oldProvider)
	})

	return exporter
}

func spanAttr(span tracetest.SpanStub, key attribute.Key) string {
	for _, kv := range span.Attributes {
		if kv.Key == key {
			return kv.Value.AsString()
		}
	}

	return ""
}

// Note: Cannot use t.Parallel() because setupTestTracer modifies the global tracer provider.
//
//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestExecutionSpans(t *testing.T) {
	exporter := setupTestTracer(t)

	child, err := NewStateMachine([]string{"finished"}, WithName("otel-child"))
	require.NoError(t, err)
	require.NoError(t, child.AddState("LEAF", fixed("finished"), nil))

	parent, err := NewStateMachine([]string{"done"}, WithName("otel-parent"))
	require.NoError(t, err)
	require.NoError(t, parent.AddState("CHILD", child, map[string]string{"finished": "done"}))

	_, err = parent.Execute(context.Background(), NewBlackboard())
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 4)

	byName := make(map[string]tracetest.SpanStub, len(spans))
	for _, span := range spans {
		byName[span.Name+"/"+spanAttr(span, "machine")] = span
	}

	parentExec := byName["statemachine.execute/otel-parent"]
	childState := byName["state.CHILD/otel-parent"]
	childExec := byName["statemachine.execute/otel-child"]
	leafState := byName["state.LEAF/otel-child"]

	assert.Equal(t, parentExec.SpanContext.SpanID(), childState.Parent.SpanID())
	assert.Equal(t, childState.SpanContext.SpanID(), childExec.Parent.SpanID())
	assert.Equal(t, childExec.SpanContext.SpanID(), leafState.Parent.SpanID())

	assert.Equal(t, "done", spanAttr(parentExec, "outcome"))
	assert.Equal(t, "finished", spanAttr(leafState, "outcome"))
	assert.Equal(t, codes.Ok, parentExec.Status.Code)
}

//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestFailedStateSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	sm, err := NewStateMachine([]string{"done"}, WithName("otel-failure"))
	require.NoError(t, err)
	require.NoError(t, sm.AddState("FAIL", NewCbState([]string{"done"}, func(context.Context, *Blackboard) (string, error) {
		return "", errors.New("boom")
	}), nil))

	_, err = sm.Execute(context.Background(), NewBlackboard())
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	for _, span := range spans {
		assert.Equal(t, codes.Error, span.Status.Code, span.Name)
		assert.NotEmpty(t, span.Events, "error should be recorded on %s", span.Name)
	}
}
