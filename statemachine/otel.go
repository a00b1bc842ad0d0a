package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/nestfsm/statemachine"

// startExecutionSpan creates the span covering one machine execution.
// Nested machines produce spans that are children of their parent's state span.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startExecutionSpan(ctx context.Context, machine, runID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.execute")
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("run_id", runID),
	)

	return ctx, span
}

// startStateSpan creates a child span for one state execution.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startStateSpan(ctx context.Context, machine, state, runID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "state."+state)
	span.SetAttributes(
		attribute.String("machine", machine),
		attribute.String("state", state),
		attribute.String("run_id", runID),
	)

	return ctx, span
}

// endSpan records the result of a machine or state execution and ends the span.
func endSpan(span trace.Span, outcome string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("outcome", outcome))
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}
