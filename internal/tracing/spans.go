package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const orchestratorTracerName = "autodev-orchestrator.session"

func orchestratorTracer() trace.Tracer {
	return Tracer(orchestratorTracerName)
}

// TraceSessionSpawn creates a span covering one child-process lifecycle.
func TraceSessionSpawn(ctx context.Context, projectID, sessionID, provider string, agentIndex int) (context.Context, trace.Span) {
	ctx, span := orchestratorTracer().Start(ctx, "orchestrator.session_spawn",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("project_id", projectID),
		attribute.String("session_id", sessionID),
		attribute.String("provider", provider),
		attribute.Int("agent_index", agentIndex),
	)
	return ctx, span
}

// TraceSessionEnd records the terminal status of a session span.
func TraceSessionEnd(span trace.Span, status string, err error) {
	span.SetAttributes(attribute.String("status", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

const gitTracerName = "autodev-orchestrator.git"

func gitTracer() trace.Tracer {
	return Tracer(gitTracerName)
}

// TraceGitOp creates a span for one serialized git-gateway operation.
func TraceGitOp(ctx context.Context, projectID, op, branch string) (context.Context, trace.Span) {
	ctx, span := gitTracer().Start(ctx, "git."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("project_id", projectID),
		attribute.String("branch", branch),
	)
	return ctx, span
}

// TraceGitOpResult records the outcome of a git-gateway operation span.
func TraceGitOpResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
