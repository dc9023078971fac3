package impl

import (
	"context"

	domainerrors "tenantauth/internal/domain/errors"
	"tenantauth/internal/domain/service"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (srv *authService) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return srv.tracer.Start(ctx, "AuthEngine."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("auth.operation", operation)),
	)
}

// endSpan classifies err, reports it to metrics and closes span. Business rejections are
// failures; only infrastructure faults mark the span as errored.
func (srv *authService) endSpan(span trace.Span, operation string, err error) {
	outcome := outcomeOf(err)
	srv.metrics.ObserveOperation(operation, outcome)

	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if outcome == service.OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "infrastructure failure")
	}
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return service.OutcomeSuccess
	case domainerrors.IsInfrastructure(err):
		return service.OutcomeError
	default:
		return service.OutcomeFailure
	}
}

// unlimited stands in when no attempt limiter is wired.
type unlimited struct{}

func (unlimited) Check(context.Context, string, string) error  { return nil }
func (unlimited) Record(context.Context, string, string) error { return nil }
func (unlimited) Reset(context.Context, string, string) error  { return nil }

type discardMetrics struct{}

func (discardMetrics) ObserveOperation(string, string) {}
func (discardMetrics) ObserveReuseDetected()           {}
