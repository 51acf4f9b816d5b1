package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "crmauth"

// StartLoginSpan starts a span for a login attempt. The principal's
// email is deliberately left off the span.
func StartLoginSpan(ctx context.Context, tenantID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "login",
		trace.WithAttributes(
			attribute.Int64("tenant.id", tenantID),
		),
	)
}

// StartRegistrationSpan starts a span for tenant registration.
func StartRegistrationSpan(ctx context.Context, subdomain string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tenant.register",
		trace.WithAttributes(
			attribute.String("tenant.subdomain", subdomain),
		),
	)
}

// StartPermissionSpan starts a span for a permission evaluation.
func StartPermissionSpan(ctx context.Context, resource, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "permission.check",
		trace.WithAttributes(
			attribute.String("permission.resource", resource),
			attribute.String("permission.action", action),
		),
	)
}
