// Package otel provides OpenTelemetry instrumentation helpers shared by the
// variant trees and subscribers.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on sync spans
const (
	AttrSubscriberID   = attribute.Key("subscriber.id")
	AttrSubscriberKind = attribute.Key("subscriber.kind")
	AttrTreeRole       = attribute.Key("tree.role")
	AttrRootCount      = attribute.Key("refresh.roots")
	AttrDepth          = attribute.Key("refresh.depth")
	AttrWithContent    = attribute.Key("refresh.with_content")
	AttrChangedCount   = attribute.Key("refresh.changed")
	AttrFailedRoots    = attribute.Key("refresh.failed_roots")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors. The status description stays
// generic; details travel in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
	}
}
