package trace

import (
	"context"

	"github.com/tracewire/tracewire/internal/shared/id"
)

type contextKey int

const (
	spanContextKey contextKey = iota
	baggageContextKey
)

// Version is the only traceparent version this library emits.
const Version = "00"

// SpanContext carries the identifiers that travel with a request.
//
// It is immutable once created for a given hop: child spans mint a new span
// ID while the trace ID and the sampled flag are inherited unchanged.
type SpanContext struct {
	TraceID id.TraceID
	SpanID  id.SpanID
	Sampled bool
	Remote  bool // true if extracted from an incoming traceparent header
}

// IsValid reports whether both identifiers are non-zero.
func (sc SpanContext) IsValid() bool {
	return !sc.TraceID.IsZero() && !sc.SpanID.IsZero()
}

// ContextWithSpan returns a new context with the span attached.
//
// The current span is always context-bound, never a process global, so
// concurrent requests cannot observe each other's span.
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// SpanFromContext returns the span attached to ctx.
//
// When no span is present a no-op span is returned so callers never need to
// branch on instrumentation being absent.
func SpanFromContext(ctx context.Context) Span {
	if span, ok := ctx.Value(spanContextKey).(Span); ok {
		return span
	}
	return noop
}

// SpanContextFromContext returns the identifiers of the span attached to ctx,
// or the zero SpanContext when none is attached.
func SpanContextFromContext(ctx context.Context) SpanContext {
	return SpanFromContext(ctx).Context()
}
