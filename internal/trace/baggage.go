package trace

import "context"

// Baggage is out-of-band key-value context that travels with a trace but is
// never written to span attributes. It is available for explicit read at any
// hop and lives only for the request's propagation chain.
type Baggage map[string]string

// ContextWithBaggage attaches baggage to ctx, replacing any existing baggage.
func ContextWithBaggage(ctx context.Context, b Baggage) context.Context {
	if len(b) == 0 {
		return ctx
	}
	return context.WithValue(ctx, baggageContextKey, b)
}

// BaggageFromContext returns the baggage attached to ctx, or nil.
func BaggageFromContext(ctx context.Context) Baggage {
	if b, ok := ctx.Value(baggageContextKey).(Baggage); ok {
		return b
	}
	return nil
}

// BaggageValue returns one baggage entry, or "" when absent.
func BaggageValue(ctx context.Context, key string) string {
	return BaggageFromContext(ctx)[key]
}
