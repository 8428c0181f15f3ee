package trace

// noopSpan is returned when no span is attached to a context. It implements
// the full Span surface so instrumented code never branches on presence.
type noopSpan struct{}

var noop Span = noopSpan{}

// NoopSpan returns the shared no-op span.
func NoopSpan() Span { return noop }

func (noopSpan) Context() SpanContext          { return SpanContext{} }
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) AddEvent(string, ...Attribute) {}
func (noopSpan) RecordError(error)             {}
func (noopSpan) SetStatus(StatusCode, string)  {}
func (noopSpan) End()                          {}
func (noopSpan) IsRecording() bool             { return false }
