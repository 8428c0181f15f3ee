package trace

import (
	"sync"
	"time"

	"github.com/tracewire/tracewire/internal/shared/id"
)

// SpanKind represents the role of a span in a trace.
type SpanKind int

const (
	KindInternal SpanKind = iota
	KindServer
	KindClient
)

// String returns the lowercase name of the kind.
func (k SpanKind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "internal"
	}
}

// StatusCode represents the outcome of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// String returns the lowercase name of the status code.
func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Attribute is a single key/scalar-value pair. Attributes keep their
// insertion order; setting an existing key updates it in place.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

// Int creates an integer attribute.
func Int(key string, value int) Attribute { return Attribute{Key: key, Value: int64(value)} }

// Int64 creates a 64-bit integer attribute.
func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }

// Float64 creates a float attribute.
func Float64(key string, value float64) Attribute { return Attribute{Key: key, Value: value} }

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }

// Event is a timestamped annotation within a span.
type Event struct {
	Name       string
	Time       time.Time
	Attributes []Attribute
}

// Span is one timed unit of work within a trace.
//
// A span is owned by the goroutine that started it until End is called;
// afterward it is read-only. All mutating methods are no-ops once ended.
type Span interface {
	// Context returns the span's immutable identifiers.
	Context() SpanContext
	// SetAttributes adds or updates attributes on the span.
	SetAttributes(attrs ...Attribute)
	// AddEvent appends a timestamped event.
	AddEvent(name string, attrs ...Attribute)
	// RecordError attaches an exception event and marks the span as failed.
	RecordError(err error)
	// SetStatus sets the span outcome.
	SetStatus(code StatusCode, msg string)
	// End seals the span. Sampled spans are handed to the processor;
	// non-sampled spans are discarded here and never exported.
	End()
	// IsRecording reports whether the span still accepts mutations.
	IsRecording() bool
}

// ReadSpan is the read-only view of a completed span, consumed by exporters.
type ReadSpan interface {
	Name() string
	Kind() SpanKind
	Context() SpanContext
	ParentSpanID() id.SpanID
	StartTime() time.Time
	EndTime() time.Time
	Attributes() []Attribute
	Events() []Event
	Status() (StatusCode, string)
}

// span is the recording implementation of Span.
type span struct {
	mu sync.Mutex

	name      string
	kind      SpanKind
	sc        SpanContext
	parentID  id.SpanID
	startTime time.Time
	endTime   time.Time
	attrs     []Attribute
	events    []Event
	status    StatusCode
	statusMsg string

	tracer *Tracer
	ended  bool
}

var _ Span = (*span)(nil)
var _ ReadSpan = (*span)(nil)

func (s *span) Context() SpanContext { return s.sc }

func (s *span) Name() string { return s.name }

func (s *span) Kind() SpanKind { return s.kind }

func (s *span) ParentSpanID() id.SpanID { return s.parentID }

func (s *span) StartTime() time.Time { return s.startTime }

func (s *span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

func (s *span) Attributes() []Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make([]Attribute, len(s.attrs))
	copy(attrs, s.attrs)
	return attrs
}

func (s *span) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return events
}

func (s *span) Status() (StatusCode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusMsg
}

func (s *span) SetAttributes(attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	for _, a := range attrs {
		s.setAttrLocked(a)
	}
}

// setAttrLocked updates an existing key in place to preserve ordering.
func (s *span) setAttrLocked(a Attribute) {
	for i := range s.attrs {
		if s.attrs[i].Key == a.Key {
			s.attrs[i].Value = a.Value
			return
		}
	}
	s.attrs = append(s.attrs, a)
}

func (s *span) AddEvent(name string, attrs ...Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.events = append(s.events, Event{
		Name:       name,
		Time:       time.Now(),
		Attributes: attrs,
	})
}

func (s *span) RecordError(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.events = append(s.events, Event{
		Name: "exception",
		Time: time.Now(),
		Attributes: []Attribute{
			{Key: "exception.type", Value: "error"},
			{Key: "exception.message", Value: err.Error()},
		},
	})
	s.status = StatusError
	s.statusMsg = err.Error()
}

func (s *span) SetStatus(code StatusCode, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.status = code
	s.statusMsg = msg
}

func (s *span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.endTime = time.Now()
	s.ended = true
	sampled := s.sc.Sampled
	s.mu.Unlock()

	// Non-sampled spans record locally so business logic is identical
	// either way, but they are dropped here, before export.
	if sampled && s.tracer != nil && s.tracer.processor != nil {
		s.tracer.processor.OnEnd(s)
	}
}

func (s *span) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// Duration returns the elapsed time of the span.
func (s *span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endTime.IsZero() {
		return time.Since(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}
