package export

import (
	"fmt"
	"strconv"

	"github.com/tracewire/tracewire/internal/trace"
)

// Batch is the JSON body POSTed to the collector. The shape is OTLP-inspired
// but flattened: one resource block and one flat span list per request.
type Batch struct {
	Resource Resource      `json:"resource"`
	Spans    []SpanPayload `json:"spans"`
}

// Resource identifies the emitting process.
type Resource struct {
	Service     string `json:"service"`
	Environment string `json:"environment,omitempty"`
	Version     string `json:"version,omitempty"`
}

// SpanPayload is the wire form of a completed span.
type SpanPayload struct {
	TraceID           string         `json:"traceId"`
	SpanID            string         `json:"spanId"`
	ParentSpanID      string         `json:"parentSpanId,omitempty"`
	Name              string         `json:"name"`
	Kind              string         `json:"kind"`
	StartTimeUnixNano string         `json:"startTimeUnixNano"`
	EndTimeUnixNano   string         `json:"endTimeUnixNano"`
	Attributes        []KeyValue     `json:"attributes,omitempty"`
	Events            []EventPayload `json:"events,omitempty"`
	Status            StatusPayload  `json:"status"`
}

// KeyValue is one span attribute. Values are rendered as strings on the
// wire; the original scalar type is recorded alongside.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// EventPayload is the wire form of a span event.
type EventPayload struct {
	Name         string     `json:"name"`
	TimeUnixNano string     `json:"timeUnixNano"`
	Attributes   []KeyValue `json:"attributes,omitempty"`
}

// StatusPayload is the wire form of a span status.
type StatusPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// NewBatch converts completed spans into the wire representation.
func NewBatch(resource Resource, spans []trace.ReadSpan) Batch {
	payloads := make([]SpanPayload, 0, len(spans))
	for _, s := range spans {
		payloads = append(payloads, newSpanPayload(s))
	}
	return Batch{Resource: resource, Spans: payloads}
}

func newSpanPayload(s trace.ReadSpan) SpanPayload {
	sc := s.Context()
	code, msg := s.Status()

	p := SpanPayload{
		TraceID:           sc.TraceID.String(),
		SpanID:            sc.SpanID.String(),
		Name:              s.Name(),
		Kind:              s.Kind().String(),
		StartTimeUnixNano: strconv.FormatInt(s.StartTime().UnixNano(), 10),
		EndTimeUnixNano:   strconv.FormatInt(s.EndTime().UnixNano(), 10),
		Attributes:        newKeyValues(s.Attributes()),
		Status:            StatusPayload{Code: code.String(), Message: msg},
	}
	if parent := s.ParentSpanID(); !parent.IsZero() {
		p.ParentSpanID = parent.String()
	}
	for _, e := range s.Events() {
		p.Events = append(p.Events, EventPayload{
			Name:         e.Name,
			TimeUnixNano: strconv.FormatInt(e.Time.UnixNano(), 10),
			Attributes:   newKeyValues(e.Attributes),
		})
	}
	return p
}

func newKeyValues(attrs []trace.Attribute) []KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	kvs := make([]KeyValue, 0, len(attrs))
	for _, a := range attrs {
		kvs = append(kvs, newKeyValue(a))
	}
	return kvs
}

func newKeyValue(a trace.Attribute) KeyValue {
	kv := KeyValue{Key: a.Key}
	switch v := a.Value.(type) {
	case string:
		kv.Value, kv.Type = v, "string"
	case bool:
		kv.Value, kv.Type = strconv.FormatBool(v), "bool"
	case int64:
		kv.Value, kv.Type = strconv.FormatInt(v, 10), "int"
	case float64:
		kv.Value, kv.Type = strconv.FormatFloat(v, 'g', -1, 64), "double"
	default:
		kv.Value, kv.Type = fmt.Sprint(v), "string"
	}
	return kv
}
