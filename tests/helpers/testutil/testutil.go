// Package testutil provides shared helpers for integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tracewire/tracewire/internal/trace/export"
)

// CollectorSink is an in-memory collector endpoint. It accepts span batches
// the way the real collector does and keeps them for assertions.
type CollectorSink struct {
	mu      sync.Mutex
	batches []export.Batch

	srv *httptest.Server
}

// NewCollectorSink starts a sink server. Callers own the Close.
func NewCollectorSink(t *testing.T) *CollectorSink {
	t.Helper()

	sink := &CollectorSink{}
	sink.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var batch export.Batch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(batch.Spans) > 0 {
			sink.mu.Lock()
			sink.batches = append(sink.batches, batch)
			sink.mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sink.srv.Close)
	return sink
}

// Endpoint returns the URL to configure as the trace export endpoint.
func (s *CollectorSink) Endpoint() string {
	return s.srv.URL + "/v1/traces"
}

// Spans returns every span received so far, across batches.
func (s *CollectorSink) Spans() []export.SpanPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	var spans []export.SpanPayload
	for _, b := range s.batches {
		spans = append(spans, b.Spans...)
	}
	return spans
}

// SpansForTrace returns the received spans belonging to one trace.
func (s *CollectorSink) SpansForTrace(traceID string) []export.SpanPayload {
	var spans []export.SpanPayload
	for _, sp := range s.Spans() {
		if sp.TraceID == traceID {
			spans = append(spans, sp)
		}
	}
	return spans
}
