package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/internal/trace"
	"github.com/tracewire/tracewire/internal/trace/propagation"
)

type recorder struct {
	mu    sync.Mutex
	spans []trace.ReadSpan
}

func (r *recorder) OnEnd(s trace.ReadSpan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, s)
}

func (r *recorder) all() []trace.ReadSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trace.ReadSpan(nil), r.spans...)
}

func newTestTracer() (*trace.Tracer, *recorder) {
	rec := &recorder{}
	return trace.New(trace.Config{
		Service:   "test",
		Processor: rec,
	}), rec
}

func TestGetPropagatesTraceContext(t *testing.T) {
	tracer, rec := newTestTracer()

	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(tracer, Config{Name: "test-target"})

	ctx, root := tracer.Start(context.Background(), "caller")
	body, status, err := client.Get(ctx, srv.URL)
	root.End()

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	// The outbound header must carry the caller's trace and the client
	// span's ID, making the downstream hop a child of the client span.
	require.NotEmpty(t, gotHeader)
	remote, err := propagation.ParseTraceparent(gotHeader)
	require.NoError(t, err)
	assert.Equal(t, root.Context().TraceID, remote.TraceID)
	assert.True(t, remote.Sampled)

	spans := rec.all()
	require.Len(t, spans, 2)
	clientSpan := spans[0]
	assert.Equal(t, trace.KindClient, clientSpan.Kind())
	assert.Equal(t, clientSpan.Context().SpanID, remote.SpanID)
	assert.Equal(t, root.Context().SpanID, clientSpan.ParentSpanID())
}

func TestGetPropagatesBaggage(t *testing.T) {
	tracer, _ := newTestTracer()

	var gotBaggage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBaggage = r.Header.Get("baggage")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(tracer, Config{Name: "test-target"})

	ctx := trace.ContextWithBaggage(context.Background(), trace.Baggage{"tenant": "acme"})
	_, _, err := client.Get(ctx, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "tenant=acme", gotBaggage)
}

func TestGetRecordsErrorSpan(t *testing.T) {
	tracer, rec := newTestTracer()
	client := New(tracer, Config{Name: "test-target"})

	_, _, err := client.Get(context.Background(), "http://127.0.0.1:1/unreachable")
	require.Error(t, err)

	spans := rec.all()
	require.Len(t, spans, 1)
	code, _ := spans[0].Status()
	assert.Equal(t, trace.StatusError, code)
}
