package trace_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
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

type wireCodec struct{}

func (wireCodec) Decode(value string) trace.Baggage { return propagation.DecodeBaggage(value) }
func (wireCodec) Encode(b trace.Baggage) string     { return propagation.EncodeBaggage(b) }

func newTestRouter(t *testing.T, sampler trace.Sampler, handler gin.HandlerFunc) (*gin.Engine, *recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := &recorder{}
	tracer := trace.New(trace.Config{
		Service:   "test",
		Sampler:   sampler,
		Processor: rec,
	})

	router := gin.New()
	router.Use(trace.Middleware(tracer, propagation.Extract, wireCodec{}))
	router.GET("/work", handler)
	return router, rec
}

func TestMiddlewareStartsRootWithoutHeader(t *testing.T) {
	router, rec := newTestRouter(t, trace.AlwaysOn(), func(c *gin.Context) {
		sc := trace.SpanContextFromContext(c.Request.Context())
		assert.True(t, sc.IsValid())
		assert.True(t, sc.Sampled)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/work", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get("X-Trace-ID"), 32)
	assert.Len(t, w.Header().Get("X-Span-ID"), 16)

	spans := rec.all()
	require.Len(t, spans, 1)
	assert.Equal(t, "/work", spans[0].Name())
	assert.Equal(t, trace.KindServer, spans[0].Kind())
}

func TestMiddlewareContinuesInboundTrace(t *testing.T) {
	const (
		traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
		spanID  = "00f067aa0ba902b7"
	)

	router, rec := newTestRouter(t, trace.AlwaysOn(), func(c *gin.Context) {
		sc := trace.SpanContextFromContext(c.Request.Context())
		assert.Equal(t, traceID, sc.TraceID.String())
		assert.NotEqual(t, spanID, sc.SpanID.String())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/work", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-"+spanID+"-01")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, traceID, w.Header().Get("X-Trace-ID"))

	spans := rec.all()
	require.Len(t, spans, 1)
	assert.Equal(t, traceID, spans[0].Context().TraceID.String())
	assert.Equal(t, spanID, spans[0].ParentSpanID().String())
}

func TestMiddlewareMalformedHeaderStartsFreshRoot(t *testing.T) {
	malformed := []string{
		"not-a-traceparent",
		"00-0000000000000000000000000000000-00f067aa0ba902b7-01",
		"ff-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		"00-4BF92F3577B34DA6A3CE929D0E0E4736-00f067aa0ba902b7-01",
	}

	for _, header := range malformed {
		t.Run(header, func(t *testing.T) {
			router, rec := newTestRouter(t, trace.AlwaysOn(), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/work", nil)
			req.Header.Set("traceparent", header)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			spans := rec.all()
			require.Len(t, spans, 1)
			assert.NotEqual(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].Context().TraceID.String())
		})
	}
}

func TestMiddlewareUnsampledInboundNotExported(t *testing.T) {
	router, rec := newTestRouter(t, trace.AlwaysOn(), func(c *gin.Context) {
		sc := trace.SpanContextFromContext(c.Request.Context())
		assert.False(t, sc.Sampled)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/work", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-00")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, rec.all())
}

func TestMiddlewareDecodesBaggage(t *testing.T) {
	router, _ := newTestRouter(t, trace.AlwaysOn(), func(c *gin.Context) {
		assert.Equal(t, "abc-123", trace.BaggageValue(c.Request.Context(), "request.id"))
		assert.Equal(t, "checkout", trace.BaggageValue(c.Request.Context(), "feature"))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/work", nil)
	req.Header.Set("baggage", "request.id=abc-123,feature=checkout")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareSealsSpanOnHandlerPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := &recorder{}
	tracer := trace.New(trace.Config{
		Service:   "test",
		Sampler:   trace.AlwaysOn(),
		Processor: rec,
	})

	// Recovery sits outside the tracing middleware, as in the server
	// composition, so the panic unwinds through the tracing layer first.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(trace.Middleware(tracer, propagation.Extract, wireCodec{}))
	router.GET("/work", func(c *gin.Context) {
		panic("handler exploded")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/work", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	spans := rec.all()
	require.Len(t, spans, 1)
	code, msg := spans[0].Status()
	assert.Equal(t, trace.StatusError, code)
	assert.Equal(t, "handler exploded", msg)

	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "panic", events[0].Name)
}

func TestMiddlewareRecordsServerErrors(t *testing.T) {
	router, rec := newTestRouter(t, trace.AlwaysOn(), func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/work", nil))

	spans := rec.all()
	require.Len(t, spans, 1)
	code, _ := spans[0].Status()
	assert.Equal(t, trace.StatusError, code)
}
