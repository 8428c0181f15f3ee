package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/internal/trace"
)

func testResource() Resource {
	return Resource{Service: "test", Environment: "test", Version: "0.0.0"}
}

func TestHTTPExporterPostsBatch(t *testing.T) {
	var received Batch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{Endpoint: srv.URL, Resource: testResource()})
	defer func() { _ = e.Shutdown(context.Background()) }()

	span := newTestSpan("unit.work")
	require.NoError(t, e.Export(context.Background(), []trace.ReadSpan{span}))

	assert.Equal(t, "test", received.Resource.Service)
	require.Len(t, received.Spans, 1)
	assert.Equal(t, "unit.work", received.Spans[0].Name)
	assert.Equal(t, span.Context().TraceID.String(), received.Spans[0].TraceID)
	assert.Equal(t, span.Context().SpanID.String(), received.Spans[0].SpanID)
	assert.Equal(t, "ok", received.Spans[0].Status.Code)
}

func TestHTTPExporterEmptyBatchIsNoop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{Endpoint: srv.URL, Resource: testResource()})
	defer func() { _ = e.Shutdown(context.Background()) }()

	require.NoError(t, e.Export(context.Background(), nil))
	assert.Equal(t, int32(0), calls.Load())
}

func TestHTTPExporterRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{
		Endpoint:     srv.URL,
		Resource:     testResource(),
		RetryMax:     3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	defer func() { _ = e.Shutdown(context.Background()) }()

	err := e.Export(context.Background(), []trace.ReadSpan{newTestSpan("retry")})
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPExporterGivesUpAfterRetryBudget(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{
		Endpoint:     srv.URL,
		Resource:     testResource(),
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	defer func() { _ = e.Shutdown(context.Background()) }()

	err := e.Export(context.Background(), []trace.ReadSpan{newTestSpan("doomed")})
	require.Error(t, err)
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPExporterRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad payload"))
	}))
	defer srv.Close()

	e := NewHTTP(HTTPConfig{Endpoint: srv.URL, Resource: testResource()})
	defer func() { _ = e.Shutdown(context.Background()) }()

	err := e.Export(context.Background(), []trace.ReadSpan{newTestSpan("rejected")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "bad payload")
}
