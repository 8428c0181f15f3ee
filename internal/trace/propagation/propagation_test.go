package propagation

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/internal/shared/id"
	"github.com/tracewire/tracewire/internal/trace"
)

const (
	exampleTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	exampleSpanID  = "00f067aa0ba902b7"
	exampleHeader  = "00-" + exampleTraceID + "-" + exampleSpanID + "-01"
)

func exampleContext(t *testing.T, sampled bool) trace.SpanContext {
	t.Helper()
	traceID, err := id.TraceIDFromHex(exampleTraceID)
	require.NoError(t, err)
	spanID, err := id.SpanIDFromHex(exampleSpanID)
	require.NoError(t, err)
	return trace.SpanContext{TraceID: traceID, SpanID: spanID, Sampled: sampled}
}

func TestFormatTraceparent(t *testing.T) {
	assert.Equal(t, exampleHeader, FormatTraceparent(exampleContext(t, true)))
	assert.Equal(t,
		"00-"+exampleTraceID+"-"+exampleSpanID+"-00",
		FormatTraceparent(exampleContext(t, false)),
	)
}

func TestParseTraceparent(t *testing.T) {
	sc, err := ParseTraceparent(exampleHeader)
	require.NoError(t, err)

	assert.Equal(t, exampleTraceID, sc.TraceID.String())
	assert.Equal(t, exampleSpanID, sc.SpanID.String())
	assert.True(t, sc.Sampled)
	assert.True(t, sc.Remote)
}

func TestParseTraceparentMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"garbage", "not a header"},
		{"too few fields", "00-" + exampleTraceID + "-" + exampleSpanID},
		{"version 00 with extra field", exampleHeader + "-extra"},
		{"short trace id", "00-4bf92f3577b34da6a3ce929d0e0e473-" + exampleSpanID + "-01"},
		{"long trace id", "00-" + exampleTraceID + "0-" + exampleSpanID + "-01"},
		{"zero trace id", "00-00000000000000000000000000000000-" + exampleSpanID + "-01"},
		{"zero span id", "00-" + exampleTraceID + "-0000000000000000-01"},
		{"uppercase trace id", "00-4BF92F3577B34DA6A3CE929D0E0E4736-" + exampleSpanID + "-01"},
		{"uppercase flags", "00-" + exampleTraceID + "-" + exampleSpanID + "-0A"},
		{"non-hex version", "zz-" + exampleTraceID + "-" + exampleSpanID + "-01"},
		{"one char flags", "00-" + exampleTraceID + "-" + exampleSpanID + "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTraceparent(tt.value)
			assert.ErrorIs(t, err, ErrMalformedTraceparent)
		})
	}
}

func TestParseTraceparentForbiddenVersion(t *testing.T) {
	_, err := ParseTraceparent("ff-" + exampleTraceID + "-" + exampleSpanID + "-01")
	assert.ErrorIs(t, err, ErrForbiddenVersion)
}

func TestParseTraceparentFutureVersion(t *testing.T) {
	// Future versions may carry extra fields; the first four still parse.
	sc, err := ParseTraceparent("01-" + exampleTraceID + "-" + exampleSpanID + "-01-future-data")
	require.NoError(t, err)
	assert.Equal(t, exampleTraceID, sc.TraceID.String())
	assert.True(t, sc.Sampled)
}

func TestInjectExtractRoundTrip(t *testing.T) {
	for _, sampled := range []bool{true, false} {
		h := make(http.Header)
		in := exampleContext(t, sampled)

		Inject(in, h)
		out, ok := Extract(h)

		require.True(t, ok)
		assert.Equal(t, in.TraceID, out.TraceID)
		assert.Equal(t, in.SpanID, out.SpanID)
		assert.Equal(t, in.Sampled, out.Sampled)
		assert.True(t, out.Remote)
	}
}

func TestInjectSkipsInvalidContext(t *testing.T) {
	h := make(http.Header)
	Inject(trace.SpanContext{}, h)
	assert.Empty(t, h.Get(TraceparentHeader))
}

func TestExtractAbsentOrMalformed(t *testing.T) {
	_, ok := Extract(make(http.Header))
	assert.False(t, ok)

	h := make(http.Header)
	h.Set(TraceparentHeader, "broken")
	_, ok = Extract(h)
	assert.False(t, ok)
}
