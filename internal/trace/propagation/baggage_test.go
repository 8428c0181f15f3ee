package propagation

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracewire/tracewire/internal/trace"
)

func TestEncodeBaggage(t *testing.T) {
	b := trace.Baggage{
		"request.id": "abc-123",
		"feature":    "checkout flow",
	}

	encoded := EncodeBaggage(b)
	// Keys are sorted, values percent-encoded.
	assert.Equal(t, "feature=checkout%20flow,request.id=abc-123", encoded)

	assert.Empty(t, EncodeBaggage(nil))
	assert.Empty(t, EncodeBaggage(trace.Baggage{}))
}

func TestDecodeBaggage(t *testing.T) {
	b := DecodeBaggage("feature=checkout%20flow,request.id=abc-123")
	assert.Equal(t, trace.Baggage{
		"feature":    "checkout flow",
		"request.id": "abc-123",
	}, b)
}

func TestDecodeBaggagePreservesLiteralPlus(t *testing.T) {
	// The W3C format percent-encodes; a peer's bare '+' is a literal plus,
	// not a space.
	b := DecodeBaggage("expr=a+b,version=1.2%2B3")
	assert.Equal(t, trace.Baggage{
		"expr":    "a+b",
		"version": "1.2+3",
	}, b)
}

func TestDecodeBaggageSkipsMalformedEntries(t *testing.T) {
	b := DecodeBaggage("good=1,noequals, =empty-key,also=2")
	assert.Equal(t, trace.Baggage{"good": "1", "also": "2"}, b)

	assert.Nil(t, DecodeBaggage(""))
	assert.Nil(t, DecodeBaggage(",,,"))
	assert.Nil(t, DecodeBaggage("noequals"))
}

func TestBaggageRoundTrip(t *testing.T) {
	in := trace.Baggage{
		"user":  "someone@example.com",
		"path":  "/a b/c",
		"expr":  "a+b c",
		"plain": "value",
	}

	out := DecodeBaggage(EncodeBaggage(in))
	assert.Equal(t, in, out)
}

func TestEncodeBaggageBoundsHeaderSize(t *testing.T) {
	b := trace.Baggage{
		"small": "kept",
		"big":   strings.Repeat("x", MaxBaggageBytes),
	}

	encoded := EncodeBaggage(b)
	assert.LessOrEqual(t, len(encoded), MaxBaggageBytes)
	assert.Contains(t, encoded, "small=kept")
	assert.NotContains(t, encoded, "big=")
}

func TestInjectExtractBaggageHeaders(t *testing.T) {
	h := make(http.Header)
	InjectBaggage(trace.Baggage{"k": "v"}, h)
	assert.Equal(t, "k=v", h.Get(BaggageHeader))

	assert.Equal(t, trace.Baggage{"k": "v"}, ExtractBaggage(h))

	empty := make(http.Header)
	InjectBaggage(nil, empty)
	assert.Empty(t, empty.Get(BaggageHeader))
	assert.Nil(t, ExtractBaggage(empty))
}
