// Package id provides centralized ID generation for tracing.
//
// Trace IDs are backed by ULIDs, which gives them two useful properties on
// top of W3C compliance:
//   - Lexicographic sortability: hex-encoded trace IDs sort by creation time
//   - Guaranteed uniqueness: 80 bits of cryptographically secure entropy
//
// Span IDs are plain 64-bit random values; they only need to be unique
// within a single trace. Request IDs carry a "req_" prefix so they are
// recognizable in logs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TraceID is a 128-bit W3C trace identifier.
type TraceID [16]byte

// SpanID is a 64-bit span identifier.
type SpanID [8]byte

// RequestID identifies a single inbound API request.
type RequestID string

// RequestPrefix marks request IDs in logs and headers.
const RequestPrefix = "req"

var (
	ErrInvalidTraceID = errors.New("id: trace id must be 32 hex characters and not all zeros")
	ErrInvalidSpanID  = errors.New("id: span id must be 16 hex characters and not all zeros")
)

// Generator produces trace and span IDs.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// TraceID generates a new trace ID from a ULID.
//
// The ULID's 48-bit timestamp occupies the leading bytes, so hex-encoded
// trace IDs remain sortable by creation time.
func (g *Generator) TraceID() TraceID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return TraceID(u)
}

// SpanID generates a new random span ID.
func (g *Generator) SpanID() SpanID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	var id SpanID
	if _, err := io.ReadFull(g.entropy, id[:]); err != nil {
		// The entropy source is rand.Reader in production; if the OS
		// entropy pool is unreachable nothing downstream can be trusted.
		panic("id: entropy source failed: " + err.Error())
	}
	return id
}

// NewTraceID generates a trace ID using the default generator.
func NewTraceID() TraceID {
	return Default().TraceID()
}

// NewSpanID generates a span ID using the default generator.
func NewSpanID() SpanID {
	return Default().SpanID()
}

// NewRequestID generates a prefixed request ID.
func NewRequestID() RequestID {
	return RequestID(RequestPrefix + "_" + uuid.NewString())
}

// String returns the lowercase hex encoding of the trace ID.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// String returns the lowercase hex encoding of the span ID.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// String returns the request ID as a plain string.
func (r RequestID) String() string { return string(r) }

// IsZero reports whether the trace ID is all zeros.
func (t TraceID) IsZero() bool {
	return t == TraceID{}
}

// IsZero reports whether the span ID is all zeros.
func (s SpanID) IsZero() bool {
	return s == SpanID{}
}

// Timestamp extracts the embedded creation time from a trace ID.
func (t TraceID) Timestamp() time.Time {
	return ulid.Time(ulid.ULID(t).Time())
}

// TraceIDFromHex parses a 32-character lowercase hex trace ID.
func TraceIDFromHex(s string) (TraceID, error) {
	var id TraceID
	if len(s) != 32 || !isLowerHex(s) {
		return id, ErrInvalidTraceID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrInvalidTraceID
	}
	copy(id[:], b)
	if id.IsZero() {
		return id, ErrInvalidTraceID
	}
	return id, nil
}

// SpanIDFromHex parses a 16-character lowercase hex span ID.
func SpanIDFromHex(s string) (SpanID, error) {
	var id SpanID
	if len(s) != 16 || !isLowerHex(s) {
		return id, ErrInvalidSpanID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrInvalidSpanID
	}
	copy(id[:], b)
	if id.IsZero() {
		return id, ErrInvalidSpanID
	}
	return id, nil
}

// isLowerHex reports whether s contains only lowercase hex characters.
func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
