// Package propagation serializes trace context to and from wire headers.
//
// It implements the traceparent portion of the W3C Trace Context format
// (https://www.w3.org/TR/trace-context/):
//
//	version-traceid-spanid-flags
//	00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// all lowercase hex at fixed widths (2/32/16/2), with flags bit 0 carrying
// the sampled decision. Parsing is strict; injection is deterministic, so
// Extract(Inject(sc)) round-trips exactly.
//
// Propagation failures must never break application behavior: extraction
// from a malformed header reports absence, and the receiving hop simply
// starts a new root trace.
package propagation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tracewire/tracewire/internal/shared/id"
	"github.com/tracewire/tracewire/internal/trace"
)

// Wire header names. Lowercase per the W3C spec; http.Header lookups are
// case-insensitive anyway.
const (
	TraceparentHeader = "traceparent"
	BaggageHeader     = "baggage"
)

const (
	versionLen = 2
	traceIDLen = 32
	spanIDLen  = 16
	flagsLen   = 2

	// SampledFlag is bit 0 of the trace-flags byte.
	SampledFlag = byte(0x01)
)

var (
	ErrMalformedTraceparent = errors.New("propagation: malformed traceparent header")
	ErrForbiddenVersion     = errors.New("propagation: traceparent version ff is forbidden")
)

// FormatTraceparent encodes a span context as a traceparent header value.
// Always emits version 00.
func FormatTraceparent(sc trace.SpanContext) string {
	flags := byte(0)
	if sc.Sampled {
		flags |= SampledFlag
	}
	return fmt.Sprintf("%s-%s-%s-%02x", trace.Version, sc.TraceID.String(), sc.SpanID.String(), flags)
}

// ParseTraceparent parses a traceparent header value.
//
// Validation is strict: four dash-separated fields at fixed widths, lowercase
// hex only, non-zero identifiers, version ff rejected. Future versions are
// accepted as long as the first four fields parse, per the W3C spec.
func ParseTraceparent(value string) (trace.SpanContext, error) {
	var sc trace.SpanContext

	fields := strings.Split(value, "-")
	if len(fields) < 4 {
		return sc, ErrMalformedTraceparent
	}

	version := fields[0]
	if len(version) != versionLen || !isLowerHex(version) {
		return sc, ErrMalformedTraceparent
	}
	if version == "ff" {
		return sc, ErrForbiddenVersion
	}
	// Version 00 has exactly four fields; later versions may append more.
	if version == trace.Version && len(fields) != 4 {
		return sc, ErrMalformedTraceparent
	}

	traceID, err := id.TraceIDFromHex(fields[1])
	if err != nil {
		return sc, fmt.Errorf("%w: %w", ErrMalformedTraceparent, err)
	}
	spanID, err := id.SpanIDFromHex(fields[2])
	if err != nil {
		return sc, fmt.Errorf("%w: %w", ErrMalformedTraceparent, err)
	}

	flagsHex := fields[3]
	if len(flagsHex) != flagsLen || !isLowerHex(flagsHex) {
		return sc, ErrMalformedTraceparent
	}
	flags := hexByte(flagsHex)

	return trace.SpanContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flags&SampledFlag != 0,
		Remote:  true,
	}, nil
}

// Inject writes the span context into HTTP headers. Invalid contexts are
// skipped so an uninstrumented call path emits no headers at all.
func Inject(sc trace.SpanContext, h http.Header) {
	if !sc.IsValid() {
		return
	}
	h.Set(TraceparentHeader, FormatTraceparent(sc))
}

// Extract reads the span context from HTTP headers.
//
// The boolean result distinguishes "no usable context" from success; a
// malformed header yields (zero, false) and never an error, because the
// receiving hop must treat it as a fresh root rather than fail the request.
func Extract(h http.Header) (trace.SpanContext, bool) {
	value := h.Get(TraceparentHeader)
	if value == "" {
		return trace.SpanContext{}, false
	}
	sc, err := ParseTraceparent(value)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return sc, true
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// hexByte decodes a 2-character lowercase hex string already validated by
// isLowerHex.
func hexByte(s string) byte {
	return hexNibble(s[0])<<4 | hexNibble(s[1])
}

func hexNibble(c byte) byte {
	if c >= 'a' {
		return c - 'a' + 10
	}
	return c - '0'
}
