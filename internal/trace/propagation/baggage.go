package propagation

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/tracewire/tracewire/internal/trace"
)

// MaxBaggageBytes bounds the encoded baggage header. Entries that would push
// the header past the bound are dropped at encode time, smallest-key-first
// entries are kept so the result is deterministic.
const MaxBaggageBytes = 1024

// EncodeBaggage renders baggage as a comma-separated list of key=value pairs
// with percent-encoded values. Keys are sorted so encoding is deterministic.
func EncodeBaggage(b trace.Baggage) string {
	if len(b) == 0 {
		return ""
	}

	keys := make([]string, 0, len(b))
	for k := range b {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		entry := escape(k) + "=" + escape(b[k])
		sep := 0
		if sb.Len() > 0 {
			sep = 1
		}
		if sb.Len()+sep+len(entry) > MaxBaggageBytes {
			continue
		}
		if sep == 1 {
			sb.WriteByte(',')
		}
		sb.WriteString(entry)
	}
	return sb.String()
}

// DecodeBaggage parses a baggage header value. Malformed entries are skipped
// rather than failing the whole header; an unparseable header yields nil.
func DecodeBaggage(value string) trace.Baggage {
	if value == "" {
		return nil
	}

	b := trace.Baggage{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, err := unescape(strings.TrimSpace(kv[0]))
		if err != nil || key == "" {
			continue
		}
		val, err := unescape(strings.TrimSpace(kv[1]))
		if err != nil {
			continue
		}
		b[key] = val
	}
	if len(b) == 0 {
		return nil
	}
	return b
}

// escape percent-encodes for the wire. QueryEscape alone would emit '+' for
// space, which peers following the W3C format decode as a literal plus.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// unescape percent-decodes, leaving a bare '+' intact.
func unescape(s string) (string, error) {
	return url.PathUnescape(s)
}

// InjectBaggage writes baggage into HTTP headers. Empty baggage clears
// nothing and emits nothing.
func InjectBaggage(b trace.Baggage, h http.Header) {
	encoded := EncodeBaggage(b)
	if encoded == "" {
		return
	}
	h.Set(BaggageHeader, encoded)
}

// ExtractBaggage reads baggage from HTTP headers, or nil when absent.
func ExtractBaggage(h http.Header) trace.Baggage {
	return DecodeBaggage(h.Get(BaggageHeader))
}
