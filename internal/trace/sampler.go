package trace

import (
	"errors"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/tracewire/tracewire/internal/shared/id"
)

// ErrInvalidRatio is returned when a sampling ratio is NaN or outside [0, 1].
// Sampler construction happens at startup, so this is a fatal configuration
// error rather than something recovered at request time.
var ErrInvalidRatio = errors.New("trace: sampling ratio must be in [0.0, 1.0]")

// Sampler decides, at the trace root, whether a trace is recorded.
//
// The decision is made exactly once per trace: non-root hops always inherit
// the parent's flag and implementations must never override it.
type Sampler interface {
	// ShouldSample returns the sampled flag for a new span. parent is nil
	// when this hop is the trace root.
	ShouldSample(traceID id.TraceID, parent *SpanContext) bool
	// Description identifies the sampler in logs.
	Description() string
}

// alwaysOn samples every root. Used in development, where full-fidelity
// local debugging outweighs cost.
type alwaysOn struct{}

// AlwaysOn returns a sampler that samples every trace.
func AlwaysOn() Sampler { return alwaysOn{} }

func (alwaysOn) ShouldSample(_ id.TraceID, parent *SpanContext) bool {
	if parent != nil {
		return parent.Sampled
	}
	return true
}

func (alwaysOn) Description() string { return "always_on" }

// ParentBased re-uses the parent's decision when one exists and draws a
// deterministic ratio decision at the root.
type ParentBased struct {
	ratio float64
}

// NewParentBased creates a parent-based sampler with the given root ratio.
//
// The root decision hashes the trace ID (xxhash) onto [0, 1), so recomputing
// the decision for the same trace ID always agrees, which helps when
// debugging why a particular trace was kept or dropped. ratio 0 means never,
// 1 means always, both exact.
func NewParentBased(ratio float64) (*ParentBased, error) {
	if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
		return nil, ErrInvalidRatio
	}
	return &ParentBased{ratio: ratio}, nil
}

func (p *ParentBased) ShouldSample(traceID id.TraceID, parent *SpanContext) bool {
	// A non-root hop never recomputes sampling.
	if parent != nil {
		return parent.Sampled
	}
	if p.ratio <= 0 {
		return false
	}
	if p.ratio >= 1 {
		return true
	}

	// Deterministic uniform hash of the trace ID. float64 cannot represent
	// MaxUint64 exactly, but normalized == 1.0 only fails the < comparison,
	// which is correct for any ratio < 1.
	normalized := float64(xxhash.Sum64(traceID[:])) / float64(math.MaxUint64)
	return normalized < p.ratio
}

// Ratio returns the configured root sampling ratio.
func (p *ParentBased) Ratio() float64 { return p.ratio }

func (p *ParentBased) Description() string { return "parent_based" }

// ForEnvironment selects the sampler for a deployment environment:
// development environments trace everything, all others sample at ratio.
func ForEnvironment(environment string, ratio float64) (Sampler, error) {
	switch strings.ToLower(environment) {
	case "development", "dev", "local":
		return AlwaysOn(), nil
	default:
		return NewParentBased(ratio)
	}
}
