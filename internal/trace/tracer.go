package trace

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/shared/id"
)

// Processor receives completed, sampled spans. The batch exporter is the
// production implementation; tests use in-memory recorders.
type Processor interface {
	OnEnd(s ReadSpan)
}

// Tracer creates spans and owns the process-wide sampling decision maker.
type Tracer struct {
	service   string
	logger    *zap.Logger
	sampler   Sampler
	processor Processor
	gen       *id.Generator
}

// Config configures a tracer.
type Config struct {
	// Service names the emitting service on every exported span.
	Service string
	// Sampler decides root sampling. Defaults to AlwaysOn.
	Sampler Sampler
	// Processor receives completed sampled spans. May be nil (spans are
	// then recorded locally and discarded).
	Processor Processor
	// Logger is used for tracer lifecycle messages only.
	Logger *zap.Logger
}

// New creates a tracer.
func New(cfg Config) *Tracer {
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = AlwaysOn()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tracer{
		service:   cfg.Service,
		logger:    logger,
		sampler:   sampler,
		processor: cfg.Processor,
		gen:       id.Default(),
	}
}

// Service returns the service name spans are attributed to.
func (t *Tracer) Service() string { return t.service }

// StartOption configures span creation.
type StartOption func(*startOptions)

type startOptions struct {
	kind   SpanKind
	attrs  []Attribute
	remote *SpanContext
}

// WithKind sets the span kind.
func WithKind(kind SpanKind) StartOption {
	return func(o *startOptions) { o.kind = kind }
}

// WithAttributes sets initial span attributes.
func WithAttributes(attrs ...Attribute) StartOption {
	return func(o *startOptions) { o.attrs = attrs }
}

// WithRemoteParent makes the new span a child of a context extracted from an
// incoming request. The remote trace ID and sampled flag are inherited
// unchanged; sampling is never recomputed for a non-root hop.
func WithRemoteParent(sc SpanContext) StartOption {
	return func(o *startOptions) {
		if sc.IsValid() {
			remote := sc
			remote.Remote = true
			o.remote = &remote
		}
	}
}

// Start creates a new span and binds it to the returned context.
//
// Parentage resolution order: explicit remote parent, then the span already
// attached to ctx, then a new root. Roots mint a fresh trace ID and consult
// the sampler; children inherit trace ID and sampled flag unchanged.
func (t *Tracer) Start(ctx context.Context, name string, opts ...StartOption) (context.Context, Span) {
	var options startOptions
	for _, opt := range opts {
		opt(&options)
	}

	var parent *SpanContext
	if options.remote != nil {
		parent = options.remote
	} else if sc := SpanContextFromContext(ctx); sc.IsValid() {
		local := sc
		parent = &local
	}

	var traceID id.TraceID
	var parentID id.SpanID
	if parent != nil {
		traceID = parent.TraceID
		parentID = parent.SpanID
	} else {
		traceID = t.gen.TraceID()
	}

	sc := SpanContext{
		TraceID: traceID,
		SpanID:  t.gen.SpanID(),
		Sampled: t.sampler.ShouldSample(traceID, parent),
	}

	s := &span{
		name:      name,
		kind:      options.kind,
		sc:        sc,
		parentID:  parentID,
		startTime: time.Now(),
		attrs:     append([]Attribute(nil), options.attrs...),
		tracer:    t,
	}

	return ContextWithSpan(ctx, s), s
}

// WithSpan runs fn inside a span and guarantees the span is closed on every
// exit path: normal return, error return, panic, and context cancellation.
//
// Errors returned by fn are recorded on the span and returned unchanged;
// panics are recorded and re-raised, so the caller's own error handling is
// unaffected by instrumentation.
func (t *Tracer) WithSpan(ctx context.Context, name string, fn func(context.Context) error, opts ...StartOption) (err error) {
	ctx, span := t.Start(ctx, name, opts...)

	defer func() {
		if r := recover(); r != nil {
			span.AddEvent("panic", String("panic.value", panicMessage(r)))
			span.SetStatus(StatusError, panicMessage(r))
			span.End()
			panic(r)
		}
		switch {
		case err != nil:
			span.RecordError(err)
		case ctx.Err() != nil:
			// The owning request was cancelled; the span must still be
			// sealed rather than leaked.
			span.SetStatus(StatusError, ctx.Err().Error())
		default:
			span.SetStatus(StatusOK, "")
		}
		span.End()
	}()

	return fn(ctx)
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "panic"
}
