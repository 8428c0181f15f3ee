/*
Package trace implements lightweight distributed tracing.

# Overview

This package tracks requests across service hops with a minimal span model.
It follows OpenTelemetry concepts (spans, trace context, samplers) without
pulling in the SDK: the mechanism itself lives here, in plain Go.

# Features

- W3C traceparent propagation via HTTP headers and gRPC metadata
- Parent-child span relationships with context-bound current span
- Root-only sampling: AlwaysOn for development, deterministic ratio otherwise
- Gin middleware and gRPC interceptors for automatic instrumentation
- Guaranteed span closure on error, panic, and cancellation paths

# Usage

	sampler, err := trace.ForEnvironment(cfg.Environment, cfg.SampleRatio)
	if err != nil {
		return err // fatal: misconfigured ratio
	}
	tracer := trace.New(trace.Config{
		Service:   "backend",
		Sampler:   sampler,
		Processor: batcher,
	})

	router.Use(trace.Middleware(tracer, propagation.Extract, codec))

	err = tracer.WithSpan(ctx, "load-forecast", func(ctx context.Context) error {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(trace.Int("forecast.days", days))
		return doWork(ctx)
	})

# Sampling contract

The sampled flag is decided exactly once, at the trace root, and inherited by
every descendant span, so a trace is always exported whole or not at all.
Non-sampled spans still exist and record locally so that instrumentation
never changes business behavior, only export volume.

# Concurrency

Spans are owned by the goroutine that created them until End; the current
span rides on context.Context, so concurrent requests are fully isolated and
the association survives suspension points.
*/
package trace
