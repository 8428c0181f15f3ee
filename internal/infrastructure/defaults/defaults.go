// Package defaults assembles the standard trace pipeline from configuration.
//
// It is the single place where sampler selection, export transport, batching,
// and metrics sinks are wired together, so the server binary and integration
// tests build identical pipelines.
package defaults

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tracewire/tracewire/internal/infrastructure/config"
	"github.com/tracewire/tracewire/internal/infrastructure/logging"
	"github.com/tracewire/tracewire/internal/infrastructure/monitoring"
	"github.com/tracewire/tracewire/internal/trace"
	"github.com/tracewire/tracewire/internal/trace/export"
	"github.com/tracewire/tracewire/internal/trace/propagation"
)

// ServiceVersion is stamped on every exported batch.
const ServiceVersion = "0.1.0"

// Pipeline bundles a tracer with the export machinery behind it.
type Pipeline struct {
	Tracer  *trace.Tracer
	Batcher *export.Batcher
	Sampler trace.Sampler

	endpoint string
}

// NewPipeline builds the trace pipeline for a service.
//
// Sampler selection follows the deployment environment; an out-of-range
// ratio is returned as an error so callers fail before serving traffic.
func NewPipeline(service string, cfg config.TracingConfig, logger *logging.Logger, metrics *monitoring.Metrics) (*Pipeline, error) {
	sampler, err := trace.ForEnvironment(cfg.Environment, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("defaults: build sampler for %q: %w", cfg.Environment, err)
	}

	exporter := export.NewHTTP(export.HTTPConfig{
		Endpoint: cfg.Endpoint,
		Resource: export.Resource{
			Service:     service,
			Environment: cfg.Environment,
			Version:     ServiceVersion,
		},
		Logger: logger.Logger,
	})

	var stats export.Stats
	if metrics != nil {
		stats = metrics
	}
	batcher := export.NewBatcher(exporter, export.BatchConfig{
		QueueSize:     cfg.QueueSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Stats:         stats,
		Logger:        logger.Logger,
	})

	tracer := trace.New(trace.Config{
		Service:   service,
		Sampler:   sampler,
		Processor: batcher,
		Logger:    logger.Logger,
	})

	return &Pipeline{
		Tracer:   tracer,
		Batcher:  batcher,
		Sampler:  sampler,
		endpoint: cfg.Endpoint,
	}, nil
}

// Shutdown drains and stops the export pipeline.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.Batcher.Shutdown(ctx)
}

// BaggageCodec bridges the wire format to the in-process baggage type for
// the HTTP middleware.
type BaggageCodec struct{}

// Decode parses a baggage header value.
func (BaggageCodec) Decode(value string) trace.Baggage {
	return propagation.DecodeBaggage(value)
}

// Encode renders baggage as a header value.
func (BaggageCodec) Encode(b trace.Baggage) string {
	return propagation.EncodeBaggage(b)
}

// CollectorChecker probes the trace collector for readiness reporting.
type CollectorChecker struct {
	rest     *resty.Client
	endpoint string
}

// NewCollectorChecker creates a checker against the export endpoint.
func NewCollectorChecker(endpoint string) *CollectorChecker {
	return &CollectorChecker{
		rest:     resty.New().SetTimeout(2 * time.Second),
		endpoint: endpoint,
	}
}

// Name implements the readiness checker.
func (c *CollectorChecker) Name() string { return "collector" }

// Check posts an empty batch, which collectors accept as a no-op, proving
// the endpoint is reachable and parsing requests.
func (c *CollectorChecker) Check(ctx context.Context) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(`{"spans":[]}`).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("collector unreachable: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		if resp.StatusCode() == http.StatusNotFound {
			return fmt.Errorf("collector endpoint not found: %s", c.endpoint)
		}
		return fmt.Errorf("collector returned %d", resp.StatusCode())
	}
	return nil
}
