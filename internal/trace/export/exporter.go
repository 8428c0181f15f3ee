package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

// Exporter delivers a batch of completed spans to a collector.
type Exporter interface {
	// Export sends one batch. Empty batches are a no-op success.
	Export(ctx context.Context, spans []trace.ReadSpan) error
	// Shutdown releases transport resources.
	Shutdown(ctx context.Context) error
}

// HTTPConfig configures the HTTP exporter.
type HTTPConfig struct {
	// Endpoint is the collector URL (e.g. "http://localhost:4318/v1/traces").
	Endpoint string
	// Resource identifies this process on every batch.
	Resource Resource
	// Headers are added to every request.
	Headers map[string]string
	// Timeout bounds a single attempt. Defaults to 10s.
	Timeout time.Duration
	// RetryMax bounds retries per batch; backoff is exponential between
	// RetryWaitMin and RetryWaitMax. Defaults: 3 retries, 250ms..2s.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Logger receives transport failure messages. May be nil.
	Logger *zap.Logger
}

// HTTPExporter POSTs JSON batches to a collector endpoint with bounded
// exponential backoff. A batch that still fails after the last retry is the
// caller's to count and discard; errors never propagate past the batcher.
type HTTPExporter struct {
	cfg    HTTPConfig
	client *retryablehttp.Client
	logger *zap.Logger
}

var _ Exporter = (*HTTPExporter)(nil)

// NewHTTP creates an HTTP exporter.
func NewHTTP(cfg HTTPConfig) *HTTPExporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 250 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil // retry noise goes through zap below instead

	return &HTTPExporter{cfg: cfg, client: client, logger: logger}
}

// Export implements Exporter.
func (e *HTTPExporter) Export(ctx context.Context, spans []trace.ReadSpan) error {
	if len(spans) == 0 {
		return nil
	}

	body, err := json.Marshal(NewBatch(e.cfg.Resource, spans))
	if err != nil {
		return fmt.Errorf("export: encode batch: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, body)
	if err != nil {
		return fmt.Errorf("export: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("trace export failed after retries",
			zap.String("endpoint", e.cfg.Endpoint),
			zap.Int("spans", len(spans)),
			zap.Error(err),
		)
		return fmt.Errorf("export: send batch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("export: collector returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// Shutdown implements Exporter.
func (e *HTTPExporter) Shutdown(context.Context) error {
	e.client.HTTPClient.CloseIdleConnections()
	return nil
}
