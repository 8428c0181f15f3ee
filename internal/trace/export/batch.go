package export

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

// Stats receives process-local export counters. The monitoring package
// implements this with prometheus counters; a no-op sink is the default.
type Stats interface {
	SpansExported(n int)
	SpansDropped(n int)
	ExportFailures(n int)
}

type nopStats struct{}

func (nopStats) SpansExported(int)  {}
func (nopStats) SpansDropped(int)   {}
func (nopStats) ExportFailures(int) {}

// BatchConfig configures the batch processor.
type BatchConfig struct {
	// QueueSize bounds spans waiting for the flusher. Defaults to 2048.
	QueueSize int
	// BatchSize is the flush threshold and maximum spans per export.
	// Defaults to 512.
	BatchSize int
	// FlushInterval triggers a flush even when the threshold is not
	// reached. Defaults to 5s.
	FlushInterval time.Duration
	// Stats receives exported/dropped/failure counts. May be nil.
	Stats Stats
	// Logger receives drop and failure messages. May be nil.
	Logger *zap.Logger
}

// Batcher buffers completed sampled spans and flushes them to an Exporter
// from a single background goroutine.
//
// Producers never block: when the queue is full the incoming (newest) span
// is dropped and counted, preserving already-buffered spans and adding no
// latency to the request path. Export failures are likewise counted and
// swallowed; observability failures must never become request failures.
type Batcher struct {
	cfg      BatchConfig
	exporter Exporter
	stats    Stats
	logger   *zap.Logger

	queue chan trace.ReadSpan
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
	stopped  atomic.Bool

	exported atomic.Int64
	dropped  atomic.Int64
	failures atomic.Int64
}

var _ trace.Processor = (*Batcher)(nil)

// NewBatcher creates a batch processor and starts its flush loop.
func NewBatcher(exporter Exporter, cfg BatchConfig) *Batcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 2048
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 512
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Stats == nil {
		cfg.Stats = nopStats{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	b := &Batcher{
		cfg:      cfg,
		exporter: exporter,
		stats:    cfg.Stats,
		logger:   cfg.Logger,
		queue:    make(chan trace.ReadSpan, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// OnEnd implements trace.Processor. It never blocks and never fails.
func (b *Batcher) OnEnd(s trace.ReadSpan) {
	if b.stopped.Load() {
		b.drop(1)
		return
	}
	select {
	case b.queue <- s:
	default:
		// Queue full: drop the newest span, keep the buffered ones.
		b.drop(1)
	}
}

func (b *Batcher) drop(n int) {
	b.dropped.Add(int64(n))
	b.stats.SpansDropped(n)
	b.logger.Warn("span queue full, dropping span",
		zap.Int64("dropped_total", b.dropped.Load()),
	)
}

// run is the single consumer of the queue.
func (b *Batcher) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	buf := make([]trace.ReadSpan, 0, b.cfg.BatchSize)

	for {
		select {
		case s := <-b.queue:
			buf = append(buf, s)
			if len(buf) >= b.cfg.BatchSize {
				buf = b.flush(context.Background(), buf)
			}
		case <-ticker.C:
			buf = b.flush(context.Background(), buf)
		case <-b.stop:
			// Drain whatever made it into the queue, then final flush.
			for {
				select {
				case s := <-b.queue:
					buf = append(buf, s)
				default:
					b.flush(context.Background(), buf)
					return
				}
			}
		}
	}
}

// flush exports buf and returns an empty buffer for reuse. Failures are
// counted, logged, and otherwise swallowed.
func (b *Batcher) flush(ctx context.Context, buf []trace.ReadSpan) []trace.ReadSpan {
	if len(buf) == 0 {
		return buf
	}

	if err := b.exporter.Export(ctx, buf); err != nil {
		b.failures.Add(1)
		b.stats.ExportFailures(1)
		b.logger.Warn("trace batch export failed, discarding batch",
			zap.Int("spans", len(buf)),
			zap.Error(err),
		)
	} else {
		b.exported.Add(int64(len(buf)))
		b.stats.SpansExported(len(buf))
	}
	return buf[:0]
}

// Shutdown stops the flush loop, drains remaining spans, and shuts the
// exporter down. Spans ending after shutdown are counted as dropped.
func (b *Batcher) Shutdown(ctx context.Context) error {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.stop)
	})

	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.exporter.Shutdown(ctx)
}

// Exported returns the number of spans successfully exported.
func (b *Batcher) Exported() int64 { return b.exported.Load() }

// Dropped returns the number of spans dropped on overflow or after shutdown.
func (b *Batcher) Dropped() int64 { return b.dropped.Load() }

// Failures returns the number of batches discarded after retry exhaustion.
func (b *Batcher) Failures() int64 { return b.failures.Load() }
