// Command collector runs a minimal in-memory trace collector.
//
// It accepts span batches on POST /v1/traces and serves everything received
// so far on GET /v1/traces, which is enough to inspect traces locally
// without running a full observability stack.
package main

import (
	"flag"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/infrastructure/logging"
	"github.com/tracewire/tracewire/internal/trace/export"
)

// sink stores received batches in memory.
type sink struct {
	mu      sync.Mutex
	batches []export.Batch
	spans   int
}

func (s *sink) add(b export.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	s.spans += len(b.Spans)
}

func (s *sink) snapshot() ([]export.Batch, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Batch(nil), s.batches...), s.spans
}

func main() {
	port := flag.String("port", "4318", "Collector port")
	flag.Parse()

	logger := logging.NewDefault()
	store := &sink{}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST("/v1/traces", func(c *gin.Context) {
		var batch export.Batch
		if err := c.ShouldBindJSON(&batch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(batch.Spans) > 0 {
			store.add(batch)
			logger.Info("Received span batch",
				zap.String("service", batch.Resource.Service),
				zap.Int("spans", len(batch.Spans)),
			)
		}
		c.JSON(http.StatusOK, gin.H{"accepted": len(batch.Spans)})
	})

	router.GET("/v1/traces", func(c *gin.Context) {
		batches, spans := store.snapshot()
		c.JSON(http.StatusOK, gin.H{
			"batches": batches,
			"spans":   spans,
		})
	})

	addr := ":" + *port
	logger.Info("Starting collector", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		log.Fatalf("Collector error: %v", err)
	}
}
