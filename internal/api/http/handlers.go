// Package http provides HTTP handlers for the API server.
package http

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/httpclient"
	"github.com/tracewire/tracewire/internal/infrastructure/logging"
	"github.com/tracewire/tracewire/internal/trace"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	logger    *logging.Logger
	tracer    *trace.Tracer
	client    *httpclient.Client
	checkers  []Checker
	startTime time.Time

	// selfURL is the base URL this server reaches itself on, used by the
	// chain endpoint to demonstrate cross-process propagation.
	selfURL string
}

// NewHandlers creates a new handler set.
func NewHandlers(logger *logging.Logger, tracer *trace.Tracer, client *httpclient.Client, selfURL string, checkers ...Checker) *Handlers {
	return &Handlers{
		logger:    logger,
		tracer:    tracer,
		client:    client,
		checkers:  checkers,
		startTime: time.Now(),
		selfURL:   selfURL,
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "tracewire",
		"version": "0.1.0",
	})
}

// Health handles liveness checks. It always succeeds while the process is up.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
	})
}

// Ready handles readiness checks. Each registered dependency is probed with
// a short deadline; any failure makes the whole endpoint report 503.
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := true
	deps := gin.H{}
	for _, chk := range h.checkers {
		if err := chk.Check(ctx); err != nil {
			ready = false
			deps[chk.Name()] = gin.H{"ready": false, "error": err.Error()}
		} else {
			deps[chk.Name()] = gin.H{"ready": true}
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":        ready,
		"dependencies": deps,
	})
}

var weatherConditions = []string{"sunny", "cloudy", "rain", "snow", "fog"}

// Weather handles a demo endpoint that does traced in-process work.
func (h *Handlers) Weather(c *gin.Context) {
	city := c.DefaultQuery("city", "amsterdam")

	var forecast gin.H
	err := h.tracer.WithSpan(c.Request.Context(), "weather.forecast", func(ctx context.Context) error {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(trace.String("weather.city", city))

		span.AddEvent("forecast.lookup")
		// Simulated model run so traces show non-trivial durations.
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)

		forecast = gin.H{
			"city":      city,
			"condition": weatherConditions[rand.Intn(len(weatherConditions))],
			"temp_c":    rand.Intn(35) - 5,
		}
		span.AddEvent("forecast.ready")
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, forecast)
}

const maxChainHops = 5

// Chain handles a demo endpoint that calls itself over the network,
// decrementing hops each time, so one request produces a multi-hop trace.
func (h *Handlers) Chain(c *gin.Context) {
	hops, err := strconv.Atoi(c.DefaultQuery("hops", "2"))
	if err != nil || hops < 0 || hops > maxChainHops {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("hops must be between 0 and %d", maxChainHops),
		})
		return
	}

	sc := trace.SpanContextFromContext(c.Request.Context())
	if hops == 0 {
		c.JSON(http.StatusOK, gin.H{
			"hops_left": 0,
			"trace_id":  sc.TraceID.String(),
			"sampled":   sc.Sampled,
		})
		return
	}

	url := fmt.Sprintf("%s/api/chain?hops=%d", h.selfURL, hops-1)
	body, status, err := h.client.Get(c.Request.Context(), url)
	if err != nil {
		h.logger.WithTrace(c.Request.Context()).Warn("chain hop failed",
			zap.Int("hops_left", hops),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(status, gin.H{
		"hops_left":  hops,
		"trace_id":   sc.TraceID.String(),
		"sampled":    sc.Sampled,
		"downstream": string(body),
	})
}
