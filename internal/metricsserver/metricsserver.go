// Package metricsserver exposes pipeline health and Prometheus metrics
// over HTTP: a single *echo.Echo with a couple of narrow routes.
package metricsserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiorelay/streamcore/internal/logging"
)

// Metrics holds every Prometheus collector the streaming engine reports.
// Registered once against a private registry so a host embedding this
// module doesn't collide with its own default-registry metrics.
type Metrics struct {
	registry *prometheus.Registry

	StateTransitions   *prometheus.CounterVec
	Errors             *prometheus.CounterVec
	BufferUnderruns    prometheus.Counter
	BounceCount        prometheus.Counter
	BytesReceived      prometheus.Counter
	PacketsDecoded     prometheus.Counter
	ActiveSessions     prometheus.Gauge
	CacheBytesResident prometheus.Gauge
}

// NewMetrics builds and registers the collector set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamcore",
			Name:      "state_transitions_total",
			Help:      "Count of AudioPipeline state transitions, labeled by target state.",
		}, []string{"state"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamcore",
			Name:      "errors_total",
			Help:      "Count of pipeline errors, labeled by ErrorKind.",
		}, []string{"kind"}),
		BufferUnderruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamcore",
			Name:      "buffer_underruns_total",
			Help:      "Count of OutputRing all-buffers-empty events.",
		}),
		BounceCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamcore",
			Name:      "bounce_total",
			Help:      "Count of detected reconnect bounces.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamcore",
			Name:      "input_bytes_received_total",
			Help:      "Total raw bytes read from InputStream implementations.",
		}),
		PacketsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamcore",
			Name:      "packets_decoded_total",
			Help:      "Total compressed packets handed to a Converter.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamcore",
			Name:      "active_sessions",
			Help:      "Number of AudioPipeline instances currently open.",
		}),
		CacheBytesResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamcore",
			Name:      "cache_bytes_resident",
			Help:      "Bytes currently held in PacketCache across all sessions.",
		}),
	}

	registry.MustRegister(
		m.StateTransitions,
		m.Errors,
		m.BufferUnderruns,
		m.BounceCount,
		m.BytesReceived,
		m.PacketsDecoded,
		m.ActiveSessions,
		m.CacheBytesResident,
	)
	return m
}

// HealthStatus is a coarse liveness signal a load balancer or orchestrator
// can poll. The engine sets it unhealthy until the pipeline reports its
// first state, then healthy in every state except Failed; detail holds
// the latest state name. No time window is applied.
type HealthStatus struct {
	mu      sync.RWMutex
	healthy bool
	detail  string
}

func (h *HealthStatus) Set(healthy bool, detail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = healthy
	h.detail = detail
}

func (h *HealthStatus) Get() (bool, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy, h.detail
}

// Server serves /metrics (Prometheus text exposition) and /healthz (a
// plain JSON liveness probe) on its own listener, separate from any
// dashboard or control-plane HTTP server the host process runs.
type Server struct {
	echo    *echo.Echo
	metrics *Metrics
	health  *HealthStatus
	addr    string
}

// New builds a metrics server bound to addr (e.g. ":9090"); addr == ""
// means the caller should not call Start at all.
func New(addr string, metrics *Metrics, health *HealthStatus) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, metrics: metrics, health: health, addr: addr}

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})))
	e.GET("/healthz", s.handleHealthz)
	return s
}

func (s *Server) handleHealthz(c echo.Context) error {
	healthy, detail := s.health.Get()
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{
		"healthy": healthy,
		"detail":  detail,
	})
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if log := logging.ForService("metricsserver"); log != nil {
			log.Info("shutting down metrics server", "addr", s.addr)
		}
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
