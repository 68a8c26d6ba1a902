package metricsserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthzReflectsStatus(t *testing.T) {
	t.Parallel()
	metrics := NewMetrics()
	health := &HealthStatus{}
	health.Set(false, "no pipeline opened yet")
	s := New("", metrics, health)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while unhealthy, got %d", rec.Code)
	}

	health.Set(true, "playing")
	rec2 := httptest.NewRecorder()
	s.echo.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 once healthy, got %d", rec2.Code)
	}
}

func TestMetricsEndpointExposesRegisteredCollectors(t *testing.T) {
	t.Parallel()
	metrics := NewMetrics()
	metrics.BytesReceived.Add(42)
	s := New("", metrics, &HealthStatus{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "streamcore_input_bytes_received_total 42") {
		t.Fatalf("expected the counter value in the exposition text, got: %s", rec.Body.String())
	}
}

func TestStartWithEmptyAddrIsNoOp(t *testing.T) {
	t.Parallel()
	s := New("", NewMetrics(), &HealthStatus{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("expected no-op Start to return nil, got %v", err)
	}
}
