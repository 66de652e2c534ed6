package metricsrc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"alertcore/internal/config"
)

func TestHTTPProviderDeliveryMetrics(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics/delivery" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("window_hours"); got != "2" {
			t.Errorf("unexpected window %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("unexpected api key header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total_attempts": 100,
			"successful_attempts": 40,
			"failed_attempts": 60,
			"services": [{"service_name": "smtp-main", "total_attempts": 50, "failed_attempts": 45}]
		}`))
	}))
	defer server.Close()

	provider, err := New(config.MetricsConfig{
		Source:     config.MetricsSourceHTTP,
		BaseURL:    server.URL,
		TimeoutSec: 5,
		Headers:    map[string]string{"X-Api-Key": "secret"},
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	metrics, err := provider.DeliveryMetrics(context.Background(), 2)
	if err != nil {
		t.Fatalf("delivery metrics: %v", err)
	}
	if metrics.TotalAttempts != 100 || metrics.FailedAttempts != 60 {
		t.Fatalf("unexpected counters %+v", metrics)
	}
	if metrics.FailureRate() != 60 {
		t.Fatalf("unexpected failure rate %v", metrics.FailureRate())
	}
	if metrics.WindowHours != 2 {
		t.Fatalf("unexpected window %d", metrics.WindowHours)
	}
	svc, ok := metrics.Service("smtp-main")
	if !ok || svc.FailedAttempts != 45 {
		t.Fatalf("unexpected service aggregate %+v", svc)
	}
}

func TestHTTPProviderRejectsBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider, err := New(config.MetricsConfig{
		Source:     config.MetricsSourceHTTP,
		BaseURL:    server.URL,
		TimeoutSec: 5,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.DeliveryMetrics(context.Background(), 1); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestPromProviderDeliveryMetrics(t *testing.T) {
	t.Parallel()

	exposition := `# HELP delivery_attempts_total Delivery attempts.
# TYPE delivery_attempts_total counter
delivery_attempts_total{service="smtp-main"} 80
delivery_attempts_total{service="smtp-backup"} 20
# TYPE delivery_success_total counter
delivery_success_total{service="smtp-main"} 30
delivery_success_total{service="smtp-backup"} 18
# TYPE delivery_failed_total counter
delivery_failed_total{service="smtp-main"} 50
delivery_failed_total{service="smtp-backup"} 2
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(exposition))
	}))
	defer server.Close()

	cfg := config.MetricsConfig{
		Source:     config.MetricsSourcePrometheus,
		BaseURL:    server.URL,
		TimeoutSec: 5,
		Prometheus: config.PrometheusMetrics{
			TotalFamily:   "delivery_attempts_total",
			SuccessFamily: "delivery_success_total",
			FailedFamily:  "delivery_failed_total",
			ServiceLabel:  "service",
		},
	}
	provider, err := New(cfg)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	metrics, err := provider.DeliveryMetrics(context.Background(), 1)
	if err != nil {
		t.Fatalf("delivery metrics: %v", err)
	}
	if metrics.TotalAttempts != 100 || metrics.SuccessfulAttempts != 48 || metrics.FailedAttempts != 52 {
		t.Fatalf("unexpected counters %+v", metrics)
	}
	if len(metrics.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(metrics.Services))
	}
	main, ok := metrics.Service("smtp-main")
	if !ok || main.TotalAttempts != 80 || main.FailedAttempts != 50 {
		t.Fatalf("unexpected smtp-main aggregate %+v", main)
	}
	if main.SuccessRate != 37.5 {
		t.Fatalf("unexpected success rate %v", main.SuccessRate)
	}
}

func TestNewRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	if _, err := New(config.MetricsConfig{Source: "statsd"}); err == nil {
		t.Fatalf("expected unsupported source error")
	}
}
