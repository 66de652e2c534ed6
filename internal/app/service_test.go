package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alertcore/internal/alertstore"
	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/domain"
)

func metricsStub(t *testing.T, metrics domain.DeliveryMetrics) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/metrics/delivery"):
			_ = json.NewEncoder(w).Encode(metrics)
		case strings.HasPrefix(r.URL.Path, "/metrics/failures"):
			_ = json.NewEncoder(w).Encode(domain.FailureAnalysis{})
		case strings.HasPrefix(r.URL.Path, "/services"):
			_ = json.NewEncoder(w).Encode([]domain.ServiceConfiguration{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeServiceConfig(t *testing.T, mode, baseURL string) string {
	t.Helper()
	body := strings.Join([]string{
		"[service]",
		`mode = "` + mode + `"`,
		`ops_listen = "127.0.0.1:0"`,
		"",
		"[log.console]",
		"enabled = true",
		`level = "error"`,
		"",
		"[metrics]",
		`base_url = "` + baseURL + `"`,
	}, "\n")

	path := filepath.Join(t.TempDir(), "alertcore.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestService(t *testing.T, metrics domain.DeliveryMetrics) *Service {
	t.Helper()
	stub := metricsStub(t, metrics)
	path := writeServiceConfig(t, config.ServiceModeSingle, stub.URL)

	service, err := NewService(config.ConfigSource{File: path}, clock.RealClock{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = service.store.Close() })
	return service
}

func TestOpsEndpointsReportReadiness(t *testing.T) {
	t.Parallel()

	service := newTestService(t, domain.DeliveryMetrics{TotalAttempts: 100, SuccessfulAttempts: 100})

	recorder := httptest.NewRecorder()
	service.httpSrv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	service.httpSrv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before startup must be 503, got %d", recorder.Code)
	}

	service.readyFlag.Store(true)
	recorder = httptest.NewRecorder()
	service.httpSrv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("readyz after startup must be 200, got %d", recorder.Code)
	}
}

func TestAdminCheckRaisesFailureRateAlert(t *testing.T) {
	t.Parallel()

	service := newTestService(t, domain.DeliveryMetrics{
		TotalAttempts:      100,
		SuccessfulAttempts: 20,
		FailedAttempts:     80,
		WindowHours:        1,
	})

	recorder := httptest.NewRecorder()
	service.httpSrv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/admin/check", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin check status %d: %s", recorder.Code, recorder.Body.String())
	}

	alerts, err := service.store.List(context.Background())
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	var found bool
	for _, alert := range alerts {
		if alert.Type == domain.AlertTypeDeliveryFailureRate && alert.Severity == domain.SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected critical delivery_failure_rate alert, got %+v", alerts)
	}
}

func TestAdminSummaryAggregatesAlerts(t *testing.T) {
	t.Parallel()

	service := newTestService(t, domain.DeliveryMetrics{
		TotalAttempts:      100,
		SuccessfulAttempts: 20,
		FailedAttempts:     80,
		WindowHours:        1,
	})

	recorder := httptest.NewRecorder()
	service.httpSrv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/admin/check", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin check status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	service.httpSrv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/admin/summary", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin summary status %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Alerts alertstore.Summary `json:"alerts"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if payload.Alerts.Total == 0 {
		t.Fatalf("summary must count raised alerts, got %+v", payload.Alerts)
	}
	if payload.Alerts.BySeverity[domain.SeverityCritical] == 0 {
		t.Fatalf("summary missing critical count: %+v", payload.Alerts)
	}
}

func TestAdminCheckRejectsGet(t *testing.T) {
	t.Parallel()

	service := newTestService(t, domain.DeliveryMetrics{TotalAttempts: 10, SuccessfulAttempts: 10})

	recorder := httptest.NewRecorder()
	service.httpSrv.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/admin/check", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestBuildStoreSingleMode(t *testing.T) {
	t.Parallel()

	store, err := buildStore(config.Config{Service: config.ServiceConfig{Mode: config.ServiceModeSingle}})
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	if _, ok := store.(*alertstore.MemoryStore); !ok {
		t.Fatalf("single mode must use memory store, got %T", store)
	}
}

func TestReloadRejectsModeChange(t *testing.T) {
	t.Parallel()

	stub := metricsStub(t, domain.DeliveryMetrics{TotalAttempts: 10, SuccessfulAttempts: 10})
	path := writeServiceConfig(t, config.ServiceModeSingle, stub.URL)

	service, err := NewService(config.ConfigSource{File: path}, clock.RealClock{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = service.store.Close() })

	if err := service.reloadConfig(); err != nil {
		t.Fatalf("unchanged reload must succeed: %v", err)
	}

	next := writeServiceConfig(t, config.ServiceModeNATS, stub.URL)
	body, err := os.ReadFile(next)
	if err != nil {
		t.Fatalf("read rewritten config: %v", err)
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("overwrite config: %v", err)
	}

	if err := service.reloadConfig(); err == nil || !strings.Contains(err.Error(), "requires restart") {
		t.Fatalf("mode change must be rejected, got %v", err)
	}
}
