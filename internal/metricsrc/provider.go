package metricsrc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// Provider supplies point-in-time monitoring inputs for threshold evaluation.
// Params: context for cancellation on every call.
// Returns: snapshots from the external metrics surface.
type Provider interface {
	// DeliveryMetrics fetches the delivery counters for a lookback window.
	// Params: ctx context and window length in hours.
	// Returns: snapshot or transport/decode error.
	DeliveryMetrics(ctx context.Context, windowHours int) (domain.DeliveryMetrics, error)

	// FailureAnalysis fetches the failure breakdown for a lookback window.
	// Params: ctx context and window length in hours.
	// Returns: analysis or transport/decode error.
	FailureAnalysis(ctx context.Context, windowHours int) (domain.FailureAnalysis, error)

	// ServiceConfigurations fetches the configured delivery service records.
	// Params: ctx context.
	// Returns: service list or transport/decode error.
	ServiceConfigurations(ctx context.Context) ([]domain.ServiceConfiguration, error)
}

// New builds the provider selected by configuration.
// Params: cfg metrics section after defaults.
// Returns: provider or unsupported-source error.
func New(cfg config.MetricsConfig) (Provider, error) {
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}
	switch cfg.Source {
	case config.MetricsSourceHTTP:
		return &httpProvider{cfg: cfg, client: client}, nil
	case config.MetricsSourcePrometheus:
		return &promProvider{cfg: cfg, client: client}, nil
	default:
		return nil, fmt.Errorf("metrics source %q is not supported", cfg.Source)
	}
}
