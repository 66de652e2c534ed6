package metricsrc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"alertcore/internal/config"
	"alertcore/internal/domain"
)

const maxResponseBytes = 4 << 20

// httpProvider reads JSON snapshots from the monitoring HTTP API.
// Params: base URL and static headers from configuration.
// Returns: decoded domain snapshots.
type httpProvider struct {
	cfg    config.MetricsConfig
	client *http.Client
}

// DeliveryMetrics fetches window delivery counters.
// Params: ctx context and window length in hours.
// Returns: snapshot or transport/decode error.
func (p *httpProvider) DeliveryMetrics(ctx context.Context, windowHours int) (domain.DeliveryMetrics, error) {
	var out domain.DeliveryMetrics
	if err := p.getJSON(ctx, p.windowEndpoint("/metrics/delivery", windowHours), &out); err != nil {
		return domain.DeliveryMetrics{}, err
	}
	if out.WindowHours == 0 {
		out.WindowHours = windowHours
	}
	return out, nil
}

// FailureAnalysis fetches window failure breakdown.
// Params: ctx context and window length in hours.
// Returns: analysis or transport/decode error.
func (p *httpProvider) FailureAnalysis(ctx context.Context, windowHours int) (domain.FailureAnalysis, error) {
	var out domain.FailureAnalysis
	if err := p.getJSON(ctx, p.windowEndpoint("/metrics/failures", windowHours), &out); err != nil {
		return domain.FailureAnalysis{}, err
	}
	return out, nil
}

// ServiceConfigurations fetches configured delivery services.
// Params: ctx context.
// Returns: service records or transport/decode error.
func (p *httpProvider) ServiceConfigurations(ctx context.Context) ([]domain.ServiceConfiguration, error) {
	var out []domain.ServiceConfiguration
	if err := p.getJSON(ctx, p.endpoint("/services"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// endpoint joins base URL with one API path.
// Params: path relative to the metrics base URL.
// Returns: absolute URL string.
func (p *httpProvider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

// windowEndpoint builds one API URL carrying the window query parameter.
// Params: path and window length in hours.
// Returns: absolute URL string.
func (p *httpProvider) windowEndpoint(path string, windowHours int) string {
	query := url.Values{}
	query.Set("window_hours", strconv.Itoa(windowHours))
	return p.endpoint(path) + "?" + query.Encode()
}

// getJSON performs one GET and decodes the JSON body.
// Params: ctx context, endpoint URL, and destination value.
// Returns: transport, status, or decode error.
func (p *httpProvider) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range p.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %q: unexpected status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %q: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %q: %w", endpoint, err)
	}
	return nil
}
