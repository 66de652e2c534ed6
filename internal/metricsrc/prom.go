package metricsrc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// promProvider derives delivery counters from a Prometheus text exposition.
// Params: scrape URL and metric family mapping from configuration.
// Returns: delivery snapshots built from counter families.
type promProvider struct {
	cfg    config.MetricsConfig
	client *http.Client
}

// DeliveryMetrics scrapes and aggregates mapped counter families.
// Params: ctx context and window length in hours (recorded on the snapshot;
// counters are cumulative, rate semantics are the caller's concern).
// Returns: snapshot or scrape/parse error.
func (p *promProvider) DeliveryMetrics(ctx context.Context, windowHours int) (domain.DeliveryMetrics, error) {
	families, err := p.scrape(ctx)
	if err != nil {
		return domain.DeliveryMetrics{}, err
	}

	mapping := p.cfg.Prometheus
	out := domain.DeliveryMetrics{
		TotalAttempts:      int64(sumFamily(families[mapping.TotalFamily])),
		SuccessfulAttempts: int64(sumFamily(families[mapping.SuccessFamily])),
		FailedAttempts:     int64(sumFamily(families[mapping.FailedFamily])),
		WindowHours:        windowHours,
	}

	perService := map[string]*domain.ServiceDeliveryMetrics{}
	accumulate := func(family *dto.MetricFamily, apply func(*domain.ServiceDeliveryMetrics, float64)) {
		if family == nil {
			return
		}
		for _, metric := range family.GetMetric() {
			service := labelValue(metric, mapping.ServiceLabel)
			if service == "" {
				continue
			}
			entry, ok := perService[service]
			if !ok {
				entry = &domain.ServiceDeliveryMetrics{ServiceName: service}
				perService[service] = entry
			}
			apply(entry, sampleValue(metric))
		}
	}
	accumulate(families[mapping.TotalFamily], func(m *domain.ServiceDeliveryMetrics, v float64) {
		m.TotalAttempts += int64(v)
	})
	accumulate(families[mapping.SuccessFamily], func(m *domain.ServiceDeliveryMetrics, v float64) {
		m.SuccessfulAttempts += int64(v)
	})
	accumulate(families[mapping.FailedFamily], func(m *domain.ServiceDeliveryMetrics, v float64) {
		m.FailedAttempts += int64(v)
	})

	names := make([]string, 0, len(perService))
	for name := range perService {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := perService[name]
		if entry.TotalAttempts > 0 {
			entry.SuccessRate = float64(entry.SuccessfulAttempts) / float64(entry.TotalAttempts) * 100
		}
		out.Services = append(out.Services, *entry)
	}
	return out, nil
}

// FailureAnalysis returns an empty analysis; the exposition carries no
// per-error breakdown to report.
// Params: ctx context and window length.
// Returns: empty analysis.
func (p *promProvider) FailureAnalysis(_ context.Context, _ int) (domain.FailureAnalysis, error) {
	return domain.FailureAnalysis{}, nil
}

// ServiceConfigurations returns no records; service configuration is not part
// of the Prometheus surface.
// Params: ctx context.
// Returns: nil record list.
func (p *promProvider) ServiceConfigurations(_ context.Context) ([]domain.ServiceConfiguration, error) {
	return nil, nil
}

// scrape performs one exposition GET and parses metric families.
// Params: ctx context.
// Returns: families keyed by name or scrape/parse error.
func (p *promProvider) scrape(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	for key, value := range p.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape %q: %w", p.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape %q: unexpected status %d", p.cfg.BaseURL, resp.StatusCode)
	}
	return parseExposition(resp.Body)
}

// parseExposition decodes Prometheus text format into metric families.
// Params: r exposition body reader.
// Returns: families keyed by name; partial parses with content still succeed.
func parseExposition(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil && len(families) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return families, nil
}

// sumFamily adds counter, gauge, and untyped samples of one family.
// Params: family pointer, possibly nil.
// Returns: summed value; 0 for absent families.
func sumFamily(family *dto.MetricFamily) float64 {
	if family == nil {
		return 0
	}
	var total float64
	for _, metric := range family.GetMetric() {
		total += sampleValue(metric)
	}
	return total
}

// sampleValue extracts one sample value regardless of metric kind.
// Params: metric sample.
// Returns: counter, gauge, or untyped value.
func sampleValue(metric *dto.Metric) float64 {
	switch {
	case metric.Counter != nil:
		return metric.Counter.GetValue()
	case metric.Gauge != nil:
		return metric.Gauge.GetValue()
	case metric.Untyped != nil:
		return metric.Untyped.GetValue()
	default:
		return 0
	}
}

// labelValue finds one label value on a metric sample.
// Params: metric sample and label name.
// Returns: label value or empty string.
func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}
