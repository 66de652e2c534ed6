package evaluate

import (
	"fmt"
	"time"

	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// SourceName is the origin subsystem recorded on raised findings.
const SourceName = "alertcore"

// Evaluate runs every threshold rule over one monitoring snapshot.
// Params: delivery metrics, service records, thresholds, and evaluation time.
// Returns: zero or more findings; rules fire independently in one pass.
func Evaluate(metrics domain.DeliveryMetrics, services []domain.ServiceConfiguration, thresholds config.ThresholdsConfig, now time.Time) []domain.Finding {
	findings := EvaluateDelivery(metrics, thresholds)
	findings = append(findings, EvaluateServices(services, thresholds, now)...)
	return findings
}

// EvaluateDelivery applies delivery-counter rules to one snapshot.
// Params: delivery metrics and thresholds.
// Returns: overall-rate, no-deliveries, and per-service findings.
func EvaluateDelivery(metrics domain.DeliveryMetrics, thresholds config.ThresholdsConfig) []domain.Finding {
	var findings []domain.Finding

	if metrics.TotalAttempts > 0 {
		rate := metrics.FailureRate()
		switch {
		case rate >= thresholds.CriticalFailureRate:
			findings = append(findings, failureRateFinding(metrics, rate, thresholds.CriticalFailureRate, domain.SeverityCritical))
		case rate >= thresholds.WarningFailureRate:
			findings = append(findings, failureRateFinding(metrics, rate, thresholds.WarningFailureRate, domain.SeverityWarning))
		}

		if metrics.SuccessfulAttempts == 0 {
			findings = append(findings, domain.Finding{
				Type:     domain.AlertTypeNoDeliveries,
				Severity: domain.SeverityCritical,
				Title:    "No successful deliveries",
				Description: fmt.Sprintf("%d delivery attempts in the last %dh window, none succeeded",
					metrics.TotalAttempts, metrics.WindowHours),
				Source: SourceName,
				Metrics: map[string]any{
					"total_attempts":  metrics.TotalAttempts,
					"failed_attempts": metrics.FailedAttempts,
					"window_hours":    metrics.WindowHours,
				},
				DedupKey: DedupKey(domain.AlertTypeNoDeliveries, nil),
			})
		}
	}

	for _, svc := range metrics.Services {
		if svc.TotalAttempts < thresholds.ServiceMinAttempts {
			continue
		}
		rate := serviceFailureRate(svc)
		if rate < thresholds.ServiceFailureRate {
			continue
		}
		severity := domain.SeverityWarning
		threshold := thresholds.ServiceFailureRate
		if rate >= thresholds.ServiceCriticalFailureRate {
			severity = domain.SeverityCritical
			threshold = thresholds.ServiceCriticalFailureRate
		}
		findings = append(findings, domain.Finding{
			Type:     domain.AlertTypeServiceUnavailable,
			Severity: severity,
			Title:    fmt.Sprintf("Delivery service %s failing", svc.ServiceName),
			Description: fmt.Sprintf("service %s failure rate %.1f%% over %d attempts exceeds %.1f%%",
				svc.ServiceName, rate, svc.TotalAttempts, threshold),
			Source:           SourceName,
			AffectedServices: []string{svc.ServiceName},
			Metrics: map[string]any{
				"failure_rate":   rate,
				"threshold":      threshold,
				"actual_value":   rate,
				"total_attempts": svc.TotalAttempts,
			},
			DedupKey: DedupKey(domain.AlertTypeServiceUnavailable, []string{svc.ServiceName}),
		})
	}

	return findings
}

// EvaluateServices applies configuration-health rules to service records.
// Params: service records, thresholds, and evaluation time.
// Returns: error-count, validation, and healthy-capacity findings.
func EvaluateServices(services []domain.ServiceConfiguration, thresholds config.ThresholdsConfig, now time.Time) []domain.Finding {
	var findings []domain.Finding

	operational := 0
	for _, svc := range services {
		if svc.Operational() {
			operational++
		}

		if svc.ErrorCount >= thresholds.CriticalErrorCount {
			findings = append(findings, domain.Finding{
				Type:     domain.AlertTypeHighErrorCount,
				Severity: domain.SeverityCritical,
				Title:    fmt.Sprintf("High error count on %s", svc.ServiceName),
				Description: fmt.Sprintf("service %s reported %d errors, threshold %d; last error: %s",
					svc.ServiceName, svc.ErrorCount, thresholds.CriticalErrorCount, svc.LastError),
				Source:           SourceName,
				AffectedServices: []string{svc.ServiceName},
				Metrics: map[string]any{
					"error_count": svc.ErrorCount,
					"threshold":   thresholds.CriticalErrorCount,
				},
				Context:  map[string]any{"last_error": svc.LastError},
				DedupKey: DedupKey(domain.AlertTypeHighErrorCount, []string{svc.ServiceName}),
			})
		}

		if !svc.Enabled {
			continue
		}

		if svc.Validation == domain.ValidationInvalid {
			findings = append(findings, domain.Finding{
				Type:             domain.AlertTypeConfigurationInvalid,
				Severity:         domain.SeverityCritical,
				Title:            fmt.Sprintf("Invalid configuration on %s", svc.ServiceName),
				Description:      fmt.Sprintf("service %s configuration failed validation: %s", svc.ServiceName, svc.LastError),
				Source:           SourceName,
				AffectedServices: []string{svc.ServiceName},
				Context:          map[string]any{"validation": string(svc.Validation), "last_error": svc.LastError},
				DedupKey:         DedupKey(domain.AlertTypeConfigurationInvalid, []string{svc.ServiceName}),
			})
		}

		staleAfter := time.Duration(thresholds.StaleValidationMin) * time.Minute
		if !svc.LastValidated.IsZero() && now.Sub(svc.LastValidated) > staleAfter {
			findings = append(findings, domain.Finding{
				Type:     domain.AlertTypeConfigurationInvalid,
				Severity: domain.SeverityWarning,
				Title:    fmt.Sprintf("Stale validation on %s", svc.ServiceName),
				Description: fmt.Sprintf("service %s last validated %s ago, limit %s",
					svc.ServiceName, now.Sub(svc.LastValidated).Round(time.Minute), staleAfter),
				Source:           SourceName,
				AffectedServices: []string{svc.ServiceName},
				Context:          map[string]any{"last_validated": svc.LastValidated},
				DedupKey:         DedupKey(domain.AlertTypeConfigurationInvalid, []string{svc.ServiceName}),
			})
		}
	}

	if len(services) > 0 && operational < thresholds.MinActiveServices {
		findings = append(findings, domain.Finding{
			Type:     domain.AlertTypeServiceUnavailable,
			Severity: domain.SeverityCritical,
			Title:    "Insufficient healthy delivery services",
			Description: fmt.Sprintf("%d of %d services operational, minimum required %d",
				operational, len(services), thresholds.MinActiveServices),
			Source: SourceName,
			Metrics: map[string]any{
				"operational_services": operational,
				"configured_services":  len(services),
				"threshold":            thresholds.MinActiveServices,
			},
			DedupKey: DedupKey(domain.AlertTypeServiceUnavailable, nil),
		})
	}

	return findings
}

// DegradedMonitoring builds the finding raised when the metrics path fails.
// Params: failing stage name and fetch error.
// Returns: system degradation warning finding.
func DegradedMonitoring(stage string, err error) domain.Finding {
	return domain.Finding{
		Type:        domain.AlertTypeSystemDegradation,
		Severity:    domain.SeverityWarning,
		Title:       "Monitoring pipeline degraded",
		Description: fmt.Sprintf("stage %s failed: %v", stage, err),
		Source:      SourceName,
		Context:     map[string]any{"stage": stage, "error": err.Error()},
		DedupKey:    DedupKey(domain.AlertTypeSystemDegradation, nil),
	}
}

// failureRateFinding builds the overall failure-rate finding.
// Params: snapshot, computed rate, breached threshold, and severity grade.
// Returns: delivery failure-rate finding.
func failureRateFinding(metrics domain.DeliveryMetrics, rate, threshold float64, severity domain.Severity) domain.Finding {
	return domain.Finding{
		Type:     domain.AlertTypeDeliveryFailureRate,
		Severity: severity,
		Title:    fmt.Sprintf("Delivery failure rate %.1f%%", rate),
		Description: fmt.Sprintf("%d of %d delivery attempts failed in the last %dh window (threshold %.1f%%)",
			metrics.FailedAttempts, metrics.TotalAttempts, metrics.WindowHours, threshold),
		Source: SourceName,
		Metrics: map[string]any{
			"failure_rate":        rate,
			"threshold":           threshold,
			"actual_value":        rate,
			"total_attempts":      metrics.TotalAttempts,
			"failed_attempts":     metrics.FailedAttempts,
			"successful_attempts": metrics.SuccessfulAttempts,
			"window_hours":        metrics.WindowHours,
		},
		DedupKey: DedupKey(domain.AlertTypeDeliveryFailureRate, nil),
	}
}

// serviceFailureRate computes one service's failure percentage.
// Params: per-service aggregate.
// Returns: failed/total*100 when counters are present, else 100-successRate.
func serviceFailureRate(svc domain.ServiceDeliveryMetrics) float64 {
	if svc.TotalAttempts > 0 && (svc.FailedAttempts > 0 || svc.SuccessfulAttempts > 0) {
		return float64(svc.FailedAttempts) / float64(svc.TotalAttempts) * 100
	}
	return 100 - svc.SuccessRate
}
