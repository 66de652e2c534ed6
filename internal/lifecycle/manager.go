package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"alertcore/internal/alertstore"
	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/domain"
	"alertcore/internal/evaluate"
	"alertcore/internal/metricsrc"
	"alertcore/internal/notify"
)

const casAttempts = 3

var (
	// ErrNotActive indicates acknowledge attempted on a non-active alert.
	ErrNotActive = errors.New("alert is not active")
	// ErrAlreadyResolved indicates resolve attempted on a resolved alert.
	ErrAlreadyResolved = errors.New("alert is already resolved")
	// ErrEscalationCap indicates escalate attempted beyond the level cap.
	ErrEscalationCap = errors.New("escalation level cap reached")
)

// Manager owns alert creation, deduplication, cooldown, escalation,
// and auto-resolution policy.
// Params: store, router, metrics provider, thresholds, retention, and clock.
// Returns: lifecycle operations over persisted alerts.
type Manager struct {
	store     alertstore.Store
	router    *notify.Router
	provider  metricsrc.Provider
	retention config.RetentionConfig
	window    int
	clk       clock.Clock
	log       *slog.Logger

	mu         sync.Mutex
	thresholds config.ThresholdsConfig
	cooldown   map[string]time.Time
}

// NewManager creates the lifecycle manager.
// Params: store, router, provider, config sections, clock, and logger.
// Returns: initialized manager with empty cooldown table.
func NewManager(store alertstore.Store, router *notify.Router, provider metricsrc.Provider, thresholds config.ThresholdsConfig, retention config.RetentionConfig, windowHours int, clk clock.Clock, log *slog.Logger) *Manager {
	return &Manager{
		store:      store,
		router:     router,
		provider:   provider,
		thresholds: thresholds,
		retention:  retention,
		window:     windowHours,
		clk:        clk,
		log:        log,
		cooldown:   make(map[string]time.Time),
	}
}

// SetThresholds replaces threshold policy at runtime.
// Params: new thresholds snapshot.
// Returns: none.
func (m *Manager) SetThresholds(thresholds config.ThresholdsConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = thresholds
}

// currentThresholds reads the live threshold snapshot.
// Params: none.
// Returns: thresholds copy.
func (m *Manager) currentThresholds() config.ThresholdsConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds
}

// isInCooldown reports whether the dedup key is inside its cooldown window.
// Params: dedup key and evaluation time.
// Returns: true while the window is open; expired entries are pruned.
func (m *Manager) isInCooldown(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.cooldown[key]
	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}
	delete(m.cooldown, key)
	return false
}

// setCooldown arms the cooldown window for one dedup key.
// Params: dedup key and evaluation time.
// Returns: none.
func (m *Manager) setCooldown(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldown[key] = now.Add(m.thresholds.Cooldown())
}

// Raise creates or merges one alert from a finding.
// Params: ctx context and evaluation finding.
// Returns: affected alert, true when newly created, or store error;
// cooldown hits return a zero alert with no error.
func (m *Manager) Raise(ctx context.Context, finding domain.Finding) (domain.Alert, bool, error) {
	now := m.clk.Now()
	if m.isInCooldown(finding.DedupKey, now) {
		m.log.Debug("raise: dedup key in cooldown", "dedup_key", finding.DedupKey)
		return domain.Alert{}, false, nil
	}

	existing, rev, err := alertstore.FindOpenMatch(ctx, m.store, finding.Type, finding.AffectedServices)
	switch {
	case err == nil:
		merged, err := m.mergeFinding(ctx, existing, rev, finding)
		if err != nil {
			return domain.Alert{}, false, err
		}
		m.setCooldown(finding.DedupKey, now)
		m.log.Info("raise: merged into existing alert", "alert_id", merged.AlertID, "dedup_key", finding.DedupKey)
		return merged, false, nil
	case errors.Is(err, alertstore.ErrNotFound):
	default:
		return domain.Alert{}, false, fmt.Errorf("find open alert: %w", err)
	}

	alert := domain.Alert{
		AlertID:          uuid.New().String(),
		Type:             finding.Type,
		Severity:         finding.Severity,
		Title:            finding.Title,
		Description:      finding.Description,
		Source:           finding.Source,
		AffectedServices: finding.AffectedServices,
		Metrics:          finding.Metrics,
		Context:          finding.Context,
		Status:           domain.StatusActive,
		EscalationLevel:  1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := m.store.Put(ctx, alert.AlertID, alert); err != nil {
		return domain.Alert{}, false, fmt.Errorf("store alert: %w", err)
	}
	m.setCooldown(finding.DedupKey, now)
	m.router.Route(alert)
	m.log.Info("raise: alert created",
		"alert_id", alert.AlertID, "type", alert.Type, "severity", alert.Severity, "dedup_key", finding.DedupKey)
	return alert, true, nil
}

// mergeFinding folds a duplicate finding into an existing open alert.
// Params: ctx, existing alert with revision, and new finding.
// Returns: merged alert; no notification is triggered by a merge.
func (m *Manager) mergeFinding(ctx context.Context, existing domain.Alert, rev uint64, finding domain.Finding) (domain.Alert, error) {
	if existing.Metrics == nil && len(finding.Metrics) > 0 {
		existing.Metrics = make(map[string]any, len(finding.Metrics))
	}
	for key, value := range finding.Metrics {
		existing.Metrics[key] = value
	}
	if existing.Context == nil {
		existing.Context = make(map[string]any)
	}
	for key, value := range finding.Context {
		existing.Context[key] = value
	}
	existing.Context["last_seen_at"] = m.clk.Now().Format(time.RFC3339)
	existing.UpdatedAt = m.clk.Now()

	if _, err := m.store.Update(ctx, existing.AlertID, rev, existing); err != nil {
		if errors.Is(err, alertstore.ErrConflict) {
			// Lost the race; re-read once and retry through the CAS helper.
			return existing, m.mutate(ctx, existing.AlertID, func(alert *domain.Alert) error {
				for key, value := range finding.Context {
					if alert.Context == nil {
						alert.Context = make(map[string]any)
					}
					alert.Context[key] = value
				}
				return nil
			})
		}
		return domain.Alert{}, fmt.Errorf("merge alert: %w", err)
	}
	return existing, nil
}

// mutate applies one mutation to an alert under CAS retry.
// Params: ctx, alert id, and mutation callback (may reject with policy error).
// Returns: policy or persistence error.
func (m *Manager) mutate(ctx context.Context, alertID string, fn func(*domain.Alert) error) error {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		alert, rev, err := m.store.Get(ctx, alertID)
		if err != nil {
			return err
		}
		if err := fn(&alert); err != nil {
			return err
		}
		alert.UpdatedAt = m.clk.Now()
		if _, err := m.store.Update(ctx, alertID, rev, alert); err != nil {
			if errors.Is(err, alertstore.ErrConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("update alert %q: %w", alertID, lastErr)
}

// Acknowledge transitions one active alert to acknowledged.
// Params: ctx, alert id, acknowledging user identity, and notes.
// Returns: ErrNotActive for non-active alerts or store error.
func (m *Manager) Acknowledge(ctx context.Context, alertID, username, notes string) error {
	return m.mutate(ctx, alertID, func(alert *domain.Alert) error {
		if alert.Status != domain.StatusActive {
			return fmt.Errorf("acknowledge %q in status %s: %w", alertID, alert.Status, ErrNotActive)
		}
		alert.Status = domain.StatusAcknowledged
		alert.AcknowledgedBy = &domain.AcknowledgedBy{
			Username:       username,
			AcknowledgedAt: m.clk.Now(),
			Notes:          notes,
		}
		return nil
	})
}

// Resolve transitions one open alert to resolved.
// Params: ctx, alert id, resolving user, resolution text, and notes.
// Returns: ErrAlreadyResolved for resolved alerts or store error.
func (m *Manager) Resolve(ctx context.Context, alertID, username, resolution, notes string) error {
	return m.resolveAs(ctx, alertID, username, resolution, notes, false)
}

// resolveAs applies the resolution transition for operators and the system.
// Params: resolver identity, resolution text, notes, and auto flag.
// Returns: policy or store error.
func (m *Manager) resolveAs(ctx context.Context, alertID, username, resolution, notes string, auto bool) error {
	return m.mutate(ctx, alertID, func(alert *domain.Alert) error {
		if alert.Status == domain.StatusResolved {
			return fmt.Errorf("resolve %q: %w", alertID, ErrAlreadyResolved)
		}
		now := m.clk.Now()
		alert.Status = domain.StatusResolved
		alert.AutoResolved = auto
		alert.ResolvedBy = &domain.ResolvedBy{
			Username:        username,
			ResolvedAt:      now,
			Resolution:      resolution,
			ResolutionNotes: notes,
		}
		alert.ResolutionTime = now.Sub(alert.CreatedAt)
		if alert.ResolutionTime < 0 {
			alert.ResolutionTime = 0
		}
		return nil
	})
}

// Escalate bumps one open alert by one level and re-notifies.
// Params: ctx, alert id, and escalation reason.
// Returns: ErrEscalationCap at level 3, ErrAlreadyResolved, or store error.
func (m *Manager) Escalate(ctx context.Context, alertID, reason string) error {
	var escalated domain.Alert
	err := m.mutate(ctx, alertID, func(alert *domain.Alert) error {
		if alert.Status == domain.StatusResolved {
			return fmt.Errorf("escalate %q: %w", alertID, ErrAlreadyResolved)
		}
		if alert.EscalationLevel >= domain.MaxEscalationLevel {
			return fmt.Errorf("escalate %q at level %d: %w", alertID, alert.EscalationLevel, ErrEscalationCap)
		}
		alert.EscalationLevel++
		alert.Severity = bumpSeverity(alert.Severity)
		alert.EscalationHistory = append(alert.EscalationHistory, domain.EscalationRecord{
			Level:             alert.EscalationLevel,
			Reason:            reason,
			Timestamp:         m.clk.Now(),
			NotificationsSent: []domain.NotificationRecord{},
		})
		escalated = *alert
		return nil
	})
	if err != nil {
		return err
	}

	m.router.Route(escalated)
	m.log.Info("escalate: alert bumped",
		"alert_id", alertID, "level", escalated.EscalationLevel, "severity", escalated.Severity, "reason", reason)
	return nil
}

// bumpSeverity raises urgency one step, capped at critical.
// Params: current severity.
// Returns: next severity grade.
func bumpSeverity(severity domain.Severity) domain.Severity {
	switch severity {
	case domain.SeverityInfo:
		return domain.SeverityWarning
	default:
		return domain.SeverityCritical
	}
}

// Suppress blocks notifications for one alert until the window elapses.
// Params: ctx, alert id, suppression duration, and reason.
// Returns: ErrAlreadyResolved or store error; status is unchanged.
func (m *Manager) Suppress(ctx context.Context, alertID string, duration time.Duration, reason string) error {
	return m.mutate(ctx, alertID, func(alert *domain.Alert) error {
		if alert.Status == domain.StatusResolved {
			return fmt.Errorf("suppress %q: %w", alertID, ErrAlreadyResolved)
		}
		until := m.clk.Now().Add(duration)
		if until.After(alert.SuppressedUntil) {
			alert.SuppressedUntil = until
		}
		if alert.Context == nil {
			alert.Context = make(map[string]any)
		}
		alert.Context["suppress_reason"] = reason
		return nil
	})
}

// CreateManualAlert creates an operator-authored alert and routes it.
// Params: ctx, severity, title, description, affected services, and author.
// Returns: created alert or validation/store error.
func (m *Manager) CreateManualAlert(ctx context.Context, severity domain.Severity, title, description string, services []string, username string) (domain.Alert, error) {
	now := m.clk.Now()
	alert := domain.Alert{
		AlertID:          uuid.New().String(),
		Type:             domain.AlertTypeManual,
		Severity:         severity,
		Title:            strings.TrimSpace(title),
		Description:      description,
		Source:           evaluate.SourceName,
		AffectedServices: services,
		Context:          map[string]any{"created_by": username},
		Status:           domain.StatusActive,
		EscalationLevel:  1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := alert.Validate(); err != nil {
		return domain.Alert{}, fmt.Errorf("manual alert: %w", err)
	}
	if _, err := m.store.Put(ctx, alert.AlertID, alert); err != nil {
		return domain.Alert{}, fmt.Errorf("store manual alert: %w", err)
	}
	m.router.Route(alert)
	m.log.Info("manual alert created", "alert_id", alert.AlertID, "severity", severity, "created_by", username)
	return alert, nil
}

// EscalationSweep escalates open alerts older than the age threshold.
// Params: ctx context.
// Returns: count escalated; level-3 alerts are skipped, not errors.
func (m *Manager) EscalationSweep(ctx context.Context) (int, error) {
	alerts, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("escalation sweep: %w", err)
	}

	now := m.clk.Now()
	ageLimit := m.currentThresholds().EscalationAge()
	escalated := 0
	for _, alert := range alerts {
		if !alert.Open() {
			continue
		}
		if now.Sub(alert.CreatedAt) <= ageLimit {
			continue
		}
		if alert.EscalationLevel >= domain.MaxEscalationLevel {
			continue
		}
		if err := m.Escalate(ctx, alert.AlertID, fmt.Sprintf("unhandled for more than %s", ageLimit)); err != nil {
			m.log.Error("escalation sweep: escalate", "alert_id", alert.AlertID, "error", err)
			continue
		}
		escalated++
	}
	return escalated, nil
}

// CheckMetrics runs one delivery-metrics evaluation pass.
// Params: ctx context.
// Returns: raise errors are logged per-finding; fetch failure raises a
// system degradation alert instead of propagating.
func (m *Manager) CheckMetrics(ctx context.Context) error {
	thresholds := m.currentThresholds()
	metrics, err := m.provider.DeliveryMetrics(ctx, m.window)
	if err != nil {
		m.log.Error("metrics check: fetch delivery metrics", "error", err)
		m.raiseAll(ctx, []domain.Finding{evaluate.DegradedMonitoring("delivery_metrics", err)})
		return nil
	}

	findings := evaluate.EvaluateDelivery(metrics, thresholds)
	if analysis, err := m.provider.FailureAnalysis(ctx, m.window); err == nil && len(analysis.Breakdown) > 0 {
		for i := range findings {
			if findings[i].Context == nil {
				findings[i].Context = make(map[string]any)
			}
			findings[i].Context["failure_breakdown"] = analysis.Breakdown
		}
	}
	m.raiseAll(ctx, findings)

	if err := m.AutoResolveSweep(ctx); err != nil {
		m.log.Error("metrics check: auto-resolve sweep", "error", err)
	}
	return nil
}

// CheckServiceHealth runs one service-configuration evaluation pass.
// Params: ctx context.
// Returns: nil; fetch failure raises a system degradation alert.
func (m *Manager) CheckServiceHealth(ctx context.Context) error {
	services, err := m.provider.ServiceConfigurations(ctx)
	if err != nil {
		m.log.Error("health check: fetch service configurations", "error", err)
		m.raiseAll(ctx, []domain.Finding{evaluate.DegradedMonitoring("service_configurations", err)})
		return nil
	}
	m.raiseAll(ctx, evaluate.EvaluateServices(services, m.currentThresholds(), m.clk.Now()))
	return nil
}

// raiseAll raises findings with per-item failure isolation.
// Params: ctx and finding list.
// Returns: none; raise errors are logged.
func (m *Manager) raiseAll(ctx context.Context, findings []domain.Finding) {
	for _, finding := range findings {
		if _, _, err := m.Raise(ctx, finding); err != nil {
			m.log.Error("raise finding", "dedup_key", finding.DedupKey, "error", err)
		}
	}
}

// AutoResolveSweep resolves active alerts whose condition has recovered.
// Params: ctx context.
// Returns: store list error; per-alert failures are logged.
func (m *Manager) AutoResolveSweep(ctx context.Context) error {
	alerts, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("auto-resolve sweep: %w", err)
	}

	thresholds := m.currentThresholds()
	var metrics domain.DeliveryMetrics
	var metricsErr error
	metricsLoaded := false
	loadMetrics := func() (domain.DeliveryMetrics, error) {
		if !metricsLoaded {
			metrics, metricsErr = m.provider.DeliveryMetrics(ctx, m.window)
			metricsLoaded = true
		}
		return metrics, metricsErr
	}

	var services []domain.ServiceConfiguration
	var servicesErr error
	servicesLoaded := false
	loadServices := func() ([]domain.ServiceConfiguration, error) {
		if !servicesLoaded {
			services, servicesErr = m.provider.ServiceConfigurations(ctx)
			servicesLoaded = true
		}
		return services, servicesErr
	}

	for _, alert := range alerts {
		if alert.Status != domain.StatusActive {
			continue
		}
		resolution, recovered := m.recovered(ctx, alert, thresholds, loadMetrics, loadServices)
		if !recovered {
			continue
		}
		if err := m.resolveAs(ctx, alert.AlertID, domain.AutoResolveUsername, resolution, "", true); err != nil {
			m.log.Error("auto-resolve", "alert_id", alert.AlertID, "error", err)
			continue
		}
		m.log.Info("auto-resolved alert", "alert_id", alert.AlertID, "type", alert.Type, "resolution", resolution)
	}
	return nil
}

// recovered decides whether one alert's underlying condition has cleared.
// Params: alert, thresholds, and lazy metric/service loaders.
// Returns: human-readable resolution text and recovery flag.
func (m *Manager) recovered(ctx context.Context, alert domain.Alert, thresholds config.ThresholdsConfig,
	loadMetrics func() (domain.DeliveryMetrics, error),
	loadServices func() ([]domain.ServiceConfiguration, error)) (string, bool) {

	switch alert.Type {
	case domain.AlertTypeDeliveryFailureRate:
		metrics, err := loadMetrics()
		if err != nil {
			return "", false
		}
		rate := metrics.FailureRate()
		if metrics.TotalAttempts > 0 && rate < thresholds.ResolveFailureRate {
			return fmt.Sprintf("failure rate recovered to %.1f%%, below %.1f%%", rate, thresholds.ResolveFailureRate), true
		}

	case domain.AlertTypeNoDeliveries:
		metrics, err := loadMetrics()
		if err != nil {
			return "", false
		}
		if metrics.SuccessfulAttempts > 0 {
			return "successful deliveries observed again", true
		}
		recent := time.Duration(thresholds.ResolveRecentSuccessMin) * time.Minute
		if !metrics.LastSuccessAt.IsZero() && m.clk.Now().Sub(metrics.LastSuccessAt) < recent {
			return "recent successful delivery observed", true
		}

	case domain.AlertTypeServiceUnavailable:
		if len(alert.AffectedServices) == 0 {
			services, err := loadServices()
			if err != nil {
				return "", false
			}
			operational := 0
			for _, svc := range services {
				if svc.Operational() {
					operational++
				}
			}
			if operational >= thresholds.MinActiveServices {
				return fmt.Sprintf("%d services operational again", operational), true
			}
			return "", false
		}
		metrics, err := loadMetrics()
		if err != nil {
			return "", false
		}
		name := alert.AffectedServices[0]
		svc, ok := metrics.Service(name)
		if ok && svc.TotalAttempts > 0 {
			rate := float64(svc.FailedAttempts) / float64(svc.TotalAttempts) * 100
			if rate < thresholds.ResolveFailureRate {
				return fmt.Sprintf("service %s failure rate recovered to %.1f%%", name, rate), true
			}
			return "", false
		}
		if m.serviceHealthyAndValid(ctx, name, loadServices) {
			return fmt.Sprintf("service %s reports healthy and valid", name), true
		}

	case domain.AlertTypeHighErrorCount:
		if len(alert.AffectedServices) == 0 {
			return "", false
		}
		services, err := loadServices()
		if err != nil {
			return "", false
		}
		for _, svc := range services {
			if strings.EqualFold(svc.ServiceName, alert.AffectedServices[0]) {
				if svc.ErrorCount < thresholds.CriticalErrorCount {
					return fmt.Sprintf("error count down to %d", svc.ErrorCount), true
				}
				return "", false
			}
		}

	case domain.AlertTypeConfigurationInvalid:
		if len(alert.AffectedServices) == 0 {
			return "", false
		}
		name := alert.AffectedServices[0]
		if m.serviceHealthyAndValid(ctx, name, loadServices) {
			return fmt.Sprintf("service %s configuration valid again", name), true
		}

	case domain.AlertTypeSystemDegradation:
		if _, err := loadMetrics(); err == nil {
			return "metrics pipeline reachable again", true
		}
	}
	return "", false
}

// serviceHealthyAndValid checks one service record for full recovery.
// Params: service name and lazy service loader.
// Returns: true when the record is healthy with fresh valid configuration.
func (m *Manager) serviceHealthyAndValid(_ context.Context, name string, loadServices func() ([]domain.ServiceConfiguration, error)) bool {
	services, err := loadServices()
	if err != nil {
		return false
	}
	staleAfter := time.Duration(m.currentThresholds().StaleValidationMin) * time.Minute
	for _, svc := range services {
		if !strings.EqualFold(svc.ServiceName, name) {
			continue
		}
		if !svc.Operational() || svc.Validation != domain.ValidationValid {
			return false
		}
		if svc.LastValidated.IsZero() || m.clk.Now().Sub(svc.LastValidated) > staleAfter {
			return false
		}
		return true
	}
	return false
}

// Cleanup removes resolved alerts past the retention limit when enabled.
// Params: ctx context.
// Returns: deleted count; a disabled policy is an explicit no-op.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if !m.retention.CleanupEnabled {
		m.log.Debug("cleanup: retention disabled, skipping")
		return 0, nil
	}

	alerts, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	cutoff := m.clk.Now().Add(-time.Duration(m.retention.MaxAgeHours) * time.Hour)
	deleted := 0
	for _, alert := range alerts {
		if alert.Status != domain.StatusResolved {
			continue
		}
		resolvedAt := alert.UpdatedAt
		if alert.ResolvedBy != nil {
			resolvedAt = alert.ResolvedBy.ResolvedAt
		}
		if resolvedAt.After(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, alert.AlertID); err != nil {
			m.log.Error("cleanup: delete alert", "alert_id", alert.AlertID, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
