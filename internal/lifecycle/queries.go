package lifecycle

import (
	"context"
	"time"

	"alertcore/internal/alertstore"
	"alertcore/internal/domain"
)

// ActiveAlerts lists open alerts, optionally filtered by severity.
// Params: ctx context and severity filter (empty matches all).
// Returns: open alerts newest first.
func (m *Manager) ActiveAlerts(ctx context.Context, severity domain.Severity) ([]domain.Alert, error) {
	return alertstore.ActiveAlerts(ctx, m.store, severity)
}

// AlertsByType lists alerts of one type raised within the lookback window.
// Params: ctx context, alert type, and lookback duration (zero = all).
// Returns: matching alerts newest first.
func (m *Manager) AlertsByType(ctx context.Context, alertType domain.AlertType, lookback time.Duration) ([]domain.Alert, error) {
	var since time.Time
	if lookback > 0 {
		since = m.clk.Now().Add(-lookback)
	}
	return alertstore.AlertsByType(ctx, m.store, alertType, since)
}

// MetricsSummary aggregates alert counts by severity and status.
// Params: ctx context.
// Returns: counts and mean resolution time of resolved alerts.
func (m *Manager) MetricsSummary(ctx context.Context) (alertstore.Summary, error) {
	return alertstore.Summarize(ctx, m.store)
}

// NotificationSummary aggregates recorded delivery outcomes per channel.
// Params: ctx context.
// Returns: notification outcome counters.
func (m *Manager) NotificationSummary(ctx context.Context) (alertstore.NotificationStats, error) {
	return alertstore.NotificationSummary(ctx, m.store)
}
