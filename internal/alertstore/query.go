package alertstore

import (
	"context"
	"sort"
	"time"

	"alertcore/internal/domain"
)

// FindOpenMatch finds one active/acknowledged alert matching the dedup tuple.
// Params: store, alert type, and candidate affected services.
// Returns: matching alert with revision, or ErrNotFound.
func FindOpenMatch(ctx context.Context, store Store, alertType domain.AlertType, services []string) (domain.Alert, uint64, error) {
	alerts, err := store.List(ctx)
	if err != nil {
		return domain.Alert{}, 0, err
	}
	for _, alert := range alerts {
		if alert.Type != alertType || !alert.Open() {
			continue
		}
		// Unscoped findings match unscoped alerts of the same type only.
		if len(services) == 0 && len(alert.AffectedServices) == 0 {
			return store.Get(ctx, alert.AlertID)
		}
		if alert.SharesService(services) {
			return store.Get(ctx, alert.AlertID)
		}
	}
	return domain.Alert{}, 0, ErrNotFound
}

// ActiveAlerts lists open alerts, optionally filtered by severity.
// Params: store and severity filter (empty matches all).
// Returns: open alerts newest first.
func ActiveAlerts(ctx context.Context, store Store, severity domain.Severity) ([]domain.Alert, error) {
	alerts, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if !alert.Open() {
			continue
		}
		if severity != "" && alert.Severity != severity {
			continue
		}
		out = append(out, alert)
	}
	sortNewestFirst(out)
	return out, nil
}

// AlertsByType lists alerts of one type created after the cutoff.
// Params: store, alert type, and window start time.
// Returns: matching alerts newest first.
func AlertsByType(ctx context.Context, store Store, alertType domain.AlertType, since time.Time) ([]domain.Alert, error) {
	alerts, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if alert.Type != alertType {
			continue
		}
		if !since.IsZero() && alert.CreatedAt.Before(since) {
			continue
		}
		out = append(out, alert)
	}
	sortNewestFirst(out)
	return out, nil
}

// Summary aggregates alert counts grouped by severity and status.
// Params: severity/status count grids plus average resolution time.
// Returns: dashboard metrics snapshot.
type Summary struct {
	Total                 int                        `json:"total"`
	BySeverity            map[domain.Severity]int    `json:"by_severity"`
	ByStatus              map[domain.AlertStatus]int `json:"by_status"`
	AverageResolutionTime time.Duration              `json:"average_resolution_time"`
}

// Summarize computes the severity/status aggregate over all alerts.
// Params: store.
// Returns: counts and mean resolution time of resolved alerts.
func Summarize(ctx context.Context, store Store) (Summary, error) {
	alerts, err := store.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		BySeverity: make(map[domain.Severity]int),
		ByStatus:   make(map[domain.AlertStatus]int),
	}
	var resolvedTotal time.Duration
	var resolvedCount int
	for _, alert := range alerts {
		summary.Total++
		summary.BySeverity[alert.Severity]++
		summary.ByStatus[alert.Status]++
		if alert.Status == domain.StatusResolved && alert.ResolutionTime > 0 {
			resolvedTotal += alert.ResolutionTime
			resolvedCount++
		}
	}
	if resolvedCount > 0 {
		summary.AverageResolutionTime = resolvedTotal / time.Duration(resolvedCount)
	}
	return summary, nil
}

// NotificationStats aggregates per-channel delivery outcomes.
// Params: outcome counters over all recorded notification attempts.
// Returns: notification health snapshot.
type NotificationStats struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByChannel map[string]int `json:"by_channel"`
}

// NotificationSummary computes delivery outcome counters over all alerts.
// Params: store.
// Returns: aggregated notification stats.
func NotificationSummary(ctx context.Context, store Store) (NotificationStats, error) {
	alerts, err := store.List(ctx)
	if err != nil {
		return NotificationStats{}, err
	}

	stats := NotificationStats{ByChannel: make(map[string]int)}
	for _, alert := range alerts {
		for _, record := range alert.NotificationsSent {
			stats.Total++
			stats.ByChannel[record.Channel]++
			if record.Success {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
		}
	}
	return stats, nil
}

// sortNewestFirst orders alerts by creation time descending.
// Params: mutable alert slice.
// Returns: slice sorted in place.
func sortNewestFirst(alerts []domain.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
}
