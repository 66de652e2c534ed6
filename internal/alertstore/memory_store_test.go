package alertstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"alertcore/internal/domain"
)

func TestMemoryStoreAlertLifecycle(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	alert := domain.Alert{
		AlertID:  "a-1",
		Type:     domain.AlertTypeDeliveryFailureRate,
		Severity: domain.SeverityCritical,
		Title:    "Delivery failure rate 80.0%",
		Status:   domain.StatusActive,
	}
	rev, err := store.Put(ctx, alert.AlertID, alert)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if rev != 1 {
		t.Fatalf("unexpected revision %d", rev)
	}

	got, gotRev, err := store.Get(ctx, alert.AlertID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != alert.Title || gotRev != rev {
		t.Fatalf("unexpected alert %+v rev %d", got, gotRev)
	}

	got.Status = domain.StatusAcknowledged
	newRev, err := store.Update(ctx, alert.AlertID, gotRev, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if newRev != gotRev+1 {
		t.Fatalf("unexpected revision %d", newRev)
	}

	if _, err := store.Update(ctx, alert.AlertID, gotRev, got); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := store.Update(ctx, "missing", 1, got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Delete(ctx, alert.AlertID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Get(ctx, alert.AlertID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

// seedAlert stores one alert and fails the test on error.
// Params: t handle, store, and alert payload.
// Returns: none.
func seedAlert(t *testing.T, store Store, alert domain.Alert) {
	t.Helper()
	if _, err := store.Put(context.Background(), alert.AlertID, alert); err != nil {
		t.Fatalf("seed alert %q: %v", alert.AlertID, err)
	}
}

func TestFindOpenMatchByServiceOverlap(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	seedAlert(t, store, domain.Alert{
		AlertID:          "open",
		Type:             domain.AlertTypeServiceUnavailable,
		Status:           domain.StatusAcknowledged,
		AffectedServices: []string{"smtp-main"},
	})
	seedAlert(t, store, domain.Alert{
		AlertID:          "closed",
		Type:             domain.AlertTypeServiceUnavailable,
		Status:           domain.StatusResolved,
		AffectedServices: []string{"smtp-main"},
	})

	alert, rev, err := FindOpenMatch(context.Background(), store, domain.AlertTypeServiceUnavailable, []string{"SMTP-MAIN"})
	if err != nil {
		t.Fatalf("find open match: %v", err)
	}
	if alert.AlertID != "open" || rev == 0 {
		t.Fatalf("unexpected match %+v rev %d", alert, rev)
	}

	if _, _, err := FindOpenMatch(context.Background(), store, domain.AlertTypeServiceUnavailable, []string{"smtp-backup"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-overlapping service, got %v", err)
	}
}

func TestFindOpenMatchUnscopedFindings(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	seedAlert(t, store, domain.Alert{
		AlertID:          "scoped",
		Type:             domain.AlertTypeDeliveryFailureRate,
		Status:           domain.StatusActive,
		AffectedServices: []string{"smtp-main"},
	})
	seedAlert(t, store, domain.Alert{
		AlertID: "unscoped",
		Type:    domain.AlertTypeDeliveryFailureRate,
		Status:  domain.StatusActive,
	})

	alert, _, err := FindOpenMatch(context.Background(), store, domain.AlertTypeDeliveryFailureRate, nil)
	if err != nil {
		t.Fatalf("find open match: %v", err)
	}
	if alert.AlertID != "unscoped" {
		t.Fatalf("expected unscoped alert, got %q", alert.AlertID)
	}
}

func TestActiveAlertsSeverityFilterAndOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	seedAlert(t, store, domain.Alert{AlertID: "w-old", Severity: domain.SeverityWarning, Status: domain.StatusActive, CreatedAt: base})
	seedAlert(t, store, domain.Alert{AlertID: "w-new", Severity: domain.SeverityWarning, Status: domain.StatusActive, CreatedAt: base.Add(time.Hour)})
	seedAlert(t, store, domain.Alert{AlertID: "c-1", Severity: domain.SeverityCritical, Status: domain.StatusActive, CreatedAt: base})
	seedAlert(t, store, domain.Alert{AlertID: "w-done", Severity: domain.SeverityWarning, Status: domain.StatusResolved, CreatedAt: base})

	alerts, err := ActiveAlerts(context.Background(), store, domain.SeverityWarning)
	if err != nil {
		t.Fatalf("active alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 warning alerts, got %d", len(alerts))
	}
	if alerts[0].AlertID != "w-new" || alerts[1].AlertID != "w-old" {
		t.Fatalf("unexpected order %q %q", alerts[0].AlertID, alerts[1].AlertID)
	}

	all, err := ActiveAlerts(context.Background(), store, "")
	if err != nil {
		t.Fatalf("active alerts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 open alerts, got %d", len(all))
	}
}

func TestAlertsByTypeWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	seedAlert(t, store, domain.Alert{AlertID: "in", Type: domain.AlertTypeNoDeliveries, CreatedAt: base})
	seedAlert(t, store, domain.Alert{AlertID: "before", Type: domain.AlertTypeNoDeliveries, CreatedAt: base.Add(-2 * time.Hour)})
	seedAlert(t, store, domain.Alert{AlertID: "other", Type: domain.AlertTypeManual, CreatedAt: base})

	alerts, err := AlertsByType(context.Background(), store, domain.AlertTypeNoDeliveries, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("alerts by type: %v", err)
	}
	if len(alerts) != 1 || alerts[0].AlertID != "in" {
		t.Fatalf("unexpected result %+v", alerts)
	}
}

func TestSummarizeCountsAndResolutionTime(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	seedAlert(t, store, domain.Alert{AlertID: "a", Severity: domain.SeverityCritical, Status: domain.StatusActive})
	seedAlert(t, store, domain.Alert{AlertID: "b", Severity: domain.SeverityWarning, Status: domain.StatusResolved, ResolutionTime: 10 * time.Minute})
	seedAlert(t, store, domain.Alert{AlertID: "c", Severity: domain.SeverityWarning, Status: domain.StatusResolved, ResolutionTime: 30 * time.Minute})

	summary, err := Summarize(context.Background(), store)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Total != 3 {
		t.Fatalf("unexpected total %d", summary.Total)
	}
	if summary.BySeverity[domain.SeverityWarning] != 2 || summary.ByStatus[domain.StatusResolved] != 2 {
		t.Fatalf("unexpected grouping %+v", summary)
	}
	if summary.AverageResolutionTime != 20*time.Minute {
		t.Fatalf("unexpected average resolution %v", summary.AverageResolutionTime)
	}
}

func TestNotificationSummary(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	seedAlert(t, store, domain.Alert{
		AlertID: "a",
		NotificationsSent: []domain.NotificationRecord{
			{Channel: "email", Success: true},
			{Channel: "sms", Success: false, Error: "gateway timeout"},
			{Channel: "email", Success: true},
		},
	})

	stats, err := NotificationSummary(context.Background(), store)
	if err != nil {
		t.Fatalf("notification summary: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ByChannel["email"] != 2 {
		t.Fatalf("unexpected channel counts %+v", stats.ByChannel)
	}
}
