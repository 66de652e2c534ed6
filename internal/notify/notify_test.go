package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"alertcore/internal/alertstore"
	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// fakeSender records send calls and returns a configured error.
// Params: channel name, error to return, and call log.
// Returns: test double for ChannelSender.
type fakeSender struct {
	channel string
	err     error
	result  SendResult
	calls   []string
}

func (f *fakeSender) Channel() string {
	return f.channel
}

func (f *fakeSender) Send(_ context.Context, recipient string, _ domain.Alert) (SendResult, error) {
	f.calls = append(f.calls, recipient)
	if f.err != nil {
		return SendResult{}, f.err
	}
	return f.result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{
		Routing: config.RoutingConfig{
			RetryDelayMin: 5,
			Critical:      config.SeverityRoute{Channels: []string{"email", "sms", "chat"}, Immediate: true, MaxRetries: 3},
			Warning:       config.SeverityRoute{Channels: []string{"email", "chat"}, DelayMin: 5, MaxRetries: 2},
			Info:          config.SeverityRoute{Channels: []string{"email"}, DelayMin: 15, MaxRetries: 1},
		},
		Contacts: config.ContactsConfig{
			Emails:  []string{"ops@example.org"},
			Phones:  []string{"+15550100"},
			ChatIDs: []string{"-100200300"},
		},
	}
}

func TestQueuePopDueKeepsFutureJobs(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	queue := NewQueue()
	queue.Push(Job{AlertID: "due-1", ScheduledFor: now.Add(-time.Minute)})
	queue.Push(Job{AlertID: "future", ScheduledFor: now.Add(time.Minute)})
	queue.Push(Job{AlertID: "due-2", ScheduledFor: now})

	due := queue.PopDue(now)
	if len(due) != 2 || due[0].AlertID != "due-1" || due[1].AlertID != "due-2" {
		t.Fatalf("unexpected due jobs %+v", due)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected 1 remaining job, got %d", queue.Len())
	}
}

func TestRouterCriticalImmediateTriggersDrain(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	queue := NewQueue()
	kicked := false
	router := NewRouter(testNotifyConfig().Routing, queue, clock.FixedClock{At: now}, func() { kicked = true })

	job, ok := router.Route(domain.Alert{AlertID: "a-1", Severity: domain.SeverityCritical, Status: domain.StatusActive})
	if !ok {
		t.Fatalf("expected job to be enqueued")
	}
	if !job.ScheduledFor.Equal(now) {
		t.Fatalf("critical job must be due immediately, got %v", job.ScheduledFor)
	}
	if job.Rule.MaxRetries != 3 || len(job.Rule.Channels) != 3 {
		t.Fatalf("unexpected rule %+v", job.Rule)
	}
	if !kicked {
		t.Fatalf("critical route must trigger immediate drain")
	}
	if queue.Len() != 1 {
		t.Fatalf("expected 1 queued job, got %d", queue.Len())
	}
}

func TestRouterWarningDelayed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	queue := NewQueue()
	router := NewRouter(testNotifyConfig().Routing, queue, clock.FixedClock{At: now}, func() {
		t.Errorf("warning route must not trigger drain")
	})

	job, ok := router.Route(domain.Alert{AlertID: "a-1", Severity: domain.SeverityWarning, Status: domain.StatusActive})
	if !ok {
		t.Fatalf("expected job to be enqueued")
	}
	if !job.ScheduledFor.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected scheduled time %v", job.ScheduledFor)
	}
}

func TestRouterDropsSuppressedAlert(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	queue := NewQueue()
	router := NewRouter(testNotifyConfig().Routing, queue, clock.FixedClock{At: now}, nil)

	_, ok := router.Route(domain.Alert{
		AlertID:         "a-1",
		Severity:        domain.SeverityCritical,
		Status:          domain.StatusActive,
		SuppressedUntil: now.Add(time.Hour),
	})
	if ok || queue.Len() != 0 {
		t.Fatalf("suppressed alert must not be enqueued")
	}
}

// newTestDispatcher wires a dispatcher over a memory store and fake senders.
// Params: t handle, sender doubles, and clock.
// Returns: dispatcher, queue, and store.
func newTestDispatcher(t *testing.T, senders map[string]ChannelSender, clk clock.Clock) (*Dispatcher, *Queue, *alertstore.MemoryStore) {
	t.Helper()
	store := alertstore.NewMemoryStore()
	queue := NewQueue()
	dispatcher := NewDispatcher(store, queue, senders, testNotifyConfig(), clk, testLogger())
	return dispatcher, queue, store
}

// seedActiveAlert stores one active alert for dispatch tests.
// Params: t handle, store, and alert id.
// Returns: stored alert.
func seedActiveAlert(t *testing.T, store alertstore.Store, alertID string) domain.Alert {
	t.Helper()
	alert := domain.Alert{
		AlertID:         alertID,
		Type:            domain.AlertTypeDeliveryFailureRate,
		Severity:        domain.SeverityCritical,
		Title:           "Delivery failure rate 80.0%",
		Status:          domain.StatusActive,
		EscalationLevel: 1,
	}
	if _, err := store.Put(context.Background(), alertID, alert); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	return alert
}

func TestDispatcherRecordsOutcomesPerChannel(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	email := &fakeSender{channel: "email", result: SendResult{ProviderMessageID: "msg-1"}}
	sms := &fakeSender{channel: "sms", err: errors.New("gateway timeout")}
	dispatcher, queue, store := newTestDispatcher(t, map[string]ChannelSender{"email": email, "sms": sms}, clock.FixedClock{At: now})
	seedActiveAlert(t, store, "a-1")

	queue.Push(Job{
		AlertID:      "a-1",
		Severity:     domain.SeverityCritical,
		Rule:         Rule{Channels: []string{"email", "sms"}, MaxRetries: 3},
		ScheduledFor: now,
	})
	if got := dispatcher.DrainDue(context.Background()); got != 1 {
		t.Fatalf("expected 1 job processed, got %d", got)
	}

	alert, _, err := store.Get(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if len(alert.NotificationsSent) != 2 {
		t.Fatalf("expected 2 outcome records, got %+v", alert.NotificationsSent)
	}
	byChannel := map[string]domain.NotificationRecord{}
	for _, record := range alert.NotificationsSent {
		byChannel[record.Channel] = record
	}
	if !byChannel["email"].Success || byChannel["email"].ProviderMessageID != "msg-1" {
		t.Fatalf("unexpected email record %+v", byChannel["email"])
	}
	if byChannel["sms"].Success || !strings.Contains(byChannel["sms"].Error, "gateway timeout") {
		t.Fatalf("unexpected sms record %+v", byChannel["sms"])
	}

	// Partial success means delivered: no retry job.
	if queue.Len() != 0 {
		t.Fatalf("partial success must not re-enqueue, queue len %d", queue.Len())
	}
}

func TestDispatcherRetriesWhenAllChannelsFail(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	email := &fakeSender{channel: "email", err: errors.New("smtp down")}
	dispatcher, queue, store := newTestDispatcher(t, map[string]ChannelSender{"email": email}, clock.FixedClock{At: now})
	seedActiveAlert(t, store, "a-1")

	original := Job{
		AlertID:      "a-1",
		Rule:         Rule{Channels: []string{"email"}, MaxRetries: 2},
		Attempts:     0,
		ScheduledFor: now,
	}
	queue.Push(original)
	dispatcher.DrainDue(context.Background())

	if queue.Len() != 1 {
		t.Fatalf("expected retry job, queue len %d", queue.Len())
	}
	retry := queue.PopDue(now.Add(time.Hour))[0]
	if retry.Attempts != 1 {
		t.Fatalf("unexpected attempts %d", retry.Attempts)
	}
	if !retry.ScheduledFor.After(original.ScheduledFor) {
		t.Fatalf("retry must be scheduled strictly later: %v vs %v", retry.ScheduledFor, original.ScheduledFor)
	}
	if !retry.ScheduledFor.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected retry time %v", retry.ScheduledFor)
	}
}

func TestDispatcherStopsAtRetryBudget(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	email := &fakeSender{channel: "email", err: errors.New("smtp down")}
	dispatcher, queue, store := newTestDispatcher(t, map[string]ChannelSender{"email": email}, clock.FixedClock{At: now})
	seedActiveAlert(t, store, "a-1")

	queue.Push(Job{
		AlertID:      "a-1",
		Rule:         Rule{Channels: []string{"email"}, MaxRetries: 2},
		Attempts:     2,
		ScheduledFor: now,
	})
	dispatcher.DrainDue(context.Background())

	if queue.Len() != 0 {
		t.Fatalf("exhausted job must be discarded, queue len %d", queue.Len())
	}
}

func TestDispatcherDiscardsJobForResolvedAlert(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	email := &fakeSender{channel: "email"}
	dispatcher, queue, store := newTestDispatcher(t, map[string]ChannelSender{"email": email}, clock.FixedClock{At: now})

	alert := seedActiveAlert(t, store, "a-1")
	alert.Status = domain.StatusResolved
	if _, err := store.Update(context.Background(), "a-1", 1, alert); err != nil {
		t.Fatalf("resolve alert: %v", err)
	}

	queue.Push(Job{AlertID: "a-1", Rule: Rule{Channels: []string{"email"}, MaxRetries: 1}, ScheduledFor: now})
	dispatcher.DrainDue(context.Background())

	if len(email.calls) != 0 {
		t.Fatalf("resolved alert must not be sent, calls %v", email.calls)
	}
	if queue.Len() != 0 {
		t.Fatalf("job for resolved alert must be discarded")
	}
}

func TestDispatcherRecordsUnconfiguredChannel(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	dispatcher, queue, store := newTestDispatcher(t, map[string]ChannelSender{}, clock.FixedClock{At: now})
	seedActiveAlert(t, store, "a-1")

	queue.Push(Job{AlertID: "a-1", Rule: Rule{Channels: []string{"sms"}, MaxRetries: 0}, ScheduledFor: now})
	dispatcher.DrainDue(context.Background())

	alert, _, err := store.Get(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if len(alert.NotificationsSent) != 1 {
		t.Fatalf("expected 1 outcome record, got %+v", alert.NotificationsSent)
	}
	record := alert.NotificationsSent[0]
	if record.Success || record.Error != "channel not configured" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestDispatcherSetContactsAppliesAtRuntime(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	email := &fakeSender{channel: "email"}
	dispatcher, queue, store := newTestDispatcher(t, map[string]ChannelSender{"email": email}, clock.FixedClock{At: now})
	seedActiveAlert(t, store, "a-1")

	dispatcher.SetContacts(config.ContactsConfig{Emails: []string{"first@example.org", "second@example.org"}})
	queue.Push(Job{AlertID: "a-1", Rule: Rule{Channels: []string{"email"}, MaxRetries: 0}, ScheduledFor: now})
	dispatcher.DrainDue(context.Background())

	if len(email.calls) != 2 || email.calls[0] != "first@example.org" || email.calls[1] != "second@example.org" {
		t.Fatalf("unexpected recipients %v", email.calls)
	}
}

func TestTestNotificationUsesSenderDirectly(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	email := &fakeSender{channel: "email"}
	dispatcher, queue, _ := newTestDispatcher(t, map[string]ChannelSender{"email": email}, clock.FixedClock{At: now})

	if err := dispatcher.TestNotification(context.Background(), "email", "ops@example.org"); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if len(email.calls) != 1 || email.calls[0] != "ops@example.org" {
		t.Fatalf("unexpected calls %v", email.calls)
	}
	if queue.Len() != 0 {
		t.Fatalf("test notification must bypass the queue")
	}

	if err := dispatcher.TestNotification(context.Background(), "pager", "x"); err == nil {
		t.Fatalf("expected unknown channel error")
	}
}
