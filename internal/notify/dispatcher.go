package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"alertcore/internal/alertstore"
	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/domain"
)

const casAttempts = 3

// Dispatcher drains the job queue and fans jobs out to channel senders.
// Params: store, queue, senders, contacts, retry delay, clock, and logger.
// Returns: notification delivery behavior with outcome recording.
type Dispatcher struct {
	store      alertstore.Store
	queue      *Queue
	senders    map[string]ChannelSender
	retryDelay time.Duration
	clk        clock.Clock
	log        *slog.Logger

	mu       sync.RWMutex
	contacts config.ContactsConfig
}

// NewDispatcher creates a dispatcher over the shared queue and store.
// Params: store, queue, senders, notify config, clock, and logger.
// Returns: initialized dispatcher.
func NewDispatcher(store alertstore.Store, queue *Queue, senders map[string]ChannelSender, cfg config.NotifyConfig, clk clock.Clock, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		queue:      queue,
		senders:    senders,
		retryDelay: time.Duration(cfg.Routing.RetryDelayMin) * time.Minute,
		clk:        clk,
		log:        log,
		contacts:   cfg.Contacts,
	}
}

// SetContacts replaces recipient lists at runtime without restart.
// Params: new contacts snapshot.
// Returns: none.
func (d *Dispatcher) SetContacts(contacts config.ContactsConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = contacts
}

// recipients returns the current recipient list for one channel.
// Params: channel name.
// Returns: recipients copy.
func (d *Dispatcher) recipients(channel string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.contacts.ForChannel(channel)...)
}

// DrainDue dispatches every job due at the current time.
// Params: ctx context.
// Returns: count of jobs processed; per-job failures are logged, not returned.
func (d *Dispatcher) DrainDue(ctx context.Context) int {
	due := d.queue.PopDue(d.clk.Now())
	for _, job := range due {
		d.dispatchJob(ctx, job)
	}
	return len(due)
}

// dispatchJob fans one job out to its channels and records outcomes.
// Params: ctx context and due job.
// Returns: none; retry and discard policy applied internally.
func (d *Dispatcher) dispatchJob(ctx context.Context, job Job) {
	alert, _, err := d.store.Get(ctx, job.AlertID)
	if err != nil {
		d.log.Error("dispatch: load alert", "alert_id", job.AlertID, "error", err)
		return
	}
	if !alert.Open() {
		d.log.Debug("dispatch: alert closed, discarding job", "alert_id", job.AlertID, "status", alert.Status)
		return
	}
	now := d.clk.Now()
	if alert.SuppressedAt(now) {
		d.log.Debug("dispatch: alert suppressed, discarding job", "alert_id", job.AlertID, "until", alert.SuppressedUntil)
		return
	}

	records := d.sendToChannels(ctx, job, alert)
	if len(records) == 0 {
		d.log.Warn("dispatch: no channels produced outcomes", "alert_id", job.AlertID)
		return
	}

	if err := d.recordOutcomes(ctx, job.AlertID, records); err != nil {
		d.log.Error("dispatch: record outcomes", "alert_id", job.AlertID, "error", err)
	}

	anySuccess := false
	for _, record := range records {
		if record.Success {
			anySuccess = true
			break
		}
	}
	if anySuccess {
		return
	}

	if job.Attempts < job.Rule.MaxRetries {
		retry := job
		retry.Attempts++
		retry.ScheduledFor = now.Add(d.retryDelay)
		d.queue.Push(retry)
		d.log.Warn("dispatch: all channels failed, retry scheduled",
			"alert_id", job.AlertID, "attempt", retry.Attempts, "scheduled_for", retry.ScheduledFor)
		return
	}
	d.log.Error("dispatch: retries exhausted", "alert_id", job.AlertID, "attempts", job.Attempts)
}

// sendToChannels calls every channel in the job's rule independently.
// Params: ctx context, job, and loaded alert.
// Returns: one outcome record per channel/recipient pair.
func (d *Dispatcher) sendToChannels(ctx context.Context, job Job, alert domain.Alert) []domain.NotificationRecord {
	var records []domain.NotificationRecord
	now := d.clk.Now()

	for _, channel := range job.Rule.Channels {
		sender, ok := d.senders[channel]
		if !ok {
			records = append(records, domain.NotificationRecord{
				Channel:   channel,
				Success:   false,
				Error:     "channel not configured",
				Timestamp: now,
			})
			continue
		}

		recipients := d.recipients(channel)
		if len(recipients) == 0 {
			records = append(records, domain.NotificationRecord{
				Channel:   channel,
				Success:   false,
				Error:     "no recipients configured",
				Timestamp: now,
			})
			continue
		}

		for _, recipient := range recipients {
			record := domain.NotificationRecord{
				Channel:   channel,
				Recipient: recipient,
				Timestamp: d.clk.Now(),
			}
			result, err := sender.Send(ctx, recipient, alert)
			if err != nil {
				record.Error = err.Error()
				d.log.Warn("dispatch: channel send failed",
					"alert_id", alert.AlertID, "channel", channel, "recipient", recipient, "error", err)
			} else {
				record.Success = true
				record.ProviderMessageID = result.ProviderMessageID
			}
			records = append(records, record)
		}
	}
	return records
}

// recordOutcomes appends delivery records to the alert with CAS retry.
// Params: ctx context, alert id, and outcome records.
// Returns: persistence error after retry budget.
func (d *Dispatcher) recordOutcomes(ctx context.Context, alertID string, records []domain.NotificationRecord) error {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		alert, rev, err := d.store.Get(ctx, alertID)
		if err != nil {
			return err
		}
		alert.NotificationsSent = append(alert.NotificationsSent, records...)
		alert.UpdatedAt = d.clk.Now()
		if _, err := d.store.Update(ctx, alertID, rev, alert); err != nil {
			if errors.Is(err, alertstore.ErrConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("record outcomes: %w", lastErr)
}

// TestNotification sends a synthetic alert over one channel directly.
// Params: ctx context, channel name, and recipient address.
// Returns: send error; bypasses queue and outcome recording.
func (d *Dispatcher) TestNotification(ctx context.Context, channel, recipient string) error {
	sender, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("channel %q is not configured", channel)
	}

	now := d.clk.Now()
	alert := domain.Alert{
		AlertID:     "test-" + now.Format("20060102150405"),
		Type:        domain.AlertTypeManual,
		Severity:    domain.SeverityInfo,
		Title:       "Test notification",
		Description: "This is a test notification; no action required.",
		Source:      "alertcore",
		Status:      domain.StatusActive,
		CreatedAt:   now,
	}
	if _, err := sender.Send(ctx, recipient, alert); err != nil {
		return fmt.Errorf("test notification via %s: %w", channel, err)
	}
	return nil
}
