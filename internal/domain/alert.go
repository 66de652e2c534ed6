package domain

import (
	"errors"
	"strings"
	"time"
)

// AlertType classifies tracked abnormal conditions.
// Params: condition category constants.
// Returns: classification used for dedup and auto-resolution policy.
type AlertType string

const (
	// AlertTypeDeliveryFailureRate marks overall failure-rate breach.
	AlertTypeDeliveryFailureRate AlertType = "delivery_failure_rate"
	// AlertTypeServiceUnavailable marks one delivery service failing above budget.
	AlertTypeServiceUnavailable AlertType = "service_unavailable"
	// AlertTypeNoDeliveries marks a window with attempts and zero successes.
	AlertTypeNoDeliveries AlertType = "no_deliveries"
	// AlertTypeHighErrorCount marks per-service error count breach.
	AlertTypeHighErrorCount AlertType = "high_error_count"
	// AlertTypeConfigurationInvalid marks invalid or stale service configuration.
	AlertTypeConfigurationInvalid AlertType = "configuration_invalid"
	// AlertTypeSystemDegradation marks monitoring-path failures (metrics fetch broken).
	AlertTypeSystemDegradation AlertType = "system_degradation"
	// AlertTypeUserEscalation marks operator-raised user-impact alerts.
	AlertTypeUserEscalation AlertType = "user_escalation"
	// AlertTypeManual marks alerts created by hand through the admin surface.
	AlertTypeManual AlertType = "manual"
)

// Severity is alert urgency grade.
// Params: critical/warning/info constants.
// Returns: routing and rendering severity.
type Severity string

const (
	// SeverityCritical requires immediate multi-channel notification.
	SeverityCritical Severity = "critical"
	// SeverityWarning allows delayed notification.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// AlertStatus is runtime alert lifecycle state.
// Params: active/acknowledged/resolved state constants.
// Returns: state transitions for lifecycle operations.
type AlertStatus string

const (
	// StatusActive indicates unhandled alert.
	StatusActive AlertStatus = "active"
	// StatusAcknowledged indicates an operator has seen the alert.
	StatusAcknowledged AlertStatus = "acknowledged"
	// StatusResolved indicates alert was closed by operator or auto-resolution.
	StatusResolved AlertStatus = "resolved"
)

// MaxEscalationLevel caps escalation bumps per alert.
const MaxEscalationLevel = 3

// AutoResolveUsername is the system sentinel recorded for non-operator resolution.
const AutoResolveUsername = "system"

// NotificationRecord stores one per-channel delivery outcome on the alert.
// Params: channel/recipient pair and transport result.
// Returns: persisted delivery history entry.
type NotificationRecord struct {
	Channel           string    `json:"channel"`
	Recipient         string    `json:"recipient"`
	Success           bool      `json:"success"`
	Error             string    `json:"error,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// EscalationRecord stores one escalation history entry.
// Params: new level, reason, and notifications emitted by the escalation pass.
// Returns: ordered escalation audit entry.
type EscalationRecord struct {
	Level             int                  `json:"level"`
	Reason            string               `json:"reason"`
	Timestamp         time.Time            `json:"timestamp"`
	NotificationsSent []NotificationRecord `json:"notifications_sent"`
}

// ResolvedBy records the resolving actor and resolution detail.
// Params: operator identity or system sentinel with resolution text.
// Returns: persisted resolution metadata.
type ResolvedBy struct {
	Username        string    `json:"username"`
	ResolvedAt      time.Time `json:"resolved_at"`
	Resolution      string    `json:"resolution"`
	ResolutionNotes string    `json:"resolution_notes,omitempty"`
}

// AcknowledgedBy records the acknowledging operator.
// Params: operator identity and optional notes.
// Returns: persisted acknowledgement metadata.
type AcknowledgedBy struct {
	Username       string    `json:"username"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
	Notes          string    `json:"notes,omitempty"`
}

// Alert is the persisted unit of one tracked abnormal condition.
// Params: classification, descriptive, quantitative, and lifecycle fields.
// Returns: store document and notification rendering source.
type Alert struct {
	AlertID           string               `json:"alert_id"`
	Type              AlertType            `json:"type"`
	Severity          Severity             `json:"severity"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	Source            string               `json:"source"`
	AffectedServices  []string             `json:"affected_services,omitempty"`
	AffectedUsers     []string             `json:"affected_users,omitempty"`
	Metrics           map[string]any       `json:"metrics,omitempty"`
	Context           map[string]any       `json:"context,omitempty"`
	Status            AlertStatus          `json:"status"`
	EscalationLevel   int                  `json:"escalation_level"`
	EscalationHistory []EscalationRecord   `json:"escalation_history,omitempty"`
	NotificationsSent []NotificationRecord `json:"notifications_sent,omitempty"`
	AutoResolved      bool                 `json:"auto_resolved"`
	ResolvedBy        *ResolvedBy          `json:"resolved_by,omitempty"`
	AcknowledgedBy    *AcknowledgedBy      `json:"acknowledged_by,omitempty"`
	SuppressedUntil   time.Time            `json:"suppressed_until,omitempty"`
	ResolutionTime    time.Duration        `json:"resolution_time,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Open reports whether the alert still blocks new alerts with the same dedup key.
// Params: none.
// Returns: true for active or acknowledged status.
func (a Alert) Open() bool {
	return a.Status == StatusActive || a.Status == StatusAcknowledged
}

// SuppressedAt reports whether notifications are suppressed at the given time.
// Params: evaluation timestamp.
// Returns: true while the suppression window is open.
func (a Alert) SuppressedAt(now time.Time) bool {
	return !a.SuppressedUntil.IsZero() && now.Before(a.SuppressedUntil)
}

// SharesService reports whether any affected service overlaps the given set.
// Params: candidate service names.
// Returns: true when at least one name matches; empty sets never overlap.
func (a Alert) SharesService(services []string) bool {
	if len(a.AffectedServices) == 0 || len(services) == 0 {
		return false
	}
	for _, mine := range a.AffectedServices {
		for _, theirs := range services {
			if strings.EqualFold(strings.TrimSpace(mine), strings.TrimSpace(theirs)) {
				return true
			}
		}
	}
	return false
}

// Validate validates one alert document against the contract.
// Params: alert fields from store or manual creation.
// Returns: validation error when the document is inconsistent.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.AlertID) == "" {
		return errors.New("alert_id is required")
	}
	switch a.Severity {
	case SeverityCritical, SeverityWarning, SeverityInfo:
	default:
		return errors.New("unsupported severity")
	}
	switch a.Status {
	case StatusActive, StatusAcknowledged, StatusResolved:
	default:
		return errors.New("unsupported status")
	}
	if strings.TrimSpace(string(a.Type)) == "" {
		return errors.New("type is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("title is required")
	}
	if a.EscalationLevel < 1 || a.EscalationLevel > MaxEscalationLevel {
		return errors.New("escalation_level out of range")
	}
	return nil
}

// Finding is one transient alert-worthy condition reported by evaluation.
// Params: classification, descriptive payload, and stable dedup key.
// Returns: raise input for the lifecycle manager; never persisted itself.
type Finding struct {
	Type             AlertType
	Severity         Severity
	Title            string
	Description      string
	Source           string
	AffectedServices []string
	Metrics          map[string]any
	Context          map[string]any
	DedupKey         string
}
