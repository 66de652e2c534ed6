package domain

import "time"

// ServiceDeliveryMetrics is one per-service aggregate inside a snapshot.
// Params: counters and derived success rate for one delivery service.
// Returns: per-service evaluation input.
type ServiceDeliveryMetrics struct {
	ServiceName         string  `json:"service_name"`
	TotalAttempts       int64   `json:"total_attempts"`
	SuccessfulAttempts  int64   `json:"successful_attempts"`
	FailedAttempts      int64   `json:"failed_attempts"`
	SuccessRate         float64 `json:"success_rate"`
	AverageDeliveryTime float64 `json:"average_delivery_time"`
}

// DeliveryMetrics is one point-in-time snapshot over a lookback window.
// Params: overall counters plus per-service breakdown.
// Returns: threshold evaluation input.
type DeliveryMetrics struct {
	TotalAttempts       int64                    `json:"total_attempts"`
	SuccessfulAttempts  int64                    `json:"successful_attempts"`
	FailedAttempts      int64                    `json:"failed_attempts"`
	AverageDeliveryTime float64                  `json:"average_delivery_time"`
	WindowHours         int                      `json:"window_hours"`
	LastSuccessAt       time.Time                `json:"last_success_at,omitempty"`
	Services            []ServiceDeliveryMetrics `json:"services,omitempty"`
}

// FailureRate computes overall failure percentage.
// Params: none.
// Returns: failed/total*100, or 0 when the window has no attempts.
func (m DeliveryMetrics) FailureRate() float64 {
	if m.TotalAttempts <= 0 {
		return 0
	}
	return float64(m.FailedAttempts) / float64(m.TotalAttempts) * 100
}

// Service finds one per-service aggregate by name.
// Params: service name.
// Returns: aggregate and presence flag.
func (m DeliveryMetrics) Service(name string) (ServiceDeliveryMetrics, bool) {
	for _, svc := range m.Services {
		if svc.ServiceName == name {
			return svc, true
		}
	}
	return ServiceDeliveryMetrics{}, false
}

// FailureBreakdown is one error-type bucket of the failure analysis.
// Params: service/error grouping with count, share, and samples.
// Returns: per-bucket failure detail.
type FailureBreakdown struct {
	Service    string   `json:"service"`
	ErrorType  string   `json:"error_type"`
	Count      int64    `json:"count"`
	Percentage float64  `json:"percentage"`
	Examples   []string `json:"examples,omitempty"`
}

// FailureAnalysis groups window failures by service and error type.
// Params: breakdown buckets from the metrics source.
// Returns: supporting context attached to raised alerts.
type FailureAnalysis struct {
	Breakdown []FailureBreakdown `json:"breakdown"`
}

// ServiceHealth is operational health grade of one configured service.
type ServiceHealth string

const (
	// ServiceHealthy indicates a fully operational service.
	ServiceHealthy ServiceHealth = "healthy"
	// ServiceDegraded indicates elevated errors or latency.
	ServiceDegraded ServiceHealth = "degraded"
	// ServiceDown indicates the service is unusable.
	ServiceDown ServiceHealth = "down"
)

// ValidationStatus is configuration validation state of one service.
type ValidationStatus string

const (
	// ValidationValid marks configuration verified good.
	ValidationValid ValidationStatus = "valid"
	// ValidationInvalid marks configuration verified broken.
	ValidationInvalid ValidationStatus = "invalid"
	// ValidationPending marks configuration awaiting first validation.
	ValidationPending ValidationStatus = "pending"
	// ValidationUnknown marks configuration never validated.
	ValidationUnknown ValidationStatus = "unknown"
)

// ServiceConfiguration is one external per-service operational record.
// Params: enablement, role, capabilities, health/validation state, and rolling metrics.
// Returns: read-only health-check evaluation input; mutation is owned elsewhere.
type ServiceConfiguration struct {
	ServiceName         string           `json:"service_name"`
	Enabled             bool             `json:"enabled"`
	Role                string           `json:"role,omitempty"`
	Priority            int              `json:"priority,omitempty"`
	Capabilities        []string         `json:"capabilities,omitempty"`
	Health              ServiceHealth    `json:"health"`
	Validation          ValidationStatus `json:"validation"`
	LastValidated       time.Time        `json:"last_validated,omitempty"`
	ErrorCount          int64            `json:"error_count"`
	LastError           string           `json:"last_error,omitempty"`
	TotalRequests       int64            `json:"total_requests"`
	SuccessfulRequests  int64            `json:"successful_requests"`
	FailedRequests      int64            `json:"failed_requests"`
	AverageResponseTime float64          `json:"average_response_time"`
}

// Operational reports whether the service counts toward healthy capacity.
// Params: none.
// Returns: true for enabled services reporting healthy state.
func (s ServiceConfiguration) Operational() bool {
	return s.Enabled && s.Health == ServiceHealthy
}
