package notify

import (
	"strings"
	"time"

	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/domain"
)

// Router maps alert severity to a scheduling rule and enqueues jobs.
// Params: severity rule table, queue, clock, and critical drain trigger.
// Returns: severity-based job routing behavior.
type Router struct {
	rules map[domain.Severity]Rule
	queue *Queue
	clk   clock.Clock

	// kick triggers an immediate queue drain for critical alerts; may be nil.
	kick func()
}

// NewRouter builds a router from the configured severity table.
// Params: routing config, queue, clock, and optional drain trigger.
// Returns: initialized router.
func NewRouter(cfg config.RoutingConfig, queue *Queue, clk clock.Clock, kick func()) *Router {
	return &Router{
		rules: map[domain.Severity]Rule{
			domain.SeverityCritical: ruleFromConfig(cfg.Critical),
			domain.SeverityWarning:  ruleFromConfig(cfg.Warning),
			domain.SeverityInfo:     ruleFromConfig(cfg.Info),
		},
		queue: queue,
		clk:   clk,
		kick:  kick,
	}
}

// RuleFor returns the frozen scheduling rule for one severity.
// Params: alert severity.
// Returns: rule copy; unknown severities fall back to the info rule.
func (r *Router) RuleFor(severity domain.Severity) Rule {
	rule, ok := r.rules[severity]
	if !ok {
		rule = r.rules[domain.SeverityInfo]
	}
	rule.Channels = append([]string(nil), rule.Channels...)
	return rule
}

// Route builds and enqueues one notification job for an alert.
// Params: alert document.
// Returns: enqueued job and true, or zero job and false when suppressed.
func (r *Router) Route(alert domain.Alert) (Job, bool) {
	now := r.clk.Now()
	if alert.SuppressedAt(now) {
		return Job{}, false
	}

	rule := r.RuleFor(alert.Severity)
	scheduledFor := now
	if !rule.Immediate {
		scheduledFor = now.Add(rule.Delay)
	}

	job := Job{
		AlertID:      alert.AlertID,
		Severity:     alert.Severity,
		Rule:         rule,
		Attempts:     0,
		CreatedAt:    now,
		ScheduledFor: scheduledFor,
	}
	r.queue.Push(job)

	if alert.Severity == domain.SeverityCritical && r.kick != nil {
		r.kick()
	}
	return job, true
}

// ruleFromConfig converts one configured severity route into a frozen rule.
// Params: severity route from config.
// Returns: rule with normalized channel names.
func ruleFromConfig(route config.SeverityRoute) Rule {
	channels := make([]string, 0, len(route.Channels))
	for _, channel := range route.Channels {
		trimmed := strings.ToLower(strings.TrimSpace(channel))
		if trimmed != "" {
			channels = append(channels, trimmed)
		}
	}
	return Rule{
		Channels:   channels,
		Immediate:  route.Immediate,
		Delay:      time.Duration(route.DelayMin) * time.Minute,
		MaxRetries: route.MaxRetries,
	}
}
