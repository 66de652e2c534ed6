package evaluate

import (
	"strings"

	"alertcore/internal/domain"
)

// DedupScopeAll marks findings not scoped to one service.
const DedupScopeAll = "all"

// DedupKey derives the stable merge/cooldown key for one finding.
// Params: alert type and affected service names.
// Returns: "<type>:<primary service>" or "<type>:all" for unscoped findings.
func DedupKey(alertType domain.AlertType, services []string) string {
	scope := DedupScopeAll
	for _, service := range services {
		trimmed := strings.ToLower(strings.TrimSpace(service))
		if trimmed != "" {
			scope = trimmed
			break
		}
	}
	return string(alertType) + ":" + scope
}
