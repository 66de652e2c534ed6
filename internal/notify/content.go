package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"alertcore/internal/domain"
)

// SMSMaxRunes caps rendered SMS length.
const SMSMaxRunes = 160

const smsEllipsis = "..."

// severityColor maps severity to the hex color used across channels.
// Params: alert severity.
// Returns: hex color string.
func severityColor(severity domain.Severity) string {
	switch severity {
	case domain.SeverityCritical:
		return "#d32f2f"
	case domain.SeverityWarning:
		return "#f9a825"
	default:
		return "#1976d2"
	}
}

// EmailContent renders subject and HTML body for one alert.
// Params: alert document.
// Returns: subject line and styled HTML document.
func EmailContent(alert domain.Alert) (string, string) {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)

	var b strings.Builder
	b.WriteString("<html><body style=\"font-family:sans-serif\">")
	fmt.Fprintf(&b, "<h2 style=\"color:%s\">%s</h2>", severityColor(alert.Severity), html.EscapeString(alert.Title))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(alert.Description))
	fmt.Fprintf(&b, "<p><b>Alert ID:</b> %s<br><b>Severity:</b> %s<br><b>Status:</b> %s<br><b>Created:</b> %s</p>",
		html.EscapeString(alert.AlertID), alert.Severity, alert.Status, alert.CreatedAt.Format(time.RFC3339))

	if len(alert.AffectedServices) > 0 {
		fmt.Fprintf(&b, "<p><b>Affected services:</b> %s</p>", html.EscapeString(strings.Join(alert.AffectedServices, ", ")))
	}
	writeKVTable(&b, "Metrics", alert.Metrics)
	writeKVTable(&b, "Context", alert.Context)

	b.WriteString("<hr><p style=\"color:#666\">Acknowledge this alert in the operations dashboard.</p>")
	b.WriteString("</body></html>")
	return subject, b.String()
}

// writeKVTable renders one sorted key/value HTML table section.
// Params: builder, section title, and payload map.
// Returns: nothing for empty maps.
func writeKVTable(b *strings.Builder, title string, values map[string]any) {
	if len(values) == 0 {
		return
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "<h3>%s</h3><table border=\"0\" cellpadding=\"4\">", title)
	for _, key := range keys {
		fmt.Fprintf(b, "<tr><td><b>%s</b></td><td>%s</td></tr>",
			html.EscapeString(key), html.EscapeString(fmt.Sprint(values[key])))
	}
	b.WriteString("</table>")
}

// SMSContent renders one single-line SMS for an alert.
// Params: alert document.
// Returns: line of at most 160 runes, ellipsis-truncated when longer.
func SMSContent(alert domain.Alert) string {
	parts := []string{
		strings.ToUpper(string(alert.Severity)),
		alert.Title,
	}
	if rate, ok := alert.Metrics["failure_rate"]; ok {
		parts = append(parts, fmt.Sprintf("rate %.1f%%", toFloat(rate)))
	}
	parts = append(parts, "id "+alert.AlertID)
	line := strings.Join(parts, " | ")
	line = strings.ReplaceAll(line, "\n", " ")

	runes := []rune(line)
	if len(runes) <= SMSMaxRunes {
		return line
	}
	return string(runes[:SMSMaxRunes-len(smsEllipsis)]) + smsEllipsis
}

// ChatContent renders HTML chat message for an alert.
// Params: alert document.
// Returns: Telegram-safe HTML text.
func ChatContent(alert domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>[%s]</b> %s\n", strings.ToUpper(string(alert.Severity)), html.EscapeString(alert.Title))
	if alert.Description != "" {
		b.WriteString(html.EscapeString(alert.Description))
		b.WriteString("\n")
	}
	if len(alert.AffectedServices) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", html.EscapeString(strings.Join(alert.AffectedServices, ", ")))
	}
	fmt.Fprintf(&b, "Alert: <code>%s</code>", html.EscapeString(alert.AlertID))
	return b.String()
}

// WebhookContent builds the structured webhook payload for an alert.
// Params: alert document.
// Returns: JSON-encodable payload matching the email's data fields.
func WebhookContent(alert domain.Alert) map[string]any {
	payload := map[string]any{
		"alert_id":    alert.AlertID,
		"type":        string(alert.Type),
		"severity":    string(alert.Severity),
		"status":      string(alert.Status),
		"title":       alert.Title,
		"description": alert.Description,
		"source":      alert.Source,
		"color":       severityColor(alert.Severity),
		"created_at":  alert.CreatedAt.Format(time.RFC3339),
	}
	if len(alert.AffectedServices) > 0 {
		payload["affected_services"] = alert.AffectedServices
	}
	if len(alert.Metrics) > 0 {
		payload["metrics"] = alert.Metrics
	}
	if len(alert.Context) > 0 {
		payload["context"] = alert.Context
	}
	return payload
}

// toFloat coerces numeric metric values for rendering.
// Params: metric value from the free-form map.
// Returns: float64 value or 0.
func toFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
