package controlplane

import "strings"

// AttackTypeFromReason classifies a WAFLog's attack type from its Record
// reason string, used to populate the OWASP-category analytics breakdown.
// A signature reason's id is pattern-matched against known substrings; an
// ML-driven reason or an empty reason both fall back to a generic label.
func AttackTypeFromReason(reason string) string {
	if reason == "" {
		return "Unknown"
	}
	if !strings.HasPrefix(reason, "SIG:") {
		return "Anomaly"
	}
	sigID := strings.ToUpper(strings.TrimPrefix(reason, "SIG:"))
	switch {
	case strings.Contains(sigID, "SQL"):
		return "SQLi"
	case strings.Contains(sigID, "XSS"):
		return "XSS"
	case strings.Contains(sigID, "CMD"), strings.Contains(sigID, "COMMAND"):
		return "Command Injection"
	case strings.Contains(sigID, "TRAVERSAL"), strings.Contains(sigID, "LFI"):
		return "Path Traversal"
	case strings.Contains(sigID, "CSRF"):
		return "CSRF"
	case strings.Contains(sigID, "SSRF"):
		return "SSRF"
	default:
		return strings.TrimPrefix(reason, "SIG:")
	}
}
