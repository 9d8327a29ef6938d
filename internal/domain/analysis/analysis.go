// Package analysis defines the Analysis Service's mitigation-report schema,
// input sanitization, and the Provider contract for LLM backends.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrRateLimited is returned by AnalysisService.Recommend when the
// Analysis Service's rate limiter denies the call, distinct from a provider/schema
// failure: callers must surface it as 429 with a retry-after, not as a
// 200 response carrying a fallback report.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("analysis: rate limit exceeded, retry after %s", e.RetryAfter)
}

// Mitigation is one remediation item in a Report.
type Mitigation struct {
	Category    string `json:"category"` // code, config, waf
	Description string `json:"description"`
}

// VirtualPatch is a config-level rule that mitigates an attack without a
// code change.
type VirtualPatch struct {
	Target string `json:"target"` // WAF, Nginx, App
	Rule   string `json:"rule"`
}

// Reference is a citation to an external standard.
type Reference struct {
	Standard string `json:"standard"` // OWASP, CWE, NIST
	ID       string `json:"id"`
	Title    string `json:"title"`
}

// Report is the Analysis Service's structured output.
type Report struct {
	AttackType     string         `json:"attack_type"`
	RootCause      string         `json:"root_cause"`
	RiskLevel      string         `json:"risk_level"` // low, medium, high, critical
	Mitigations    []Mitigation   `json:"mitigations"`
	VirtualPatches []VirtualPatch `json:"virtual_patches"`
	References     []Reference   `json:"references"`
	Error          string         `json:"error,omitempty"`
	Cached         bool           `json:"_cached,omitempty"`
}

// RequiredKeys are the top-level keys a provider's JSON response must carry
// for the response to be accepted without falling back.
var RequiredKeys = []string{"attack_type", "root_cause", "risk_level", "mitigations", "virtual_patches", "references"}

const maxDescriptionLength = 2000

// secretPatterns are literal substrings whose presence (and everything after
// them, up to the next whitespace run) is redacted before a description is
// ever sent to an LLM provider.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Cookie:\s*\S+`),
	regexp.MustCompile(`(?i)Authorization:\s*\S+`),
	regexp.MustCompile(`(?i)Bearer\s+\S+`),
	regexp.MustCompile(`sk-[A-Za-z0-9]+`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]+`),
}

// Sanitize truncates description to maxDescriptionLength characters and
// redacts known secret markers, so a blocked request's captured body never
// leaks credentials to a third-party LLM provider.
func Sanitize(description string) string {
	if runes := []rune(description); len(runes) > maxDescriptionLength {
		description = string(runes[:maxDescriptionLength])
	}
	for _, re := range secretPatterns {
		description = re.ReplaceAllString(description, "[REDACTED]")
	}
	return description
}

// FallbackReport is the schema-compliant response returned whenever any step
// of the analysis flow fails, so downstream consumers never have to branch
// on success.
func FallbackReport(reason string) Report {
	return Report{
		AttackType: "unknown",
		RootCause:  "analysis failed",
		RiskLevel:  "medium",
		Mitigations: []Mitigation{
			{Category: "waf", Description: "Review the blocked request manually; automated analysis was unavailable."},
		},
		VirtualPatches: []VirtualPatch{},
		References:     []Reference{},
		Error:          reason,
	}
}

// Validate reports whether report has every required top-level key
// populated in some form (non-zero value for scalars, any slice for lists).
func (r Report) Validate() bool {
	return r.AttackType != "" && r.RootCause != "" && r.RiskLevel != "" &&
		r.Mitigations != nil && r.VirtualPatches != nil && r.References != nil
}

// HashKey returns the per-hash cache key for a sanitized description: the
// hex SHA-256 digest.
func HashKey(sanitizedDescription string) string {
	sum := sha256.Sum256([]byte(sanitizedDescription))
	return hex.EncodeToString(sum[:])
}

// StripCodeFences removes a leading/trailing ```json ... ``` or ``` ... ```
// fence an LLM sometimes wraps its JSON output in.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Provider is the outbound port for each LLM backend variant (remote,
// local, mock) behind a single capability.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
