// Package controlplane defines the Control-Plane Event Store's relational
// entity model: users, WAF log snapshots, alerts, restrictions, custom
// signatures, model metadata, patching reports, suspicious-user profiles,
// whitelist entries, and system-activity logs.
package controlplane

import "time"

// Role is a user's access level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleAnalyst Role = "analyst"
)

// ValidRole reports whether r is one of the defined roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleUser, RoleAnalyst:
		return true
	}
	return false
}

// User is an authenticated Control Plane principal.
type User struct {
	ID           int64
	Username     string
	PasswordHash string // argon2id hash
	Email        string
	Role         Role
	CreatedAt    time.Time
}

// WAFLog is a persisted snapshot of one detection-pipeline Record, ingested
// via /api/ingest_log.
type WAFLog struct {
	ID             int64
	Timestamp      time.Time
	ClientIP       string
	Method         string
	URL            string
	Verdict        string
	Reason         string
	Score          *float64
	AttackType     string // derived from Reason's SIG:<id> prefix, see attack_type.go
	UpstreamStatus int
}

// AlertSeverity is derived from the triggering WAFLog's verdict band.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "Critical"
	SeverityHigh     AlertSeverity = "High"
	SeverityMedium   AlertSeverity = "Medium"
)

// Alert is raised automatically for any WAFLog whose verdict is not safe.
type Alert struct {
	ID        int64
	WAFLogID  int64
	Severity  AlertSeverity
	Status    string // open, acknowledged, resolved
	CreatedAt time.Time
}

// RestrictionType names the kind of value a Restriction blocks on.
type RestrictionType string

const (
	RestrictionIP     RestrictionType = "ip"
	RestrictionHash   RestrictionType = "hash"
	RestrictionDomain RestrictionType = "domain"
)

// Restriction is a local block-list entry, consulted before any external TI
// provider call.
type Restriction struct {
	ID        int64
	Type      RestrictionType
	Value     string
	Reason    string
	CreatedAt time.Time
}

// CustomSignature is an operator-authored rule stored as a CEL expression
// (see internal/adapter/outbound/cel), distinct from the static YAML rule set.
type CustomSignature struct {
	ID         int64
	Name       string
	Expression string
	Enabled    bool
	CreatedAt  time.Time
}

// Model is metadata about a deployed ML model artifact: version, training
// date, and a confidence scalar surfaced in the KPI view.
type Model struct {
	ID         int64
	Version    string
	Confidence float64
	TrainedAt  time.Time
}

// PatchingReport is a persisted Analysis Service output, linked to the
// WAFLog it was generated for.
type PatchingReport struct {
	ID         int64
	WAFLogID   int64
	ReportJSON string
	CreatedAt  time.Time
}

// SuspiciousUserProfile tracks a client IP/session under heightened scrutiny.
type SuspiciousUserProfile struct {
	ID         int64
	Identifier string
	Notes      string
	CreatedAt  time.Time
}

// WhitelistEntry marks a request pattern as a known false positive.
type WhitelistEntry struct {
	ID        int64
	Pattern   string
	Reason    string
	CreatedAt time.Time
}

// SysLogSource is the tagged variant a SysLog entry's foreign keys resolve
// to, derived with the fixed priority order in Source.
type SysLogSource string

const (
	SourceRestriction     SysLogSource = "Restriction"
	SourceModel           SysLogSource = "Model"
	SourceSignature       SysLogSource = "Signature"
	SourceUser            SysLogSource = "User"
	SourceSuspiciousUser  SysLogSource = "SuspiciousUser"
	SourceReport          SysLogSource = "Report"
	SourceWhitelist       SysLogSource = "Whitelist"
	SourceSystem          SysLogSource = "System"
)

// SysLog is a system-activity log entry. Its nullable foreign keys are
// pointers; at most one is expected to be populated, but Source resolves
// deterministically even if more than one is set.
type SysLog struct {
	ID               int64
	Timestamp        time.Time
	Message          string
	RestrictionID    *int64
	ModelID          *int64
	SignatureID      *int64
	UserID           *int64
	SuspiciousUserID *int64
	ReportID         *int64
	WhitelistID      *int64
}

// Source derives the tagged-variant source label from whichever foreign key
// is populated, in the fixed priority order: Restriction > Model >
// Signature > User > SuspiciousUser > Report > Whitelist > System.
func (s SysLog) Source() (SysLogSource, int64) {
	switch {
	case s.RestrictionID != nil:
		return SourceRestriction, *s.RestrictionID
	case s.ModelID != nil:
		return SourceModel, *s.ModelID
	case s.SignatureID != nil:
		return SourceSignature, *s.SignatureID
	case s.UserID != nil:
		return SourceUser, *s.UserID
	case s.SuspiciousUserID != nil:
		return SourceSuspiciousUser, *s.SuspiciousUserID
	case s.ReportID != nil:
		return SourceReport, *s.ReportID
	case s.WhitelistID != nil:
		return SourceWhitelist, *s.WhitelistID
	default:
		return SourceSystem, 0
	}
}
