// Package outbound collects the narrow interfaces the service layer depends
// on, so the Detection Pipeline and Control Plane services can be wired
// against concrete adapters (journal, sqlstore, mlclient, ti, llm) without
// importing adapter packages directly. Most contracts already live next to
// the domain type they operate on (mlscore.Client, ratelimit.Limiter,
// ti.Provider, analysis.Provider); this package adds the two that don't
// belong to any single domain package: the journal and the event store.
package outbound

import (
	"context"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
	"github.com/vigilwaf/vigil/internal/domain/record"
)

// Journal is the append-only Request Record log the Detection Pipeline
// writes to: every non-safe request, and safe ones while the
// log_safe_traffic setting is on.
type Journal interface {
	Append(rec record.Record) error
	LoadAll() ([]record.Record, error)
	Close() error
}

// EventStore is the Control-Plane Event Store: the relational home for
// every entity named in the data model (users, WAFLog, Alert, Restriction,
// CustomSignature, Model, PatchingReport, SuspiciousUserProfile,
// WhitelistEntry, SysLog).
type EventStore interface {
	CreateUser(ctx context.Context, u controlplane.User) (int64, error)
	UserByUsername(ctx context.Context, username string) (controlplane.User, error)

	InsertWAFLog(ctx context.Context, log controlplane.WAFLog) (int64, error)
	Logs(ctx context.Context, limit, offset int) ([]controlplane.WAFLog, error)
	Alerts(ctx context.Context, status, severity string) ([]controlplane.Alert, error)
	AcknowledgeAlert(ctx context.Context, id int64) error

	CreateRestriction(ctx context.Context, r controlplane.Restriction) (int64, error)
	RestrictionMatch(ctx context.Context, restrictionType, value string) (bool, error)
	Restrictions(ctx context.Context) ([]controlplane.Restriction, error)
	DeleteRestriction(ctx context.Context, id int64) error

	CreateCustomSignature(ctx context.Context, name, expression string) (int64, error)
	CustomSignatures(ctx context.Context) ([]controlplane.CustomSignature, error)
	SetCustomSignatureEnabled(ctx context.Context, id int64, enabled bool) error

	CreatePatchingReport(ctx context.Context, wafLogID int64, reportJSON string) (int64, error)
	PatchingReport(ctx context.Context, id int64) (controlplane.PatchingReport, error)

	CreateSuspiciousUserProfile(ctx context.Context, identifier, notes string) (int64, error)
	CreateWhitelistEntry(ctx context.Context, pattern, reason string) (int64, error)

	InsertSysLog(ctx context.Context, log controlplane.SysLog) (int64, error)
	SysLogs(ctx context.Context, limit int) ([]controlplane.SysLog, error)

	Close() error
}
