package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

// CreateRestriction inserts a block-list entry.
func (s *Store) CreateRestriction(ctx context.Context, r controlplane.Restriction) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO restrictions (type, value, reason, created_at) VALUES (?, ?, ?, ?)`,
		string(r.Type), r.Value, r.Reason, r.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: create restriction: %w", err)
	}
	return res.LastInsertId()
}

// RestrictionMatch reports whether (type, value) is present in the
// restriction table — the local-block-list short-circuit consulted before
// any external TI provider call.
func (s *Store) RestrictionMatch(ctx context.Context, restrictionType, value string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM restrictions WHERE type = ? AND value = ?`, restrictionType, value).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlstore: check restriction: %w", err)
	}
	return count > 0, nil
}

// Restrictions lists all restriction entries.
func (s *Store) Restrictions(ctx context.Context) ([]controlplane.Restriction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, value, reason, created_at FROM restrictions ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list restrictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []controlplane.Restriction
	for rows.Next() {
		var r controlplane.Restriction
		var typ string
		if err := rows.Scan(&r.ID, &typ, &r.Value, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan restriction: %w", err)
		}
		r.Type = controlplane.RestrictionType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRestriction removes a restriction by id.
func (s *Store) DeleteRestriction(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM restrictions WHERE id = ?`, id)
	return err
}

// CreateCustomSignature inserts an operator-authored CEL rule, enabled by default.
func (s *Store) CreateCustomSignature(ctx context.Context, name, expression string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_signatures (name, expression, enabled, created_at) VALUES (?, ?, 1, ?)`,
		name, expression, time.Now())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: create custom signature: %w", err)
	}
	return res.LastInsertId()
}

// CustomSignatures lists every operator-authored CEL rule, enabled or not.
func (s *Store) CustomSignatures(ctx context.Context) ([]controlplane.CustomSignature, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, expression, enabled, created_at FROM custom_signatures ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list custom signatures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []controlplane.CustomSignature
	for rows.Next() {
		var c controlplane.CustomSignature
		if err := rows.Scan(&c.ID, &c.Name, &c.Expression, &c.Enabled, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan custom signature: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCustomSignatureEnabled toggles a custom signature's enabled flag.
func (s *Store) SetCustomSignatureEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE custom_signatures SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// CreatePatchingReport persists a PatchingReport linked to a WAFLog.
func (s *Store) CreatePatchingReport(ctx context.Context, wafLogID int64, reportJSON string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO patching_reports (waf_log_id, report_json, created_at) VALUES (?, ?, ?)`,
		wafLogID, reportJSON, time.Now())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: create patching report: %w", err)
	}
	return res.LastInsertId()
}

// PatchingReport fetches a report by id.
func (s *Store) PatchingReport(ctx context.Context, id int64) (controlplane.PatchingReport, error) {
	var r controlplane.PatchingReport
	err := s.db.QueryRowContext(ctx,
		`SELECT id, waf_log_id, report_json, created_at FROM patching_reports WHERE id = ?`, id,
	).Scan(&r.ID, &r.WAFLogID, &r.ReportJSON, &r.CreatedAt)
	return r, err
}

// CreateSuspiciousUserProfile records an identifier under heightened scrutiny.
func (s *Store) CreateSuspiciousUserProfile(ctx context.Context, identifier, notes string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO suspicious_user_profiles (identifier, notes, created_at) VALUES (?, ?, ?)`,
		identifier, notes, time.Now())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: create suspicious profile: %w", err)
	}
	return res.LastInsertId()
}

// CreateWhitelistEntry marks a pattern as a known false positive.
func (s *Store) CreateWhitelistEntry(ctx context.Context, pattern, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO whitelist_entries (pattern, reason, created_at) VALUES (?, ?, ?)`,
		pattern, reason, time.Now())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: create whitelist entry: %w", err)
	}
	return res.LastInsertId()
}

// InsertSysLog records a system-activity entry. Exactly one of the nullable
// ids should be set by the caller; Source() derives the label on read.
func (s *Store) InsertSysLog(ctx context.Context, log controlplane.SysLog) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sys_logs (timestamp, message, restriction_id, model_id, signature_id, user_id, suspicious_user_id, report_id, whitelist_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.Timestamp, log.Message, log.RestrictionID, log.ModelID, log.SignatureID, log.UserID, log.SuspiciousUserID, log.ReportID, log.WhitelistID)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: insert sys_log: %w", err)
	}
	return res.LastInsertId()
}

// SysLogs lists the most recent system-activity entries.
func (s *Store) SysLogs(ctx context.Context, limit int) ([]controlplane.SysLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, message, restriction_id, model_id, signature_id, user_id, suspicious_user_id, report_id, whitelist_id
		 FROM sys_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list sys_logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []controlplane.SysLog
	for rows.Next() {
		var l controlplane.SysLog
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Message, &l.RestrictionID, &l.ModelID, &l.SignatureID, &l.UserID, &l.SuspiciousUserID, &l.ReportID, &l.WhitelistID); err != nil {
			return nil, fmt.Errorf("sqlstore: scan sys_log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
