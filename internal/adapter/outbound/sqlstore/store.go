// Package sqlstore implements the Control-Plane Event Store on top of
// modernc.org/sqlite, a pure-Go SQLite driver, over database/sql: no cgo,
// easy to embed in a single binary, matching the spec's "specified as a
// relational store with an entity model" language.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

// Store wraps the database handle and every query the Control Plane needs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and applies
// the schema. dsn is a file path; use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite tolerates one writer; avoids SQLITE_BUSY under the default rollback journal
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is alive, for the /healthz endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// CreateUser inserts a new user row. Returns an error on username/email
// collision (UNIQUE constraint), surfaced by the caller as 409 Conflict.
func (s *Store) CreateUser(ctx context.Context, u controlplane.User) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, email, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.Email, string(u.Role), u.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: create user: %w", err)
	}
	return res.LastInsertId()
}

// UserByUsername fetches a user by username for login verification.
func (s *Store) UserByUsername(ctx context.Context, username string) (controlplane.User, error) {
	var u controlplane.User
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, email, role, created_at FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &role, &u.CreatedAt)
	u.Role = controlplane.Role(role)
	if err != nil {
		return controlplane.User{}, err
	}
	return u, nil
}

// InsertWAFLog persists a WAFLog row and, when the verdict is non-safe,
// an accompanying Alert row referencing it in the same transaction.
func (s *Store) InsertWAFLog(ctx context.Context, log controlplane.WAFLog) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO waf_logs (timestamp, client_ip, method, url, verdict, reason, score, attack_type, upstream_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.Timestamp, log.ClientIP, log.Method, log.URL, log.Verdict, log.Reason, log.Score, log.AttackType, log.UpstreamStatus)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: insert waf_log: %w", err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if log.Verdict != "safe" {
		severity := severityForVerdict(log.Verdict)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alerts (waf_log_id, severity, status, created_at) VALUES (?, ?, 'open', ?)`,
			logID, string(severity), time.Now()); err != nil {
			return 0, fmt.Errorf("sqlstore: insert alert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return logID, nil
}

func severityForVerdict(verdict string) controlplane.AlertSeverity {
	switch verdict {
	case "blocked":
		return controlplane.SeverityCritical
	case "alert":
		return controlplane.SeverityHigh
	default:
		return controlplane.SeverityMedium
	}
}

// Logs returns up to limit WAFLog rows, most recent first, starting at offset.
func (s *Store) Logs(ctx context.Context, limit, offset int) ([]controlplane.WAFLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, client_ip, method, url, verdict, reason, score, attack_type, upstream_status
		 FROM waf_logs ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []controlplane.WAFLog
	for rows.Next() {
		var l controlplane.WAFLog
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.ClientIP, &l.Method, &l.URL, &l.Verdict, &l.Reason, &l.Score, &l.AttackType, &l.UpstreamStatus); err != nil {
			return nil, fmt.Errorf("sqlstore: scan log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Alerts returns alerts optionally filtered by status and severity (empty
// string means "any").
func (s *Store) Alerts(ctx context.Context, status, severity string) ([]controlplane.Alert, error) {
	query := `SELECT id, waf_log_id, severity, status, created_at FROM alerts WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if severity != "" {
		query += ` AND severity = ?`
		args = append(args, severity)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []controlplane.Alert
	for rows.Next() {
		var a controlplane.Alert
		var sev string
		if err := rows.Scan(&a.ID, &a.WAFLogID, &sev, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan alert: %w", err)
		}
		a.Severity = controlplane.AlertSeverity(sev)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AcknowledgeAlert moves an alert from "open" to "acknowledged". Any
// authenticated user may call this (unlike restriction/signature mutation,
// which is admin-only); it never resolves or deletes the underlying alert.
func (s *Store) AcknowledgeAlert(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET status = 'acknowledged' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: acknowledge alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: acknowledge alert: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlstore: acknowledge alert: no alert with id %d", id)
	}
	return nil
}

// KPIs is the analytics summary the spec names: total requests, blocked
// attacks, false positives (whitelisted), and model confidence.
type KPIs struct {
	TotalRequests    int
	BlockedAttacks   int
	FalsePositives   int
	ModelConfidence  float64
}

// KPIs computes the dashboard summary.
func (s *Store) KPIs(ctx context.Context) (KPIs, error) {
	var k KPIs
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waf_logs`).Scan(&k.TotalRequests); err != nil {
		return k, fmt.Errorf("sqlstore: count requests: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waf_logs WHERE verdict = 'blocked'`).Scan(&k.BlockedAttacks); err != nil {
		return k, fmt.Errorf("sqlstore: count blocked: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM whitelist_entries`).Scan(&k.FalsePositives); err != nil {
		return k, fmt.Errorf("sqlstore: count whitelist: %w", err)
	}
	err := s.db.QueryRowContext(ctx, `SELECT confidence FROM models ORDER BY trained_at DESC LIMIT 1`).Scan(&k.ModelConfidence)
	if err == sql.ErrNoRows {
		k.ModelConfidence = 0
		err = nil
	}
	return k, err
}

// DailyTraffic is one day's request count for the 30-day traffic view.
type DailyTraffic struct {
	Date  time.Time
	Count int
}

// Traffic returns the trailing 30 days of daily request counts, bucketed by
// explicit calendar date truncation (not string comparison of timestamps —
// see the design note on heatmap bucketing, applied here too for consistency).
func (s *Store) Traffic(ctx context.Context, now time.Time) ([]DailyTraffic, error) {
	since := now.AddDate(0, 0, -30)
	rows, err := s.db.QueryContext(ctx,
		`SELECT date(timestamp) AS d, COUNT(*) FROM waf_logs WHERE timestamp >= ? GROUP BY d ORDER BY d`, since)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query traffic: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DailyTraffic
	for rows.Next() {
		var dateStr string
		var count int
		if err := rows.Scan(&dateStr, &count); err != nil {
			return nil, fmt.Errorf("sqlstore: scan traffic row: %w", err)
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		out = append(out, DailyTraffic{Date: d, Count: count})
	}
	return out, rows.Err()
}

// OWASPBreakdown returns the count of waf_logs per attack_type category.
func (s *Store) OWASPBreakdown(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT attack_type, COUNT(*) FROM waf_logs GROUP BY attack_type`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query owasp breakdown: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var attackType string
		var count int
		if err := rows.Scan(&attackType, &count); err != nil {
			return nil, fmt.Errorf("sqlstore: scan owasp row: %w", err)
		}
		out[attackType] = count
	}
	return out, rows.Err()
}

// Heatmap returns raw non-safe-verdict counts per (weekday, hour) cell; the
// caller normalizes against the maximum cell. Weekday/hour are computed
// with an explicit calendar conversion (time.Time.Weekday/Hour) rather than
// a string comparison of the stored timestamp, per the design note
// resolving the reference implementation's string-comparison heuristic.
func (s *Store) Heatmap(ctx context.Context) ([7][24]int, error) {
	var cells [7][24]int
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp FROM waf_logs WHERE verdict != 'safe'`)
	if err != nil {
		return cells, fmt.Errorf("sqlstore: query heatmap: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return cells, fmt.Errorf("sqlstore: scan heatmap row: %w", err)
		}
		cells[int(ts.Weekday())][ts.Hour()]++
	}
	return cells, rows.Err()
}
