package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// tableInfo describes one generically-accessible table: its allow-listed
// name, primary key column, and a fixed column projection. The Generic* methods never
// accepts a caller-supplied table or column name beyond looking it up in
// this registry — the only defense against reflecting arbitrary identifiers
// into a SQL statement.
type tableInfo struct {
	name       string
	primaryKey string
	columns    []string
}

// allowedTables is the closed registry the spec's Design Notes require:
// table name -> (primary-key column, column projection). The Generic* methods reject any
// name not in this map outright.
var allowedTables = map[string]tableInfo{
	"restrictions":              {name: "restrictions", primaryKey: "id", columns: []string{"id", "type", "value", "reason", "created_at"}},
	"custom_signatures":         {name: "custom_signatures", primaryKey: "id", columns: []string{"id", "name", "expression", "enabled", "created_at"}},
	"models":                    {name: "models", primaryKey: "id", columns: []string{"id", "version", "confidence", "trained_at"}},
	"suspicious_user_profiles":  {name: "suspicious_user_profiles", primaryKey: "id", columns: []string{"id", "identifier", "notes", "created_at"}},
	"whitelist_entries":         {name: "whitelist_entries", primaryKey: "id", columns: []string{"id", "pattern", "reason", "created_at"}},
	"users":                     {name: "users", primaryKey: "id", columns: []string{"id", "username", "email", "role", "created_at"}},
}

// GenericRow is one row from a generic table read, as a column-name-keyed map.
type GenericRow map[string]any

// GenericTableNames lists the allow-listed table names, for a directory endpoint.
func GenericTableNames() []string {
	names := make([]string, 0, len(allowedTables))
	for name := range allowedTables {
		names = append(names, name)
	}
	return names
}

// GenericRead returns every row of table, or a single row if id is non-empty.
// Returns an error if table is not in the allow-list; never interpolates a
// caller-supplied table or column name beyond this lookup.
func (s *Store) GenericRead(ctx context.Context, table, id string) ([]GenericRow, error) {
	info, ok := allowedTables[table]
	if !ok {
		return nil, fmt.Errorf("sqlstore: table %q is not in the generic-access allow-list", table)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columnList(info.columns), info.name)
	args := []any{}
	if id != "" {
		query += fmt.Sprintf(" WHERE %s = ?", info.primaryKey)
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: generic read %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []GenericRow
	for rows.Next() {
		scanTargets := make([]any, len(info.columns))
		values := make([]any, len(info.columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan generic row: %w", err)
		}
		row := make(GenericRow, len(info.columns))
		for i, col := range info.columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GenericDelete removes the row with the given id from table, rejecting any
// table name not in the allow-list.
func (s *Store) GenericDelete(ctx context.Context, table, id string) error {
	info, ok := allowedTables[table]
	if !ok {
		return fmt.Errorf("sqlstore: table %q is not in the generic-access allow-list", table)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", info.name, info.primaryKey), id)
	return err
}

// GenericCreate inserts one row into table from fields, a column-name-keyed
// map. Only keys that name a column in the table's fixed projection are
// used (besides the primary key, which the database assigns); everything
// else in fields is silently ignored, the same allow-list discipline
// GenericRead applies to reads. Returns the new row's primary key as a
// string, since the registry doesn't know each table's key type.
func (s *Store) GenericCreate(ctx context.Context, table string, fields map[string]any) (string, error) {
	info, ok := allowedTables[table]
	if !ok {
		return "", fmt.Errorf("sqlstore: table %q is not in the generic-access allow-list", table)
	}

	var cols []string
	var placeholders []string
	var args []any
	for _, col := range info.columns {
		if col == info.primaryKey {
			continue
		}
		v, present := fields[col]
		if !present {
			continue
		}
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("sqlstore: generic create %s: request body names no known column", table)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", info.name, columnList(cols), strings.Join(placeholders, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("sqlstore: generic create %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("sqlstore: generic create %s: %w", table, err)
	}
	return strconv.FormatInt(id, 10), nil
}

// GenericUpdate applies a partial update to the row with the given id,
// setting only the columns present in fields (same allow-list discipline
// as GenericCreate; the primary key itself can never be overwritten).
func (s *Store) GenericUpdate(ctx context.Context, table, id string, fields map[string]any) error {
	info, ok := allowedTables[table]
	if !ok {
		return fmt.Errorf("sqlstore: table %q is not in the generic-access allow-list", table)
	}

	var sets []string
	var args []any
	for _, col := range info.columns {
		if col == info.primaryKey {
			continue
		}
		v, present := fields[col]
		if !present {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return fmt.Errorf("sqlstore: generic update %s: request body names no known column", table)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", info.name, strings.Join(sets, ", "), info.primaryKey)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: generic update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: generic update %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlstore: generic update %s: no row with id %s", table, id)
	}
	return nil
}

func columnList(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
