// ABOUTME: Invocation audit log store methods
// ABOUTME: Records which tool was called over which transport, how long it took, and how it ended

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tsLayout is fixed-width so lexical order in SQLite matches time order.
const tsLayout = "2006-01-02T15:04:05.000000Z"

// RecordInvocation appends an invocation to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) RecordInvocation(ctx context.Context, inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO invocations (invocation_id, request_id, tool_name, transport, session_id, error_kind, error_message, duration_us, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.RequestID,
		inv.ToolName,
		inv.Transport,
		inv.SessionID,
		inv.ErrorKind,
		inv.ErrorMessage,
		inv.Duration.Microseconds(),
		inv.Timestamp.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}

	s.logger.Debug("recorded invocation",
		"id", inv.ID,
		"tool_name", inv.ToolName,
		"transport", inv.Transport,
		"error_kind", inv.ErrorKind,
	)
	return nil
}

// normalizeInvocationLimit applies default (100) and cap (1000).
func normalizeInvocationLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const invocationQuery = `
	SELECT invocation_id, request_id, tool_name, transport, session_id, error_kind, error_message, duration_us, ts
	FROM invocations
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR tool_name = ?)
	  AND (? IS NULL OR transport = ?)
	  AND (? IS NULL OR error_kind = ?)
	  AND (? = 0 OR error_kind != '')
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListInvocations returns invocations matching the filter, newest first.
func (s *SQLiteStore) ListInvocations(ctx context.Context, f InvocationFilter) ([]Invocation, error) {
	var sinceStr *string
	if f.Since != nil {
		str := f.Since.UTC().Format(tsLayout)
		sinceStr = &str
	}

	rows, err := s.db.QueryContext(ctx, invocationQuery,
		sinceStr, sinceStr,
		f.ToolName, f.ToolName,
		f.Transport, f.Transport,
		f.ErrorKind, f.ErrorKind,
		f.Failed,
		normalizeInvocationLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	invocations := []Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations: %w", err)
	}
	return invocations, nil
}

func scanInvocation(scanner interface{ Scan(dest ...any) error }) (Invocation, error) {
	var inv Invocation
	var durationUS int64
	var tsStr string

	if err := scanner.Scan(
		&inv.ID,
		&inv.RequestID,
		&inv.ToolName,
		&inv.Transport,
		&inv.SessionID,
		&inv.ErrorKind,
		&inv.ErrorMessage,
		&durationUS,
		&tsStr,
	); err != nil {
		return inv, fmt.Errorf("scanning invocation: %w", err)
	}

	inv.Duration = time.Duration(durationUS) * time.Microsecond
	ts, err := time.Parse(tsLayout, tsStr)
	if err != nil {
		return inv, fmt.Errorf("parsing timestamp: %w", err)
	}
	inv.Timestamp = ts
	return inv, nil
}

// InvocationStats aggregates totals, failures, and per-tool/per-kind counts.
func (s *SQLiteStore) InvocationStats(ctx context.Context) (*InvocationStats, error) {
	stats := &InvocationStats{
		ByTool: make(map[string]int64),
		ByKind: make(map[string]int64),
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN error_kind != '' THEN 1 ELSE 0 END), 0)
		FROM invocations
	`)
	if err := row.Scan(&stats.Total, &stats.Failures); err != nil {
		return nil, fmt.Errorf("counting invocations: %w", err)
	}

	if err := s.groupCounts(ctx, `SELECT tool_name, COUNT(*) FROM invocations GROUP BY tool_name`, stats.ByTool); err != nil {
		return nil, fmt.Errorf("counting by tool: %w", err)
	}
	if err := s.groupCounts(ctx, `SELECT error_kind, COUNT(*) FROM invocations WHERE error_kind != '' GROUP BY error_kind`, stats.ByKind); err != nil {
		return nil, fmt.Errorf("counting by kind: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) groupCounts(ctx context.Context, query string, into map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
