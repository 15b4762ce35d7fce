package store

import (
	"context"
	"fmt"
	"time"
)

// ListRuns returns recorded runs, newest first, up to limit.
// A non-positive limit means no limit.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, scenario, pass, final_state, errors, recorded_at
		FROM runs
		ORDER BY recorded_at DESC, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var record RunRecord
		var pass int
		var recordedAt string
		if err := rows.Scan(&record.ID, &record.Scenario, &pass, &record.FinalState, &record.Errors, &recordedAt); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		record.Pass = pass != 0
		if ts, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			record.RecordedAt = ts
		}
		runs = append(runs, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its events in seq order.
func (l *Ledger) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var record RunRecord
	var pass int
	var recordedAt string
	err := l.db.QueryRowContext(ctx, `
		SELECT id, scenario, pass, final_state, errors, recorded_at
		FROM runs WHERE id = ?
	`, id).Scan(&record.ID, &record.Scenario, &pass, &record.FinalState, &record.Errors, &recordedAt)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	record.Pass = pass != 0
	if ts, err := time.Parse(time.RFC3339, recordedAt); err == nil {
		record.RecordedAt = ts
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, seq, kind, checked, path, digest, note
		FROM events WHERE run_id = ?
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var event EventRecord
		if err := rows.Scan(&event.ID, &event.Seq, &event.Kind, &event.Check, &event.Path, &event.Digest, &event.Note); err != nil {
			return nil, fmt.Errorf("get run %s: %w", id, err)
		}
		record.Events = append(record.Events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &record, nil
}
