package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/tagproof/internal/digest"
)

// RunRecord is one scenario run as the ledger stores it.
type RunRecord struct {
	// ID is the content-addressed run ID. Computed on write when empty.
	ID string

	Scenario   string
	Pass       bool
	FinalState string
	Errors     string
	RecordedAt time.Time

	Events []EventRecord
}

// EventRecord is one trace event within a run.
type EventRecord struct {
	// ID is the content-addressed event ID. Computed on write when empty.
	ID string

	Seq    int64
	Kind   string
	Check  string
	Path   string
	Digest string
	Note   string
}

// RecordRun inserts a run and its events in one transaction.
// IDs are content-addressed from the record fields, and inserts use
// ON CONFLICT DO NOTHING, so recording the same run twice is idempotent.
func (l *Ledger) RecordRun(ctx context.Context, record RunRecord) error {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	runID, err := runID(record)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	record.ID = runID

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, pass, final_state, errors, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		record.ID,
		record.Scenario,
		boolToInt(record.Pass),
		record.FinalState,
		record.Errors,
		record.RecordedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	for i, event := range record.Events {
		eventID, err := eventID(record.ID, event)
		if err != nil {
			return fmt.Errorf("record run: event %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (id, run_id, seq, kind, checked, path, digest, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			eventID,
			record.ID,
			event.Seq,
			event.Kind,
			event.Check,
			event.Path,
			event.Digest,
			event.Note,
		)
		if err != nil {
			return fmt.Errorf("record run: event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// runID computes the content-addressed ID for a run.
// The recording timestamp participates so two sessions running the same
// scenario stay distinct rows.
func runID(record RunRecord) (string, error) {
	return digest.EventID(digest.DomainRun, map[string]any{
		"scenario":    record.Scenario,
		"pass":        record.Pass,
		"final_state": record.FinalState,
		"recorded_at": record.RecordedAt.Format(time.RFC3339Nano),
	})
}

// eventID computes the content-addressed ID for an event within a run.
func eventID(runID string, event EventRecord) (string, error) {
	return digest.EventID(digest.DomainEvent, map[string]any{
		"run_id": runID,
		"seq":    event.Seq,
		"kind":   event.Kind,
		"check":  event.Check,
		"path":   event.Path,
		"digest": event.Digest,
		"note":   event.Note,
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
