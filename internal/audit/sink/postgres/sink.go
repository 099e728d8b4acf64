package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bulwark/internal/audit"
)

// Sink persists flushed security events to the audit_events table using
// database/sql. Batches are written in a single transaction so a partial
// flush never leaves half a batch behind.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id         UUID PRIMARY KEY,
//	    user_id    TEXT NOT NULL,
//	    event_type TEXT NOT NULL,
//	    severity   TEXT NOT NULL,
//	    details    JSONB,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Sink struct {
	db *sql.DB
}

func New(db *sql.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Append(ctx context.Context, events []audit.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO audit_events (id, user_id, event_type, severity, details, occurred_at)
	           VALUES ($1, $2, $3, $4, $5, $6)`
	for _, e := range events {
		var details []byte
		if e.Details != nil {
			details, err = json.Marshal(e.Details)
			if err != nil {
				// Never lose the whole batch over one unserializable detail map.
				details = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
			}
		}
		occurred := e.Timestamp
		if occurred.IsZero() {
			occurred = time.Now()
		}
		if _, err := tx.ExecContext(ctx, q, e.ID, e.UserID, e.Type, string(e.Severity), details, occurred); err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit batch: %w", err)
	}
	return nil
}
