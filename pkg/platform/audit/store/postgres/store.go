package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "parishnet/pkg/platform/audit"
	txcontext "parishnet/pkg/platform/tx"
)

// Store appends audit events to the audit_events table. When ctx carries a
// transaction the event commits with it.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, subject_kind, subject, action,
			decision, reason, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID,
		string(event.Category),
		event.Timestamp,
		event.SubjectKind,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns the events of one subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, category, timestamp, subject_kind, subject, action,
			decision, reason, request_id, actor_id
		FROM audit_events
		WHERE subject = $1
		ORDER BY timestamp, id
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []audit.Event{}
	for rows.Next() {
		var (
			e        audit.Event
			category string
		)
		if err := rows.Scan(&e.ID, &category, &e.Timestamp, &e.SubjectKind, &e.Subject, &e.Action,
			&e.Decision, &e.Reason, &e.RequestID, &e.ActorID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
