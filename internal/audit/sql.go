package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "eventpass/pkg/domain"
	"eventpass/pkg/platform/sentinel"
	"eventpass/pkg/platform/tx"
)

// occurredAtLayout is fixed width so text ordering matches time ordering.
const occurredAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLSink appends events to the audit_events table next to the profiles.
type SQLSink struct {
	db     *sql.DB
	rebind func(string) string
}

// NewPostgresSink writes with $n placeholders.
func NewPostgresSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db, rebind: func(q string) string { return q }}
}

// NewSQLiteSink rewrites $n placeholders to ?n.
func NewSQLiteSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db, rebind: func(q string) string { return strings.ReplaceAll(q, "$", "?") }}
}

func (s *SQLSink) Write(ctx context.Context, e Event) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, s.rebind(`
		INSERT INTO audit_events (id, action, identity_id, credential_id, request_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		uuid.NewString(),
		string(e.Action),
		e.IdentityID.String(),
		e.CredentialID,
		e.RequestID,
		e.Detail,
		e.Timestamp.UTC().Format(occurredAtLayout),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

// ListByIdentity returns the events recorded for identity, oldest first.
func (s *SQLSink) ListByIdentity(ctx context.Context, identity id.IdentityID) ([]Event, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, s.rebind(`
		SELECT action, credential_id, request_id, detail, occurred_at
		FROM audit_events
		WHERE identity_id = $1
		ORDER BY occurred_at, id`),
		identity.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e          Event
			action     string
			occurredAt string
		)
		if err := rows.Scan(&action, &e.CredentialID, &e.RequestID, &e.Detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ts, err := time.Parse(occurredAtLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		e.Action = Action(action)
		e.IdentityID = identity
		e.Timestamp = ts
		out = append(out, e)
	}
	return out, rows.Err()
}
