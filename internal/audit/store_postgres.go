package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the audit trail. Rows are append-only; nothing in
// the service updates or deletes them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is applied by migrations; kept here so integration tests can set up
// a database without a migration toolchain.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id              TEXT PRIMARY KEY,
    event_id        TEXT NOT NULL,
    event_type      TEXT NOT NULL,
    action_id       TEXT NOT NULL,
    action_type     TEXT NOT NULL,
    action_status   TEXT NOT NULL,
    actor           TEXT NOT NULL,
    role            TEXT NOT NULL DEFAULT '',
    user_type       TEXT NOT NULL DEFAULT '',
    office_location TEXT NOT NULL DEFAULT '',
    device          TEXT NOT NULL DEFAULT '',
    client_ip       TEXT NOT NULL DEFAULT '',
    request_id      TEXT NOT NULL DEFAULT '',
    ts              TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_event_id_idx ON audit_entries (event_id, ts);`

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries
		    (id, event_id, event_type, action_id, action_type, action_status,
		     actor, role, user_type, office_location, device, client_ip, request_id, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		entry.ID, entry.EventID, entry.EventType, entry.ActionID, entry.ActionType,
		entry.ActionStatus, entry.Actor, entry.Role, entry.UserType,
		entry.OfficeLocation, entry.Device, entry.ClientIP, entry.RequestID, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, event_type, action_id, action_type, action_status,
		       actor, role, user_type, office_location, device, client_ip, request_id, ts
		FROM audit_entries WHERE event_id = $1 ORDER BY ts`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.ActionID, &e.ActionType,
			&e.ActionStatus, &e.Actor, &e.Role, &e.UserType, &e.OfficeLocation,
			&e.Device, &e.ClientIP, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
