package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civreg/internal/event"
	"civreg/pkg/platform/sentinel"
)

// Postgres stores the projection in a flat table with the declared fields as
// jsonb, which is enough for workqueue filtering without a search engine.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const Schema = `
CREATE TABLE IF NOT EXISTS event_index (
    id                  TEXT PRIMARY KEY,
    event_type          TEXT NOT NULL,
    status              TEXT NOT NULL,
    tracking_id         TEXT NOT NULL,
    registration_number TEXT,
    assigned_to         TEXT,
    pending_correction  BOOLEAN NOT NULL DEFAULT FALSE,
    duplicate           BOOLEAN NOT NULL DEFAULT FALSE,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    updated_at_location TEXT,
    declaration         JSONB
);
CREATE INDEX IF NOT EXISTS event_index_status_idx ON event_index (status);
CREATE INDEX IF NOT EXISTS event_index_assigned_to_idx ON event_index (assigned_to);`

func (s *Postgres) Upsert(ctx context.Context, idx event.EventIndex) error {
	declaration, err := json.Marshal(idx.Declaration)
	if err != nil {
		return fmt.Errorf("marshal declaration: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO event_index
		    (id, event_type, status, tracking_id, registration_number, assigned_to,
		     pending_correction, duplicate, created_at, updated_at, updated_at_location, declaration)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, NULLIF($11, ''), $12)
		ON CONFLICT (id) DO UPDATE SET
		    event_type = EXCLUDED.event_type,
		    status = EXCLUDED.status,
		    tracking_id = EXCLUDED.tracking_id,
		    registration_number = EXCLUDED.registration_number,
		    assigned_to = EXCLUDED.assigned_to,
		    pending_correction = EXCLUDED.pending_correction,
		    duplicate = EXCLUDED.duplicate,
		    updated_at = EXCLUDED.updated_at,
		    updated_at_location = EXCLUDED.updated_at_location,
		    declaration = EXCLUDED.declaration`,
		idx.ID, idx.Type, idx.Status, idx.TrackingID, idx.RegistrationNumber,
		idx.AssignedTo, idx.PendingCorrection, idx.Duplicate,
		idx.CreatedAt, idx.UpdatedAt, idx.UpdatedAtLocation, declaration)
	if err != nil {
		return fmt.Errorf("upsert index row %s: %w", idx.ID, err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (event.EventIndex, error) {
	rows, err := s.pool.Query(ctx, selectQuery+" WHERE id = $1", id)
	if err != nil {
		return event.EventIndex{}, err
	}
	idx, err := pgx.CollectOneRow(rows, scanRow)
	if errors.Is(err, pgx.ErrNoRows) {
		return event.EventIndex{}, fmt.Errorf("index row %s: %w", id, sentinel.ErrNotFound)
	}
	return idx, err
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]event.EventIndex, error) {
	var conds []string
	var args []any

	if !filter.IncludeDeleted {
		conds = append(conds, "status <> '"+string(event.StatusDeleted)+"'")
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, "event_type = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conds = append(conds, "assigned_to = $"+strconv.Itoa(len(args)))
	}

	query := selectQuery
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRow)
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM event_index WHERE id = $1", id)
	return err
}

const selectQuery = `
SELECT id, event_type, status, tracking_id, COALESCE(registration_number, ''),
       COALESCE(assigned_to, ''), pending_correction, duplicate,
       created_at, updated_at, COALESCE(updated_at_location, ''), declaration
FROM event_index`

func scanRow(row pgx.CollectableRow) (event.EventIndex, error) {
	var idx event.EventIndex
	var declaration []byte
	err := row.Scan(&idx.ID, &idx.Type, &idx.Status, &idx.TrackingID,
		&idx.RegistrationNumber, &idx.AssignedTo, &idx.PendingCorrection,
		&idx.Duplicate, &idx.CreatedAt, &idx.UpdatedAt, &idx.UpdatedAtLocation,
		&declaration)
	if err != nil {
		return event.EventIndex{}, err
	}
	if len(declaration) > 0 {
		if err := json.Unmarshal(declaration, &idx.Declaration); err != nil {
			return event.EventIndex{}, fmt.Errorf("unmarshal declaration: %w", err)
		}
	}
	return idx, nil
}
