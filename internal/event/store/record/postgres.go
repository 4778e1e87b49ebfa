package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"civreg/internal/event"
	"civreg/pkg/platform/sentinel"
)

// Postgres persists event documents with the action log as a jsonb array on
// the owning row. Unique indexes on tracking_id and registration_number make
// the database the authority on identifier collisions; the pipeline handles
// the resulting ErrConflict by regenerating and resubmitting.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Schema is applied by migrations; kept here so integration tests can set up
// a database without a migration toolchain.
const Schema = `
CREATE TABLE IF NOT EXISTS event_documents (
    id                  TEXT PRIMARY KEY,
    event_type          TEXT NOT NULL,
    tracking_id         TEXT NOT NULL,
    registration_number TEXT,
    actions             JSONB NOT NULL DEFAULT '[]',
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    version             BIGINT NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX IF NOT EXISTS event_documents_tracking_id_key
    ON event_documents (tracking_id);
CREATE UNIQUE INDEX IF NOT EXISTS event_documents_registration_number_key
    ON event_documents (registration_number) WHERE registration_number IS NOT NULL;

CREATE TABLE IF NOT EXISTS locations (
    id      TEXT PRIMARY KEY,
    name    TEXT NOT NULL DEFAULT '',
    kind    TEXT NOT NULL,
    code    TEXT,
    part_of TEXT
);`

func (s *Postgres) Create(ctx context.Context, doc event.EventDocument) (event.EventDocument, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Version = 1

	actions, err := json.Marshal(doc.Actions)
	if err != nil {
		return event.EventDocument{}, fmt.Errorf("marshal actions: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO event_documents
		    (id, event_type, tracking_id, registration_number, actions, created_at, updated_at, version)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		doc.ID, doc.Type, doc.TrackingID, doc.RegistrationNumber, actions,
		doc.CreatedAt, doc.UpdatedAt, doc.Version)
	if err != nil {
		return event.EventDocument{}, translateErr(err)
	}
	return doc, nil
}

func (s *Postgres) Update(ctx context.Context, doc event.EventDocument) (event.EventDocument, error) {
	actions, err := json.Marshal(doc.Actions)
	if err != nil {
		return event.EventDocument{}, fmt.Errorf("marshal actions: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE event_documents
		SET event_type = $2, tracking_id = $3, registration_number = NULLIF($4, ''),
		    actions = $5, updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $7`,
		doc.ID, doc.Type, doc.TrackingID, doc.RegistrationNumber, actions,
		doc.UpdatedAt, doc.Version)
	if err != nil {
		return event.EventDocument{}, translateErr(err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or another writer advanced the version.
		if _, gerr := s.Get(ctx, doc.ID); gerr != nil {
			return event.EventDocument{}, gerr
		}
		return event.EventDocument{}, fmt.Errorf("document %s stale version %d: %w",
			doc.ID, doc.Version, sentinel.ErrConflict)
	}

	doc.Version++
	return doc, nil
}

func (s *Postgres) Get(ctx context.Context, id string) (event.EventDocument, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *Postgres) GetByTrackingID(ctx context.Context, trackingID string) (event.EventDocument, error) {
	return s.getWhere(ctx, "tracking_id = $1", trackingID)
}

func (s *Postgres) getWhere(ctx context.Context, where string, arg any) (event.EventDocument, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, event_type, tracking_id, COALESCE(registration_number, ''),
		       actions, created_at, updated_at, version
		FROM event_documents WHERE `+where, arg)

	var doc event.EventDocument
	var actions []byte
	err := row.Scan(&doc.ID, &doc.Type, &doc.TrackingID, &doc.RegistrationNumber,
		&actions, &doc.CreatedAt, &doc.UpdatedAt, &doc.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return event.EventDocument{}, fmt.Errorf("document %v: %w", arg, sentinel.ErrNotFound)
	}
	if err != nil {
		return event.EventDocument{}, fmt.Errorf("scan document: %w", err)
	}
	if err := json.Unmarshal(actions, &doc.Actions); err != nil {
		return event.EventDocument{}, fmt.Errorf("unmarshal actions: %w", err)
	}
	return doc, nil
}

// translateErr maps driver errors to sentinels. 23505 is unique_violation.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, sentinel.ErrConflict)
	}
	return err
}
