package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civreg/pkg/platform/sentinel"
)

// Postgres resolves hierarchies from the locations table using a recursive
// walk in SQL, so one round trip serves the whole chain.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const hierarchyQuery = `
WITH RECURSIVE chain AS (
    SELECT id, name, kind, code, part_of, 0 AS depth
    FROM locations WHERE id = $1
  UNION ALL
    SELECT l.id, l.name, l.kind, l.code, l.part_of, chain.depth + 1
    FROM locations l
    JOIN chain ON l.id = chain.part_of
)
SELECT id, name, kind, COALESCE(code, ''), COALESCE(part_of, '')
FROM chain ORDER BY depth`

func (s *Postgres) Hierarchy(ctx context.Context, locationID string) ([]Location, error) {
	rows, err := s.pool.Query(ctx, hierarchyQuery, locationID)
	if err != nil {
		return nil, fmt.Errorf("query location hierarchy: %w", err)
	}

	chain, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Location, error) {
		var loc Location
		err := row.Scan(&loc.ID, &loc.Name, &loc.Kind, &loc.Code, &loc.PartOf)
		return loc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan location hierarchy: %w", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("location %q: %w", locationID, sentinel.ErrNotFound)
	}
	return chain, nil
}

// Seed inserts locations, replacing existing rows by id. Used by deploy
// tooling and integration tests.
func (s *Postgres) Seed(ctx context.Context, locations []Location) error {
	for _, loc := range locations {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO locations (id, name, kind, code, part_of)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, kind = EXCLUDED.kind,
			    code = EXCLUDED.code, part_of = EXCLUDED.part_of`,
			loc.ID, loc.Name, loc.Kind, loc.Code, loc.PartOf)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("seed location %s: %w", loc.ID, err)
		}
	}
	return nil
}
