package index

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"civreg/internal/event"
)

var tracer = otel.Tracer("civreg/index")

// Service is the search-indexing collaborator the commit pipeline fans out
// to. Upserts are keyed by record id, so replaying a commit is harmless.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Index projects and upserts one committed document.
func (s *Service) Index(ctx context.Context, doc event.EventDocument) error {
	ctx, span := tracer.Start(ctx, "index.Index")
	defer span.End()

	if err := s.store.Upsert(ctx, Flatten(doc)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("index record %s: %w", doc.ID, err)
	}
	return nil
}

// Search lists index rows matching the filter.
func (s *Service) Search(ctx context.Context, filter Filter) ([]event.EventIndex, error) {
	ctx, span := tracer.Start(ctx, "index.Search")
	defer span.End()

	return s.store.List(ctx, filter)
}

// Get returns one index row.
func (s *Service) Get(ctx context.Context, id string) (event.EventIndex, error) {
	return s.store.Get(ctx, id)
}

// Reindex rebuilds the projection for the given documents. The index is
// derived state, so a rebuild is always safe; rows that fail are logged and
// skipped so one bad document doesn't abort the rest.
func (s *Service) Reindex(ctx context.Context, docs []event.EventDocument) error {
	ctx, span := tracer.Start(ctx, "index.Reindex")
	defer span.End()

	var failed int
	for _, doc := range docs {
		if err := s.store.Upsert(ctx, Flatten(doc)); err != nil {
			failed++
			s.logger.ErrorContext(ctx, "reindex row failed",
				"record_id", doc.ID,
				"error", err,
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("reindex: %d of %d rows failed", failed, len(docs))
	}
	return nil
}
