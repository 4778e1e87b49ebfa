// Package index maintains the searchable projection of committed records.
// The projection is derived state: it can be dropped and rebuilt from the
// action logs at any time, and upserts are idempotent by record id.
package index

import (
	"context"

	"civreg/internal/event"
)

// Store is the persistence contract for the projection.
type Store interface {
	Upsert(ctx context.Context, idx event.EventIndex) error
	Get(ctx context.Context, id string) (event.EventIndex, error)
	List(ctx context.Context, filter Filter) ([]event.EventIndex, error)
	Delete(ctx context.Context, id string) error
}

// Filter narrows workqueue listings. Zero values match everything; DELETED
// records are excluded unless IncludeDeleted is set.
type Filter struct {
	Type           string
	Status         event.Status
	AssignedTo     string
	IncludeDeleted bool
}

// Flatten projects an event document into its index row. Status, assignment
// and declared fields are all recomputed from the log, never read from
// cached state.
func Flatten(doc event.EventDocument) event.EventIndex {
	state := event.Project(doc.Actions)

	idx := event.EventIndex{
		ID:                 doc.ID,
		Type:               doc.Type,
		Status:             state.Status,
		TrackingID:         doc.TrackingID,
		RegistrationNumber: doc.RegistrationNumber,
		AssignedTo:         event.ResolveAssignment(doc.Actions),
		PendingCorrection:  state.PendingCorrectionID != "",
		Duplicate:          state.Duplicate,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
		Declaration:        event.DeclaredFields(doc.Actions),
	}
	if n := len(doc.Actions); n > 0 {
		idx.UpdatedAtLocation = doc.Actions[n-1].CreatedAtLocation
	}
	return idx
}
