// Package record implements the record-store contract the commit pipeline
// writes through: create/update of event documents with optimistic-conflict
// semantics and store-enforced identifier uniqueness.
package record

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"civreg/internal/event"
	"civreg/pkg/platform/sentinel"
)

// InMemory is a map-backed record store mirroring the conflict semantics of
// the Postgres store so services can be tested without infrastructure.
type InMemory struct {
	mu         sync.RWMutex
	docs       map[string]event.EventDocument
	byTracking map[string]string
	byRegNo    map[string]string
}

func NewInMemory() *InMemory {
	return &InMemory{
		docs:       make(map[string]event.EventDocument),
		byTracking: make(map[string]string),
		byRegNo:    make(map[string]string),
	}
}

// Create persists a new document. The store assigns the document id when
// empty and populates the initial version; both are returned to the caller.
// A tracking-id or registration-number collision fails with ErrConflict.
func (s *InMemory) Create(_ context.Context, doc event.EventDocument) (event.EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if _, exists := s.docs[doc.ID]; exists {
		return event.EventDocument{}, fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrConflict)
	}
	if owner, taken := s.byTracking[doc.TrackingID]; taken && owner != doc.ID {
		return event.EventDocument{}, fmt.Errorf("tracking id %s: %w", doc.TrackingID, sentinel.ErrConflict)
	}
	if err := s.checkRegNo(doc); err != nil {
		return event.EventDocument{}, err
	}

	doc.Version = 1
	s.put(doc)
	return doc.Clone(), nil
}

// Update replaces a document if the caller holds the current version,
// incrementing it. A stale version or identifier collision fails with
// ErrConflict.
func (s *InMemory) Update(_ context.Context, doc event.EventDocument) (event.EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.docs[doc.ID]
	if !ok {
		return event.EventDocument{}, fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrNotFound)
	}
	if stored.Version != doc.Version {
		return event.EventDocument{}, fmt.Errorf("document %s version %d (have %d): %w",
			doc.ID, doc.Version, stored.Version, sentinel.ErrConflict)
	}
	if err := s.checkRegNo(doc); err != nil {
		return event.EventDocument{}, err
	}

	delete(s.byTracking, stored.TrackingID)
	delete(s.byRegNo, stored.RegistrationNumber)
	doc.Version++
	s.put(doc)
	return doc.Clone(), nil
}

// Get returns the stored document.
func (s *InMemory) Get(_ context.Context, id string) (event.EventDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return event.EventDocument{}, fmt.Errorf("document %s: %w", id, sentinel.ErrNotFound)
	}
	return doc.Clone(), nil
}

// GetByTrackingID returns the document registered under a tracking id.
func (s *InMemory) GetByTrackingID(_ context.Context, trackingID string) (event.EventDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTracking[trackingID]
	if !ok {
		return event.EventDocument{}, fmt.Errorf("tracking id %s: %w", trackingID, sentinel.ErrNotFound)
	}
	return s.docs[id].Clone(), nil
}

func (s *InMemory) checkRegNo(doc event.EventDocument) error {
	if doc.RegistrationNumber == "" {
		return nil
	}
	if owner, taken := s.byRegNo[doc.RegistrationNumber]; taken && owner != doc.ID {
		return fmt.Errorf("registration number %s: %w", doc.RegistrationNumber, sentinel.ErrConflict)
	}
	return nil
}

func (s *InMemory) put(doc event.EventDocument) {
	s.docs[doc.ID] = doc.Clone()
	if doc.TrackingID != "" {
		s.byTracking[doc.TrackingID] = doc.ID
	}
	if doc.RegistrationNumber != "" {
		s.byRegNo[doc.RegistrationNumber] = doc.ID
	}
}
