package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"civreg/internal/event"
	"civreg/pkg/platform/sentinel"
)

// InMemory is a map-backed index store for tests and single-node use.
type InMemory struct {
	mu   sync.RWMutex
	rows map[string]event.EventIndex
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[string]event.EventIndex)}
}

func (s *InMemory) Upsert(_ context.Context, idx event.EventIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[idx.ID] = idx
	return nil
}

func (s *InMemory) Get(_ context.Context, id string) (event.EventIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.rows[id]
	if !ok {
		return event.EventIndex{}, fmt.Errorf("index row %s: %w", id, sentinel.ErrNotFound)
	}
	return idx, nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]event.EventIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.EventIndex
	for _, idx := range s.rows {
		if !matches(idx, filter) {
			continue
		}
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func matches(idx event.EventIndex, filter Filter) bool {
	if idx.Status == event.StatusDeleted && !filter.IncludeDeleted {
		return false
	}
	if filter.Type != "" && idx.Type != filter.Type {
		return false
	}
	if filter.Status != "" && idx.Status != filter.Status {
		return false
	}
	if filter.AssignedTo != "" && idx.AssignedTo != filter.AssignedTo {
		return false
	}
	return true
}
