package record

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civreg/internal/event"
	"civreg/pkg/platform/sentinel"
)

type RecordStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreSuite))
}

func (s *RecordStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *RecordStoreSuite) newDoc(trackingID string) event.EventDocument {
	now := time.Now()
	return event.EventDocument{
		Type:       "birth",
		TrackingID: trackingID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Actions: []event.Action{{
			ID:        uuid.NewString(),
			Type:      event.ActionCreate,
			Status:    event.ActionStatusAccepted,
			CreatedBy: "agent-1",
			CreatedAt: now,
		}},
	}
}

func (s *RecordStoreSuite) TestCreatePopulatesServerIdentifiers() {
	created, err := s.store.Create(s.ctx, s.newDoc("B-AAA111"))
	s.Require().NoError(err)
	s.NotEmpty(created.ID)
	s.EqualValues(1, created.Version)

	found, err := s.store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.TrackingID, found.TrackingID)

	byTracking, err := s.store.GetByTrackingID(s.ctx, "B-AAA111")
	s.Require().NoError(err)
	s.Equal(created.ID, byTracking.ID)
}

func (s *RecordStoreSuite) TestTrackingIDCollisionConflicts() {
	_, err := s.store.Create(s.ctx, s.newDoc("B-AAA111"))
	s.Require().NoError(err)

	_, err = s.store.Create(s.ctx, s.newDoc("B-AAA111"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *RecordStoreSuite) TestRegistrationNumberCollisionConflicts() {
	first := s.newDoc("B-AAA111")
	first.RegistrationNumber = "2026102400000019"
	_, err := s.store.Create(s.ctx, first)
	s.Require().NoError(err)

	second, err := s.store.Create(s.ctx, s.newDoc("B-BBB222"))
	s.Require().NoError(err)
	second.RegistrationNumber = "2026102400000019"
	_, err = s.store.Update(s.ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *RecordStoreSuite) TestStaleVersionConflicts() {
	created, err := s.store.Create(s.ctx, s.newDoc("B-AAA111"))
	s.Require().NoError(err)

	updated, err := s.store.Update(s.ctx, created)
	s.Require().NoError(err)
	s.EqualValues(2, updated.Version)

	// A second writer still holding version 1 must be rejected.
	_, err = s.store.Update(s.ctx, created)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *RecordStoreSuite) TestUpdateUnknownDocument() {
	doc := s.newDoc("B-AAA111")
	doc.ID = uuid.NewString()
	_, err := s.store.Update(s.ctx, doc)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentAppends races writers against one document; version checks
// must admit exactly one writer per version.
func (s *RecordStoreSuite) TestConcurrentAppends() {
	created, err := s.store.Create(s.ctx, s.newDoc("B-AAA111"))
	s.Require().NoError(err)

	const writers = 20
	var wg sync.WaitGroup
	successes := make(chan event.EventDocument, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := created.Clone()
			doc.Actions = append(doc.Actions, event.Action{
				ID:     uuid.NewString(),
				Type:   event.ActionDeclare,
				Status: event.ActionStatusAccepted,
			})
			if updated, err := s.store.Update(s.ctx, doc); err == nil {
				successes <- updated
			}
		}()
	}
	wg.Wait()
	close(successes)

	s.Len(successes, 1)
}

func (s *RecordStoreSuite) TestStoredDocumentIsIsolatedFromCallerMutation() {
	created, err := s.store.Create(s.ctx, s.newDoc("B-AAA111"))
	s.Require().NoError(err)

	created.Actions[0].CreatedBy = "tampered"
	found, err := s.store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("agent-1", found.Actions[0].CreatedBy)
}
