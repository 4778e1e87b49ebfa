package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type ProjectorSuite struct {
	suite.Suite
	clock time.Time
}

func TestProjectorSuite(t *testing.T) {
	suite.Run(t, new(ProjectorSuite))
}

func (s *ProjectorSuite) SetupTest() {
	s.clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ProjectorSuite) action(t ActionType) Action {
	s.clock = s.clock.Add(time.Minute)
	return Action{
		ID:        uuid.NewString(),
		Type:      t,
		Status:    ActionStatusAccepted,
		CreatedBy: "user-1",
		CreatedAt: s.clock,
	}
}

func (s *ProjectorSuite) TestEmptyLogProjectsCreated() {
	state := Project(nil)
	s.Equal(StatusCreated, state.Status)
	s.Empty(state.PendingCorrectionID)
}

func (s *ProjectorSuite) TestLifecycleHappyPath() {
	log := []Action{
		s.action(ActionCreate),
		s.action(ActionDeclare),
		s.action(ActionValidate),
		s.action(ActionRegister),
		s.action(ActionPrintCertificate),
		s.action(ActionIssueCertificate),
	}

	statuses := make([]Status, 0, len(log))
	for i := range log {
		statuses = append(statuses, Project(log[:i+1]).Status)
	}
	s.Equal([]Status{
		StatusCreated, StatusDeclared, StatusValidated,
		StatusRegistered, StatusCertified, StatusIssued,
	}, statuses)
}

func (s *ProjectorSuite) TestNotifiedBranch() {
	log := []Action{s.action(ActionCreate), s.action(ActionNotify)}
	s.Equal(StatusNotified, Project(log).Status)

	log = append(log, s.action(ActionDeclare))
	s.Equal(StatusDeclared, Project(log).Status)
}

func (s *ProjectorSuite) TestRejectedIsReEnterable() {
	log := []Action{
		s.action(ActionCreate),
		s.action(ActionDeclare),
		s.action(ActionReject),
	}
	s.Equal(StatusRejected, Project(log).Status)

	s.Run("via re-declare", func() {
		s.Equal(StatusDeclared, Project(append(log, s.action(ActionDeclare))).Status)
	})
	s.Run("via validate when reviewer holds the higher scope", func() {
		s.Equal(StatusValidated, Project(append(log, s.action(ActionValidate))).Status)
	})
}

func (s *ProjectorSuite) TestArchivedCanBeRedeclared() {
	log := []Action{
		s.action(ActionCreate),
		s.action(ActionDeclare),
		s.action(ActionArchive),
	}
	s.Equal(StatusArchived, Project(log).Status)
	s.Equal(StatusDeclared, Project(append(log, s.action(ActionDeclare))).Status)
}

func (s *ProjectorSuite) TestDeleteIsTerminalFromCreated() {
	log := []Action{s.action(ActionCreate), s.action(ActionDelete)}
	s.Equal(StatusDeleted, Project(log).Status)

	// The log is retained; later replays still project deterministically.
	s.Equal(StatusDeleted, Project(append(log, s.action(ActionDeclare))).Status)
}

func (s *ProjectorSuite) TestCorrectionOverlay() {
	log := []Action{
		s.action(ActionCreate),
		s.action(ActionDeclare),
		s.action(ActionRegister),
	}

	request := s.action(ActionRequestCorrection)
	request.Status = ActionStatusRequested
	log = append(log, request)

	state := Project(log)
	s.Equal(StatusRegistered, state.Status, "overlay must not replace the base status")
	s.Equal(request.ID, state.PendingCorrectionID)

	s.Run("approval clears the overlay", func() {
		approve := s.action(ActionApproveCorrection)
		approve.OriginalActionID = request.ID
		state := Project(append(log, approve))
		s.Equal(StatusRegistered, state.Status)
		s.Empty(state.PendingCorrectionID)
	})

	s.Run("rejection clears the overlay", func() {
		rejected := s.action(ActionRejectCorrection)
		rejected.Status = ActionStatusRejected
		rejected.OriginalActionID = request.ID
		state := Project(append(log, rejected))
		s.Empty(state.PendingCorrectionID)
	})

	s.Run("resolution for a different request leaves overlay pending", func() {
		approve := s.action(ActionApproveCorrection)
		approve.OriginalActionID = uuid.NewString()
		state := Project(append(log, approve))
		s.Equal(request.ID, state.PendingCorrectionID)
	})
}

func (s *ProjectorSuite) TestRequestedActionsDoNotAdvanceBaseStatus() {
	declare := s.action(ActionDeclare)
	declare.Status = ActionStatusRequested
	log := []Action{s.action(ActionCreate), declare}
	s.Equal(StatusCreated, Project(log).Status)
}

func (s *ProjectorSuite) TestMarkedAsDuplicateSetsFlagOnly() {
	log := []Action{
		s.action(ActionCreate),
		s.action(ActionDeclare),
		s.action(ActionMarkedAsDuplicate),
	}
	state := Project(log)
	s.Equal(StatusDeclared, state.Status)
	s.True(state.Duplicate)
}

// TestDeterminism replays the same log repeatedly and expects identical
// results: the projector is a pure fold over log order.
func (s *ProjectorSuite) TestDeterminism() {
	log := []Action{
		s.action(ActionCreate),
		s.action(ActionDeclare),
		s.action(ActionValidate),
		s.action(ActionAssign),
		s.action(ActionRegister),
	}
	first := Project(log)
	for i := 0; i < 100; i++ {
		s.Equal(first, Project(log))
	}
}

func (s *ProjectorSuite) TestDeclaredFields() {
	create := s.action(ActionCreate)
	declare := s.action(ActionDeclare)
	declare.Declaration = Declaration{"child.name": "Amina", "child.dob": "2026-01-12"}
	edit := s.action(ActionEdit)
	edit.Declaration = Declaration{"child.name": "Amina Rahman"}

	fields := DeclaredFields([]Action{create, declare, edit})
	s.Equal("Amina Rahman", fields["child.name"])
	s.Equal("2026-01-12", fields["child.dob"])

	s.Run("approved correction applies the request's patch", func() {
		request := s.action(ActionRequestCorrection)
		request.Status = ActionStatusRequested
		request.Declaration = Declaration{"child.dob": "2026-01-13"}
		approve := s.action(ActionApproveCorrection)
		approve.OriginalActionID = request.ID

		fields := DeclaredFields([]Action{create, declare, request, approve})
		s.Equal("2026-01-13", fields["child.dob"])
	})

	s.Run("unapproved request patch is not applied", func() {
		request := s.action(ActionRequestCorrection)
		request.Status = ActionStatusRequested
		request.Declaration = Declaration{"child.dob": "2026-01-13"}

		fields := DeclaredFields([]Action{create, declare, request})
		s.Equal("2026-01-12", fields["child.dob"])
	})
}
