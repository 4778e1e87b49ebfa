package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func assignAction(t ActionType, assignee string) Action {
	return Action{
		ID:         uuid.NewString(),
		Type:       t,
		Status:     ActionStatusAccepted,
		AssignedTo: assignee,
	}
}

func TestResolveAssignment(t *testing.T) {
	t.Run("no assignment actions means unassigned", func(t *testing.T) {
		log := []Action{assignAction(ActionCreate, ""), assignAction(ActionDeclare, "")}
		require.Empty(t, ResolveAssignment(log))
	})

	t.Run("last assign wins", func(t *testing.T) {
		log := []Action{
			assignAction(ActionAssign, "agent-1"),
			assignAction(ActionAssign, "agent-2"),
		}
		require.Equal(t, "agent-2", ResolveAssignment(log))
	})

	t.Run("unassign clears an earlier assign", func(t *testing.T) {
		log := []Action{
			assignAction(ActionAssign, "agent-1"),
			assignAction(ActionUnassign, ""),
		}
		require.Empty(t, ResolveAssignment(log))
	})

	t.Run("reassignment after unassign", func(t *testing.T) {
		log := []Action{
			assignAction(ActionAssign, "agent-1"),
			assignAction(ActionUnassign, ""),
			assignAction(ActionAssign, "registrar-9"),
		}
		require.Equal(t, "registrar-9", ResolveAssignment(log))
	})

	t.Run("deterministic over replays", func(t *testing.T) {
		log := []Action{
			assignAction(ActionAssign, "agent-1"),
			assignAction(ActionDeclare, ""),
			assignAction(ActionUnassign, ""),
			assignAction(ActionAssign, "agent-3"),
		}
		first := ResolveAssignment(log)
		for i := 0; i < 100; i++ {
			require.Equal(t, first, ResolveAssignment(log))
		}
	})
}

func TestAssignmentFor(t *testing.T) {
	log := []Action{assignAction(ActionAssign, "agent-1")}

	require.Equal(t, AssignedToSelf, AssignmentFor(log, "agent-1"))
	require.Equal(t, AssignedToOther, AssignmentFor(log, "agent-2"))
	require.Equal(t, Unassigned, AssignmentFor(nil, "agent-1"))
}
