package event

import (
	"fmt"
	"strings"
)

// MultiplePendingActionsError indicates a corrupted action log: more than one
// Requested action is awaiting resolution. It carries the offending action
// IDs in log order and is never auto-resolved.
type MultiplePendingActionsError struct {
	ActionIDs []string
}

func (e *MultiplePendingActionsError) Error() string {
	return fmt.Sprintf("multiple pending actions: %s", strings.Join(e.ActionIDs, ", "))
}

// FindPendingAction returns the single unresolved Requested action, or nil
// when nothing is pending. An action is resolved only by a later
// Accepted/Rejected action referencing it via OriginalActionID; type and
// timestamp alone never match.
//
// At most one unresolved request may exist per record: it is the guard that
// keeps two registrars from racing conflicting correction workflows. A log
// holding two or more fails with MultiplePendingActionsError.
func FindPendingAction(actions []Action) (*Action, error) {
	resolved := make(map[string]bool)
	for _, action := range actions {
		if action.OriginalActionID != "" && action.Resolves(action.OriginalActionID) {
			resolved[action.OriginalActionID] = true
		}
	}

	var pending []*Action
	for i := range actions {
		action := &actions[i]
		if action.Status != ActionStatusRequested {
			continue
		}
		if resolved[action.ID] {
			continue
		}
		pending = append(pending, action)
	}

	switch len(pending) {
	case 0:
		return nil, nil
	case 1:
		return pending[0], nil
	default:
		ids := make([]string, len(pending))
		for i, action := range pending {
			ids[i] = action.ID
		}
		return nil, &MultiplePendingActionsError{ActionIDs: ids}
	}
}
