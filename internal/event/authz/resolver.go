// Package authz computes which actions a caller may currently trigger on a
// record. The computation is pure: status, assignment and the caller's
// granted scopes go in, a partitioned action menu comes out.
package authz

import (
	"sort"

	"civreg/internal/event"
	"civreg/pkg/requestcontext"
)

// ActionMenu partitions the candidate actions for a record as seen by one
// caller. Enabled actions can be invoked now. Disabled actions exist but
// need the caller to self-assign first. Hidden actions are omitted from
// responses entirely; they only appear here so tests can assert on the
// partition.
type ActionMenu struct {
	Enabled  []event.ActionType `json:"enabled"`
	Disabled []event.ActionType `json:"disabled"`
	Hidden   []event.ActionType `json:"-"`
}

// Resolver computes action menus from immutable configuration.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// AllowedActions runs the pending-action guard over the log and computes the
// menu for the caller. It fails only when the guard detects an inconsistent
// log; a consistent record never errors.
func (r *Resolver) AllowedActions(eventType string, actions []event.Action, caller requestcontext.CallerInfo) (ActionMenu, error) {
	if _, err := event.FindPendingAction(actions); err != nil {
		return ActionMenu{}, err
	}
	state := event.Project(actions)
	assignment := event.AssignmentFor(actions, caller.UserID)
	return r.Menu(eventType, state, assignment, caller), nil
}

// Menu computes the action menu for a record in the given state. Steps:
// status candidates, assignment actions, scope intersection (lack of scope
// hides), assignment gating (lack of assignment disables).
func (r *Resolver) Menu(eventType string, state event.CurrentState, assignment event.Assignment, caller requestcontext.CallerInfo) ActionMenu {
	candidates := r.candidatesByStatus(state, caller)
	if state.Status != event.StatusDeleted {
		candidates = append(candidates, assignmentActions(assignment, caller)...)
	}

	var menu ActionMenu
	for _, action := range candidates {
		if !r.holdsScope(action, caller) {
			menu.Hidden = append(menu.Hidden, action)
			continue
		}
		if r.cfg.AssignmentGated[action] && assignment != event.AssignedToSelf {
			menu.Disabled = append(menu.Disabled, action)
			continue
		}
		menu.Enabled = append(menu.Enabled, action)
	}

	rank := r.ranking(eventType)
	sortByRank(menu.Enabled, rank)
	sortByRank(menu.Disabled, rank)
	sortByRank(menu.Hidden, rank)
	return menu
}

// candidatesByStatus returns the action set offered for the current
// lifecycle status, before scope and assignment filtering. The correction
// overlay takes precedence: an unresolved request blocks printing and
// further correction requests until resolved.
func (r *Resolver) candidatesByStatus(state event.CurrentState, caller requestcontext.CallerInfo) []event.ActionType {
	if state.PendingCorrectionID != "" {
		return []event.ActionType{event.ActionRead, event.ActionApproveCorrection, event.ActionRejectCorrection}
	}

	switch state.Status {
	case event.StatusCreated:
		return []event.ActionType{event.ActionRead, event.ActionDeclare, event.ActionDelete}
	case event.StatusNotified:
		return []event.ActionType{event.ActionRead, event.ActionDeclare, event.ActionArchive}
	case event.StatusDeclared:
		return []event.ActionType{event.ActionRead, event.ActionEdit, event.ActionValidate, event.ActionReject, event.ActionArchive}
	case event.StatusValidated:
		return []event.ActionType{event.ActionRead, event.ActionRegister}
	case event.StatusRejected:
		// Holders of the validation scope resume at VALIDATE; field agents
		// re-declare.
		if caller.HasScope(ScopeValidate) || caller.HasScope(ScopeRegister) {
			return []event.ActionType{event.ActionRead, event.ActionValidate, event.ActionArchive}
		}
		return []event.ActionType{event.ActionRead, event.ActionDeclare, event.ActionArchive}
	case event.StatusRegistered:
		return []event.ActionType{event.ActionRead, event.ActionPrintCertificate, event.ActionRequestCorrection}
	case event.StatusCertified:
		return []event.ActionType{event.ActionRead, event.ActionIssueCertificate, event.ActionRequestCorrection}
	case event.StatusIssued:
		return []event.ActionType{event.ActionRead}
	case event.StatusArchived:
		return []event.ActionType{event.ActionRead, event.ActionDeclare}
	case event.StatusDeleted:
		return nil
	default:
		return []event.ActionType{event.ActionRead}
	}
}

// assignmentActions are computed separately from the status candidates:
// unassigned records offer ASSIGN, self-assigned offer UNASSIGN, and records
// assigned to someone else offer UNASSIGN only to callers allowed to break
// another user's claim.
func assignmentActions(assignment event.Assignment, caller requestcontext.CallerInfo) []event.ActionType {
	switch assignment {
	case event.Unassigned:
		return []event.ActionType{event.ActionAssign}
	case event.AssignedToSelf:
		return []event.ActionType{event.ActionUnassign}
	case event.AssignedToOther:
		if caller.HasScope(ScopeUnassignOthers) {
			return []event.ActionType{event.ActionUnassign}
		}
		return nil
	default:
		return nil
	}
}

func (r *Resolver) holdsScope(action event.ActionType, caller requestcontext.CallerInfo) bool {
	required, ok := r.cfg.RequiredScopes[action]
	if !ok {
		return false
	}
	for _, scope := range required {
		if caller.HasScope(scope) {
			return true
		}
	}
	return false
}

func (r *Resolver) ranking(eventType string) map[event.ActionType]int {
	rank := make(map[event.ActionType]int, len(r.cfg.DefaultOrder))
	for i, action := range r.cfg.DefaultOrder {
		rank[action] = i
	}
	for i, action := range r.cfg.OrderOverrides[eventType] {
		rank[action] = i
	}
	return rank
}

func sortByRank(actions []event.ActionType, rank map[event.ActionType]int) {
	sort.SliceStable(actions, func(i, j int) bool {
		ri, ok := rank[actions[i]]
		if !ok {
			ri = len(rank)
		}
		rj, ok := rank[actions[j]]
		if !ok {
			rj = len(rank)
		}
		return ri < rj
	})
}
