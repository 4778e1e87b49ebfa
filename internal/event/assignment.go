package event

// ResolveAssignment derives the current claim on a record: the last ASSIGN
// or UNASSIGN in log order wins. ASSIGN sets the assignee from its payload,
// UNASSIGN clears it. A log with neither is unassigned ("").
//
// The log is stored in createdAt order with ties broken by append order, so
// a plain scan from the back is sufficient.
func ResolveAssignment(actions []Action) string {
	for i := len(actions) - 1; i >= 0; i-- {
		switch actions[i].Type {
		case ActionAssign:
			return actions[i].AssignedTo
		case ActionUnassign:
			return ""
		}
	}
	return ""
}

// Assignment classifies a record's claim relative to a caller.
type Assignment int

const (
	Unassigned Assignment = iota
	AssignedToSelf
	AssignedToOther
)

// AssignmentFor resolves the assignment state as observed by userID.
func AssignmentFor(actions []Action, userID string) Assignment {
	assignee := ResolveAssignment(actions)
	switch assignee {
	case "":
		return Unassigned
	case userID:
		return AssignedToSelf
	default:
		return AssignedToOther
	}
}
