package event

// transitions is the (status, actionType) -> status lookup the projector
// folds with. Absent entries leave the base status unchanged, which keeps
// the fold total: replaying any log always yields a defined state.
var transitions = map[Status]map[ActionType]Status{
	StatusCreated: {
		ActionNotify:  StatusNotified,
		ActionDeclare: StatusDeclared,
		ActionDelete:  StatusDeleted,
	},
	StatusNotified: {
		ActionDeclare: StatusDeclared,
		ActionArchive: StatusArchived,
	},
	StatusDeclared: {
		ActionValidate: StatusValidated,
		ActionRegister: StatusRegistered,
		ActionReject:   StatusRejected,
		ActionArchive:  StatusArchived,
	},
	StatusValidated: {
		ActionRegister: StatusRegistered,
		ActionReject:   StatusRejected,
		ActionArchive:  StatusArchived,
	},
	StatusRejected: {
		ActionDeclare:  StatusDeclared,
		ActionValidate: StatusValidated,
		ActionArchive:  StatusArchived,
	},
	StatusArchived: {
		ActionDeclare: StatusDeclared,
	},
	StatusRegistered: {
		ActionPrintCertificate: StatusCertified,
	},
	StatusCertified: {
		ActionIssueCertificate: StatusIssued,
	},
}

// Project derives the current composite state from an ordered action log.
// It is a pure, deterministic left fold: replaying the same log always
// yields the same state.
//
// Only Accepted actions advance the base status. A Requested
// REQUEST_CORRECTION sets the correction overlay; the matching
// APPROVE_CORRECTION or REJECT_CORRECTION (by OriginalActionID) clears it.
// An empty log projects to CREATED.
func Project(actions []Action) CurrentState {
	state := CurrentState{Status: StatusCreated}

	for _, action := range actions {
		switch action.Type {
		case ActionRequestCorrection:
			if action.Status == ActionStatusRequested {
				state.PendingCorrectionID = action.ID
			}
			continue
		case ActionApproveCorrection, ActionRejectCorrection:
			if action.Resolves(state.PendingCorrectionID) {
				state.PendingCorrectionID = ""
			}
			continue
		case ActionMarkedAsDuplicate:
			if action.Status == ActionStatusAccepted {
				state.Duplicate = true
			}
			continue
		}

		if action.Status != ActionStatusAccepted {
			continue
		}
		if next, ok := transitions[state.Status][action.Type]; ok {
			state.Status = next
		}
	}

	return state
}

// DeclaredFields folds the accepted declaration patches of a log into the
// flattened field map the index carries. Later patches win per field path;
// an approved correction applies the patch recorded on its request.
func DeclaredFields(actions []Action) Declaration {
	fields := Declaration{}
	byID := make(map[string]Action, len(actions))
	for _, action := range actions {
		byID[action.ID] = action
	}

	for _, action := range actions {
		switch action.Type {
		case ActionCreate, ActionNotify, ActionDeclare, ActionValidate, ActionRegister, ActionEdit:
			if action.Status != ActionStatusAccepted {
				continue
			}
			for path, value := range action.Declaration {
				fields[path] = value
			}
		case ActionApproveCorrection:
			if action.Status != ActionStatusAccepted {
				continue
			}
			request, ok := byID[action.OriginalActionID]
			if !ok {
				continue
			}
			for path, value := range request.Declaration {
				fields[path] = value
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}
