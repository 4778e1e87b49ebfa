package authz

import "civreg/internal/event"

// Config is the immutable permission configuration injected into a Resolver
// at construction. It is never mutated at runtime; per-event-type behavior
// comes from OrderOverrides, not from shared global state.
type Config struct {
	// RequiredScopes maps an action type to the scopes that may trigger it
	// (any one suffices). An action type a caller holds no scope for is
	// hidden from them entirely.
	RequiredScopes map[event.ActionType][]string

	// AssignmentGated lists the action types that additionally require the
	// record to be assigned to the caller. Lacking assignment disables the
	// action rather than hiding it: the caller can see it exists and
	// self-assign first.
	AssignmentGated map[event.ActionType]bool

	// DefaultOrder fixes menu presentation order. OrderOverrides replaces
	// the ranking per event type; types absent from an override keep their
	// default-order rank.
	DefaultOrder   []event.ActionType
	OrderOverrides map[string][]event.ActionType
}

// DefaultConfig returns the standard permission tables.
func DefaultConfig() Config {
	return Config{
		RequiredScopes: map[event.ActionType][]string{
			event.ActionRead:              {ScopeRead, ScopeDeclare, ScopeValidate, ScopeRegister},
			event.ActionNotify:            {ScopeNotify},
			event.ActionDeclare:           {ScopeDeclare},
			event.ActionValidate:          {ScopeValidate},
			event.ActionRegister:          {ScopeRegister},
			event.ActionReject:            {ScopeValidate, ScopeRegister},
			event.ActionArchive:           {ScopeArchive},
			event.ActionAssign:            {ScopeAssign},
			event.ActionUnassign:          {ScopeAssign, ScopeUnassignOthers},
			event.ActionRequestCorrection: {ScopeCorrectionRequest},
			event.ActionApproveCorrection: {ScopeCorrectionApprove},
			event.ActionRejectCorrection:  {ScopeCorrectionApprove},
			event.ActionPrintCertificate:  {ScopeCertify},
			event.ActionIssueCertificate:  {ScopeCertify},
			event.ActionDelete:            {ScopeDeclare},
			event.ActionEdit:              {ScopeDeclare},
			event.ActionCustom:            {ScopeCustom},
			event.ActionDetectDuplicate:   {ScopeDuplicates},
			event.ActionMarkedAsDuplicate: {ScopeDuplicates},
		},
		AssignmentGated: map[event.ActionType]bool{
			event.ActionDeclare:           true,
			event.ActionValidate:          true,
			event.ActionRegister:          true,
			event.ActionReject:            true,
			event.ActionArchive:           true,
			event.ActionRequestCorrection: true,
			event.ActionApproveCorrection: true,
			event.ActionRejectCorrection:  true,
			event.ActionPrintCertificate:  true,
			event.ActionIssueCertificate:  true,
			event.ActionDelete:            true,
			event.ActionEdit:              true,
		},
		DefaultOrder: []event.ActionType{
			event.ActionRead,
			event.ActionDeclare,
			event.ActionEdit,
			event.ActionValidate,
			event.ActionRegister,
			event.ActionPrintCertificate,
			event.ActionIssueCertificate,
			event.ActionRequestCorrection,
			event.ActionApproveCorrection,
			event.ActionRejectCorrection,
			event.ActionReject,
			event.ActionArchive,
			event.ActionAssign,
			event.ActionUnassign,
			event.ActionDelete,
		},
		OrderOverrides: map[string][]event.ActionType{},
	}
}
