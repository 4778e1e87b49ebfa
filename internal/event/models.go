// Package event holds the action-sourced record model: immutable typed
// actions appended to a per-record log, and the pure projections (status,
// assignment, pending work) derived from it. Nothing in this package
// performs I/O.
package event

import (
	"time"
)

// ActionType is the closed set of facts that can be appended to a record.
type ActionType string

const (
	ActionCreate            ActionType = "CREATE"
	ActionRead              ActionType = "READ"
	ActionNotify            ActionType = "NOTIFY"
	ActionDeclare           ActionType = "DECLARE"
	ActionValidate          ActionType = "VALIDATE"
	ActionRegister          ActionType = "REGISTER"
	ActionReject            ActionType = "REJECT"
	ActionArchive           ActionType = "ARCHIVE"
	ActionAssign            ActionType = "ASSIGN"
	ActionUnassign          ActionType = "UNASSIGN"
	ActionRequestCorrection ActionType = "REQUEST_CORRECTION"
	ActionApproveCorrection ActionType = "APPROVE_CORRECTION"
	ActionRejectCorrection  ActionType = "REJECT_CORRECTION"
	ActionPrintCertificate  ActionType = "PRINT_CERTIFICATE"
	ActionIssueCertificate  ActionType = "ISSUE_CERTIFICATE"
	ActionDelete            ActionType = "DELETE"
	ActionEdit              ActionType = "EDIT"
	ActionCustom            ActionType = "CUSTOM"
	ActionDetectDuplicate   ActionType = "DETECT_DUPLICATE"
	ActionMarkedAsDuplicate ActionType = "MARKED_AS_DUPLICATE"
)

// AllActionTypes is used for exhaustiveness checks in tests and for
// validating inbound requests.
var AllActionTypes = []ActionType{
	ActionCreate, ActionRead, ActionNotify, ActionDeclare, ActionValidate,
	ActionRegister, ActionReject, ActionArchive, ActionAssign, ActionUnassign,
	ActionRequestCorrection, ActionApproveCorrection, ActionRejectCorrection,
	ActionPrintCertificate, ActionIssueCertificate, ActionDelete, ActionEdit,
	ActionCustom, ActionDetectDuplicate, ActionMarkedAsDuplicate,
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	for _, known := range AllActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ActionStatus is the request/response pairing for actions that need
// asynchronous confirmation. Immediate actions are created as Accepted.
type ActionStatus string

const (
	ActionStatusRequested ActionStatus = "Requested"
	ActionStatusAccepted  ActionStatus = "Accepted"
	ActionStatusRejected  ActionStatus = "Rejected"
)

// UserType distinguishes human actors from system actors.
type UserType string

const (
	UserTypeUser   UserType = "user"
	UserTypeSystem UserType = "system"
)

// Status is a record's lifecycle status derived from its action log.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusNotified   Status = "NOTIFIED"
	StatusDeclared   Status = "DECLARED"
	StatusValidated  Status = "VALIDATED"
	StatusRegistered Status = "REGISTERED"
	StatusCertified  Status = "CERTIFIED"
	StatusIssued     Status = "ISSUED"
	StatusRejected   Status = "REJECTED"
	StatusArchived   Status = "ARCHIVED"
	StatusDeleted    Status = "DELETED"
)

// Declaration is a partial field-path -> value patch describing what an
// action changed.
type Declaration map[string]any

// Action is an immutable fact appended to a record's history. Actions are
// never mutated or deleted once accepted; corrections are resolved by later
// actions referencing the request via OriginalActionID.
type Action struct {
	ID                string       `json:"id"`
	Type              ActionType   `json:"type"`
	Status            ActionStatus `json:"status"`
	CreatedBy         string       `json:"createdBy"`
	CreatedByRole     string       `json:"createdByRole,omitempty"`
	CreatedByUserType UserType     `json:"createdByUserType,omitempty"`
	CreatedAtLocation string       `json:"createdAtLocation,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	TransactionID     string       `json:"transactionId,omitempty"`
	Declaration       Declaration  `json:"declaration,omitempty"`

	// AssignedTo carries the target of an ASSIGN action.
	AssignedTo string `json:"assignedTo,omitempty"`

	// OriginalActionID links an Accepted/Rejected resolution back to the
	// Requested action it resolves. Never forms a cycle.
	OriginalActionID string `json:"originalActionId,omitempty"`

	// RegistrationNumber is set on the accepted REGISTER action.
	RegistrationNumber string `json:"registrationNumber,omitempty"`
}

// Resolves reports whether a resolves the request with the given ID.
func (a Action) Resolves(requestID string) bool {
	if a.OriginalActionID != requestID || requestID == "" {
		return false
	}
	return a.Status == ActionStatusAccepted || a.Status == ActionStatusRejected
}

// EventDocument is the full action log plus identifying metadata for one
// civil-registration record. The document owns its actions.
type EventDocument struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	TrackingID         string    `json:"trackingId"`
	RegistrationNumber string    `json:"registrationNumber,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	Actions            []Action  `json:"actions"`

	// Version is the store's optimistic-concurrency token. Zero for a
	// document that has never been written.
	Version int64 `json:"version,omitempty"`
}

// Clone returns a deep enough copy for mutation during a commit attempt;
// the original stays untouched if the write is rejected.
func (d EventDocument) Clone() EventDocument {
	out := d
	out.Actions = make([]Action, len(d.Actions))
	copy(out.Actions, d.Actions)
	return out
}

// CurrentState is the composite projection of a record: the base lifecycle
// status plus the correction overlay. A non-empty PendingCorrectionID blocks
// certificate printing and further correction requests until resolved.
type CurrentState struct {
	Status              Status
	PendingCorrectionID string
	Duplicate           bool
}

// EventIndex is the derived, recomputable projection of an EventDocument
// used by search and workqueues. Never the source of truth.
type EventIndex struct {
	ID                 string      `json:"id"`
	Type               string      `json:"type"`
	Status             Status      `json:"status"`
	TrackingID         string      `json:"trackingId"`
	RegistrationNumber string      `json:"registrationNumber,omitempty"`
	AssignedTo         string      `json:"assignedTo,omitempty"`
	PendingCorrection  bool        `json:"pendingCorrection,omitempty"`
	Duplicate          bool        `json:"duplicate,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
	UpdatedAtLocation  string      `json:"updatedAtLocation,omitempty"`
	Declaration        Declaration `json:"declaration,omitempty"`
}
