// Package audit records who did what to which record. Every committed
// action produces one audit entry, fanned out to the trail store and,
// when configured, the audit topic.
package audit

import (
	"context"
	"time"
)

// Entry captures one committed action for the audit trail. Keep it
// transport-agnostic so stores and sinks can fan out.
type Entry struct {
	ID             string    `json:"id"`
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	ActionID       string    `json:"actionId"`
	ActionType     string    `json:"actionType"`
	ActionStatus   string    `json:"actionStatus"`
	Actor          string    `json:"actor"`
	Role           string    `json:"role,omitempty"`
	UserType       string    `json:"userType,omitempty"`
	OfficeLocation string    `json:"officeLocation,omitempty"`
	Device         string    `json:"device,omitempty"`
	ClientIP       string    `json:"clientIp,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByEvent(ctx context.Context, eventID string) ([]Entry, error)
}
