// Package notify delivers informant-facing messages when a record moves
// through the lifecycle. Deliveries go through a redis outbox so a slow or
// failing SMS/email gateway never stalls the commit path.
package notify

import (
	"context"
	"time"
)

// Notification is one pending delivery.
type Notification struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	ActionType string    `json:"actionType"`
	TrackingID string    `json:"trackingId"`
	Recipient  string    `json:"recipient,omitempty"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Sender delivers one notification to its recipient. Implementations wrap
// an SMS or email gateway.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Outbox queues notifications for the delivery worker.
type Outbox interface {
	Enqueue(ctx context.Context, n Notification) error
	// Dequeue blocks until a notification is available or the context is
	// cancelled.
	Dequeue(ctx context.Context) (Notification, error)
}

// Rules decides which lifecycle transitions notify the informant for which
// event types. The zero value notifies for nothing.
type Rules struct {
	// Enabled maps event type -> action type -> enablement. The "*" event
	// type provides defaults that per-type entries override.
	Enabled map[string]map[string]bool
}

// DefaultRules notifies on the transitions informants care about.
func DefaultRules() Rules {
	return Rules{Enabled: map[string]map[string]bool{
		"*": {
			"DECLARE":           true,
			"REGISTER":          true,
			"REJECT":            true,
			"PRINT_CERTIFICATE": true,
			"ISSUE_CERTIFICATE": true,
		},
	}}
}

// IsEnabled reports whether the given transition should produce a
// notification for the given event type.
func (r Rules) IsEnabled(eventType, actionType string) bool {
	if byAction, ok := r.Enabled[eventType]; ok {
		if enabled, ok := byAction[actionType]; ok {
			return enabled
		}
	}
	if byAction, ok := r.Enabled["*"]; ok {
		return byAction[actionType]
	}
	return false
}
