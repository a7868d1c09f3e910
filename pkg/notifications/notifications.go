// Package notifications emits lifecycle events for group changes to the
// platform notification service.
package notifications

import (
	"context"
	"time"
)

// EventType represents the type of notification event
type EventType string

const (
	EventGroupCreated                EventType = "group-created"
	EventGroupUpdated                EventType = "group-updated"
	EventGroupDeleted                EventType = "group-deleted"
	EventPlatformDefaultTurnedCustom EventType = "platform-default-group-turned-into-custom"
	EventCustomDefaultAccessUpdated  EventType = "custom-default-access-updated"
)

// Membership operations carried in event payloads.
const (
	OperationAdded   = "added"
	OperationRemoved = "removed"
)

// RoleRef identifies a role inside an event payload.
type RoleRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Payload carries the group state and, for membership and role events, what
// changed.
type Payload struct {
	Name      string   `json:"name"`
	Username  string   `json:"username"`
	UUID      string   `json:"uuid"`
	Operation string   `json:"operation,omitempty"`
	Role      *RoleRef `json:"role,omitempty"`
	Principal string   `json:"principal,omitempty"`
}

// Event is a single event inside an envelope.
type Event struct {
	Metadata map[string]any `json:"metadata"`
	Payload  Payload        `json:"payload"`
}

// Envelope is the wire format the notification service consumes.
type Envelope struct {
	Bundle      string    `json:"bundle"`
	Application string    `json:"application"`
	EventType   EventType `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	AccountID   string    `json:"account_id"`
	OrgID       string    `json:"org_id"`
	Events      []Event   `json:"events"`
}

// NewEnvelope builds an envelope with the fixed bundle and application
// identifiers.
func NewEnvelope(eventType EventType, accountID, orgID string, payload Payload) Envelope {
	return Envelope{
		Bundle:      "console",
		Application: "rbac",
		EventType:   eventType,
		Timestamp:   time.Now().UTC(),
		AccountID:   accountID,
		OrgID:       orgID,
		Events: []Event{
			{Metadata: map[string]any{}, Payload: payload},
		},
	}
}

// Notifier delivers envelopes. Delivery happens after the originating
// transaction commits; failures are logged, never propagated to the caller.
type Notifier interface {
	Notify(ctx context.Context, envelope Envelope) error
}
