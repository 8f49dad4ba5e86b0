package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. System actors such as the
// order-expiry job leave CustomerID nil.
type ActorRef struct {
	CustomerID *uuid.UUID `json:"customerId,omitempty"`
	System     string     `json:"system,omitempty"`
}

// CustomerActor is a convenience for events triggered by a shopper.
func CustomerActor(id uuid.UUID) *ActorRef {
	return &ActorRef{CustomerID: &id}
}

// SystemActor is a convenience for events triggered by background jobs.
func SystemActor(name string) *ActorRef {
	return &ActorRef{System: name}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
