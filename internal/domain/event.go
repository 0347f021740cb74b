package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a committed lifecycle change published to downstream consumers.
type Event struct {
	Type       string    `json:"type"`
	EntityID   uuid.UUID `json:"entity_id"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	ActorID    uuid.UUID `json:"actor_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventProductStatus     = "product.status"
	EventDocumentStatus    = "document.status"
	EventAssignmentChanged = "assignment.changed"
)
