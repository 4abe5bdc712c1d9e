package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate. Settlement events are turned
// into audit records once the transaction that raised them commits.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// EventHeader is embedded by concrete events to satisfy DomainEvent
type EventHeader struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	At            time.Time `json:"occurred_at"`
	AggregateRef  uuid.UUID `json:"aggregate_id"`
	AggregateKind string    `json:"aggregate_type"`
}

// NewEventHeader builds the header for an event raised on aggregate aggID at occurredAt
func NewEventHeader(eventType, aggType string, aggID uuid.UUID, occurredAt time.Time) EventHeader {
	return EventHeader{
		ID:            uuid.New(),
		Type:          eventType,
		At:            occurredAt.UTC(),
		AggregateRef:  aggID,
		AggregateKind: aggType,
	}
}

func (h EventHeader) EventID() uuid.UUID { return h.ID }
func (h EventHeader) EventType() string { return h.Type }
func (h EventHeader) OccurredAt() time.Time { return h.At }
func (h EventHeader) AggregateID() uuid.UUID { return h.AggregateRef }
func (h EventHeader) AggregateType() string { return h.AggregateKind }
