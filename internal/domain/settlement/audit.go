package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is an append-only trail entry for settlement actions
type AuditRecord struct {
	ID              uuid.UUID
	Action          string
	EntityType      string
	EntityID        uuid.UUID
	Actor           string
	Reason          string
	RestoredDebtIDs []uuid.UUID
	Snapshot        json.RawMessage
	OccurredAt      time.Time
}

// AuditSink receives audit records. Appends happen outside any transaction.
type AuditSink interface {
	Append(ctx context.Context, record AuditRecord) error
}

// AuditRecordFromEvent converts a settlement domain event into an audit record.
// Returns false for events that are not audited.
func AuditRecordFromEvent(evt any) (AuditRecord, bool, error) {
	switch e := evt.(type) {
	case *InstrumentCreatedEvent:
		snap, err := json.Marshal(e.Snapshot)
		if err != nil {
			return AuditRecord{}, false, fmt.Errorf("marshal instrument snapshot: %w", err)
		}
		return AuditRecord{
			ID:         e.EventID(),
			Action:     e.EventType(),
			EntityType: e.AggregateType(),
			EntityID:   e.AggregateID(),
			Actor:      "system",
			Snapshot:   snap,
			OccurredAt: e.OccurredAt(),
		}, true, nil
	case *InstrumentCanceledEvent:
		snap, err := json.Marshal(e.Snapshot)
		if err != nil {
			return AuditRecord{}, false, fmt.Errorf("marshal instrument snapshot: %w", err)
		}
		return AuditRecord{
			ID:              e.EventID(),
			Action:          e.EventType(),
			EntityType:      e.AggregateType(),
			EntityID:        e.AggregateID(),
			Actor:           e.Actor,
			Reason:          e.Reason,
			RestoredDebtIDs: e.RestoredDebtIDs,
			Snapshot:        snap,
			OccurredAt:      e.OccurredAt(),
		}, true, nil
	}
	return AuditRecord{}, false, nil
}
