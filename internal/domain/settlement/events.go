package settlement

import (
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type and event type constants
const (
	AggregateTypeInstrument = "SettlementInstrument"

	EventTypeInstrumentCreated  = "instrument_created"
	EventTypeInstrumentCanceled = "instrument_canceled"
)

// InstrumentCreatedEvent is raised when debts are negotiated into a new instrument
type InstrumentCreatedEvent struct {
	shared.EventHeader
	Snapshot InstrumentSnapshot `json:"snapshot"`
}

// NewInstrumentCreatedEvent creates an InstrumentCreatedEvent
func NewInstrumentCreatedEvent(inst *SettlementInstrument, at time.Time) *InstrumentCreatedEvent {
	return &InstrumentCreatedEvent{
		EventHeader: shared.NewEventHeader(EventTypeInstrumentCreated, AggregateTypeInstrument, inst.ID, at),
		Snapshot:    inst.Snapshot(),
	}
}

// InstrumentCanceledEvent is raised when a settlement is reversed
type InstrumentCanceledEvent struct {
	shared.EventHeader
	Actor           string                   `json:"actor"`
	Reason          string                   `json:"reason,omitempty"`
	RestoredDebtIDs []uuid.UUID              `json:"restored_debt_ids"`
	Restored        map[uuid.UUID]DebtStatus `json:"restored"`
	Snapshot        InstrumentSnapshot       `json:"snapshot"`
}

// NewInstrumentCanceledEvent creates an InstrumentCanceledEvent
func NewInstrumentCanceledEvent(inst *SettlementInstrument, reversal *Reversal, at time.Time) *InstrumentCanceledEvent {
	return &InstrumentCanceledEvent{
		EventHeader:     shared.NewEventHeader(EventTypeInstrumentCanceled, AggregateTypeInstrument, inst.ID, at),
		Actor:           inst.CanceledBy,
		Reason:          inst.CancelReason,
		RestoredDebtIDs: reversal.RestoredDebtIDs,
		Restored:        reversal.Restored,
		Snapshot:        inst.Snapshot(),
	}
}
