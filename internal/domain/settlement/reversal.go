package settlement

import (
	"time"

	"github.com/google/uuid"
)

// Reversal describes the debts restored by canceling an instrument
type Reversal struct {
	InstrumentID    uuid.UUID
	RestoredDebtIDs []uuid.UUID
	Restored        map[uuid.UUID]DebtStatus
}

// ReverseSettlement cancels inst and restores every debt bound to it.
// Each debt's status is recomputed with Classify at now, not taken from
// the status it held before negotiation.
func ReverseSettlement(inst *SettlementInstrument, debts []*Debt, actor, reason string, now time.Time) (*Reversal, error) {
	if !inst.Status.IsCancelable() {
		return nil, ErrInstrumentNotCancelable.
			WithDetail("instrument_id", inst.ID.String()).
			WithDetail("status", inst.Status.String())
	}
	if len(debts) == 0 {
		return nil, ErrNoAssociatedDebts.WithDetail("instrument_id", inst.ID.String())
	}
	for _, d := range debts {
		if d.Status != DebtStatusNegotiated || d.InstrumentID == nil || *d.InstrumentID != inst.ID {
			return nil, ErrNoAssociatedDebts.
				WithMessage("Debt is not bound to the instrument being canceled").
				WithDetail("instrument_id", inst.ID.String()).
				WithDetail("debt_id", d.ID.String())
		}
	}
	if err := inst.Cancel(actor, reason, now); err != nil {
		return nil, err
	}

	reversal := &Reversal{
		InstrumentID:    inst.ID,
		RestoredDebtIDs: make([]uuid.UUID, 0, len(debts)),
		Restored:        make(map[uuid.UUID]DebtStatus, len(debts)),
	}
	for _, d := range debts {
		status, err := d.RestoreFromCancellation(now)
		if err != nil {
			return nil, err
		}
		reversal.RestoredDebtIDs = append(reversal.RestoredDebtIDs, d.ID)
		reversal.Restored[d.ID] = status
	}

	inst.AddDomainEvent(NewInstrumentCanceledEvent(inst, reversal, now))
	return reversal, nil
}
