package settlement

import (
	"fmt"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstrumentStatus represents the lifecycle status of a settlement instrument
type InstrumentStatus string

const (
	InstrumentStatusActive   InstrumentStatus = "active"
	InstrumentStatusPaid     InstrumentStatus = "paid"
	InstrumentStatusCanceled InstrumentStatus = "canceled"
	InstrumentStatusOverdue  InstrumentStatus = "overdue"
)

// Installment bounds
const (
	MinInstallmentCount = 1
	MaxInstallmentCount = 5
)

// IsValid checks if the status is a valid InstrumentStatus
func (s InstrumentStatus) IsValid() bool {
	switch s {
	case InstrumentStatusActive, InstrumentStatusPaid, InstrumentStatusCanceled, InstrumentStatusOverdue:
		return true
	}
	return false
}

// String returns the string representation of InstrumentStatus
func (s InstrumentStatus) String() string {
	return string(s)
}

// IsOpen returns true while the instrument still awaits payment
func (s InstrumentStatus) IsOpen() bool {
	return s == InstrumentStatusActive || s == InstrumentStatusOverdue
}

// IsCancelable returns true if the instrument may be canceled
func (s InstrumentStatus) IsCancelable() bool {
	return s.IsOpen()
}

// OpenInstrumentStatuses returns the statuses that hold debts
func OpenInstrumentStatuses() []InstrumentStatus {
	return []InstrumentStatus{InstrumentStatusActive, InstrumentStatusOverdue}
}

// InstallmentPlan is the split of a total into equal installments
type InstallmentPlan struct {
	Total  valueobject.Money
	Count  int
	Amount valueobject.Money
}

// ValidateInstallmentCount checks count against the allowed range
func ValidateInstallmentCount(count, maxCount int) error {
	if maxCount <= 0 || maxCount > MaxInstallmentCount {
		maxCount = MaxInstallmentCount
	}
	if count < MinInstallmentCount || count > maxCount {
		return ErrInvalidInstallmentCount.
			WithMessage(fmt.Sprintf("Installment count must be between %d and %d", MinInstallmentCount, maxCount)).
			WithDetail("field", "installment_count").
			WithDetail("installment_count", count)
	}
	return nil
}

// PlanInstallments splits total into count equal installments no smaller than minimum.
// On failure the error reports the largest feasible count under max_installments.
func PlanInstallments(total valueobject.Money, count int, minimum valueobject.Money) (InstallmentPlan, error) {
	if err := ValidateInstallmentCount(count, MaxInstallmentCount); err != nil {
		return InstallmentPlan{}, err
	}
	amount, err := total.DivideByInt(int64(count))
	if err != nil {
		return InstallmentPlan{}, err
	}
	tooSmall, err := amount.LessThan(minimum)
	if err != nil {
		return InstallmentPlan{}, err
	}
	if tooSmall {
		return InstallmentPlan{}, ErrInstallmentTooSmall.
			WithMessage(fmt.Sprintf("Installment of %s is below the minimum of %s", amount.StringFixed(), minimum.StringFixed())).
			WithDetail("installment_amount", amount.StringFixed()).
			WithDetail("minimum_installment", minimum.StringFixed()).
			WithDetail("max_installments", MaxFeasibleInstallments(total, minimum))
	}
	return InstallmentPlan{Total: total, Count: count, Amount: amount}, nil
}

// MaxFeasibleInstallments returns floor(total / minimum)
func MaxFeasibleInstallments(total, minimum valueobject.Money) int {
	if !minimum.IsPositive() {
		return MaxInstallmentCount
	}
	return int(total.Amount().Div(minimum.Amount()).Floor().IntPart())
}

// reconciles checks |amount*count - total| <= count cents
func (p InstallmentPlan) reconciles() bool {
	product := p.Amount.Amount().Mul(decimal.NewFromInt(int64(p.Count)))
	tolerance := decimal.New(int64(p.Count), -valueobject.MoneyScale)
	return product.Sub(p.Total.Amount()).Abs().LessThanOrEqual(tolerance)
}

// Schedule returns per-installment amounts summing exactly to the total
func (p InstallmentPlan) Schedule() ([]valueobject.Money, error) {
	return p.Total.Allocate(p.Count)
}

// InstrumentIdentifier is the pair of codes printed on a settlement slip
type InstrumentIdentifier struct {
	IdentifierLine string // Typeable line
	ChecksumCode   string // Barcode digits
	BankCode       string
}

// SettlementInstrument aggregates one or more debts into a single payable slip
type SettlementInstrument struct {
	shared.BaseAggregateRoot
	CustomerID        uuid.UUID
	DebtIDs           []uuid.UUID
	TotalAmount       valueobject.Money
	InstallmentCount  int
	InstallmentAmount valueobject.Money
	IdentifierLine    string
	ChecksumCode      string
	BankCode          string
	Description       string
	DueDate           time.Time
	Status            InstrumentStatus
	CanceledAt        *time.Time
	CanceledBy        string
	CancelReason      string
	PaidAt            *time.Time
}

// NewSettlementInstrument creates an active instrument over debtIDs
func NewSettlementInstrument(
	id uuid.UUID,
	customerID uuid.UUID,
	debtIDs []uuid.UUID,
	plan InstallmentPlan,
	minimum valueobject.Money,
	identifier InstrumentIdentifier,
	description string,
	dueDate time.Time,
	now time.Time,
) (*SettlementInstrument, error) {
	if customerID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("Customer ID cannot be empty").WithDetail("field", "customer_id")
	}
	unique := UniqueDebtIDs(debtIDs)
	if len(unique) == 0 {
		return nil, ErrEmptySelection.WithDetail("field", "debt_ids")
	}
	if err := ValidateInstallmentCount(plan.Count, MaxInstallmentCount); err != nil {
		return nil, err
	}
	if below, err := plan.Amount.LessThan(minimum); err != nil {
		return nil, err
	} else if below {
		return nil, ErrInstallmentTooSmall.
			WithDetail("installment_amount", plan.Amount.StringFixed()).
			WithDetail("max_installments", MaxFeasibleInstallments(plan.Total, minimum))
	}
	if !plan.reconciles() {
		return nil, shared.ErrInvalidInput.
			WithMessage("Installment amount does not reconcile with total").
			WithDetail("total_amount", plan.Total.StringFixed()).
			WithDetail("installment_amount", plan.Amount.StringFixed())
	}
	if identifier.IdentifierLine == "" || identifier.ChecksumCode == "" {
		return nil, shared.ErrInvalidInput.WithMessage("Instrument identifier is required").WithDetail("field", "identifier_line")
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	inst := &SettlementInstrument{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		DebtIDs:           unique,
		TotalAmount:       plan.Total,
		InstallmentCount:  plan.Count,
		InstallmentAmount: plan.Amount,
		IdentifierLine:    identifier.IdentifierLine,
		ChecksumCode:      identifier.ChecksumCode,
		BankCode:          identifier.BankCode,
		Description:       description,
		DueDate:           dueDate,
		Status:            InstrumentStatusActive,
	}
	inst.ID = id
	inst.CreatedAt = now
	inst.UpdatedAt = now

	inst.AddDomainEvent(NewInstrumentCreatedEvent(inst, now))
	return inst, nil
}

// Plan returns the instrument's installment plan
func (i *SettlementInstrument) Plan() InstallmentPlan {
	return InstallmentPlan{Total: i.TotalAmount, Count: i.InstallmentCount, Amount: i.InstallmentAmount}
}

// Cancel voids the instrument on behalf of actor
func (i *SettlementInstrument) Cancel(actor, reason string, now time.Time) error {
	if !i.Status.IsCancelable() {
		return ErrInstrumentNotCancelable.
			WithMessage(fmt.Sprintf("Cannot cancel instrument in %s status", i.Status)).
			WithDetail("instrument_id", i.ID.String()).
			WithDetail("status", i.Status.String())
	}
	if actor == "" {
		return shared.ErrInvalidInput.WithMessage("Cancellation actor is required").WithDetail("field", "actor")
	}
	i.Status = InstrumentStatusCanceled
	i.CanceledAt = &now
	i.CanceledBy = actor
	i.CancelReason = reason
	i.UpdatedAt = now
	i.IncrementVersion()
	return nil
}

// MarkPaid records full payment of the instrument
func (i *SettlementInstrument) MarkPaid(now time.Time) error {
	if !i.Status.IsOpen() {
		return shared.ErrInvalidState.
			WithMessage(fmt.Sprintf("Cannot mark instrument paid in %s status", i.Status)).
			WithDetail("instrument_id", i.ID.String())
	}
	i.Status = InstrumentStatusPaid
	i.PaidAt = &now
	i.UpdatedAt = now
	i.IncrementVersion()
	return nil
}

// MarkOverdueIfDue flags an active instrument whose due date has passed.
// Returns true if the status changed.
func (i *SettlementInstrument) MarkOverdueIfDue(now time.Time) bool {
	if i.Status != InstrumentStatusActive || daysBetween(i.DueDate, now) <= 0 {
		return false
	}
	i.Status = InstrumentStatusOverdue
	i.UpdatedAt = now
	i.IncrementVersion()
	return true
}

// InstrumentSnapshot is a serializable view of an instrument for audit records
type InstrumentSnapshot struct {
	ID                uuid.UUID   `json:"id"`
	CustomerID        uuid.UUID   `json:"customer_id"`
	DebtIDs           []uuid.UUID `json:"debt_ids"`
	TotalAmount       string      `json:"total_amount"`
	Currency          string      `json:"currency"`
	InstallmentCount  int         `json:"installment_count"`
	InstallmentAmount string      `json:"installment_amount"`
	IdentifierLine    string      `json:"identifier_line"`
	DueDate           time.Time   `json:"due_date"`
	Status            string      `json:"status"`
	CanceledAt        *time.Time  `json:"canceled_at,omitempty"`
	CanceledBy        string      `json:"canceled_by,omitempty"`
	CancelReason      string      `json:"cancel_reason,omitempty"`
}

// Snapshot captures the instrument's current state
func (i *SettlementInstrument) Snapshot() InstrumentSnapshot {
	ids := make([]uuid.UUID, len(i.DebtIDs))
	copy(ids, i.DebtIDs)
	return InstrumentSnapshot{
		ID:                i.ID,
		CustomerID:        i.CustomerID,
		DebtIDs:           ids,
		TotalAmount:       i.TotalAmount.StringFixed(),
		Currency:          string(i.TotalAmount.Currency()),
		InstallmentCount:  i.InstallmentCount,
		InstallmentAmount: i.InstallmentAmount.StringFixed(),
		IdentifierLine:    i.IdentifierLine,
		DueDate:           i.DueDate,
		Status:            i.Status.String(),
		CanceledAt:        i.CanceledAt,
		CanceledBy:        i.CanceledBy,
		CancelReason:      i.CancelReason,
	}
}

// UniqueDebtIDs removes duplicates and nil ids, preserving order
func UniqueDebtIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
