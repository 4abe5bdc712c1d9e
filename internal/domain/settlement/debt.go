package settlement

import (
	"fmt"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtStatus represents the lifecycle status of a debt
type DebtStatus string

const (
	DebtStatusActive     DebtStatus = "active"     // Not yet due
	DebtStatusOverdue    DebtStatus = "overdue"    // Past due up to 30 days
	DebtStatusDefaulted  DebtStatus = "defaulted"  // Past due more than 30 days
	DebtStatusNegotiated DebtStatus = "negotiated" // Bound to an open settlement instrument
	DebtStatusSettled    DebtStatus = "settled"    // Fully paid
	DebtStatusCanceled   DebtStatus = "canceled"   // Written off by the creditor
)

// OverdueThresholdDays is the number of days past due after which a debt defaults
const OverdueThresholdDays = 30

// debtTransitions lists the legal target statuses for each debt status
var debtTransitions = map[DebtStatus][]DebtStatus{
	DebtStatusActive:     {DebtStatusOverdue, DebtStatusDefaulted, DebtStatusNegotiated, DebtStatusSettled, DebtStatusCanceled},
	DebtStatusOverdue:    {DebtStatusActive, DebtStatusDefaulted, DebtStatusNegotiated, DebtStatusSettled, DebtStatusCanceled},
	DebtStatusDefaulted:  {DebtStatusActive, DebtStatusOverdue, DebtStatusNegotiated, DebtStatusSettled, DebtStatusCanceled},
	DebtStatusNegotiated: {DebtStatusActive, DebtStatusOverdue, DebtStatusDefaulted, DebtStatusSettled},
	DebtStatusSettled:    {},
	DebtStatusCanceled:   {},
}

// IsValid checks if the status is a valid DebtStatus
func (s DebtStatus) IsValid() bool {
	_, ok := debtTransitions[s]
	return ok
}

// String returns the string representation of DebtStatus
func (s DebtStatus) String() string {
	return string(s)
}

// IsTerminal returns true for settled and canceled debts
func (s DebtStatus) IsTerminal() bool {
	return s == DebtStatusSettled || s == DebtStatusCanceled
}

// IsNegotiable returns true if a debt in this status may enter a negotiation
func (s DebtStatus) IsNegotiable() bool {
	return s == DebtStatusActive || s == DebtStatusOverdue || s == DebtStatusDefaulted
}

// CanTransitionTo reports whether moving from s to target is legal
func (s DebtStatus) CanTransitionTo(target DebtStatus) bool {
	for _, allowed := range debtTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// NegotiableStatuses returns the statuses a debt may be negotiated from
func NegotiableStatuses() []DebtStatus {
	return []DebtStatus{DebtStatusActive, DebtStatusOverdue, DebtStatusDefaulted}
}

// DebtKind represents the origin of a debt
type DebtKind string

const (
	DebtKindLoan       DebtKind = "loan"
	DebtKindCreditCard DebtKind = "credit_card"
	DebtKindOverdraft  DebtKind = "overdraft"
	DebtKindFinancing  DebtKind = "financing"
	DebtKindOther      DebtKind = "other"
)

// IsValid checks if the kind is a valid DebtKind
func (k DebtKind) IsValid() bool {
	switch k {
	case DebtKindLoan, DebtKindCreditCard, DebtKindOverdraft, DebtKindFinancing, DebtKindOther:
		return true
	}
	return false
}

// Classify derives the time-based status of an unsettled debt.
// Days are counted between UTC calendar dates; the returned count is never negative.
func Classify(dueDate, now time.Time) (DebtStatus, int) {
	days := daysBetween(dueDate, now)
	switch {
	case days <= 0:
		return DebtStatusActive, 0
	case days <= OverdueThresholdDays:
		return DebtStatusOverdue, days
	default:
		return DebtStatusDefaulted, days
	}
}

func daysBetween(from, to time.Time) int {
	f := from.UTC()
	t := to.UTC()
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// Debt represents a customer's outstanding obligation
type Debt struct {
	shared.BaseAggregateRoot
	CustomerID          uuid.UUID
	Kind                DebtKind
	Description         string
	OriginalAmount      valueobject.Money
	CurrentAmount       *valueobject.Money // Includes interest and penalties; nil when not accrued
	DueDate             time.Time
	DaysOverdue         int
	MonthlyInterestRate decimal.Decimal // Percent per month
	Penalty             valueobject.Money
	Status              DebtStatus
	InstrumentID        *uuid.UUID // Set only while negotiated
}

// NewDebt creates a new debt whose status is classified from its due date
func NewDebt(
	customerID uuid.UUID,
	kind DebtKind,
	description string,
	originalAmount valueobject.Money,
	dueDate time.Time,
	monthlyInterestRate decimal.Decimal,
	now time.Time,
) (*Debt, error) {
	if customerID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("Customer ID cannot be empty").WithDetail("field", "customer_id")
	}
	if !kind.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("Invalid debt kind %q", kind)).WithDetail("field", "kind")
	}
	if !originalAmount.IsPositive() {
		return nil, shared.ErrInvalidInput.WithMessage("Original amount must be positive").WithDetail("field", "original_amount")
	}
	if monthlyInterestRate.IsNegative() {
		return nil, shared.ErrInvalidInput.WithMessage("Interest rate cannot be negative").WithDetail("field", "monthly_interest_rate")
	}

	status, days := Classify(dueDate, now)
	d := &Debt{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(),
		CustomerID:          customerID,
		Kind:                kind,
		Description:         description,
		OriginalAmount:      originalAmount,
		DueDate:             dueDate,
		DaysOverdue:         days,
		MonthlyInterestRate: monthlyInterestRate,
		Penalty:             valueobject.Zero(originalAmount.Currency()),
		Status:              status,
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return d, nil
}

// PayableAmount returns the current amount, falling back to the original amount
func (d *Debt) PayableAmount() valueobject.Money {
	if d.CurrentAmount != nil {
		return *d.CurrentAmount
	}
	return d.OriginalAmount
}

// SetCurrentAmount records an accrued amount including interest and penalty
func (d *Debt) SetCurrentAmount(amount valueobject.Money, penalty valueobject.Money, now time.Time) error {
	if amount.Currency() != d.OriginalAmount.Currency() || penalty.Currency() != d.OriginalAmount.Currency() {
		return shared.ErrCurrencyMismatch.WithDetail("debt_id", d.ID.String())
	}
	d.CurrentAmount = &amount
	d.Penalty = penalty
	d.UpdatedAt = now
	return nil
}

// CheckNegotiable verifies the debt can be bound to a new settlement instrument
func (d *Debt) CheckNegotiable() error {
	if d.Status == DebtStatusNegotiated || d.InstrumentID != nil {
		return ErrDebtAlreadyNegotiated.WithDetail("debt_id", d.ID.String())
	}
	if !d.Status.IsNegotiable() {
		return ErrDebtNotNegotiable.
			WithMessage(fmt.Sprintf("Debt cannot be negotiated in %s status", d.Status)).
			WithDetail("debt_id", d.ID.String()).
			WithDetail("status", d.Status.String())
	}
	return nil
}

// MarkNegotiated binds the debt to a settlement instrument
func (d *Debt) MarkNegotiated(instrumentID uuid.UUID, now time.Time) error {
	if err := d.CheckNegotiable(); err != nil {
		return err
	}
	d.Status = DebtStatusNegotiated
	d.InstrumentID = &instrumentID
	d.UpdatedAt = now
	d.IncrementVersion()
	return nil
}

// RestoreFromCancellation unbinds the debt from its instrument and recomputes
// its status from the elapsed time since the due date.
func (d *Debt) RestoreFromCancellation(now time.Time) (DebtStatus, error) {
	if d.Status != DebtStatusNegotiated {
		return d.Status, shared.ErrInvalidState.
			WithMessage(fmt.Sprintf("Cannot restore debt in %s status", d.Status)).
			WithDetail("debt_id", d.ID.String())
	}
	status, days := Classify(d.DueDate, now)
	d.Status = status
	d.DaysOverdue = days
	d.InstrumentID = nil
	d.UpdatedAt = now
	d.IncrementVersion()
	return status, nil
}

// Recompute reclassifies an unsettled, un-negotiated debt. Returns true if anything changed.
func (d *Debt) Recompute(now time.Time) bool {
	if !d.Status.IsNegotiable() {
		return false
	}
	status, days := Classify(d.DueDate, now)
	if status == d.Status && days == d.DaysOverdue {
		return false
	}
	d.Status = status
	d.DaysOverdue = days
	d.UpdatedAt = now
	d.IncrementVersion()
	return true
}

// Settle marks the debt as fully paid
func (d *Debt) Settle(now time.Time) error {
	if !d.Status.CanTransitionTo(DebtStatusSettled) {
		return shared.ErrInvalidState.
			WithMessage(fmt.Sprintf("Cannot settle debt in %s status", d.Status)).
			WithDetail("debt_id", d.ID.String())
	}
	d.Status = DebtStatusSettled
	d.InstrumentID = nil
	d.UpdatedAt = now
	d.IncrementVersion()
	return nil
}

// Cancel writes the debt off
func (d *Debt) Cancel(now time.Time) error {
	if !d.Status.CanTransitionTo(DebtStatusCanceled) {
		return shared.ErrInvalidState.
			WithMessage(fmt.Sprintf("Cannot cancel debt in %s status", d.Status)).
			WithDetail("debt_id", d.ID.String())
	}
	d.Status = DebtStatusCanceled
	d.UpdatedAt = now
	d.IncrementVersion()
	return nil
}
