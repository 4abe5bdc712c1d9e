package settlement

import (
	"fmt"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentStatus represents the processing status of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusApproved   PaymentStatus = "approved"
	PaymentStatusRejected   PaymentStatus = "rejected"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCanceled},
	PaymentStatusProcessing: {PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCanceled},
	PaymentStatusApproved:   {},
	PaymentStatusRejected:   {},
	PaymentStatusCanceled:   {},
}

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to target is legal
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodBankSlip   PaymentMethod = "bank_slip"
	PaymentMethodTransfer   PaymentMethod = "transfer"
	PaymentMethodCash       PaymentMethod = "cash"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPix,
		PaymentMethodBankSlip, PaymentMethodTransfer, PaymentMethodCash:
		return true
	}
	return false
}

// Payment represents money received from a customer
type Payment struct {
	shared.BaseAggregateRoot
	CustomerID      uuid.UUID
	InstrumentID    *uuid.UUID // Set when the payment settles an instrument
	Amount          valueobject.Money
	Method          PaymentMethod
	Status          PaymentStatus
	ProcessedAt     *time.Time
	TransactionCode string
	RejectionReason string
}

// NewPayment creates a pending payment
func NewPayment(customerID uuid.UUID, amount valueobject.Money, method PaymentMethod, instrumentID *uuid.UUID, now time.Time) (*Payment, error) {
	if customerID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("Customer ID cannot be empty").WithDetail("field", "customer_id")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidInput.WithMessage("Payment amount must be positive").WithDetail("field", "amount")
	}
	if !method.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("Invalid payment method %q", method)).WithDetail("field", "method")
	}
	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		InstrumentID:      instrumentID,
		Amount:            amount,
		Method:            method,
		Status:            PaymentStatusPending,
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (p *Payment) transition(target PaymentStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(target) {
		return ErrInvalidPaymentState.
			WithMessage(fmt.Sprintf("Cannot move payment from %s to %s", p.Status, target)).
			WithDetail("payment_id", p.ID.String()).
			WithDetail("status", p.Status.String())
	}
	p.Status = target
	p.UpdatedAt = now
	p.IncrementVersion()
	return nil
}

// StartProcessing moves a pending payment into processing
func (p *Payment) StartProcessing(now time.Time) error {
	return p.transition(PaymentStatusProcessing, now)
}

// Approve confirms the payment with the processor's transaction code
func (p *Payment) Approve(transactionCode string, now time.Time) error {
	if transactionCode == "" {
		return shared.ErrInvalidInput.WithMessage("Transaction code is required").WithDetail("field", "transaction_code")
	}
	if err := p.transition(PaymentStatusApproved, now); err != nil {
		return err
	}
	p.TransactionCode = transactionCode
	p.ProcessedAt = &now
	return nil
}

// Reject marks the payment as refused
func (p *Payment) Reject(reason string, now time.Time) error {
	if err := p.transition(PaymentStatusRejected, now); err != nil {
		return err
	}
	p.RejectionReason = reason
	p.ProcessedAt = &now
	return nil
}

// Cancel voids a payment that has not been approved
func (p *Payment) Cancel(now time.Time) error {
	return p.transition(PaymentStatusCanceled, now)
}
