package settlement

import (
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/google/uuid"
)

// NegotiateCommand requests a new settlement instrument over a set of debts
type NegotiateCommand struct {
	CustomerID       uuid.UUID
	DebtIDs          []uuid.UUID
	InstallmentCount int
	Description      string
}

// CancelCommand requests the reversal of a settlement instrument
type CancelCommand struct {
	InstrumentID uuid.UUID
	Actor        string
	Reason       string
}

// CancellationResult reports the debts restored by a cancellation
type CancellationResult struct {
	InstrumentID    uuid.UUID            `json:"instrument_id"`
	RestoredDebtIDs []uuid.UUID          `json:"restored_debt_ids"`
	Restored        map[uuid.UUID]string `json:"restored"`
}

// RegisterPaymentCommand records money received from a customer
type RegisterPaymentCommand struct {
	CustomerID   uuid.UUID
	InstrumentID *uuid.UUID
	Amount       string
	Method       string
}

// CustomerDTO is the read model of a customer
type CustomerDTO struct {
	ID         uuid.UUID `json:"id"`
	TaxpayerID string    `json:"taxpayer_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Active     bool      `json:"active"`
}

// DebtDTO is the read model of a debt
type DebtDTO struct {
	ID                  uuid.UUID  `json:"id"`
	CustomerID          uuid.UUID  `json:"customer_id"`
	Kind                string     `json:"kind"`
	Description         string     `json:"description"`
	OriginalAmount      string     `json:"original_amount"`
	CurrentAmount       *string    `json:"current_amount,omitempty"`
	PayableAmount       string     `json:"payable_amount"`
	Penalty             string     `json:"penalty"`
	Currency            string     `json:"currency"`
	MonthlyInterestRate string     `json:"monthly_interest_rate"`
	DueDate             time.Time  `json:"due_date"`
	DaysOverdue         int        `json:"days_overdue"`
	Status              string     `json:"status"`
	InstrumentID        *uuid.UUID `json:"instrument_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// InstrumentDTO is the read model of a settlement instrument
type InstrumentDTO struct {
	ID                uuid.UUID   `json:"id"`
	CustomerID        uuid.UUID   `json:"customer_id"`
	DebtIDs           []uuid.UUID `json:"debt_ids"`
	TotalAmount       string      `json:"total_amount"`
	Currency          string      `json:"currency"`
	InstallmentCount  int         `json:"installment_count"`
	InstallmentAmount string      `json:"installment_amount"`
	Installments      []string    `json:"installments"`
	IdentifierLine    string      `json:"identifier_line"`
	ChecksumCode      string      `json:"checksum_code"`
	BankCode          string      `json:"bank_code"`
	Description       string      `json:"description,omitempty"`
	DueDate           time.Time   `json:"due_date"`
	Status            string      `json:"status"`
	CanceledAt        *time.Time  `json:"canceled_at,omitempty"`
	CanceledBy        string      `json:"canceled_by,omitempty"`
	CancelReason      string      `json:"cancel_reason,omitempty"`
	PaidAt            *time.Time  `json:"paid_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// PaymentDTO is the read model of a payment
type PaymentDTO struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	InstrumentID    *uuid.UUID `json:"instrument_id,omitempty"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Method          string     `json:"method"`
	Status          string     `json:"status"`
	TransactionCode string     `json:"transaction_code,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DebtSummaryDTO aggregates a customer's debts
type DebtSummaryDTO struct {
	CustomerID      uuid.UUID `json:"customer_id"`
	TotalDebts      int       `json:"total_debts"`
	TotalOriginal   string    `json:"total_original"`
	TotalCurrent    string    `json:"total_current"`
	OpenAmount      string    `json:"open_amount"`
	Currency        string    `json:"currency"`
	ActiveCount     int       `json:"active_count"`
	OverdueCount    int       `json:"overdue_count"`
	DefaultedCount  int       `json:"defaulted_count"`
	NegotiatedCount int       `json:"negotiated_count"`
	SettledCount    int       `json:"settled_count"`
	CanceledCount   int       `json:"canceled_count"`
}

// ToCustomerDTO converts a domain customer. The taxpayer id is masked.
func ToCustomerDTO(c *settlement.Customer) CustomerDTO {
	return CustomerDTO{
		ID:         c.ID,
		TaxpayerID: c.TaxpayerID.Masked(),
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Active:     c.Active,
	}
}

// ToDebtDTO converts a domain debt
func ToDebtDTO(d *settlement.Debt) DebtDTO {
	dto := DebtDTO{
		ID:                  d.ID,
		CustomerID:          d.CustomerID,
		Kind:                string(d.Kind),
		Description:         d.Description,
		OriginalAmount:      d.OriginalAmount.StringFixed(),
		PayableAmount:       d.PayableAmount().StringFixed(),
		Penalty:             d.Penalty.StringFixed(),
		Currency:            string(d.OriginalAmount.Currency()),
		MonthlyInterestRate: d.MonthlyInterestRate.StringFixed(4),
		DueDate:             d.DueDate,
		DaysOverdue:         d.DaysOverdue,
		Status:              d.Status.String(),
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	if d.CurrentAmount != nil {
		current := d.CurrentAmount.StringFixed()
		dto.CurrentAmount = &current
	}
	if d.InstrumentID != nil {
		id := *d.InstrumentID
		dto.InstrumentID = &id
	}
	return dto
}

// ToDebtDTOs converts a slice of domain debts
func ToDebtDTOs(debts []*settlement.Debt) []DebtDTO {
	dtos := make([]DebtDTO, len(debts))
	for i, d := range debts {
		dtos[i] = ToDebtDTO(d)
	}
	return dtos
}

// ToInstrumentDTO converts a domain instrument
func ToInstrumentDTO(i *settlement.SettlementInstrument) InstrumentDTO {
	dto := InstrumentDTO{
		ID:                i.ID,
		CustomerID:        i.CustomerID,
		DebtIDs:           append([]uuid.UUID(nil), i.DebtIDs...),
		TotalAmount:       i.TotalAmount.StringFixed(),
		Currency:          string(i.TotalAmount.Currency()),
		InstallmentCount:  i.InstallmentCount,
		InstallmentAmount: i.InstallmentAmount.StringFixed(),
		IdentifierLine:    i.IdentifierLine,
		ChecksumCode:      i.ChecksumCode,
		BankCode:          i.BankCode,
		Description:       i.Description,
		DueDate:           i.DueDate,
		Status:            i.Status.String(),
		CanceledAt:        i.CanceledAt,
		CanceledBy:        i.CanceledBy,
		CancelReason:      i.CancelReason,
		PaidAt:            i.PaidAt,
		CreatedAt:         i.CreatedAt,
	}
	if schedule, err := i.Plan().Schedule(); err == nil {
		dto.Installments = make([]string, len(schedule))
		for n, m := range schedule {
			dto.Installments[n] = m.StringFixed()
		}
	}
	return dto
}

// ToInstrumentDTOs converts a slice of domain instruments
func ToInstrumentDTOs(instruments []*settlement.SettlementInstrument) []InstrumentDTO {
	dtos := make([]InstrumentDTO, len(instruments))
	for i, inst := range instruments {
		dtos[i] = ToInstrumentDTO(inst)
	}
	return dtos
}

// ToPaymentDTO converts a domain payment
func ToPaymentDTO(p *settlement.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:              p.ID,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount.StringFixed(),
		Currency:        string(p.Amount.Currency()),
		Method:          string(p.Method),
		Status:          p.Status.String(),
		TransactionCode: p.TransactionCode,
		RejectionReason: p.RejectionReason,
		ProcessedAt:     p.ProcessedAt,
		CreatedAt:       p.CreatedAt,
	}
	if p.InstrumentID != nil {
		id := *p.InstrumentID
		dto.InstrumentID = &id
	}
	return dto
}

// ToPaymentDTOs converts a slice of domain payments
func ToPaymentDTOs(payments []*settlement.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = ToPaymentDTO(p)
	}
	return dtos
}

func toCancellationResult(r *settlement.Reversal) *CancellationResult {
	restored := make(map[uuid.UUID]string, len(r.Restored))
	for id, status := range r.Restored {
		restored[id] = status.String()
	}
	return &CancellationResult{
		InstrumentID:    r.InstrumentID,
		RestoredDebtIDs: append([]uuid.UUID(nil), r.RestoredDebtIDs...),
		Restored:        restored,
	}
}
