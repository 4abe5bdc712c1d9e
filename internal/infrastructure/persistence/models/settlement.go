package models

import (
	"fmt"
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// toMoney rebuilds a Money from its amount and currency columns
func toMoney(amount decimal.Decimal, currency string, column string) (valueobject.Money, error) {
	if currency == "" {
		currency = string(valueobject.DefaultCurrency)
	}
	m, err := valueobject.NewMoney(amount, valueobject.Currency(currency))
	if err != nil {
		return valueobject.Money{}, fmt.Errorf("column %s: %w", column, err)
	}
	return m, nil
}

// CustomerModel is the persistence model for the Customer aggregate.
type CustomerModel struct {
	AggregateModel
	TaxpayerID string `gorm:"type:varchar(11);not null;uniqueIndex:idx_customers_taxpayer_id"`
	Name       string `gorm:"type:varchar(200);not null"`
	Email      string `gorm:"type:varchar(200)"`
	Phone      string `gorm:"type:varchar(50)"`
	Active     bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer.
// Fails when the stored taxpayer number no longer validates.
func (m *CustomerModel) ToDomain() (*settlement.Customer, error) {
	taxpayerID, err := valueobject.ParseTaxpayerID(m.TaxpayerID)
	if err != nil {
		return nil, fmt.Errorf("customer %s: %w", m.ID, err)
	}
	c := &settlement.Customer{
		TaxpayerID: taxpayerID,
		Name:       m.Name,
		Email:      m.Email,
		Phone:      m.Phone,
		Active:     m.Active,
	}
	m.PopulateAggregateRoot(&c.BaseAggregateRoot)
	return c, nil
}

// FromDomain populates the persistence model from a domain Customer.
func (m *CustomerModel) FromDomain(c *settlement.Customer) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.TaxpayerID = c.TaxpayerID.Canonical()
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Active = c.Active
}

// CustomerModelFromDomain creates a new persistence model from a domain Customer.
func CustomerModelFromDomain(c *settlement.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}

// DebtModel is the persistence model for the Debt aggregate.
type DebtModel struct {
	AggregateModel
	CustomerID          uuid.UUID             `gorm:"type:uuid;not null;index:idx_debts_customer_due,priority:1"`
	Kind                settlement.DebtKind   `gorm:"type:varchar(30);not null"`
	Description         string                `gorm:"type:varchar(500)"`
	Currency            string                `gorm:"type:varchar(3);not null;default:'BRL'"`
	OriginalAmount      decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	CurrentAmount       *decimal.Decimal      `gorm:"type:decimal(18,4)"`
	Penalty             decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	MonthlyInterestRate decimal.Decimal       `gorm:"type:decimal(9,4);not null;default:0"`
	DueDate             time.Time             `gorm:"not null;index:idx_debts_customer_due,priority:2"`
	DaysOverdue         int                   `gorm:"not null;default:0"`
	Status              settlement.DebtStatus `gorm:"type:varchar(20);not null;index"`
	InstrumentID        *uuid.UUID            `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (DebtModel) TableName() string {
	return "debts"
}

// ToDomain converts the persistence model to a domain Debt.
func (m *DebtModel) ToDomain() (*settlement.Debt, error) {
	original, err := toMoney(m.OriginalAmount, m.Currency, "original_amount")
	if err != nil {
		return nil, err
	}
	penalty, err := toMoney(m.Penalty, m.Currency, "penalty")
	if err != nil {
		return nil, err
	}
	d := &settlement.Debt{
		CustomerID:          m.CustomerID,
		Kind:                m.Kind,
		Description:         m.Description,
		OriginalAmount:      original,
		DueDate:             m.DueDate.UTC(),
		DaysOverdue:         m.DaysOverdue,
		MonthlyInterestRate: m.MonthlyInterestRate,
		Penalty:             penalty,
		Status:              m.Status,
		InstrumentID:        m.InstrumentID,
	}
	if m.CurrentAmount != nil {
		current, err := toMoney(*m.CurrentAmount, m.Currency, "current_amount")
		if err != nil {
			return nil, err
		}
		d.CurrentAmount = &current
	}
	m.PopulateAggregateRoot(&d.BaseAggregateRoot)
	return d, nil
}

// FromDomain populates the persistence model from a domain Debt.
func (m *DebtModel) FromDomain(d *settlement.Debt) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.CustomerID = d.CustomerID
	m.Kind = d.Kind
	m.Description = d.Description
	m.Currency = string(d.OriginalAmount.Currency())
	m.OriginalAmount = d.OriginalAmount.Amount()
	m.CurrentAmount = nil
	if d.CurrentAmount != nil {
		amount := d.CurrentAmount.Amount()
		m.CurrentAmount = &amount
	}
	m.Penalty = d.Penalty.Amount()
	m.MonthlyInterestRate = d.MonthlyInterestRate
	m.DueDate = d.DueDate
	m.DaysOverdue = d.DaysOverdue
	m.Status = d.Status
	m.InstrumentID = d.InstrumentID
}

// DebtModelFromDomain creates a new persistence model from a domain Debt.
func DebtModelFromDomain(d *settlement.Debt) *DebtModel {
	m := &DebtModel{}
	m.FromDomain(d)
	return m
}

// InstrumentModel is the persistence model for the SettlementInstrument aggregate.
// The debt set lives in instrument_debts.
type InstrumentModel struct {
	AggregateModel
	CustomerID        uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Currency          string                      `gorm:"type:varchar(3);not null;default:'BRL'"`
	TotalAmount       decimal.Decimal             `gorm:"type:decimal(18,4);not null;default:0"`
	InstallmentCount  int                         `gorm:"not null"`
	InstallmentAmount decimal.Decimal             `gorm:"type:decimal(18,4);not null;default:0"`
	IdentifierLine    string                      `gorm:"type:varchar(64);not null;uniqueIndex:idx_instruments_identifier_line"`
	ChecksumCode      string                      `gorm:"type:varchar(64);not null"`
	BankCode          string                      `gorm:"type:varchar(3)"`
	Description       string                      `gorm:"type:varchar(500)"`
	DueDate           time.Time                   `gorm:"not null;index:idx_instruments_status_due,priority:2"`
	Status            settlement.InstrumentStatus `gorm:"type:varchar(20);not null;index:idx_instruments_status_due,priority:1"`
	CanceledAt        *time.Time
	CanceledBy        string `gorm:"type:varchar(200)"`
	CancelReason      string `gorm:"type:varchar(500)"`
	PaidAt            *time.Time
	Debts             []InstrumentDebtModel `gorm:"foreignKey:InstrumentID;references:ID"`
}

// TableName returns the table name for GORM
func (InstrumentModel) TableName() string {
	return "settlement_instruments"
}

// ToDomain converts the persistence model to a domain SettlementInstrument.
// Debts must be preloaded.
func (m *InstrumentModel) ToDomain() (*settlement.SettlementInstrument, error) {
	total, err := toMoney(m.TotalAmount, m.Currency, "total_amount")
	if err != nil {
		return nil, err
	}
	installment, err := toMoney(m.InstallmentAmount, m.Currency, "installment_amount")
	if err != nil {
		return nil, err
	}
	debtIDs := make([]uuid.UUID, len(m.Debts))
	for i, link := range m.Debts {
		debtIDs[i] = link.DebtID
	}
	inst := &settlement.SettlementInstrument{
		CustomerID:        m.CustomerID,
		DebtIDs:           debtIDs,
		TotalAmount:       total,
		InstallmentCount:  m.InstallmentCount,
		InstallmentAmount: installment,
		IdentifierLine:    m.IdentifierLine,
		ChecksumCode:      m.ChecksumCode,
		BankCode:          m.BankCode,
		Description:       m.Description,
		DueDate:           m.DueDate.UTC(),
		Status:            m.Status,
		CanceledAt:        m.CanceledAt,
		CanceledBy:        m.CanceledBy,
		CancelReason:      m.CancelReason,
		PaidAt:            m.PaidAt,
	}
	m.PopulateAggregateRoot(&inst.BaseAggregateRoot)
	return inst, nil
}

// FromDomain populates the persistence model from a domain SettlementInstrument.
func (m *InstrumentModel) FromDomain(inst *settlement.SettlementInstrument) {
	m.FromDomainAggregateRoot(inst.BaseAggregateRoot)
	m.CustomerID = inst.CustomerID
	m.Currency = string(inst.TotalAmount.Currency())
	m.TotalAmount = inst.TotalAmount.Amount()
	m.InstallmentCount = inst.InstallmentCount
	m.InstallmentAmount = inst.InstallmentAmount.Amount()
	m.IdentifierLine = inst.IdentifierLine
	m.ChecksumCode = inst.ChecksumCode
	m.BankCode = inst.BankCode
	m.Description = inst.Description
	m.DueDate = inst.DueDate
	m.Status = inst.Status
	m.CanceledAt = inst.CanceledAt
	m.CanceledBy = inst.CanceledBy
	m.CancelReason = inst.CancelReason
	m.PaidAt = inst.PaidAt
	m.Debts = make([]InstrumentDebtModel, len(inst.DebtIDs))
	for i, id := range inst.DebtIDs {
		m.Debts[i] = InstrumentDebtModel{InstrumentID: inst.ID, DebtID: id}
	}
}

// InstrumentModelFromDomain creates a new persistence model from a domain SettlementInstrument.
func InstrumentModelFromDomain(inst *settlement.SettlementInstrument) *InstrumentModel {
	m := &InstrumentModel{}
	m.FromDomain(inst)
	return m
}

// InstrumentDebtModel links an instrument to one of its debts.
// Rows are never removed; a canceled instrument keeps its history.
type InstrumentDebtModel struct {
	InstrumentID uuid.UUID `gorm:"type:uuid;primaryKey"`
	DebtID       uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName returns the table name for GORM
func (InstrumentDebtModel) TableName() string {
	return "instrument_debts"
}

// PaymentModel is the persistence model for the Payment aggregate.
type PaymentModel struct {
	AggregateModel
	CustomerID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	InstrumentID    *uuid.UUID               `gorm:"type:uuid;index"`
	Currency        string                   `gorm:"type:varchar(3);not null;default:'BRL'"`
	Amount          decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	Method          settlement.PaymentMethod `gorm:"type:varchar(20);not null"`
	Status          settlement.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	ProcessedAt     *time.Time
	TransactionCode string `gorm:"type:varchar(100)"`
	RejectionReason string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() (*settlement.Payment, error) {
	amount, err := toMoney(m.Amount, m.Currency, "amount")
	if err != nil {
		return nil, err
	}
	p := &settlement.Payment{
		CustomerID:      m.CustomerID,
		InstrumentID:    m.InstrumentID,
		Amount:          amount,
		Method:          m.Method,
		Status:          m.Status,
		ProcessedAt:     m.ProcessedAt,
		TransactionCode: m.TransactionCode,
		RejectionReason: m.RejectionReason,
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	return p, nil
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *settlement.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.CustomerID = p.CustomerID
	m.InstrumentID = p.InstrumentID
	m.Currency = string(p.Amount.Currency())
	m.Amount = p.Amount.Amount()
	m.Method = p.Method
	m.Status = p.Status
	m.ProcessedAt = p.ProcessedAt
	m.TransactionCode = p.TransactionCode
	m.RejectionReason = p.RejectionReason
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *settlement.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
