package settlement

import (
	"context"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Lookups return (nil, nil) when the record does not exist.

// CustomerRepository defines persistence operations for customers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByTaxpayerID(ctx context.Context, taxpayerID valueobject.TaxpayerID) (*Customer, error)
	Save(ctx context.Context, customer *Customer) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// DebtRepository defines persistence operations for debts
type DebtRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Debt, error)
	// FindByIDs returns the debts that exist among ids, in no particular order
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Debt, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]*Debt, error)
	FindByInstrument(ctx context.Context, instrumentID uuid.UUID) ([]*Debt, error)
	// FindByStatuses pages through debts ordered by id, starting after afterID
	FindByStatuses(ctx context.Context, statuses []DebtStatus, afterID uuid.UUID, limit int) ([]*Debt, error)
	// Save upserts the debt without a version check
	Save(ctx context.Context, debt *Debt) error
	// SaveWithLock updates the debt only if the stored version is debt.Version-1.
	// Returns shared.ErrConcurrencyConflict when the row changed underneath.
	SaveWithLock(ctx context.Context, debt *Debt) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// InstrumentRepository defines persistence operations for settlement instruments
type InstrumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SettlementInstrument, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]*SettlementInstrument, error)
	// FindOpenByDebtIDs returns active or overdue instruments referencing any of debtIDs
	FindOpenByDebtIDs(ctx context.Context, debtIDs []uuid.UUID) ([]*SettlementInstrument, error)
	// FindDueActive returns active instruments whose due date is before the given time
	FindDueActive(ctx context.Context, before time.Time, limit int) ([]*SettlementInstrument, error)
	ExistsByIdentifierLine(ctx context.Context, identifierLine string) (bool, error)
	Save(ctx context.Context, instrument *SettlementInstrument) error
	SaveWithLock(ctx context.Context, instrument *SettlementInstrument) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository defines persistence operations for payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]*Payment, error)
	Save(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
