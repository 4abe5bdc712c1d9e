package settlement

import (
	"strings"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
)

// Customer is the debtor owning debts and instruments
type Customer struct {
	shared.BaseAggregateRoot
	TaxpayerID valueobject.TaxpayerID
	Name       string
	Email      string
	Phone      string
	Active     bool
}

// NewCustomer creates an active customer
func NewCustomer(taxpayerID valueobject.TaxpayerID, name, email, phone string, now time.Time) (*Customer, error) {
	if taxpayerID.IsZero() {
		return nil, shared.ErrInvalidIdentifier.WithDetail("field", "taxpayer_id")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.ErrInvalidInput.WithMessage("Customer name cannot be empty").WithDetail("field", "name")
	}
	if len(name) > 200 {
		return nil, shared.ErrInvalidInput.WithMessage("Customer name cannot exceed 200 characters").WithDetail("field", "name")
	}
	c := &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TaxpayerID:        taxpayerID,
		Name:              name,
		Email:             strings.TrimSpace(email),
		Phone:             strings.TrimSpace(phone),
		Active:            true,
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

// Deactivate marks the customer inactive
func (c *Customer) Deactivate(now time.Time) {
	c.Active = false
	c.UpdatedAt = now
	c.IncrementVersion()
}
