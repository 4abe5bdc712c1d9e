package persistence

import (
	"context"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/debtsettle/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Customer, error) {
	return firstOrNil(r.db.WithContext(ctx), (*models.CustomerModel).ToDomain, "id = ?", id)
}

// FindByTaxpayerID finds a customer by canonical CPF digits
func (r *GormCustomerRepository) FindByTaxpayerID(ctx context.Context, taxpayerID valueobject.TaxpayerID) (*settlement.Customer, error) {
	return firstOrNil(r.db.WithContext(ctx), (*models.CustomerModel).ToDomain,
		"taxpayer_id = ?", taxpayerID.Canonical())
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, customer *settlement.Customer) error {
	model := models.CustomerModelFromDomain(customer)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeleteByID deletes a customer
func (r *GormCustomerRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return deleteOne(r.db.WithContext(ctx), &models.CustomerModel{}, id)
}

// Ensure GormCustomerRepository implements CustomerRepository
var _ settlement.CustomerRepository = (*GormCustomerRepository)(nil)
