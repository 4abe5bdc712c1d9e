package persistence

import (
	"context"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Payment, error) {
	return firstOrNil(r.db.WithContext(ctx), (*models.PaymentModel).ToDomain, "id = ?", id)
}

// FindByCustomer lists a customer's payments
func (r *GormPaymentRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]*settlement.Payment, error) {
	var paymentModels []models.PaymentModel
	query := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("customer_id = ?", customerID).
		Order(paymentSortColumns.orderBy(filter))
	if err := paginate(query, filter).Find(&paymentModels).Error; err != nil {
		return nil, err
	}

	payments := make([]*settlement.Payment, 0, len(paymentModels))
	for i := range paymentModels {
		p, err := paymentModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *settlement.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock updates a payment only if the stored version is payment.Version-1
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *settlement.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
		Updates(map[string]interface{}{
			"status":           model.Status,
			"processed_at":     model.ProcessedAt,
			"transaction_code": model.TransactionCode,
			"rejection_reason": model.RejectionReason,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.
			WithMessage("Payment was modified by another transaction").
			WithDetail("payment_id", payment.ID.String())
	}
	return nil
}

// DeleteByID deletes a payment
func (r *GormPaymentRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return deleteOne(r.db.WithContext(ctx), &models.PaymentModel{}, id)
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ settlement.PaymentRepository = (*GormPaymentRepository)(nil)
