package persistence

import (
	"context"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDebtRepository implements DebtRepository using GORM
type GormDebtRepository struct {
	db *gorm.DB
}

// NewGormDebtRepository creates a new GormDebtRepository
func NewGormDebtRepository(db *gorm.DB) *GormDebtRepository {
	return &GormDebtRepository{db: db}
}

// FindByID finds a debt by its ID
func (r *GormDebtRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Debt, error) {
	return firstOrNil(r.db.WithContext(ctx), (*models.DebtModel).ToDomain, "id = ?", id)
}

// FindByIDs finds the debts that exist among ids
func (r *GormDebtRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*settlement.Debt, error) {
	if len(ids) == 0 {
		return []*settlement.Debt{}, nil
	}
	var debtModels []models.DebtModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&debtModels).Error; err != nil {
		return nil, err
	}
	return debtsToDomain(debtModels)
}

// FindByCustomer lists a customer's debts in the filter's order
func (r *GormDebtRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]*settlement.Debt, error) {
	var debtModels []models.DebtModel
	query := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("customer_id = ?", customerID).
		Order(debtSortColumns.orderBy(filter))
	if err := paginate(query, filter).Find(&debtModels).Error; err != nil {
		return nil, err
	}
	return debtsToDomain(debtModels)
}

// FindByInstrument finds the debts currently bound to an instrument
func (r *GormDebtRepository) FindByInstrument(ctx context.Context, instrumentID uuid.UUID) ([]*settlement.Debt, error) {
	var debtModels []models.DebtModel
	if err := r.db.WithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("id ASC").
		Find(&debtModels).Error; err != nil {
		return nil, err
	}
	return debtsToDomain(debtModels)
}

// FindByStatuses pages through debts in the given statuses ordered by id
func (r *GormDebtRepository) FindByStatuses(ctx context.Context, statuses []settlement.DebtStatus, afterID uuid.UUID, limit int) ([]*settlement.Debt, error) {
	if len(statuses) == 0 {
		return []*settlement.Debt{}, nil
	}
	query := r.db.WithContext(ctx).Where("status IN ?", statuses)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var debtModels []models.DebtModel
	if err := query.Order("id ASC").Find(&debtModels).Error; err != nil {
		return nil, err
	}
	return debtsToDomain(debtModels)
}

// Save creates or updates a debt without a version check
func (r *GormDebtRepository) Save(ctx context.Context, debt *settlement.Debt) error {
	model := models.DebtModelFromDomain(debt)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock updates a debt only if the stored version is debt.Version-1
func (r *GormDebtRepository) SaveWithLock(ctx context.Context, debt *settlement.Debt) error {
	model := models.DebtModelFromDomain(debt)
	result := r.db.WithContext(ctx).
		Model(&models.DebtModel{}).
		Where("id = ? AND version = ?", debt.ID, debt.Version-1).
		Updates(map[string]interface{}{
			"description":           model.Description,
			"current_amount":        model.CurrentAmount,
			"penalty":               model.Penalty,
			"monthly_interest_rate": model.MonthlyInterestRate,
			"days_overdue":          model.DaysOverdue,
			"status":                model.Status,
			"instrument_id":         model.InstrumentID,
			"version":               model.Version,
			"updated_at":            model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.
			WithMessage("Debt was modified by another transaction").
			WithDetail("debt_id", debt.ID.String())
	}
	return nil
}

// DeleteByID deletes a debt
func (r *GormDebtRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return deleteOne(r.db.WithContext(ctx), &models.DebtModel{}, id)
}

func debtsToDomain(debtModels []models.DebtModel) ([]*settlement.Debt, error) {
	debts := make([]*settlement.Debt, 0, len(debtModels))
	for i := range debtModels {
		d, err := debtModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, nil
}

// Ensure GormDebtRepository implements DebtRepository
var _ settlement.DebtRepository = (*GormDebtRepository)(nil)
