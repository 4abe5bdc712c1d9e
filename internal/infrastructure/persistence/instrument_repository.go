package persistence

import (
	"context"
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInstrumentRepository implements InstrumentRepository using GORM
type GormInstrumentRepository struct {
	db *gorm.DB
}

// NewGormInstrumentRepository creates a new GormInstrumentRepository
func NewGormInstrumentRepository(db *gorm.DB) *GormInstrumentRepository {
	return &GormInstrumentRepository{db: db}
}

func (r *GormInstrumentRepository) withDebts(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Debts", func(db *gorm.DB) *gorm.DB {
		return db.Order("debt_id ASC")
	})
}

// FindByID finds an instrument with its debt set
func (r *GormInstrumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.SettlementInstrument, error) {
	return firstOrNil(r.withDebts(ctx), (*models.InstrumentModel).ToDomain, "id = ?", id)
}

// FindByCustomer lists a customer's instruments
func (r *GormInstrumentRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]*settlement.SettlementInstrument, error) {
	var instrumentModels []models.InstrumentModel
	query := r.withDebts(ctx).
		Where("customer_id = ?", customerID).
		Order(instrumentSortColumns.orderBy(filter))
	if err := paginate(query, filter).Find(&instrumentModels).Error; err != nil {
		return nil, err
	}
	return instrumentsToDomain(instrumentModels)
}

// FindOpenByDebtIDs finds active or overdue instruments referencing any of debtIDs
func (r *GormInstrumentRepository) FindOpenByDebtIDs(ctx context.Context, debtIDs []uuid.UUID) ([]*settlement.SettlementInstrument, error) {
	if len(debtIDs) == 0 {
		return []*settlement.SettlementInstrument{}, nil
	}
	linked := r.db.WithContext(ctx).
		Model(&models.InstrumentDebtModel{}).
		Select("instrument_id").
		Where("debt_id IN ?", debtIDs)

	var instrumentModels []models.InstrumentModel
	if err := r.withDebts(ctx).
		Where("status IN ?", settlement.OpenInstrumentStatuses()).
		Where("id IN (?)", linked).
		Order("created_at ASC").
		Find(&instrumentModels).Error; err != nil {
		return nil, err
	}
	return instrumentsToDomain(instrumentModels)
}

// FindDueActive finds active instruments whose due date is before the given time
func (r *GormInstrumentRepository) FindDueActive(ctx context.Context, before time.Time, limit int) ([]*settlement.SettlementInstrument, error) {
	query := r.withDebts(ctx).
		Where("status = ? AND due_date < ?", settlement.InstrumentStatusActive, before.UTC()).
		Order("due_date ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var instrumentModels []models.InstrumentModel
	if err := query.Find(&instrumentModels).Error; err != nil {
		return nil, err
	}
	return instrumentsToDomain(instrumentModels)
}

// ExistsByIdentifierLine reports whether an identifier line is already issued
func (r *GormInstrumentRepository) ExistsByIdentifierLine(ctx context.Context, identifierLine string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InstrumentModel{}).
		Where("identifier_line = ?", identifierLine).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates an instrument and records its debt links
func (r *GormInstrumentRepository) Save(ctx context.Context, instrument *settlement.SettlementInstrument) error {
	model := models.InstrumentModelFromDomain(instrument)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(model).Error; err != nil {
		return err
	}
	return r.saveLinks(db, model.Debts)
}

// SaveWithLock updates an instrument only if the stored version is instrument.Version-1.
// The debt set is immutable after creation and is not rewritten.
func (r *GormInstrumentRepository) SaveWithLock(ctx context.Context, instrument *settlement.SettlementInstrument) error {
	result := r.db.WithContext(ctx).
		Model(&models.InstrumentModel{}).
		Where("id = ? AND version = ?", instrument.ID, instrument.Version-1).
		Updates(map[string]interface{}{
			"description":   instrument.Description,
			"status":        instrument.Status,
			"canceled_at":   instrument.CanceledAt,
			"canceled_by":   instrument.CanceledBy,
			"cancel_reason": instrument.CancelReason,
			"paid_at":       instrument.PaidAt,
			"version":       instrument.Version,
			"updated_at":    instrument.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.
			WithMessage("Settlement instrument was modified by another transaction").
			WithDetail("instrument_id", instrument.ID.String())
	}
	return nil
}

// DeleteByID deletes an instrument and its debt links
func (r *GormInstrumentRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Delete(&models.InstrumentDebtModel{}, "instrument_id = ?", id).Error; err != nil {
		return err
	}
	return deleteOne(db, &models.InstrumentModel{}, id)
}

func (r *GormInstrumentRepository) saveLinks(db *gorm.DB, links []models.InstrumentDebtModel) error {
	if len(links) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

func instrumentsToDomain(instrumentModels []models.InstrumentModel) ([]*settlement.SettlementInstrument, error) {
	instruments := make([]*settlement.SettlementInstrument, 0, len(instrumentModels))
	for i := range instrumentModels {
		inst, err := instrumentModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	return instruments, nil
}

// Ensure GormInstrumentRepository implements InstrumentRepository
var _ settlement.InstrumentRepository = (*GormInstrumentRepository)(nil)
