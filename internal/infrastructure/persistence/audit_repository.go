package persistence

import (
	"context"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditSink appends audit records to settlement_audit_log.
// It writes on its own connection, never inside a settlement transaction.
type GormAuditSink struct {
	db *gorm.DB
}

// NewGormAuditSink creates a new GormAuditSink
func NewGormAuditSink(db *gorm.DB) *GormAuditSink {
	return &GormAuditSink{db: db}
}

// Append inserts a record. Replaying the same event ID is a no-op.
func (s *GormAuditSink) Append(ctx context.Context, record settlement.AuditRecord) error {
	model, err := models.AuditRecordModelFromDomain(record)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}

// FindByEntity returns the trail for one entity, oldest first
func (s *GormAuditSink) FindByEntity(ctx context.Context, entityID uuid.UUID) ([]settlement.AuditRecord, error) {
	var rows []models.AuditRecordModel
	if err := s.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("occurred_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]settlement.AuditRecord, 0, len(rows))
	for i := range rows {
		r, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Ensure GormAuditSink implements AuditSink
var _ settlement.AuditSink = (*GormAuditSink)(nil)
