package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/google/uuid"
)

// AuditRecordModel is an append-only audit trail row.
// It is never updated, so it carries no version.
type AuditRecordModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	Action          string    `gorm:"type:varchar(100);not null;index"`
	EntityType      string    `gorm:"type:varchar(100);not null"`
	EntityID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Actor           string    `gorm:"type:varchar(200);not null"`
	Reason          string    `gorm:"type:varchar(500)"`
	RestoredDebtIDs *string   `gorm:"type:jsonb"`
	Snapshot        *string   `gorm:"type:jsonb"`
	OccurredAt      time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditRecordModel) TableName() string {
	return "settlement_audit_log"
}

// AuditRecordModelFromDomain creates a persistence model from a domain AuditRecord.
func AuditRecordModelFromDomain(r settlement.AuditRecord) (*AuditRecordModel, error) {
	m := &AuditRecordModel{
		ID:         r.ID,
		Action:     r.Action,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Actor:      r.Actor,
		Reason:     r.Reason,
		OccurredAt: r.OccurredAt,
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if len(r.RestoredDebtIDs) > 0 {
		ids, err := json.Marshal(r.RestoredDebtIDs)
		if err != nil {
			return nil, fmt.Errorf("marshal restored debt ids: %w", err)
		}
		encoded := string(ids)
		m.RestoredDebtIDs = &encoded
	}
	if len(r.Snapshot) > 0 {
		snapshot := string(r.Snapshot)
		m.Snapshot = &snapshot
	}
	return m, nil
}

// ToDomain converts the persistence model to a domain AuditRecord.
func (m *AuditRecordModel) ToDomain() (settlement.AuditRecord, error) {
	r := settlement.AuditRecord{
		ID:         m.ID,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Actor:      m.Actor,
		Reason:     m.Reason,
		OccurredAt: m.OccurredAt,
	}
	if m.RestoredDebtIDs != nil {
		if err := json.Unmarshal([]byte(*m.RestoredDebtIDs), &r.RestoredDebtIDs); err != nil {
			return settlement.AuditRecord{}, fmt.Errorf("unmarshal restored debt ids: %w", err)
		}
	}
	if m.Snapshot != nil {
		r.Snapshot = json.RawMessage(*m.Snapshot)
	}
	return r, nil
}
