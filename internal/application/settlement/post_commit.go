package settlement

import (
	"context"
	"errors"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// postCommit runs the non-transactional side effects of a committed write.
// Failures are logged and never reach the caller.
type postCommit struct {
	audit  settlement.AuditSink
	cache  Cache
	logger *zap.Logger
}

// appendAudit converts events into audit records and appends them
func (p postCommit) appendAudit(ctx context.Context, events []shared.DomainEvent) {
	if p.audit == nil {
		return
	}
	for _, evt := range events {
		record, ok, err := settlement.AuditRecordFromEvent(evt)
		if err != nil {
			p.logger.Warn("failed to build audit record",
				zap.String("event_type", evt.EventType()),
				zap.String("aggregate_id", evt.AggregateID().String()),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := p.audit.Append(ctx, record); err != nil {
			p.logger.Warn("failed to append audit record",
				zap.String("action", record.Action),
				zap.String("entity_id", record.EntityID.String()),
				zap.Error(err))
		}
	}
}

// invalidate drops exact keys and every key under the given prefixes
func (p postCommit) invalidate(ctx context.Context, keys []string, prefixes ...string) {
	if p.cache == nil {
		return
	}
	if len(keys) > 0 {
		if err := p.cache.Delete(ctx, keys...); err != nil {
			p.logger.Warn("failed to invalidate cache keys", zap.Strings("keys", keys), zap.Error(err))
		}
	}
	for _, prefix := range prefixes {
		if err := p.cache.DeleteByPrefix(ctx, prefix); err != nil {
			p.logger.Warn("failed to invalidate cache prefix", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// asServiceError passes domain errors through and wraps everything else as a persistence failure
func asServiceError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := shared.AsDomainError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return shared.NewPersistenceError("Request canceled before the transaction completed", err)
	}
	return shared.NewPersistenceError(message, err)
}

// outcomeOf returns the metric outcome label for err
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if de, ok := shared.AsDomainError(err); ok {
		return de.Code
	}
	return shared.ErrPersistence.Code
}
