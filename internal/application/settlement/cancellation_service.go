package settlement

import (
	"context"
	"errors"
	"strings"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CancellationService reverses settlements, restoring their debts
type CancellationService struct {
	scope   TransactionScope
	hooks   postCommit
	metrics Metrics
	now     Clock
	logger  *zap.Logger
}

// NewCancellationService creates a new CancellationService.
// audit and cache may be nil.
func NewCancellationService(
	scope TransactionScope,
	audit settlement.AuditSink,
	cache Cache,
	logger *zap.Logger,
) *CancellationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CancellationService{
		scope:   scope,
		hooks:   postCommit{audit: audit, cache: cache, logger: logger},
		metrics: noopMetrics{},
		now:     systemClock,
		logger:  logger,
	}
}

// SetMetrics sets the metrics recorder
func (s *CancellationService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetClock overrides the time source
func (s *CancellationService) SetClock(now Clock) {
	if now != nil {
		s.now = now
	}
}

// Cancel voids an open instrument and recomputes the status of each of its
// debts from the time elapsed since their due dates.
func (s *CancellationService) Cancel(ctx context.Context, cmd CancelCommand) (*CancellationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cancellation", "cancel")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInstrumentID, cmd.InstrumentID.String(),
		telemetry.SpanAttrActor, cmd.Actor,
	)

	inst, reversal, err := s.cancel(ctx, cmd)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordCancellation(ctx, outcomeOf(err), 0)
		return nil, err
	}
	s.metrics.RecordCancellation(ctx, outcomeOf(nil), len(reversal.RestoredDebtIDs))
	telemetry.AddEvent(span, "settlement_reversed", telemetry.SpanAttrDebtCount, len(reversal.RestoredDebtIDs))

	s.hooks.appendAudit(ctx, inst.GetDomainEvents())
	inst.ClearDomainEvents()
	s.hooks.invalidate(ctx, []string{InstrumentCacheKey(inst.ID)}, CustomerCachePrefix(inst.CustomerID))

	s.logger.Info("settlement instrument canceled",
		zap.String("instrument_id", inst.ID.String()),
		zap.String("actor", inst.CanceledBy),
		zap.Int("restored_debts", len(reversal.RestoredDebtIDs)),
	)
	return toCancellationResult(reversal), nil
}

func (s *CancellationService) cancel(ctx context.Context, cmd CancelCommand) (*settlement.SettlementInstrument, *settlement.Reversal, error) {
	actor := strings.TrimSpace(cmd.Actor)
	if actor == "" {
		return nil, nil, shared.ErrInvalidInput.WithMessage("Cancellation actor is required").WithDetail("field", "actor")
	}
	now := s.now()

	var (
		inst     *settlement.SettlementInstrument
		reversal *settlement.Reversal
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inst, err = repos.InstrumentRepo().FindByID(ctx, cmd.InstrumentID)
		if err != nil {
			return err
		}
		if inst == nil {
			return settlement.ErrInstrumentNotFound.WithDetail("instrument_id", cmd.InstrumentID.String())
		}
		if !inst.Status.IsCancelable() {
			return settlement.ErrInstrumentNotCancelable.
				WithDetail("instrument_id", inst.ID.String()).
				WithDetail("status", inst.Status.String())
		}

		debts, err := repos.DebtRepo().FindByInstrument(ctx, inst.ID)
		if err != nil {
			return err
		}

		reversal, err = settlement.ReverseSettlement(inst, debts, actor, strings.TrimSpace(cmd.Reason), now)
		if err != nil {
			return err
		}

		if err := repos.InstrumentRepo().SaveWithLock(ctx, inst); err != nil {
			return err
		}
		for _, d := range debts {
			if err := repos.DebtRepo().SaveWithLock(ctx, d); err != nil {
				if errors.Is(err, shared.ErrConcurrencyConflict) {
					return shared.ErrConcurrencyConflict.
						WithMessage("Debt changed while the settlement was being canceled").
						WithDetail("debt_id", d.ID.String()).
						WithCause(err)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, asServiceError(err, "Failed to persist settlement cancellation")
	}
	return inst, reversal, nil
}
