package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRecomputeBatchSize is the number of debts reclassified per transaction
const DefaultRecomputeBatchSize = 500

// RecomputeResult summarizes one recompute run
type RecomputeResult struct {
	DebtsScanned       int `json:"debts_scanned"`
	DebtsChanged       int `json:"debts_changed"`
	DebtsSkipped       int `json:"debts_skipped"`
	InstrumentsOverdue int `json:"instruments_overdue"`
}

// DebtStatusService reclassifies unsettled debts as time passes and flags
// instruments whose due date has gone by.
type DebtStatusService struct {
	scope     TransactionScope
	hooks     postCommit
	metrics   Metrics
	batchSize int
	now       Clock
	logger    *zap.Logger
}

// NewDebtStatusService creates a new DebtStatusService. cache may be nil.
func NewDebtStatusService(scope TransactionScope, cache Cache, batchSize int, logger *zap.Logger) *DebtStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultRecomputeBatchSize
	}
	return &DebtStatusService{
		scope:     scope,
		hooks:     postCommit{cache: cache, logger: logger},
		metrics:   noopMetrics{},
		batchSize: batchSize,
		now:       systemClock,
		logger:    logger,
	}
}

// SetMetrics sets the metrics recorder
func (s *DebtStatusService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetClock overrides the time source
func (s *DebtStatusService) SetClock(now Clock) {
	if now != nil {
		s.now = now
	}
}

// Recompute walks active, overdue and defaulted debts in id order, one batch
// per transaction, then marks due instruments overdue. A debt that changed
// concurrently is skipped and picked up by the next run.
func (s *DebtStatusService) Recompute(ctx context.Context) (*RecomputeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt_status", "recompute")
	defer span.End()

	now := s.now()
	result := &RecomputeResult{}
	touched := make(map[uuid.UUID]struct{})
	afterID := uuid.Nil

	for {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return result, err
		}
		var (
			batch   int
			skipped int
			lastID  uuid.UUID
			changed []uuid.UUID
		)
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			debts, err := repos.DebtRepo().FindByStatuses(ctx, settlement.NegotiableStatuses(), afterID, s.batchSize)
			if err != nil {
				return err
			}
			batch, skipped, changed = len(debts), 0, nil
			for _, d := range debts {
				lastID = d.ID
				if !d.Recompute(now) {
					continue
				}
				if err := repos.DebtRepo().SaveWithLock(ctx, d); err != nil {
					if errors.Is(err, shared.ErrConcurrencyConflict) {
						skipped++
						continue
					}
					return err
				}
				changed = append(changed, d.CustomerID)
			}
			return nil
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return result, asServiceError(err, "Failed to recompute debt statuses")
		}

		result.DebtsScanned += batch
		result.DebtsChanged += len(changed)
		result.DebtsSkipped += skipped
		for _, customerID := range changed {
			touched[customerID] = struct{}{}
		}
		if batch < s.batchSize {
			break
		}
		afterID = lastID
	}

	overdue, err := s.markOverdueInstruments(ctx, now, touched)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	result.InstrumentsOverdue = overdue

	for customerID := range touched {
		s.hooks.invalidate(ctx, nil, CustomerCachePrefix(customerID))
	}

	telemetry.SetAttributes(span,
		"debts_scanned", result.DebtsScanned,
		"debts_changed", result.DebtsChanged,
		"instruments_overdue", result.InstrumentsOverdue,
	)
	s.metrics.RecordRecompute(ctx, result.DebtsChanged, result.InstrumentsOverdue)
	s.logger.Info("debt statuses recomputed",
		zap.Int("debts_scanned", result.DebtsScanned),
		zap.Int("debts_changed", result.DebtsChanged),
		zap.Int("debts_skipped", result.DebtsSkipped),
		zap.Int("instruments_overdue", result.InstrumentsOverdue),
	)
	return result, nil
}

// markOverdueInstruments flags active instruments due before today, adding
// their customers to touched.
func (s *DebtStatusService) markOverdueInstruments(ctx context.Context, now time.Time, touched map[uuid.UUID]struct{}) (int, error) {
	u := now.UTC()
	startOfDay := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	total := 0
	for {
		var marked []*settlement.SettlementInstrument
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			due, err := repos.InstrumentRepo().FindDueActive(ctx, startOfDay, s.batchSize)
			if err != nil {
				return err
			}
			for _, inst := range due {
				if !inst.MarkOverdueIfDue(now) {
					continue
				}
				if err := repos.InstrumentRepo().SaveWithLock(ctx, inst); err != nil {
					if errors.Is(err, shared.ErrConcurrencyConflict) {
						continue
					}
					return err
				}
				marked = append(marked, inst)
			}
			return nil
		})
		if err != nil {
			return total, asServiceError(err, "Failed to mark overdue instruments")
		}
		for _, inst := range marked {
			touched[inst.CustomerID] = struct{}{}
			s.hooks.invalidate(ctx, []string{InstrumentCacheKey(inst.ID)})
		}
		total += len(marked)
		if len(marked) < s.batchSize {
			return total, nil
		}
	}
}
