package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NegotiationService aggregates eligible debts into a settlement instrument
type NegotiationService struct {
	scope     TransactionScope
	generator settlement.IdentifierGenerator
	cfg       Config
	hooks     postCommit
	metrics   Metrics
	now       Clock
	logger    *zap.Logger
}

// NewNegotiationService creates a new NegotiationService.
// audit and cache may be nil.
func NewNegotiationService(
	scope TransactionScope,
	generator settlement.IdentifierGenerator,
	audit settlement.AuditSink,
	cache Cache,
	cfg Config,
	logger *zap.Logger,
) *NegotiationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NegotiationService{
		scope:     scope,
		generator: generator,
		cfg:       cfg.withDefaults(),
		hooks:     postCommit{audit: audit, cache: cache, logger: logger},
		metrics:   noopMetrics{},
		now:       systemClock,
		logger:    logger,
	}
}

// SetMetrics sets the metrics recorder
func (s *NegotiationService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetClock overrides the time source
func (s *NegotiationService) SetClock(now Clock) {
	if now != nil {
		s.now = now
	}
}

// Negotiate creates an active instrument over the selected debts and binds
// every debt to it in one transaction.
func (s *NegotiationService) Negotiate(ctx context.Context, cmd NegotiateCommand) (*InstrumentDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "negotiation", "negotiate")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, cmd.CustomerID.String(),
		telemetry.SpanAttrDebtCount, len(cmd.DebtIDs),
		telemetry.SpanAttrInstallmentCount, cmd.InstallmentCount,
	)

	inst, err := s.negotiate(ctx, cmd)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordNegotiation(ctx, outcomeOf(err), cmd.InstallmentCount, valueobject.Zero(s.cfg.Currency))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInstrumentID, inst.ID.String(),
		telemetry.SpanAttrAmount, inst.TotalAmount.StringFixed(),
	)
	s.metrics.RecordNegotiation(ctx, outcomeOf(nil), inst.InstallmentCount, inst.TotalAmount)

	s.hooks.appendAudit(ctx, inst.GetDomainEvents())
	inst.ClearDomainEvents()
	s.hooks.invalidate(ctx, nil, CustomerCachePrefix(inst.CustomerID))

	s.logger.Info("settlement instrument created",
		zap.String("instrument_id", inst.ID.String()),
		zap.String("customer_id", inst.CustomerID.String()),
		zap.Int("debt_count", len(inst.DebtIDs)),
		zap.Int("installment_count", inst.InstallmentCount),
		zap.String("total_amount", inst.TotalAmount.StringFixed()),
	)

	dto := ToInstrumentDTO(inst)
	return &dto, nil
}

func (s *NegotiationService) negotiate(ctx context.Context, cmd NegotiateCommand) (*settlement.SettlementInstrument, error) {
	if err := settlement.ValidateInstallmentCount(cmd.InstallmentCount, s.cfg.MaxInstallments); err != nil {
		return nil, err
	}
	debtIDs := settlement.UniqueDebtIDs(cmd.DebtIDs)
	if len(debtIDs) == 0 {
		return nil, settlement.ErrEmptySelection.WithDetail("field", "debt_ids")
	}
	now := s.now()

	var inst *settlement.SettlementInstrument
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		customer, err := repos.CustomerRepo().FindByID(ctx, cmd.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return settlement.ErrCustomerNotFound.WithDetail("customer_id", cmd.CustomerID.String())
		}

		debts, err := s.loadOwnedDebts(ctx, repos.DebtRepo(), customer.ID, debtIDs)
		if err != nil {
			return err
		}

		// Re-checked inside the transaction; the version check on the debt
		// update below catches anything that commits after this read.
		open, err := repos.InstrumentRepo().FindOpenByDebtIDs(ctx, debtIDs)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return alreadyNegotiated(open[0], debtIDs)
		}

		if err := checkNegotiable(debts); err != nil {
			return err
		}
		total := valueobject.Zero(s.cfg.Currency)
		for _, d := range debts {
			if total, err = total.Add(d.PayableAmount()); err != nil {
				return err
			}
		}

		plan, err := settlement.PlanInstallments(total, cmd.InstallmentCount, s.cfg.MinimumInstallment)
		if err != nil {
			return err
		}

		instrumentID := uuid.New()
		dueDate := now.AddDate(0, 0, s.cfg.DueInDays)
		identifier, err := s.generateIdentifier(ctx, repos.InstrumentRepo(), instrumentID, plan.Total, dueDate)
		if err != nil {
			return err
		}

		inst, err = settlement.NewSettlementInstrument(instrumentID, customer.ID, debtIDs, plan,
			s.cfg.MinimumInstallment, identifier, cmd.Description, dueDate, now)
		if err != nil {
			return err
		}
		if err := repos.InstrumentRepo().Save(ctx, inst); err != nil {
			return err
		}

		for _, d := range debts {
			if err := d.MarkNegotiated(inst.ID, now); err != nil {
				return err
			}
			if err := repos.DebtRepo().SaveWithLock(ctx, d); err != nil {
				if errors.Is(err, shared.ErrConcurrencyConflict) {
					return explainDebtConflict(ctx, repos.DebtRepo(), d.ID, err)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "Failed to persist settlement instrument")
	}
	return inst, nil
}

// explainDebtConflict re-reads a debt whose versioned write lost. Only a debt
// that another instrument now holds is reported as already negotiated; any
// other competing writer, such as the status recompute job, is a plain
// concurrency conflict the caller may retry.
func explainDebtConflict(ctx context.Context, repo settlement.DebtRepository, id uuid.UUID, conflict error) error {
	current, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current != nil && current.Status == settlement.DebtStatusNegotiated {
		return settlement.ErrDebtAlreadyNegotiated.
			WithDetail("debt_id", id.String()).
			WithCause(conflict)
	}
	return shared.ErrConcurrencyConflict.
		WithMessage("Debt changed while the instrument was being created; retry the negotiation").
		WithDetail("debt_id", id.String())
}

// loadOwnedDebts returns the debts in the order of ids, failing NOT_FOUND for
// any id that is missing or belongs to another customer.
func (s *NegotiationService) loadOwnedDebts(
	ctx context.Context,
	repo settlement.DebtRepository,
	customerID uuid.UUID,
	ids []uuid.UUID,
) ([]*settlement.Debt, error) {
	found, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*settlement.Debt, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	debts := make([]*settlement.Debt, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok || d.CustomerID != customerID {
			return nil, settlement.ErrDebtNotFound.WithDetail("debt_id", id.String())
		}
		debts = append(debts, d)
	}
	return debts, nil
}

// generateIdentifier asks the generator for candidates until one is unused
func (s *NegotiationService) generateIdentifier(
	ctx context.Context,
	repo settlement.InstrumentRepository,
	instrumentID uuid.UUID,
	amount valueobject.Money,
	dueDate time.Time,
) (settlement.InstrumentIdentifier, error) {
	for attempt := 0; attempt < s.cfg.MaxIdentifierAttempts; attempt++ {
		identifier, err := s.generator.Generate(settlement.IdentifierRequest{
			InstrumentID: instrumentID,
			Attempt:      attempt,
			Amount:       amount,
			DueDate:      dueDate,
		})
		if err != nil {
			return settlement.InstrumentIdentifier{}, err
		}
		exists, err := repo.ExistsByIdentifierLine(ctx, identifier.IdentifierLine)
		if err != nil {
			return settlement.InstrumentIdentifier{}, err
		}
		if !exists {
			return identifier, nil
		}
		s.logger.Debug("identifier line collision",
			zap.String("instrument_id", instrumentID.String()),
			zap.Int("attempt", attempt))
	}
	return settlement.InstrumentIdentifier{}, settlement.ErrIdentifierGeneration.
		WithDetail("attempts", s.cfg.MaxIdentifierAttempts)
}

// checkNegotiable reports DEBT_ALREADY_NEGOTIATED for any debt before
// DEBT_NOT_NEGOTIABLE for any other.
func checkNegotiable(debts []*settlement.Debt) error {
	var notNegotiable error
	for _, d := range debts {
		err := d.CheckNegotiable()
		if err == nil {
			continue
		}
		if errors.Is(err, settlement.ErrDebtAlreadyNegotiated) {
			return err
		}
		if notNegotiable == nil {
			notNegotiable = err
		}
	}
	return notNegotiable
}

func alreadyNegotiated(open *settlement.SettlementInstrument, selected []uuid.UUID) error {
	err := settlement.ErrDebtAlreadyNegotiated.WithDetail("instrument_id", open.ID.String())
	bound := make(map[uuid.UUID]struct{}, len(open.DebtIDs))
	for _, id := range open.DebtIDs {
		bound[id] = struct{}{}
	}
	for _, id := range selected {
		if _, ok := bound[id]; ok {
			return err.WithDetail("debt_id", id.String())
		}
	}
	return err
}
