package settlement

import (
	"context"
	"strings"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService manages the payment lifecycle. Approving a payment that
// references an instrument pays the instrument and settles its debts.
type PaymentService struct {
	scope  TransactionScope
	hooks  postCommit
	cfg    Config
	now    Clock
	logger *zap.Logger
}

// NewPaymentService creates a new PaymentService. cache may be nil.
func NewPaymentService(scope TransactionScope, cache Cache, cfg Config, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		scope:  scope,
		hooks:  postCommit{cache: cache, logger: logger},
		cfg:    cfg.withDefaults(),
		now:    systemClock,
		logger: logger,
	}
}

// SetClock overrides the time source
func (s *PaymentService) SetClock(now Clock) {
	if now != nil {
		s.now = now
	}
}

// Register records a pending payment
func (s *PaymentService) Register(ctx context.Context, cmd RegisterPaymentCommand) (*PaymentDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "register")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, cmd.CustomerID.String(),
		telemetry.SpanAttrAmount, cmd.Amount,
	)

	amount, err := valueobject.NewMoneyFromString(strings.TrimSpace(cmd.Amount), s.cfg.Currency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	now := s.now()

	var payment *settlement.Payment
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		customer, err := repos.CustomerRepo().FindByID(ctx, cmd.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return settlement.ErrCustomerNotFound.WithDetail("customer_id", cmd.CustomerID.String())
		}
		if cmd.InstrumentID != nil {
			inst, err := repos.InstrumentRepo().FindByID(ctx, *cmd.InstrumentID)
			if err != nil {
				return err
			}
			if inst == nil || inst.CustomerID != customer.ID {
				return settlement.ErrInstrumentNotFound.WithDetail("instrument_id", cmd.InstrumentID.String())
			}
			if !inst.Status.IsOpen() {
				return shared.ErrInvalidState.
					WithMessage("Instrument no longer accepts payments").
					WithDetail("instrument_id", inst.ID.String()).
					WithDetail("status", inst.Status.String())
			}
		}
		payment, err = settlement.NewPayment(customer.ID, amount, settlement.PaymentMethod(cmd.Method), cmd.InstrumentID, now)
		if err != nil {
			return err
		}
		return repos.PaymentRepo().Save(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asServiceError(err, "Failed to register payment")
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, payment.ID.String())
	dto := ToPaymentDTO(payment)
	return &dto, nil
}

// Approve confirms a payment. If it references an instrument, the instrument
// is marked paid and each of its debts settled in the same transaction.
func (s *PaymentService) Approve(ctx context.Context, paymentID uuid.UUID, transactionCode string) (*PaymentDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "approve")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID.String())

	now := s.now()
	var (
		payment  *settlement.Payment
		settled  []uuid.UUID
		instPaid *settlement.SettlementInstrument
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payment, err = loadPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if err := payment.Approve(strings.TrimSpace(transactionCode), now); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		if payment.InstrumentID == nil {
			return nil
		}

		instPaid, err = repos.InstrumentRepo().FindByID(ctx, *payment.InstrumentID)
		if err != nil {
			return err
		}
		if instPaid == nil {
			return settlement.ErrInstrumentNotFound.WithDetail("instrument_id", payment.InstrumentID.String())
		}
		short, err := payment.Amount.LessThan(instPaid.TotalAmount)
		if err != nil {
			return err
		}
		if short {
			return shared.NewBusinessRuleError("PAYMENT_BELOW_INSTRUMENT_TOTAL", "Payment does not cover the instrument total").
				WithDetail("payment_amount", payment.Amount.StringFixed()).
				WithDetail("total_amount", instPaid.TotalAmount.StringFixed())
		}
		if err := instPaid.MarkPaid(now); err != nil {
			return err
		}
		if err := repos.InstrumentRepo().SaveWithLock(ctx, instPaid); err != nil {
			return err
		}

		debts, err := repos.DebtRepo().FindByInstrument(ctx, instPaid.ID)
		if err != nil {
			return err
		}
		if len(debts) == 0 {
			return settlement.ErrNoAssociatedDebts.WithDetail("instrument_id", instPaid.ID.String())
		}
		for _, d := range debts {
			if err := d.Settle(now); err != nil {
				return err
			}
			if err := repos.DebtRepo().SaveWithLock(ctx, d); err != nil {
				return err
			}
			settled = append(settled, d.ID)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asServiceError(err, "Failed to approve payment")
	}

	if instPaid != nil {
		s.hooks.invalidate(ctx, []string{InstrumentCacheKey(instPaid.ID)}, CustomerCachePrefix(instPaid.CustomerID))
		s.logger.Info("settlement instrument paid",
			zap.String("instrument_id", instPaid.ID.String()),
			zap.String("payment_id", payment.ID.String()),
			zap.Int("settled_debts", len(settled)),
		)
	}
	dto := ToPaymentDTO(payment)
	return &dto, nil
}

// Reject refuses a payment
func (s *PaymentService) Reject(ctx context.Context, paymentID uuid.UUID, reason string) (*PaymentDTO, error) {
	return s.transition(ctx, "reject", paymentID, func(p *settlement.Payment) error {
		return p.Reject(strings.TrimSpace(reason), s.now())
	})
}

// CancelPayment voids a payment that has not been approved
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	return s.transition(ctx, "cancel", paymentID, func(p *settlement.Payment) error {
		return p.Cancel(s.now())
	})
}

func (s *PaymentService) transition(
	ctx context.Context,
	method string,
	paymentID uuid.UUID,
	apply func(p *settlement.Payment) error,
) (*PaymentDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", method)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID.String())

	var payment *settlement.Payment
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payment, err = loadPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if err := apply(payment); err != nil {
			return err
		}
		return repos.PaymentRepo().SaveWithLock(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asServiceError(err, "Failed to update payment")
	}
	dto := ToPaymentDTO(payment)
	return &dto, nil
}

func loadPayment(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*settlement.Payment, error) {
	p, err := repos.PaymentRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, settlement.ErrPaymentNotFound.WithDetail("payment_id", id.String())
	}
	return p, nil
}
