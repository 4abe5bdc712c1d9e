package settlement

import (
	"context"
	"encoding/json"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueryService serves read models, cached read-through per customer
type QueryService struct {
	customerRepo   settlement.CustomerRepository
	debtRepo       settlement.DebtRepository
	instrumentRepo settlement.InstrumentRepository
	paymentRepo    settlement.PaymentRepository
	cache          Cache
	cfg            Config
	logger         *zap.Logger
}

// NewQueryService creates a new QueryService. cache may be nil.
func NewQueryService(
	customerRepo settlement.CustomerRepository,
	debtRepo settlement.DebtRepository,
	instrumentRepo settlement.InstrumentRepository,
	paymentRepo settlement.PaymentRepository,
	cache Cache,
	cfg Config,
	logger *zap.Logger,
) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		customerRepo:   customerRepo,
		debtRepo:       debtRepo,
		instrumentRepo: instrumentRepo,
		paymentRepo:    paymentRepo,
		cache:          cache,
		cfg:            cfg.withDefaults(),
		logger:         logger,
	}
}

// FindCustomerByTaxpayerID resolves a raw CPF to a customer
func (s *QueryService) FindCustomerByTaxpayerID(ctx context.Context, raw string) (*CustomerDTO, error) {
	taxpayerID, err := valueobject.ParseTaxpayerID(raw)
	if err != nil {
		return nil, err
	}
	customer, err := s.customerRepo.FindByTaxpayerID(ctx, taxpayerID)
	if err != nil {
		return nil, asServiceError(err, "Failed to load customer")
	}
	if customer == nil {
		return nil, settlement.ErrCustomerNotFound.WithDetail("taxpayer_id", taxpayerID.Masked())
	}
	dto := ToCustomerDTO(customer)
	return &dto, nil
}

// ListDebtsByCustomer returns a page of the customer's debts
func (s *QueryService) ListDebtsByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]DebtDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "query", "list_debts")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID.String())

	filter = filter.Normalized()
	var dtos []DebtDTO
	err := s.readThrough(ctx, DebtsCacheKey(customerID, filter.Page, filter.PageSize), &dtos, func() error {
		if err := s.requireCustomer(ctx, customerID); err != nil {
			return err
		}
		debts, err := s.debtRepo.FindByCustomer(ctx, customerID, filter)
		if err != nil {
			return err
		}
		dtos = ToDebtDTOs(debts)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asServiceError(err, "Failed to list debts")
	}
	return dtos, nil
}

// ListInstrumentsByCustomer returns a page of the customer's instruments
func (s *QueryService) ListInstrumentsByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]InstrumentDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "query", "list_instruments")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID.String())

	filter = filter.Normalized()
	var dtos []InstrumentDTO
	err := s.readThrough(ctx, InstrumentsCacheKey(customerID, filter.Page, filter.PageSize), &dtos, func() error {
		if err := s.requireCustomer(ctx, customerID); err != nil {
			return err
		}
		instruments, err := s.instrumentRepo.FindByCustomer(ctx, customerID, filter)
		if err != nil {
			return err
		}
		dtos = ToInstrumentDTOs(instruments)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asServiceError(err, "Failed to list instruments")
	}
	return dtos, nil
}

// GetInstrument returns a single instrument
func (s *QueryService) GetInstrument(ctx context.Context, instrumentID uuid.UUID) (*InstrumentDTO, error) {
	var dto InstrumentDTO
	err := s.readThrough(ctx, InstrumentCacheKey(instrumentID), &dto, func() error {
		inst, err := s.instrumentRepo.FindByID(ctx, instrumentID)
		if err != nil {
			return err
		}
		if inst == nil {
			return settlement.ErrInstrumentNotFound.WithDetail("instrument_id", instrumentID.String())
		}
		dto = ToInstrumentDTO(inst)
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "Failed to load instrument")
	}
	return &dto, nil
}

// CustomerDebtSummary totals a customer's debts by status
func (s *QueryService) CustomerDebtSummary(ctx context.Context, customerID uuid.UUID) (*DebtSummaryDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "query", "debt_summary")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID.String())

	var summary DebtSummaryDTO
	err := s.readThrough(ctx, SummaryCacheKey(customerID), &summary, func() error {
		if err := s.requireCustomer(ctx, customerID); err != nil {
			return err
		}
		debts, err := s.allDebts(ctx, customerID)
		if err != nil {
			return err
		}
		computed, err := summarize(customerID, s.cfg.Currency, debts)
		if err != nil {
			return err
		}
		summary = computed
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asServiceError(err, "Failed to compute debt summary")
	}
	return &summary, nil
}

// ListAllDebts returns every debt of the customer as domain objects, bypassing the cache
func (s *QueryService) ListAllDebts(ctx context.Context, customerID uuid.UUID) ([]*settlement.Debt, error) {
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, asServiceError(err, "Failed to load customer")
	}
	debts, err := s.allDebts(ctx, customerID)
	if err != nil {
		return nil, asServiceError(err, "Failed to list debts")
	}
	return debts, nil
}

// GetPayment returns a single payment
func (s *QueryService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, asServiceError(err, "Failed to load payment")
	}
	if p == nil {
		return nil, settlement.ErrPaymentNotFound.WithDetail("payment_id", paymentID.String())
	}
	dto := ToPaymentDTO(p)
	return &dto, nil
}

func (s *QueryService) requireCustomer(ctx context.Context, customerID uuid.UUID) error {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return settlement.ErrCustomerNotFound.WithDetail("customer_id", customerID.String())
	}
	return nil
}

func (s *QueryService) allDebts(ctx context.Context, customerID uuid.UUID) ([]*settlement.Debt, error) {
	filter := shared.DefaultFilter()
	filter.OrderBy = "due_date"
	filter.OrderDir = "asc"
	var all []*settlement.Debt
	for {
		page, err := s.debtRepo.FindByCustomer(ctx, customerID, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < filter.PageSize {
			return all, nil
		}
		filter.Page++
	}
}

// readThrough fills dest from the cache, or runs load and caches dest.
// Cache failures degrade to a direct load.
func (s *QueryService) readThrough(ctx context.Context, key string, dest any, load func() error) error {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			if err := json.Unmarshal([]byte(raw), dest); err == nil {
				return nil
			}
			s.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
		}
	}

	if err := load(); err != nil {
		return err
	}

	if s.cache != nil {
		encoded, err := json.Marshal(dest)
		if err != nil {
			s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
			return nil
		}
		if err := s.cache.SetWithTTL(ctx, key, string(encoded), s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func summarize(customerID uuid.UUID, currency valueobject.Currency, debts []*settlement.Debt) (DebtSummaryDTO, error) {
	original := valueobject.Zero(currency)
	current := valueobject.Zero(currency)
	open := valueobject.Zero(currency)
	summary := DebtSummaryDTO{CustomerID: customerID, TotalDebts: len(debts), Currency: string(currency)}

	var err error
	for _, d := range debts {
		if original, err = original.Add(d.OriginalAmount); err != nil {
			return DebtSummaryDTO{}, err
		}
		if current, err = current.Add(d.PayableAmount()); err != nil {
			return DebtSummaryDTO{}, err
		}
		if d.Status.IsNegotiable() {
			if open, err = open.Add(d.PayableAmount()); err != nil {
				return DebtSummaryDTO{}, err
			}
		}
		switch d.Status {
		case settlement.DebtStatusActive:
			summary.ActiveCount++
		case settlement.DebtStatusOverdue:
			summary.OverdueCount++
		case settlement.DebtStatusDefaulted:
			summary.DefaultedCount++
		case settlement.DebtStatusNegotiated:
			summary.NegotiatedCount++
		case settlement.DebtStatusSettled:
			summary.SettledCount++
		case settlement.DebtStatusCanceled:
			summary.CanceledCount++
		}
	}
	summary.TotalOriginal = original.StringFixed()
	summary.TotalCurrent = current.StringFixed()
	summary.OpenAmount = open.StringFixed()
	return summary, nil
}
