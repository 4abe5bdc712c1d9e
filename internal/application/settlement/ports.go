package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Cache is the read-through cache used by queries and invalidated after writes.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Metrics records settlement outcomes. Outcome is "success" or an error code.
type Metrics interface {
	RecordNegotiation(ctx context.Context, outcome string, installments int, total valueobject.Money)
	RecordCancellation(ctx context.Context, outcome string, restored int)
	RecordRecompute(ctx context.Context, debtsChanged, instrumentsChanged int)
}

type noopMetrics struct{}

func (noopMetrics) RecordNegotiation(context.Context, string, int, valueobject.Money) {}
func (noopMetrics) RecordCancellation(context.Context, string, int)                   {}
func (noopMetrics) RecordRecompute(context.Context, int, int)                         {}

// Clock returns the current time
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// Config holds the settlement rules applied by the services
type Config struct {
	MinimumInstallment    valueobject.Money
	MaxInstallments       int
	DueInDays             int
	Currency              valueobject.Currency
	MaxIdentifierAttempts int
	CacheTTL              time.Duration
}

// DefaultConfig returns the default settlement rules
func DefaultConfig() Config {
	return Config{
		MinimumInstallment:    valueobject.NewBRL("50.00"),
		MaxInstallments:       settlement.MaxInstallmentCount,
		DueInDays:             7,
		Currency:              valueobject.BRL,
		MaxIdentifierAttempts: 5,
		CacheTTL:              5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Currency == "" {
		c.Currency = def.Currency
	}
	if c.MinimumInstallment.Currency() == "" {
		c.MinimumInstallment = def.MinimumInstallment
	}
	if c.MaxInstallments <= 0 || c.MaxInstallments > settlement.MaxInstallmentCount {
		c.MaxInstallments = def.MaxInstallments
	}
	if c.DueInDays <= 0 {
		c.DueInDays = def.DueInDays
	}
	if c.MaxIdentifierAttempts <= 0 {
		c.MaxIdentifierAttempts = def.MaxIdentifierAttempts
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	return c
}

// Cache keys. Everything cached for a customer lives under CustomerCachePrefix.

// CustomerCachePrefix returns the key prefix for a customer's cached views
func CustomerCachePrefix(customerID uuid.UUID) string {
	return fmt.Sprintf("customer:%s:", customerID)
}

// DebtsCacheKey returns the key for a page of a customer's debts
func DebtsCacheKey(customerID uuid.UUID, page, pageSize int) string {
	return fmt.Sprintf("customer:%s:debts:%d:%d", customerID, page, pageSize)
}

// InstrumentsCacheKey returns the key for a page of a customer's instruments
func InstrumentsCacheKey(customerID uuid.UUID, page, pageSize int) string {
	return fmt.Sprintf("customer:%s:instruments:%d:%d", customerID, page, pageSize)
}

// SummaryCacheKey returns the key for a customer's debt summary
func SummaryCacheKey(customerID uuid.UUID) string {
	return fmt.Sprintf("customer:%s:summary", customerID)
}

// InstrumentCacheKey returns the key for a single instrument
func InstrumentCacheKey(instrumentID uuid.UUID) string {
	return fmt.Sprintf("instrument:%s", instrumentID)
}
