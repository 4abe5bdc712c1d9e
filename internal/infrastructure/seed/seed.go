// Package seed fills a development database with customers and debts.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options controls how much data is generated
type Options struct {
	Customers        int
	DebtsPerCustomer int
	Seed             uint64 // 0 picks a random seed
	Currency         valueobject.Currency
}

// Result summarizes a seeding run
type Result struct {
	Customers   []SeededCustomer
	DebtsSeeded int
}

// SeededCustomer identifies a generated customer
type SeededCustomer struct {
	ID         uuid.UUID
	TaxpayerID string
	Name       string
	Debts      int
}

var debtKinds = []string{
	string(settlement.DebtKindLoan),
	string(settlement.DebtKindCreditCard),
	string(settlement.DebtKindOverdraft),
	string(settlement.DebtKindFinancing),
	string(settlement.DebtKindOther),
}

// Generator builds fake but valid domain objects
type Generator struct {
	faker    *gofakeit.Faker
	currency valueobject.Currency
}

// NewGenerator creates a generator. The same seed yields the same data.
func NewGenerator(seed uint64, currency valueobject.Currency) *Generator {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Generator{faker: gofakeit.New(seed), currency: currency}
}

// TaxpayerID returns a CPF with valid check digits
func (g *Generator) TaxpayerID() (valueobject.TaxpayerID, error) {
	for {
		base := g.faker.DigitN(9)
		digits, err := valueobject.ComputeTaxpayerCheckDigits(base)
		if err != nil {
			return valueobject.TaxpayerID{}, err
		}
		// repeated-digit CPFs are rejected by the parser
		id, err := valueobject.ParseTaxpayerID(base + digits)
		if err == nil {
			return id, nil
		}
	}
}

// Customer returns a new active customer
func (g *Generator) Customer(now time.Time) (*settlement.Customer, error) {
	taxpayerID, err := g.TaxpayerID()
	if err != nil {
		return nil, err
	}
	return settlement.NewCustomer(taxpayerID, g.faker.Name(), g.faker.Email(), g.faker.Phone(), now)
}

// Debt returns a debt for customerID due somewhere between 120 days ago and
// 60 days ahead, so every status bucket gets populated.
func (g *Generator) Debt(customerID uuid.UUID, now time.Time) (*settlement.Debt, error) {
	cents := int64(g.faker.Number(5_000, 2_500_000))
	amount, err := valueobject.FromMinorUnits(cents, g.currency)
	if err != nil {
		return nil, err
	}
	kind := settlement.DebtKind(g.faker.RandomString(debtKinds))
	due := now.AddDate(0, 0, g.faker.Number(-120, 60)).Truncate(24 * time.Hour)
	rate := decimal.New(int64(g.faker.Number(0, 800)), -2)
	description := fmt.Sprintf("%s contract %s", kind, g.faker.DigitN(8))
	return settlement.NewDebt(customerID, kind, description, amount, due, rate, now)
}

// Seeder writes generated data through the settlement repositories
type Seeder struct {
	scope  appsettlement.TransactionScope
	logger *zap.Logger
	now    func() time.Time
}

// NewSeeder creates a seeder
func NewSeeder(scope appsettlement.TransactionScope, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{scope: scope, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Run generates opts.Customers customers, each with opts.DebtsPerCustomer
// debts. Every customer is committed in its own transaction.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Customers <= 0 {
		return nil, fmt.Errorf("customers must be positive, got %d", opts.Customers)
	}
	if opts.DebtsPerCustomer < 0 {
		return nil, fmt.Errorf("debts per customer cannot be negative, got %d", opts.DebtsPerCustomer)
	}
	gen := NewGenerator(opts.Seed, opts.Currency)
	now := s.now()

	result := &Result{}
	for i := 0; i < opts.Customers; i++ {
		var seeded SeededCustomer
		err := s.scope.Execute(ctx, func(repos appsettlement.TransactionalRepositories) error {
			customer, err := gen.Customer(now)
			if err != nil {
				return err
			}
			if err := repos.CustomerRepo().Save(ctx, customer); err != nil {
				return err
			}
			seeded = SeededCustomer{
				ID:         customer.ID,
				TaxpayerID: customer.TaxpayerID.Formatted(),
				Name:       customer.Name,
			}
			for j := 0; j < opts.DebtsPerCustomer; j++ {
				debt, err := gen.Debt(customer.ID, now)
				if err != nil {
					return err
				}
				if err := repos.DebtRepo().Save(ctx, debt); err != nil {
					return err
				}
				seeded.Debts++
			}
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("seed customer %d: %w", i+1, err)
		}
		result.Customers = append(result.Customers, seeded)
		result.DebtsSeeded += seeded.Debts
		s.logger.Debug("Customer seeded",
			zap.String("customer_id", seeded.ID.String()),
			zap.Int("debts", seeded.Debts),
		)
	}

	s.logger.Info("Seeding complete",
		zap.Int("customers", len(result.Customers)),
		zap.Int("debts", result.DebtsSeeded),
	)
	return result, nil
}
