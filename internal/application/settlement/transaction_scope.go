package settlement

import (
	"context"

	"github.com/debtsettle/backend/internal/domain/settlement"
)

// TransactionScope provides transactional access to settlement repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all settlement repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Aggregate boundaries:
//   - DebtRepo: debts are written with SaveWithLock so a concurrent negotiation
//     over the same debt loses on the version check.
//   - InstrumentRepo: the instrument owns its debt id set; the join rows are
//     persisted together with the instrument.
type TransactionalRepositories interface {
	// CustomerRepo returns the customer repository scoped to the current transaction
	CustomerRepo() settlement.CustomerRepository
	// DebtRepo returns the debt repository scoped to the current transaction
	DebtRepo() settlement.DebtRepository
	// InstrumentRepo returns the instrument repository scoped to the current transaction
	InstrumentRepo() settlement.InstrumentRepository
	// PaymentRepo returns the payment repository scoped to the current transaction
	PaymentRepo() settlement.PaymentRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for read paths or when transaction support is not required.
type NoOpTransactionScope struct {
	customerRepo   settlement.CustomerRepository
	debtRepo       settlement.DebtRepository
	instrumentRepo settlement.InstrumentRepository
	paymentRepo    settlement.PaymentRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	customerRepo settlement.CustomerRepository,
	debtRepo settlement.DebtRepository,
	instrumentRepo settlement.InstrumentRepository,
	paymentRepo settlement.PaymentRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		customerRepo:   customerRepo,
		debtRepo:       debtRepo,
		instrumentRepo: instrumentRepo,
		paymentRepo:    paymentRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// CustomerRepo returns the customer repository.
func (s *NoOpTransactionScope) CustomerRepo() settlement.CustomerRepository {
	return s.customerRepo
}

// DebtRepo returns the debt repository.
func (s *NoOpTransactionScope) DebtRepo() settlement.DebtRepository {
	return s.debtRepo
}

// InstrumentRepo returns the instrument repository.
func (s *NoOpTransactionScope) InstrumentRepo() settlement.InstrumentRepository {
	return s.instrumentRepo
}

// PaymentRepo returns the payment repository.
func (s *NoOpTransactionScope) PaymentRepo() settlement.PaymentRepository {
	return s.paymentRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
