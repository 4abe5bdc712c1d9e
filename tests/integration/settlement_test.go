//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/debtsettle/backend/internal/infrastructure/cache"
	"github.com/debtsettle/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stack struct {
	negotiation  *appsettlement.NegotiationService
	cancellation *appsettlement.CancellationService
	queries      *appsettlement.QueryService
	customers    *persistence.GormCustomerRepository
	debts        *persistence.GormDebtRepository
}

func newStack(t *testing.T, tdb *TestDB) *stack {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = store.Close() })

	generator, err := settlement.NewBankSlipGenerator([]string{"001", "237", "341"}, "1234", "567890")
	require.NoError(t, err)

	cfg := appsettlement.DefaultConfig()
	scope := persistence.NewGormTransactionScope(tdb.DB)
	audit := persistence.NewGormAuditSink(tdb.DB)
	customers := persistence.NewGormCustomerRepository(tdb.DB)
	debts := persistence.NewGormDebtRepository(tdb.DB)

	return &stack{
		negotiation:  appsettlement.NewNegotiationService(scope, generator, audit, store, cfg, log),
		cancellation: appsettlement.NewCancellationService(scope, audit, store, log),
		queries: appsettlement.NewQueryService(customers, debts,
			persistence.NewGormInstrumentRepository(tdb.DB), persistence.NewGormPaymentRepository(tdb.DB),
			store, cfg, log),
		customers: customers,
		debts:     debts,
	}
}

func seedCustomerWithDebts(t *testing.T, s *stack, amounts ...string) (*settlement.Customer, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	customer, err := settlement.NewCustomer(valueobject.MustParseTaxpayerID("111.444.777-35"), "Maria Souza", "maria@example.com", "", now)
	require.NoError(t, err)
	require.NoError(t, s.customers.Save(ctx, customer))

	ids := make([]uuid.UUID, 0, len(amounts))
	for i, amount := range amounts {
		debt, err := settlement.NewDebt(customer.ID, settlement.DebtKindLoan, "loan", valueobject.NewBRL(amount),
			now.AddDate(0, 0, -10*(i+1)), decimal.NewFromInt(2), now)
		require.NoError(t, err)
		require.NoError(t, s.debts.Save(ctx, debt))
		ids = append(ids, debt.ID)
	}
	return customer, ids
}

func TestNegotiation_ConcurrentRequestsOnSameDebts(t *testing.T) {
	tdb := NewTestDB(t)
	s := newStack(t, tdb)
	customer, debtIDs := seedCustomerWithDebts(t, s, "600.00", "400.00")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []*appsettlement.InstrumentDTO
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			inst, err := s.negotiation.Negotiate(context.Background(), appsettlement.NegotiateCommand{
				CustomerID:       customer.ID,
				DebtIDs:          debtIDs,
				InstallmentCount: 2,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			successes = append(successes, inst)
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, successes, 1)
	assert.Len(t, failures, workers-1)
	// Losers see the version check or the already-negotiated rule. A lock
	// timeout surfaces as a persistence failure; none may succeed.
	for _, err := range failures {
		assert.Contains(t, []shared.ErrorKind{shared.KindConflict, shared.KindPersistence}, shared.KindOf(err), err.Error())
	}

	debts, err := s.queries.ListDebtsByCustomer(context.Background(), customer.ID, shared.DefaultFilter())
	require.NoError(t, err)
	for _, d := range debts {
		assert.Equal(t, string(settlement.DebtStatusNegotiated), d.Status)
		require.NotNil(t, d.InstrumentID)
		assert.Equal(t, successes[0].ID, *d.InstrumentID)
	}
}

func TestCancellation_RestoresDebts(t *testing.T) {
	tdb := NewTestDB(t)
	s := newStack(t, tdb)
	customer, debtIDs := seedCustomerWithDebts(t, s, "250.00")
	ctx := context.Background()

	inst, err := s.negotiation.Negotiate(ctx, appsettlement.NegotiateCommand{
		CustomerID:       customer.ID,
		DebtIDs:          debtIDs,
		InstallmentCount: 1,
	})
	require.NoError(t, err)

	result, err := s.cancellation.Cancel(ctx, appsettlement.CancelCommand{InstrumentID: inst.ID, Actor: "operator", Reason: "customer request"})
	require.NoError(t, err)
	assert.ElementsMatch(t, debtIDs, result.RestoredDebtIDs)

	got, err := s.queries.GetInstrument(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, string(settlement.InstrumentStatusCanceled), got.Status)

	debts, err := s.queries.ListDebtsByCustomer(ctx, customer.ID, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, string(settlement.DebtStatusOverdue), debts[0].Status)
	assert.Nil(t, debts[0].InstrumentID)

	_, err = s.cancellation.Cancel(ctx, appsettlement.CancelCommand{InstrumentID: inst.ID, Actor: "operator"})
	assert.ErrorIs(t, err, settlement.ErrInstrumentNotCancelable)
}
