package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNegotiationService_Negotiate(t *testing.T) {
	t.Run("splits 300.00 into three installments of 100.00", func(t *testing.T) {
		f := newFixture(t)
		a := f.addDebt(t, "100.00", 10)
		b := f.addDebt(t, "200.00", 45)

		audit := new(MockAuditSink)
		audit.On("Append", mock.Anything, mock.MatchedBy(func(r settlement.AuditRecord) bool {
			return r.Action == settlement.EventTypeInstrumentCreated
		})).Return(nil).Once()
		cache := new(MockCache)
		cache.On("DeleteByPrefix", mock.Anything, CustomerCachePrefix(f.customer.ID)).Return(nil).Once()

		dto, err := f.negotiationService(t, audit, cache).Negotiate(context.Background(), NegotiateCommand{
			CustomerID:       f.customer.ID,
			DebtIDs:          []uuid.UUID{a.ID, b.ID, a.ID},
			InstallmentCount: 3,
			Description:      "agreement",
		})
		require.NoError(t, err)

		assert.Equal(t, "300.00", dto.TotalAmount)
		assert.Equal(t, "100.00", dto.InstallmentAmount)
		assert.Equal(t, []string{"100.00", "100.00", "100.00"}, dto.Installments)
		assert.Equal(t, []uuid.UUID{a.ID, b.ID}, dto.DebtIDs)
		assert.Equal(t, "active", dto.Status)
		assert.Equal(t, testNow.AddDate(0, 0, 7), dto.DueDate)
		assert.Len(t, dto.ChecksumCode, 44)
		require.NoError(t, settlement.ValidateIdentifierLine(dto.IdentifierLine))

		for _, id := range []uuid.UUID{a.ID, b.ID} {
			d := f.store.debt(id)
			assert.Equal(t, settlement.DebtStatusNegotiated, d.Status)
			require.NotNil(t, d.InstrumentID)
			assert.Equal(t, dto.ID, *d.InstrumentID)
			assert.Equal(t, 2, d.Version)
		}
		assert.Equal(t, 1, f.store.instrumentCount())
		audit.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("falls back to original amount and uses current amount when accrued", func(t *testing.T) {
		f := newFixture(t)
		a := f.addDebt(t, "100.00", 10)
		stored := f.store.debt(a.ID)
		require.NoError(t, stored.SetCurrentAmount(mustBRL("112.40"), mustBRL("2.00"), testNow))
		require.NoError(t, f.store.DebtRepo().Save(context.Background(), stored))
		b := f.addDebt(t, "87.60", 3)

		dto := f.negotiate(t, 2, a, b)
		assert.Equal(t, "200.00", dto.TotalAmount)
		assert.Equal(t, "100.00", dto.InstallmentAmount)
	})

	t.Run("installment below minimum reports the feasible maximum", func(t *testing.T) {
		f := newFixture(t)
		d := f.addDebt(t, "200.00", 0)

		_, err := f.negotiationService(t, nil, nil).Negotiate(context.Background(), NegotiateCommand{
			CustomerID:       f.customer.ID,
			DebtIDs:          []uuid.UUID{d.ID},
			InstallmentCount: 5,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, settlement.ErrInstallmentTooSmall))

		de, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, shared.KindBusinessRule, de.Kind)
		assert.Equal(t, 4, de.Details["max_installments"])

		assert.Equal(t, 0, f.store.instrumentCount())
		assert.Equal(t, settlement.DebtStatusActive, f.store.debt(d.ID).Status)
	})
}

func TestNegotiationService_Preconditions(t *testing.T) {
	f := newFixture(t)
	active := f.addDebt(t, "500.00", 0)
	settled := f.addDebt(t, "500.00", 0)
	stored := f.store.debt(settled.ID)
	require.NoError(t, stored.Settle(testNow))
	require.NoError(t, f.store.DebtRepo().Save(context.Background(), stored))

	other, err := settlement.NewCustomer(mustCPF("52998224725"), "Joao Lima", "", "", testNow)
	require.NoError(t, err)
	require.NoError(t, f.store.CustomerRepo().Save(context.Background(), other))
	foreign := f.addDebtFor(t, other.ID, "500.00", 0)

	svc := f.negotiationService(t, nil, nil)

	tests := []struct {
		name     string
		cmd      NegotiateCommand
		wantErr  error
		wantKind shared.ErrorKind
	}{
		{
			name:     "installment count zero wins over empty selection",
			cmd:      NegotiateCommand{CustomerID: f.customer.ID, InstallmentCount: 0},
			wantErr:  settlement.ErrInvalidInstallmentCount,
			wantKind: shared.KindValidation,
		},
		{
			name:     "installment count six",
			cmd:      NegotiateCommand{CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{active.ID}, InstallmentCount: 6},
			wantErr:  settlement.ErrInvalidInstallmentCount,
			wantKind: shared.KindValidation,
		},
		{
			name:     "empty selection",
			cmd:      NegotiateCommand{CustomerID: f.customer.ID, InstallmentCount: 1},
			wantErr:  settlement.ErrEmptySelection,
			wantKind: shared.KindValidation,
		},
		{
			name:     "unknown customer",
			cmd:      NegotiateCommand{CustomerID: uuid.New(), DebtIDs: []uuid.UUID{active.ID}, InstallmentCount: 1},
			wantErr:  settlement.ErrCustomerNotFound,
			wantKind: shared.KindNotFound,
		},
		{
			name:     "unknown debt",
			cmd:      NegotiateCommand{CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{active.ID, uuid.New()}, InstallmentCount: 1},
			wantErr:  settlement.ErrDebtNotFound,
			wantKind: shared.KindNotFound,
		},
		{
			name:     "debt of another customer",
			cmd:      NegotiateCommand{CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{foreign.ID}, InstallmentCount: 1},
			wantErr:  settlement.ErrDebtNotFound,
			wantKind: shared.KindNotFound,
		},
		{
			name:     "settled debt",
			cmd:      NegotiateCommand{CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{active.ID, settled.ID}, InstallmentCount: 1},
			wantErr:  settlement.ErrDebtNotNegotiable,
			wantKind: shared.KindConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Negotiate(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, tt.wantKind, shared.KindOf(err))
		})
	}

	assert.Equal(t, 0, f.store.instrumentCount())
	assert.Equal(t, settlement.DebtStatusActive, f.store.debt(active.ID).Status)
}

func TestNegotiationService_AlreadyNegotiatedBeforeNotNegotiable(t *testing.T) {
	f := newFixture(t)
	first := f.addDebt(t, "100.00", 0)
	f.negotiate(t, 1, first)

	canceled := f.addDebt(t, "100.00", 0)
	stored := f.store.debt(canceled.ID)
	require.NoError(t, stored.Cancel(testNow))
	require.NoError(t, f.store.DebtRepo().Save(context.Background(), stored))

	_, err := f.negotiationService(t, nil, nil).Negotiate(context.Background(), NegotiateCommand{
		CustomerID:       f.customer.ID,
		DebtIDs:          []uuid.UUID{canceled.ID, first.ID},
		InstallmentCount: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, settlement.ErrDebtAlreadyNegotiated))
	de, _ := shared.AsDomainError(err)
	assert.Equal(t, first.ID.String(), de.Details["debt_id"])
}

func TestNegotiationService_Atomicity(t *testing.T) {
	f := newFixture(t)
	a := f.addDebt(t, "150.00", 5)
	b := f.addDebt(t, "150.00", 40)
	svc := f.negotiationService(t, nil, nil)
	cmd := NegotiateCommand{CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{a.ID, b.ID}, InstallmentCount: 2}

	f.store.failOn("debt.SaveWithLock", errors.New("connection reset by peer"))
	_, err := svc.Negotiate(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrPersistence))
	assert.Equal(t, shared.KindPersistence, shared.KindOf(err))

	assert.Equal(t, 0, f.store.instrumentCount(), "instrument write must roll back")
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		d := f.store.debt(id)
		assert.NotEqual(t, settlement.DebtStatusNegotiated, d.Status)
		assert.Nil(t, d.InstrumentID)
		assert.Equal(t, 1, d.Version)
	}

	// Retrying the same command after the failure yields exactly one instrument.
	f.store.clearFailures()
	dto, err := svc.Negotiate(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.instrumentCount())
	assert.Equal(t, dto.ID, *f.store.debt(a.ID).InstrumentID)

	_, err = svc.Negotiate(context.Background(), cmd)
	assert.True(t, errors.Is(err, settlement.ErrDebtAlreadyNegotiated))
	assert.Equal(t, 1, f.store.instrumentCount())
}

func TestNegotiationService_LostVersionRace(t *testing.T) {
	negotiate := func(f *fixture, d *settlement.Debt) error {
		_, err := f.negotiationService(t, nil, nil).Negotiate(context.Background(), NegotiateCommand{
			CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{d.ID}, InstallmentCount: 1,
		})
		return err
	}

	t.Run("another instrument took the debt", func(t *testing.T) {
		f := newFixture(t)
		d := f.addDebt(t, "100.00", 0)
		f.store.onLoad("debt", func(id uuid.UUID) {
			f.store.commit(func() { require.NoError(t, f.store.debts[id].MarkNegotiated(uuid.New(), testNow)) })
		})

		err := negotiate(f, d)
		require.Error(t, err)
		assert.True(t, errors.Is(err, settlement.ErrDebtAlreadyNegotiated))
		assert.Equal(t, shared.KindConflict, shared.KindOf(err))
		assert.Equal(t, 0, f.store.instrumentCount())
	})

	t.Run("status recompute moved the debt", func(t *testing.T) {
		f := newFixture(t)
		d := f.addDebt(t, "100.00", 5)
		f.store.onLoad("debt", func(id uuid.UUID) {
			f.store.commit(func() { require.True(t, f.store.debts[id].Recompute(testNow.AddDate(0, 0, 120))) })
		})

		err := negotiate(f, d)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
		assert.False(t, errors.Is(err, settlement.ErrDebtAlreadyNegotiated))
		assert.Equal(t, 0, f.store.instrumentCount())

		// the retry sees the new status and succeeds
		require.NoError(t, negotiate(f, d))
		assert.Equal(t, 1, f.store.instrumentCount())
	})
}

func TestNegotiationService_TotalAboveSlipLimit(t *testing.T) {
	f := newFixture(t)
	d := f.addDebt(t, "100000000.00", 0)

	_, err := f.negotiationService(t, nil, nil).Negotiate(context.Background(), NegotiateCommand{
		CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{d.ID}, InstallmentCount: 1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, settlement.ErrIdentifierGeneration))
	assert.Equal(t, 0, f.store.instrumentCount())
	assert.Equal(t, settlement.DebtStatusActive, f.store.debt(d.ID).Status)
}

func TestNegotiationService_ConcurrentNegotiationOfSameDebt(t *testing.T) {
	f := newFixture(t)
	d := f.addDebt(t, "300.00", 12)
	svc := f.negotiationService(t, nil, nil)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Negotiate(context.Background(), NegotiateCommand{
				CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{d.ID}, InstallmentCount: 3,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, settlement.ErrDebtAlreadyNegotiated):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, f.store.instrumentCount())
}

func TestNegotiationService_IdentifierRetries(t *testing.T) {
	taken := settlement.InstrumentIdentifier{IdentifierLine: "taken-line", ChecksumCode: "taken-code", BankCode: "001"}
	fresh := settlement.InstrumentIdentifier{IdentifierLine: "fresh-line", ChecksumCode: "fresh-code", BankCode: "001"}

	seed := func(t *testing.T, f *fixture) {
		t.Helper()
		d := f.addDebt(t, "100.00", 0)
		plan, err := settlement.PlanInstallments(mustBRL("100.00"), 1, mustBRL("50.00"))
		require.NoError(t, err)
		existing, err := settlement.NewSettlementInstrument(uuid.New(), f.customer.ID, []uuid.UUID{d.ID}, plan,
			mustBRL("50.00"), taken, "", testNow, testNow)
		require.NoError(t, err)
		require.NoError(t, f.store.InstrumentRepo().Save(context.Background(), existing))
	}

	t.Run("retries with the next attempt after a collision", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)
		d := f.addDebt(t, "100.00", 0)

		gen := new(MockIdentifierGenerator)
		gen.On("Generate", mock.MatchedBy(func(r settlement.IdentifierRequest) bool { return r.Attempt == 0 })).Return(taken, nil).Once()
		gen.On("Generate", mock.MatchedBy(func(r settlement.IdentifierRequest) bool { return r.Attempt == 1 })).Return(fresh, nil).Once()

		svc := NewNegotiationService(f.store, gen, nil, nil, DefaultConfig(), nil)
		svc.SetClock(fixedClock(testNow))
		dto, err := svc.Negotiate(context.Background(), NegotiateCommand{
			CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{d.ID}, InstallmentCount: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh-line", dto.IdentifierLine)
		gen.AssertExpectations(t)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)
		d := f.addDebt(t, "100.00", 0)

		gen := new(MockIdentifierGenerator)
		gen.On("Generate", mock.Anything).Return(taken, nil)

		svc := NewNegotiationService(f.store, gen, nil, nil, DefaultConfig(), nil)
		_, err := svc.Negotiate(context.Background(), NegotiateCommand{
			CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{d.ID}, InstallmentCount: 1,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, settlement.ErrIdentifierGeneration))
		gen.AssertNumberOfCalls(t, "Generate", 5)
		assert.Equal(t, settlement.DebtStatusActive, f.store.debt(d.ID).Status)
	})
}

func TestNegotiationService_PostCommitFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	d := f.addDebt(t, "100.00", 0)

	audit := new(MockAuditSink)
	audit.On("Append", mock.Anything, mock.Anything).Return(errors.New("audit store down"))
	cache := new(MockCache)
	cache.On("DeleteByPrefix", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	dto, err := f.negotiationService(t, audit, cache).Negotiate(context.Background(), NegotiateCommand{
		CustomerID: f.customer.ID, DebtIDs: []uuid.UUID{d.ID}, InstallmentCount: 1,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, dto.ID)
	audit.AssertNumberOfCalls(t, "Append", 1)
	cache.AssertNumberOfCalls(t, "DeleteByPrefix", 1)
}
