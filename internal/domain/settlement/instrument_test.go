package settlement

import (
	"errors"
	"testing"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minimumInstallment = valueobject.NewBRL("50.00")

func testIdentifier() InstrumentIdentifier {
	return InstrumentIdentifier{IdentifierLine: "line", ChecksumCode: "code", BankCode: "001"}
}

func TestPlanInstallments(t *testing.T) {
	t.Run("splits evenly", func(t *testing.T) {
		plan, err := PlanInstallments(valueobject.NewBRL("300.00"), 3, minimumInstallment)
		require.NoError(t, err)
		assert.Equal(t, "100.00", plan.Amount.StringFixed())
		assert.True(t, plan.reconciles())

		product, err := plan.Amount.MultiplyByInt(3)
		require.NoError(t, err)
		assert.True(t, product.Equals(plan.Total))
	})

	t.Run("rounds uneven split within tolerance", func(t *testing.T) {
		plan, err := PlanInstallments(valueobject.NewBRL("100.00"), 3, valueobject.NewBRL("10.00"))
		require.NoError(t, err)
		assert.Equal(t, "33.33", plan.Amount.StringFixed())
		assert.True(t, plan.reconciles())

		schedule, err := plan.Schedule()
		require.NoError(t, err)
		assert.Equal(t, "33.34", schedule[0].StringFixed())
	})

	t.Run("rejects installment below floor", func(t *testing.T) {
		_, err := PlanInstallments(valueobject.NewBRL("200.00"), 5, minimumInstallment)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInstallmentTooSmall))

		de, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, shared.KindBusinessRule, de.Kind)
		assert.Equal(t, 4, de.Details["max_installments"])
		assert.Equal(t, "40.00", de.Details["installment_amount"])
	})

	t.Run("rejects out of range counts", func(t *testing.T) {
		for _, n := range []int{0, -1, 6} {
			_, err := PlanInstallments(valueobject.NewBRL("1000.00"), n, minimumInstallment)
			assert.True(t, errors.Is(err, ErrInvalidInstallmentCount), "count %d", n)
		}
	})
}

func TestMaxFeasibleInstallments(t *testing.T) {
	assert.Equal(t, 4, MaxFeasibleInstallments(valueobject.NewBRL("200.00"), minimumInstallment))
	assert.Equal(t, 0, MaxFeasibleInstallments(valueobject.NewBRL("49.99"), minimumInstallment))
	assert.Equal(t, 3, MaxFeasibleInstallments(valueobject.NewBRL("199.99"), minimumInstallment))
}

func TestNewSettlementInstrument(t *testing.T) {
	plan, err := PlanInstallments(valueobject.NewBRL("300.00"), 2, minimumInstallment)
	require.NoError(t, err)
	debtID := uuid.New()

	t.Run("creates active instrument and collapses duplicates", func(t *testing.T) {
		inst, err := NewSettlementInstrument(uuid.Nil, uuid.New(), []uuid.UUID{debtID, debtID}, plan,
			minimumInstallment, testIdentifier(), "deal", testNow.AddDate(0, 0, 7), testNow)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, inst.ID)
		assert.Equal(t, InstrumentStatusActive, inst.Status)
		assert.Equal(t, []uuid.UUID{debtID}, inst.DebtIDs)
		require.Len(t, inst.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeInstrumentCreated, inst.GetDomainEvents()[0].EventType())
	})

	t.Run("rejects empty selection", func(t *testing.T) {
		_, err := NewSettlementInstrument(uuid.New(), uuid.New(), nil, plan,
			minimumInstallment, testIdentifier(), "", testNow, testNow)
		assert.True(t, errors.Is(err, ErrEmptySelection))
	})

	t.Run("rejects plan that does not reconcile", func(t *testing.T) {
		bad := InstallmentPlan{Total: valueobject.NewBRL("300.00"), Count: 2, Amount: valueobject.NewBRL("140.00")}
		_, err := NewSettlementInstrument(uuid.New(), uuid.New(), []uuid.UUID{debtID}, bad,
			minimumInstallment, testIdentifier(), "", testNow, testNow)
		assert.Error(t, err)
	})
}

func newTestInstrument(t *testing.T, debtIDs ...uuid.UUID) *SettlementInstrument {
	t.Helper()
	plan, err := PlanInstallments(valueobject.NewBRL("300.00"), 1, minimumInstallment)
	require.NoError(t, err)
	inst, err := NewSettlementInstrument(uuid.New(), uuid.New(), debtIDs, plan,
		minimumInstallment, testIdentifier(), "", testNow.AddDate(0, 0, 7), testNow)
	require.NoError(t, err)
	return inst
}

func TestSettlementInstrument_Lifecycle(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		inst := newTestInstrument(t, uuid.New())
		require.NoError(t, inst.Cancel("operator", "customer request", testNow))
		assert.Equal(t, InstrumentStatusCanceled, inst.Status)
		assert.Equal(t, "operator", inst.CanceledBy)
		require.NotNil(t, inst.CanceledAt)

		err := inst.Cancel("operator", "", testNow)
		assert.True(t, errors.Is(err, ErrInstrumentNotCancelable))
	})

	t.Run("paid instruments cannot be canceled", func(t *testing.T) {
		inst := newTestInstrument(t, uuid.New())
		require.NoError(t, inst.MarkPaid(testNow))
		assert.True(t, errors.Is(inst.Cancel("operator", "", testNow), ErrInstrumentNotCancelable))
	})

	t.Run("overdue marking", func(t *testing.T) {
		inst := newTestInstrument(t, uuid.New())
		assert.False(t, inst.MarkOverdueIfDue(testNow.AddDate(0, 0, 7)))
		assert.True(t, inst.MarkOverdueIfDue(testNow.AddDate(0, 0, 8)))
		assert.Equal(t, InstrumentStatusOverdue, inst.Status)
		assert.True(t, inst.Status.IsCancelable())
	})
}

func TestReverseSettlement(t *testing.T) {
	recent := newTestDebt(t, "100.00", 10)
	old := newTestDebt(t, "200.00", 45)
	future := newTestDebt(t, "50.00", -3)
	inst := newTestInstrument(t, recent.ID, old.ID, future.ID)
	for _, d := range []*Debt{recent, old, future} {
		require.NoError(t, d.MarkNegotiated(inst.ID, testNow))
	}
	inst.ClearDomainEvents()

	reversal, err := ReverseSettlement(inst, []*Debt{recent, old, future}, "operator", "mistake", testNow)
	require.NoError(t, err)

	assert.Equal(t, InstrumentStatusCanceled, inst.Status)
	assert.ElementsMatch(t, []uuid.UUID{recent.ID, old.ID, future.ID}, reversal.RestoredDebtIDs)
	assert.Equal(t, DebtStatusOverdue, reversal.Restored[recent.ID])
	assert.Equal(t, DebtStatusDefaulted, reversal.Restored[old.ID])
	assert.Equal(t, DebtStatusActive, reversal.Restored[future.ID])
	for _, d := range []*Debt{recent, old, future} {
		assert.Nil(t, d.InstrumentID)
	}

	events := inst.GetDomainEvents()
	require.Len(t, events, 1)
	canceled, ok := events[0].(*InstrumentCanceledEvent)
	require.True(t, ok)
	assert.Equal(t, "operator", canceled.Actor)
	assert.Len(t, canceled.RestoredDebtIDs, 3)
}

func TestReverseSettlement_Failures(t *testing.T) {
	t.Run("no associated debts", func(t *testing.T) {
		inst := newTestInstrument(t, uuid.New())
		_, err := ReverseSettlement(inst, nil, "operator", "", testNow)
		assert.True(t, errors.Is(err, ErrNoAssociatedDebts))
		assert.Equal(t, shared.KindIntegrity, shared.KindOf(err))
		assert.Equal(t, InstrumentStatusActive, inst.Status)
	})

	t.Run("debt bound elsewhere leaves everything untouched", func(t *testing.T) {
		d := newTestDebt(t, "100.00", 0)
		inst := newTestInstrument(t, d.ID)
		require.NoError(t, d.MarkNegotiated(uuid.New(), testNow))

		_, err := ReverseSettlement(inst, []*Debt{d}, "operator", "", testNow)
		assert.True(t, errors.Is(err, ErrNoAssociatedDebts))
		assert.Equal(t, InstrumentStatusActive, inst.Status)
		assert.Equal(t, DebtStatusNegotiated, d.Status)
	})

	t.Run("canceled instrument", func(t *testing.T) {
		inst := newTestInstrument(t, uuid.New())
		require.NoError(t, inst.Cancel("operator", "", testNow))
		_, err := ReverseSettlement(inst, nil, "operator", "", testNow)
		assert.True(t, errors.Is(err, ErrInstrumentNotCancelable))
	})
}

func TestAuditRecordFromEvent(t *testing.T) {
	d := newTestDebt(t, "100.00", 0)
	inst := newTestInstrument(t, d.ID)
	require.NoError(t, d.MarkNegotiated(inst.ID, testNow))

	created, ok, err := AuditRecordFromEvent(inst.GetDomainEvents()[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EventTypeInstrumentCreated, created.Action)
	assert.Equal(t, inst.ID, created.EntityID)

	inst.ClearDomainEvents()
	_, err = ReverseSettlement(inst, []*Debt{d}, "operator", "duplicate", testNow)
	require.NoError(t, err)

	record, ok, err := AuditRecordFromEvent(inst.GetDomainEvents()[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EventTypeInstrumentCanceled, record.Action)
	assert.Equal(t, "operator", record.Actor)
	assert.Equal(t, "duplicate", record.Reason)
	assert.Equal(t, []uuid.UUID{d.ID}, record.RestoredDebtIDs)
	assert.Contains(t, string(record.Snapshot), `"status":"canceled"`)

	_, ok, err = AuditRecordFromEvent("not an event")
	require.NoError(t, err)
	assert.False(t, ok)
}
