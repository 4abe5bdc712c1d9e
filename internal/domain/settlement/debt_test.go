package settlement

import (
	"errors"
	"testing"
	"time"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 15, 14, 30, 0, 0, time.UTC)

func newTestDebt(t *testing.T, amount string, dueDaysAgo int) *Debt {
	t.Helper()
	d, err := NewDebt(uuid.New(), DebtKindLoan, "loan", valueobject.NewBRL(amount),
		testNow.AddDate(0, 0, -dueDaysAgo), decimal.NewFromFloat(2.5), testNow)
	require.NoError(t, err)
	return d
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		due        time.Time
		wantStatus DebtStatus
		wantDays   int
	}{
		{"due in the future", testNow.AddDate(0, 0, 5), DebtStatusActive, 0},
		{"due today", testNow, DebtStatusActive, 0},
		{"due earlier today", time.Date(2026, time.March, 15, 0, 1, 0, 0, time.UTC), DebtStatusActive, 0},
		{"one day ago", testNow.AddDate(0, 0, -1), DebtStatusOverdue, 1},
		{"ten days ago", testNow.AddDate(0, 0, -10), DebtStatusOverdue, 10},
		{"thirty days ago", testNow.AddDate(0, 0, -30), DebtStatusOverdue, 30},
		{"thirty-one days ago", testNow.AddDate(0, 0, -31), DebtStatusDefaulted, 31},
		{"forty-five days ago", testNow.AddDate(0, 0, -45), DebtStatusDefaulted, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, days := Classify(tt.due, testNow)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDays, days)
		})
	}
}

func TestDebtStatus_Transitions(t *testing.T) {
	assert.True(t, DebtStatusActive.CanTransitionTo(DebtStatusNegotiated))
	assert.True(t, DebtStatusNegotiated.CanTransitionTo(DebtStatusDefaulted))
	assert.False(t, DebtStatusNegotiated.CanTransitionTo(DebtStatusCanceled))
	assert.False(t, DebtStatusSettled.CanTransitionTo(DebtStatusActive))
	assert.False(t, DebtStatusCanceled.CanTransitionTo(DebtStatusNegotiated))
	assert.True(t, DebtStatusSettled.IsTerminal())
	assert.False(t, DebtStatus("bogus").IsValid())
}

func TestNewDebt(t *testing.T) {
	t.Run("classifies from due date", func(t *testing.T) {
		d := newTestDebt(t, "500.00", 45)
		assert.Equal(t, DebtStatusDefaulted, d.Status)
		assert.Equal(t, 45, d.DaysOverdue)
		assert.Equal(t, 1, d.Version)
		assert.True(t, d.Penalty.IsZero())
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewDebt(uuid.New(), DebtKindLoan, "", valueobject.Zero(valueobject.BRL), testNow, decimal.Zero, testNow)
		assert.Error(t, err)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := NewDebt(uuid.New(), DebtKind("mortgage"), "", valueobject.NewBRL("1"), testNow, decimal.Zero, testNow)
		assert.Error(t, err)
	})
}

func TestDebt_PayableAmount(t *testing.T) {
	d := newTestDebt(t, "100.00", 0)
	assert.Equal(t, "100.00", d.PayableAmount().StringFixed())

	require.NoError(t, d.SetCurrentAmount(valueobject.NewBRL("112.50"), valueobject.NewBRL("2.00"), testNow))
	assert.Equal(t, "112.50", d.PayableAmount().StringFixed())
}

func TestDebt_NegotiateAndRestore(t *testing.T) {
	d := newTestDebt(t, "100.00", 10)
	instID := uuid.New()

	require.NoError(t, d.MarkNegotiated(instID, testNow))
	assert.Equal(t, DebtStatusNegotiated, d.Status)
	require.NotNil(t, d.InstrumentID)
	assert.Equal(t, instID, *d.InstrumentID)
	assert.Equal(t, 2, d.Version)

	err := d.MarkNegotiated(uuid.New(), testNow)
	assert.True(t, errors.Is(err, ErrDebtAlreadyNegotiated))

	later := testNow.AddDate(0, 0, 40)
	status, err := d.RestoreFromCancellation(later)
	require.NoError(t, err)
	assert.Equal(t, DebtStatusDefaulted, status)
	assert.Equal(t, 50, d.DaysOverdue)
	assert.Nil(t, d.InstrumentID)

	_, err = d.RestoreFromCancellation(later)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestDebt_CheckNegotiable(t *testing.T) {
	d := newTestDebt(t, "100.00", 0)
	require.NoError(t, d.Settle(testNow))

	err := d.CheckNegotiable()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDebtNotNegotiable))
	de, ok := shared.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, shared.KindConflict, de.Kind)
	assert.Equal(t, d.ID.String(), de.Details["debt_id"])
}

func TestDebt_Recompute(t *testing.T) {
	d := newTestDebt(t, "100.00", 0)
	assert.False(t, d.Recompute(testNow))

	assert.True(t, d.Recompute(testNow.AddDate(0, 0, 3)))
	assert.Equal(t, DebtStatusOverdue, d.Status)
	assert.Equal(t, 3, d.DaysOverdue)

	require.NoError(t, d.MarkNegotiated(uuid.New(), testNow))
	assert.False(t, d.Recompute(testNow.AddDate(0, 0, 60)))
	assert.Equal(t, DebtStatusNegotiated, d.Status)
}

func TestDebt_SettleAndCancel(t *testing.T) {
	d := newTestDebt(t, "100.00", 0)
	require.NoError(t, d.MarkNegotiated(uuid.New(), testNow))
	require.NoError(t, d.Settle(testNow))
	assert.Nil(t, d.InstrumentID)
	assert.Error(t, d.Cancel(testNow))

	other := newTestDebt(t, "100.00", 0)
	require.NoError(t, other.Cancel(testNow))
	assert.Equal(t, DebtStatusCanceled, other.Status)
	assert.Error(t, other.Settle(testNow))
}
