package handler

import (
	"context"
	"io"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockQueries struct {
	mock.Mock
}

func (m *mockQueries) FindCustomerByTaxpayerID(ctx context.Context, raw string) (*appsettlement.CustomerDTO, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsettlement.CustomerDTO), args.Error(1)
}

func (m *mockQueries) ListDebtsByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]appsettlement.DebtDTO, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appsettlement.DebtDTO), args.Error(1)
}

func (m *mockQueries) ListInstrumentsByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]appsettlement.InstrumentDTO, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appsettlement.InstrumentDTO), args.Error(1)
}

func (m *mockQueries) GetInstrument(ctx context.Context, instrumentID uuid.UUID) (*appsettlement.InstrumentDTO, error) {
	args := m.Called(ctx, instrumentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsettlement.InstrumentDTO), args.Error(1)
}

func (m *mockQueries) CustomerDebtSummary(ctx context.Context, customerID uuid.UUID) (*appsettlement.DebtSummaryDTO, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsettlement.DebtSummaryDTO), args.Error(1)
}

func (m *mockQueries) GetPayment(ctx context.Context, paymentID uuid.UUID) (*appsettlement.PaymentDTO, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsettlement.PaymentDTO), args.Error(1)
}

type mockNegotiator struct {
	mock.Mock
}

func (m *mockNegotiator) Negotiate(ctx context.Context, cmd appsettlement.NegotiateCommand) (*appsettlement.InstrumentDTO, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsettlement.InstrumentDTO), args.Error(1)
}

type mockCanceler struct {
	mock.Mock
}

func (m *mockCanceler) Cancel(ctx context.Context, cmd appsettlement.CancelCommand) (*appsettlement.CancellationResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsettlement.CancellationResult), args.Error(1)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) FileName(customerID uuid.UUID) string {
	return m.Called(customerID).String(0)
}

func (m *mockExporter) Export(ctx context.Context, customer appsettlement.CustomerDTO, w io.Writer) error {
	args := m.Called(ctx, customer, w)
	if args.Error(0) == nil {
		_, _ = io.WriteString(w, "xlsx-bytes")
	}
	return args.Error(0)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) result(args mock.Arguments) (*appsettlement.PaymentDTO, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appsettlement.PaymentDTO), args.Error(1)
}

func (m *mockPayments) Register(ctx context.Context, cmd appsettlement.RegisterPaymentCommand) (*appsettlement.PaymentDTO, error) {
	return m.result(m.Called(ctx, cmd))
}

func (m *mockPayments) Approve(ctx context.Context, paymentID uuid.UUID, transactionCode string) (*appsettlement.PaymentDTO, error) {
	return m.result(m.Called(ctx, paymentID, transactionCode))
}

func (m *mockPayments) Reject(ctx context.Context, paymentID uuid.UUID, reason string) (*appsettlement.PaymentDTO, error) {
	return m.result(m.Called(ctx, paymentID, reason))
}

func (m *mockPayments) CancelPayment(ctx context.Context, paymentID uuid.UUID) (*appsettlement.PaymentDTO, error) {
	return m.result(m.Called(ctx, paymentID))
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping() error { return p.err }
