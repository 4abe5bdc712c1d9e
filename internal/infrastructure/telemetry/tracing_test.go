package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)
	customerID := uuid.New()

	_, span := telemetry.StartServiceSpan(context.Background(), "negotiation", "negotiate",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, customerID),
		telemetry.WithAttribute(telemetry.SpanAttrInstallmentCount, 3),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "negotiation.negotiate", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, customerID.String(), attrs[telemetry.SpanAttrCustomerID].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrInstallmentCount].AsInt64())
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartSpan(context.Background(), "parent")
	_, child := telemetry.StartSpan(ctx, "child")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDebtCount, 2,
		telemetry.SpanAttrAmount, "300.00",
		42, "ignored",
		"dangling",
	)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Len(t, attrs, 2)
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrDebtCount].AsInt64())
	assert.Equal(t, "300.00", attrs[telemetry.SpanAttrAmount].AsString())
}

func TestRecordError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvent  string
		wantCode   string
	}{
		{"plain error fails the span", errors.New("connection reset"), codes.Error, "exception", ""},
		{"persistence failure fails the span", shared.NewPersistenceError("commit failed", errors.New("io")), codes.Error, "exception", "PERSISTENCE_ERROR"},
		{"conflict is a rejection", settlement.ErrDebtAlreadyNegotiated, codes.Unset, "rejected", "DEBT_ALREADY_NEGOTIATED"},
		{"business rule is a rejection", settlement.ErrInstallmentTooSmall, codes.Unset, "rejected", "INSTALLMENT_TOO_SMALL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)

			_, span := telemetry.StartSpan(context.Background(), "op")
			telemetry.RecordError(span, tt.err)
			span.End()

			ended := sr.Ended()[0]
			assert.Equal(t, tt.wantStatus, ended.Status().Code)
			require.Len(t, ended.Events(), 1)
			assert.Equal(t, tt.wantEvent, ended.Events()[0].Name)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, attrMap(ended.Attributes())[telemetry.SpanAttrErrorCode].AsString())
			}
		})
	}
}

func TestRecordError_NilValuesAreIgnored(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(nil, errors.New("boom"))
	telemetry.SetAttributes(nil, "k", "v")
	telemetry.AddEvent(nil, "event")
	span.End()

	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.AddEvent(span, "debts_restored", "count", 2)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "debts_restored", events[0].Name)
	assert.Equal(t, int64(2), attrMap(events[0].Attributes)["count"].AsInt64())
}
