package telemetry

import (
	"context"
	"fmt"

	"github.com/debtsettle/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for service spans
const TracerName = "debtsettle-backend"

// Attribute keys shared by service spans
const (
	SpanAttrCustomerID       = "customer_id"
	SpanAttrInstrumentID     = "instrument_id"
	SpanAttrDebtCount        = "debt_count"
	SpanAttrInstallmentCount = "installment_count"
	SpanAttrAmount           = "amount"
	SpanAttrPaymentID        = "payment_id"
	SpanAttrActor            = "actor"
	SpanAttrErrorCode        = "error.code"
	SpanAttrErrorKind        = "error.kind"
)

// SpanOption adds attributes when a span starts
type SpanOption func(*[]attribute.KeyValue)

// WithAttribute sets key on the new span
func WithAttribute(key string, value any) SpanOption {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, toAttribute(key, value))
	}
}

// StartSpan starts an internal span from the global tracer provider.
// The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	for _, opt := range opts {
		opt(&attrs)
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartServiceSpan starts a span named "{service}.{method}":
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "negotiation", "negotiate")
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttributes adds alternating key/value pairs to span. Non-string keys
// and a trailing key without value are dropped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttributes(keyValues)...)
}

// RecordError annotates span with err. Rejections the caller can act on
// (validation, not found, conflict, business rule) are tagged with their code
// but leave the span status alone; anything else marks the span failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	if de, ok := shared.AsDomainError(err); ok {
		span.SetAttributes(
			attribute.String(SpanAttrErrorCode, de.Code),
			attribute.String(SpanAttrErrorKind, string(de.Kind)),
		)
		switch de.Kind {
		case shared.KindValidation, shared.KindNotFound, shared.KindConflict, shared.KindBusinessRule:
			span.AddEvent("rejected", trace.WithAttributes(attribute.String("message", de.Message)))
			return
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds a named event with alternating key/value attributes
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(keyValues)...))
}

func toAttributes(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case float64:
		return attribute.Float64(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
