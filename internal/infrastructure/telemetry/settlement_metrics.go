package telemetry

import (
	"context"
	"fmt"

	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SettlementMetrics records negotiation, cancellation and recompute outcomes
type SettlementMetrics struct {
	negotiations        metric.Int64Counter
	installments        metric.Int64Histogram
	negotiatedAmount    metric.Float64Counter
	cancellations       metric.Int64Counter
	restoredDebts       metric.Int64Counter
	recomputedDebts     metric.Int64Counter
	overdueInstruments  metric.Int64Counter
}

// NewSettlementMetrics registers the settlement instruments on meter
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	m := &SettlementMetrics{}
	var err error

	if m.negotiations, err = meter.Int64Counter("settlement_negotiations_total",
		metric.WithDescription("Negotiation attempts by outcome"),
		metric.WithUnit("{negotiation}"),
	); err != nil {
		return nil, fmt.Errorf("negotiations counter: %w", err)
	}
	if m.installments, err = meter.Int64Histogram("settlement_installment_count",
		metric.WithDescription("Installment count of created instruments"),
		metric.WithUnit("{installment}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5),
	); err != nil {
		return nil, fmt.Errorf("installments histogram: %w", err)
	}
	if m.negotiatedAmount, err = meter.Float64Counter("settlement_negotiated_amount_total",
		metric.WithDescription("Sum of instrument totals"),
	); err != nil {
		return nil, fmt.Errorf("negotiated amount counter: %w", err)
	}
	if m.cancellations, err = meter.Int64Counter("settlement_cancellations_total",
		metric.WithDescription("Cancellation attempts by outcome"),
		metric.WithUnit("{cancellation}"),
	); err != nil {
		return nil, fmt.Errorf("cancellations counter: %w", err)
	}
	if m.restoredDebts, err = meter.Int64Counter("settlement_restored_debts_total",
		metric.WithDescription("Debts restored by cancellations"),
		metric.WithUnit("{debt}"),
	); err != nil {
		return nil, fmt.Errorf("restored debts counter: %w", err)
	}
	if m.recomputedDebts, err = meter.Int64Counter("settlement_recomputed_debts_total",
		metric.WithDescription("Debts whose status changed during recompute"),
		metric.WithUnit("{debt}"),
	); err != nil {
		return nil, fmt.Errorf("recomputed debts counter: %w", err)
	}
	if m.overdueInstruments, err = meter.Int64Counter("settlement_overdue_instruments_total",
		metric.WithDescription("Instruments marked overdue during recompute"),
		metric.WithUnit("{instrument}"),
	); err != nil {
		return nil, fmt.Errorf("recomputed instruments counter: %w", err)
	}
	return m, nil
}

func (m *SettlementMetrics) RecordNegotiation(ctx context.Context, outcome string, installments int, total valueobject.Money) {
	outcomeAttr := metric.WithAttributes(attribute.String("outcome", outcome))
	m.negotiations.Add(ctx, 1, outcomeAttr)
	if outcome != "success" {
		return
	}
	m.installments.Record(ctx, int64(installments))
	m.negotiatedAmount.Add(ctx, total.Amount().InexactFloat64(),
		metric.WithAttributes(attribute.String("currency", string(total.Currency()))))
}

func (m *SettlementMetrics) RecordCancellation(ctx context.Context, outcome string, restored int) {
	m.cancellations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if restored > 0 {
		m.restoredDebts.Add(ctx, int64(restored))
	}
}

func (m *SettlementMetrics) RecordRecompute(ctx context.Context, debtsChanged, instrumentsChanged int) {
	m.recomputedDebts.Add(ctx, int64(debtsChanged))
	m.overdueInstruments.Add(ctx, int64(instrumentsChanged))
}
