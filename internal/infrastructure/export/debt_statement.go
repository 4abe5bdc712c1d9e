// Package export renders customer debt statements as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	debtsSheet   = "Debts"
	summarySheet = "Summary"
	moneyFormat  = "#,##0.00"
	dateLayout   = "2006-01-02"
)

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DebtLister loads every debt of a customer
type DebtLister interface {
	ListAllDebts(ctx context.Context, customerID uuid.UUID) ([]*settlement.Debt, error)
}

type debtColumn struct {
	Header string
	Width  float64
	Money  bool
	Value  func(d appsettlement.DebtDTO) any
}

var debtColumns = []debtColumn{
	{Header: "Debt ID", Width: 38, Value: func(d appsettlement.DebtDTO) any { return d.ID.String() }},
	{Header: "Kind", Width: 14, Value: func(d appsettlement.DebtDTO) any { return d.Kind }},
	{Header: "Description", Width: 32, Value: func(d appsettlement.DebtDTO) any { return d.Description }},
	{Header: "Due date", Width: 12, Value: func(d appsettlement.DebtDTO) any { return d.DueDate.Format(dateLayout) }},
	{Header: "Days overdue", Width: 13, Value: func(d appsettlement.DebtDTO) any { return d.DaysOverdue }},
	{Header: "Status", Width: 12, Value: func(d appsettlement.DebtDTO) any { return d.Status }},
	{Header: "Original amount", Width: 16, Money: true, Value: func(d appsettlement.DebtDTO) any { return amount(d.OriginalAmount) }},
	{Header: "Penalty", Width: 12, Money: true, Value: func(d appsettlement.DebtDTO) any { return amount(d.Penalty) }},
	{Header: "Payable amount", Width: 16, Money: true, Value: func(d appsettlement.DebtDTO) any { return amount(d.PayableAmount) }},
	{Header: "Currency", Width: 9, Value: func(d appsettlement.DebtDTO) any { return d.Currency }},
	{Header: "Instrument ID", Width: 38, Value: func(d appsettlement.DebtDTO) any {
		if d.InstrumentID == nil {
			return ""
		}
		return d.InstrumentID.String()
	}},
}

// DebtStatementExporter writes a customer's debts to an XLSX workbook
type DebtStatementExporter struct {
	debts  DebtLister
	logger *zap.Logger
	now    func() time.Time
}

// NewDebtStatementExporter creates a new exporter
func NewDebtStatementExporter(debts DebtLister, logger *zap.Logger) *DebtStatementExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebtStatementExporter{
		debts:  debts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FileName returns the attachment name for a customer's statement
func (e *DebtStatementExporter) FileName(customerID uuid.UUID) string {
	return fmt.Sprintf("debts_%s_%s.xlsx", customerID, e.now().Format("20060102_150405"))
}

// Export writes the statement of customer to w: one row per debt plus a summary sheet
func (e *DebtStatementExporter) Export(ctx context.Context, customer appsettlement.CustomerDTO, w io.Writer) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "export", "debt_statement")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customer.ID.String())

	debts, err := e.debts.ListAllDebts(ctx, customer.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	rows := appsettlement.ToDebtDTOs(debts)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := e.writeDebts(f, rows); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("write debts sheet: %w", err)
	}
	if err := e.writeSummary(f, customer, rows); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("write summary sheet: %w", err)
	}
	_ = f.SetDocProps(&excelize.DocProperties{
		Creator: "debtsettle",
		Title:   fmt.Sprintf("Debt statement %s", customer.TaxpayerID),
	})

	if err := f.Write(w); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Info("Debt statement exported",
		zap.String("customer_id", customer.ID.String()),
		zap.Int("debts", len(rows)),
	)
	return nil
}

func (e *DebtStatementExporter) writeDebts(f *excelize.File, rows []appsettlement.DebtDTO) error {
	if err := f.SetSheetName(f.GetSheetName(0), debtsSheet); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return err
	}
	format := moneyFormat
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return err
	}

	for i, col := range debtColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(debtsSheet, cell, col.Header); err != nil {
			return err
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(debtsSheet, name, name, col.Width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(debtColumns), 1)
	if err := f.SetCellStyle(debtsSheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for r, d := range rows {
		for c, col := range debtColumns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(debtsSheet, cell, col.Value(d)); err != nil {
				return err
			}
			if col.Money {
				if err := f.SetCellStyle(debtsSheet, cell, cell, moneyStyle); err != nil {
					return err
				}
			}
		}
	}

	return f.SetPanes(debtsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (e *DebtStatementExporter) writeSummary(f *excelize.File, customer appsettlement.CustomerDTO, rows []appsettlement.DebtDTO) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	original, payable := decimal.Zero, decimal.Zero
	open := decimal.Zero
	counts := make(map[string]int)
	for _, d := range rows {
		original = original.Add(decimalOf(d.OriginalAmount))
		p := decimalOf(d.PayableAmount)
		payable = payable.Add(p)
		if d.Status != string(settlement.DebtStatusSettled) && d.Status != string(settlement.DebtStatusCanceled) {
			open = open.Add(p)
		}
		counts[d.Status]++
	}

	lines := [][]any{
		{"Customer", customer.Name},
		{"Taxpayer ID", customer.TaxpayerID},
		{"Generated at", e.now().Format(time.RFC3339)},
		{"Total debts", len(rows)},
		{"Total original", original.Round(2).InexactFloat64()},
		{"Total payable", payable.Round(2).InexactFloat64()},
		{"Open amount", open.Round(2).InexactFloat64()},
	}
	for _, status := range []settlement.DebtStatus{
		settlement.DebtStatusActive,
		settlement.DebtStatusOverdue,
		settlement.DebtStatusDefaulted,
		settlement.DebtStatusNegotiated,
		settlement.DebtStatusSettled,
		settlement.DebtStatusCanceled,
	} {
		lines = append(lines, []any{fmt.Sprintf("Debts %s", status), counts[string(status)]})
	}

	for i, line := range lines {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 24)
}

func decimalOf(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func amount(s string) float64 {
	return decimalOf(s).InexactFloat64()
}
