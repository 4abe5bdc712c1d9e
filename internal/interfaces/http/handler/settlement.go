package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/infrastructure/export"
	"github.com/debtsettle/backend/internal/infrastructure/logger"
	"github.com/debtsettle/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementQueries is the read side used by the HTTP layer
type SettlementQueries interface {
	FindCustomerByTaxpayerID(ctx context.Context, raw string) (*appsettlement.CustomerDTO, error)
	ListDebtsByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]appsettlement.DebtDTO, error)
	ListInstrumentsByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]appsettlement.InstrumentDTO, error)
	GetInstrument(ctx context.Context, instrumentID uuid.UUID) (*appsettlement.InstrumentDTO, error)
	CustomerDebtSummary(ctx context.Context, customerID uuid.UUID) (*appsettlement.DebtSummaryDTO, error)
}

// Negotiator creates settlement instruments
type Negotiator interface {
	Negotiate(ctx context.Context, cmd appsettlement.NegotiateCommand) (*appsettlement.InstrumentDTO, error)
}

// Canceler reverses settlement instruments
type Canceler interface {
	Cancel(ctx context.Context, cmd appsettlement.CancelCommand) (*appsettlement.CancellationResult, error)
}

// StatementExporter renders a customer's debt statement
type StatementExporter interface {
	FileName(customerID uuid.UUID) string
	Export(ctx context.Context, customer appsettlement.CustomerDTO, w io.Writer) error
}

// NegotiateRequest is the body of POST /instruments
type NegotiateRequest struct {
	TaxpayerID       string      `json:"taxpayer_id" binding:"required,cpf"`
	DebtIDs          []uuid.UUID `json:"debt_ids" binding:"required,min=1,unique"`
	InstallmentCount int         `json:"installment_count" binding:"required"`
	Description      string      `json:"description" binding:"max=255"`
}

// CancelRequest is the body of POST /instruments/:id/cancel
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SettlementHandler serves debt listings, negotiation and cancellation
type SettlementHandler struct {
	BaseHandler
	queries     SettlementQueries
	negotiation Negotiator
	cancelation Canceler
	exporter    StatementExporter
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(queries SettlementQueries, negotiation Negotiator, cancelation Canceler, exporter StatementExporter) *SettlementHandler {
	return &SettlementHandler{
		queries:     queries,
		negotiation: negotiation,
		cancelation: cancelation,
		exporter:    exporter,
	}
}

// resolveCustomer turns the :taxpayer_id parameter into a customer
func (h *SettlementHandler) resolveCustomer(c *gin.Context) (*appsettlement.CustomerDTO, bool) {
	raw, ok := h.bindTaxpayer(c)
	if !ok {
		return nil, false
	}
	customer, err := h.queries.FindCustomerByTaxpayerID(c.Request.Context(), raw)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithCustomerID(c.Request.Context(), customer.ID.String()))
	return customer, true
}

// ListDebts godoc
// @ID           listCustomerDebts
// @Summary      List customer debts
// @Description  Page through the debts of the customer owning the taxpayer id
// @Tags         debts
// @Produce      json
// @Param        taxpayer_id path string true "Customer CPF"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(100)
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /customers/{taxpayer_id}/debts [get]
func (h *SettlementHandler) ListDebts(c *gin.Context) {
	customer, ok := h.resolveCustomer(c)
	if !ok {
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	debts, err := h.queries.ListDebtsByCustomer(c.Request.Context(), customer.ID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessPage(c, debts, len(debts), filter)
}

// Summary godoc
// @ID           getCustomerDebtSummary
// @Summary      Customer debt summary
// @Tags         debts
// @Produce      json
// @Param        taxpayer_id path string true "Customer CPF"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /customers/{taxpayer_id}/summary [get]
func (h *SettlementHandler) Summary(c *gin.Context) {
	customer, ok := h.resolveCustomer(c)
	if !ok {
		return
	}

	summary, err := h.queries.CustomerDebtSummary(c.Request.Context(), customer.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{
		"customer": customer,
		"summary":  summary,
	})
}

// ExportDebts streams the customer's debt statement as an xlsx workbook.
// GET /customers/:taxpayer_id/debts/export
func (h *SettlementHandler) ExportDebts(c *gin.Context) {
	customer, ok := h.resolveCustomer(c)
	if !ok {
		return
	}

	// buffered so a failed export can still answer with a JSON error
	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), *customer, &buf); err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+h.exporter.FileName(customer.ID)+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// ListInstruments returns a page of the customer's settlement instruments
func (h *SettlementHandler) ListInstruments(c *gin.Context) {
	customer, ok := h.resolveCustomer(c)
	if !ok {
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	instruments, err := h.queries.ListInstrumentsByCustomer(c.Request.Context(), customer.ID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessPage(c, instruments, len(instruments), filter)
}

// GetInstrument godoc
// @ID           getInstrument
// @Summary      Get settlement instrument
// @Tags         instruments
// @Produce      json
// @Param        id path string true "Instrument ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /instruments/{id} [get]
func (h *SettlementHandler) GetInstrument(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	instrument, err := h.queries.GetInstrument(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, instrument)
}

// Negotiate godoc
// @ID           negotiateDebts
// @Summary      Negotiate debts
// @Description  Consolidate the selected debts into one settlement instrument
// @Tags         instruments
// @Accept       json
// @Produce      json
// @Param        request body NegotiateRequest true "Negotiation request"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Security     BearerAuth
// @Router       /instruments [post]
func (h *SettlementHandler) Negotiate(c *gin.Context) {
	var req NegotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	customer, err := h.queries.FindCustomerByTaxpayerID(c.Request.Context(), req.TaxpayerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	instrument, err := h.negotiation.Negotiate(c.Request.Context(), appsettlement.NegotiateCommand{
		CustomerID:       customer.ID,
		DebtIDs:          req.DebtIDs,
		InstallmentCount: req.InstallmentCount,
		Description:      req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Settlement instrument created",
		zap.String("instrument_id", instrument.ID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.Int("debts", len(instrument.DebtIDs)),
	)
	h.Created(c, instrument)
}

// Cancel godoc
// @ID           cancelInstrument
// @Summary      Cancel settlement instrument
// @Description  Reverse an instrument and restore its debts to their classified status
// @Tags         instruments
// @Accept       json
// @Produce      json
// @Param        id path string true "Instrument ID" format(uuid)
// @Param        request body CancelRequest false "Cancellation reason"
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Security     BearerAuth
// @Router       /instruments/{id}/cancel [post]
func (h *SettlementHandler) Cancel(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	result, err := h.cancelation.Cancel(c.Request.Context(), appsettlement.CancelCommand{
		InstrumentID: id,
		Actor:        middleware.GetActor(c),
		Reason:       req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
