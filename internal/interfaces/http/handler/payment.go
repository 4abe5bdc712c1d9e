package handler

import (
	"context"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/infrastructure/logger"
	"github.com/debtsettle/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentCommands drives the payment lifecycle
type PaymentCommands interface {
	Register(ctx context.Context, cmd appsettlement.RegisterPaymentCommand) (*appsettlement.PaymentDTO, error)
	Approve(ctx context.Context, paymentID uuid.UUID, transactionCode string) (*appsettlement.PaymentDTO, error)
	Reject(ctx context.Context, paymentID uuid.UUID, reason string) (*appsettlement.PaymentDTO, error)
	CancelPayment(ctx context.Context, paymentID uuid.UUID) (*appsettlement.PaymentDTO, error)
}

// PaymentQueries resolves customers and reads payments
type PaymentQueries interface {
	FindCustomerByTaxpayerID(ctx context.Context, raw string) (*appsettlement.CustomerDTO, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*appsettlement.PaymentDTO, error)
}

// RegisterPaymentRequest is the body of POST /payments
type RegisterPaymentRequest struct {
	TaxpayerID   string     `json:"taxpayer_id" binding:"required,cpf"`
	InstrumentID *uuid.UUID `json:"instrument_id"`
	Amount       string     `json:"amount" binding:"required"`
	Method       string     `json:"method" binding:"required,oneof=credit_card debit_card pix bank_slip transfer cash"`
}

// ApprovePaymentRequest is the body of POST /payments/:id/approve
type ApprovePaymentRequest struct {
	TransactionCode string `json:"transaction_code" binding:"required,max=100"`
}

// RejectPaymentRequest is the body of POST /payments/:id/reject
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	BaseHandler
	payments PaymentCommands
	queries  PaymentQueries
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentCommands, queries PaymentQueries) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		queries:  queries,
	}
}

// Register godoc
// @ID           registerPayment
// @Summary      Register payment
// @Description  Record money received from a customer, optionally against an instrument
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body RegisterPaymentRequest true "Payment"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments [post]
func (h *PaymentHandler) Register(c *gin.Context) {
	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	customer, err := h.queries.FindCustomerByTaxpayerID(c.Request.Context(), req.TaxpayerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	payment, err := h.payments.Register(c.Request.Context(), appsettlement.RegisterPaymentCommand{
		CustomerID:   customer.ID,
		InstrumentID: req.InstrumentID,
		Amount:       req.Amount,
		Method:       req.Method,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// Get returns a single payment
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	payment, err := h.queries.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Approve godoc
// @ID           approvePayment
// @Summary      Approve payment
// @Description  Confirm a pending payment; an instrument it pays is settled with its debts
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body ApprovePaymentRequest true "Gateway transaction"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments/{id}/approve [post]
func (h *PaymentHandler) Approve(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	var req ApprovePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	payment, err := h.payments.Approve(c.Request.Context(), id, req.TransactionCode)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Payment approved",
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount),
	)
	h.Success(c, payment)
}

// Reject marks a pending payment as rejected
func (h *PaymentHandler) Reject(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	var req RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	payment, err := h.payments.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Cancel withdraws a payment that was not approved
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	payment, err := h.payments.CancelPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}
