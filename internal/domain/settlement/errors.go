package settlement

import "github.com/debtsettle/backend/internal/domain/shared"

// Settlement errors. Match with errors.Is; details are attached per occurrence.
var (
	ErrInvalidInstallmentCount = shared.NewValidationError("INVALID_INSTALLMENT_COUNT", "Installment count is out of range")
	ErrEmptySelection          = shared.NewValidationError("EMPTY_SELECTION", "At least one debt must be selected")
	ErrCustomerNotFound        = shared.NewNotFoundError("NOT_FOUND", "Customer not found")
	ErrDebtNotFound            = shared.NewNotFoundError("NOT_FOUND", "Debt not found")
	ErrInstrumentNotFound      = shared.NewNotFoundError("NOT_FOUND", "Settlement instrument not found")
	ErrPaymentNotFound         = shared.NewNotFoundError("NOT_FOUND", "Payment not found")
	ErrDebtNotNegotiable       = shared.NewConflictError("DEBT_NOT_NEGOTIABLE", "Debt cannot be negotiated in its current status")
	ErrDebtAlreadyNegotiated   = shared.NewConflictError("DEBT_ALREADY_NEGOTIATED", "Debt is already bound to an open settlement instrument")
	ErrInstrumentNotCancelable = shared.NewConflictError("INSTRUMENT_NOT_CANCELABLE", "Settlement instrument cannot be canceled")
	ErrIdentifierGeneration    = shared.NewConflictError("IDENTIFIER_GENERATION_FAILED", "Could not generate a unique instrument identifier")
	ErrInstallmentTooSmall     = shared.NewBusinessRuleError("INSTALLMENT_TOO_SMALL", "Installment amount is below the minimum")
	ErrNoAssociatedDebts       = shared.NewIntegrityError("NO_ASSOCIATED_DEBTS", "No debts reference the settlement instrument")
	ErrInvalidPaymentState     = shared.NewConflictError("INVALID_PAYMENT_STATE", "Operation not allowed for the payment's status")
)
