package dto

import (
	"net/http"

	"github.com/debtsettle/backend/internal/domain/shared"
)

// Transport-level error codes. Domain errors keep their own codes
// (DEBT_ALREADY_NEGOTIATED, INSTALLMENT_TOO_SMALL, ...).
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "TOKEN_INVALID"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeBodyTooLarge = "REQUEST_TOO_LARGE"
)

var kindStatus = map[shared.ErrorKind]int{
	shared.KindValidation:   http.StatusBadRequest,
	shared.KindNotFound:     http.StatusNotFound,
	shared.KindConflict:     http.StatusConflict,
	shared.KindBusinessRule: http.StatusUnprocessableEntity,
	shared.KindPersistence:  http.StatusServiceUnavailable,
	shared.KindIntegrity:    http.StatusInternalServerError,
}

// StatusForKind returns the HTTP status of a domain error kind.
// Unknown kinds answer 500.
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewDomainErrorResponse renders a domain error into the envelope.
// Integrity and persistence failures do not leak their message or details.
func NewDomainErrorResponse(err *shared.DomainError, requestID string) (int, Response) {
	status := StatusForKind(err.Kind)
	if status >= http.StatusInternalServerError {
		msg := "An unexpected error occurred"
		if err.Kind == shared.KindPersistence {
			msg = "The service is temporarily unavailable, please retry"
		}
		return status, NewErrorResponseWithRequestID(err.Code, msg, requestID)
	}

	resp := NewErrorResponseWithRequestID(err.Code, err.Message, requestID)
	if len(err.Details) > 0 {
		resp.Error.Details = err.Details
	}
	return status, resp
}
