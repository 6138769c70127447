// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/rentique-erp/rentique-erp/internal/shared"
)

// Stable machine-readable codes surfaced alongside problem documents so the
// client can react to specific invariant violations.
const (
	CodeConflict               = "RESERVATION_CONFLICT"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeCustodyRequired        = "ORDER_NEEDS_CUSTODY"
	CodeInsufficientAllocation = "INSUFFICIENT_ALLOCATION"
	CodeValidation             = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		ProblemCode(w, http.StatusNotFound, "Not Found", err.Error(), CodeNotFound)
	case errors.Is(err, shared.ErrConflict):
		ProblemCode(w, http.StatusConflict, "Reservation Conflict", err.Error(), CodeConflict)
	case errors.Is(err, shared.ErrInvalidTransition):
		ProblemCode(w, http.StatusConflict, "Invalid Transition", err.Error(), CodeInvalidTransition)
	case errors.Is(err, shared.ErrCustodyRequired):
		ProblemCode(w, http.StatusUnprocessableEntity, "Custody Required", err.Error(), CodeCustodyRequired)
	case errors.Is(err, shared.ErrInsufficientAllocation):
		ProblemCode(w, http.StatusUnprocessableEntity, "Insufficient Allocation", err.Error(), CodeInsufficientAllocation)
	case errors.Is(err, shared.ErrValidation):
		ProblemCode(w, http.StatusBadRequest, "Validation Failed", err.Error(), CodeValidation)
	case errors.Is(err, shared.ErrIdempotencyConflict):
		ProblemCode(w, http.StatusConflict, "Duplicate Request", err.Error(), "DUPLICATE_REQUEST")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
