package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coachpay/internal/pricing"
	"coachpay/internal/repository"
	"coachpay/internal/service"
)

// actorHeader carries the id of the buyer or provider making the request.
const actorHeader = "X-Actor-ID"

// payoutPendingMessage is all a buyer or provider learns about a failed payout.
const payoutPendingMessage = "payout pending"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Server-side failures are reported generically; the cause goes to the logs.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	_ = c.Error(err)

	msg := err.Error()
	switch {
	case errors.Is(err, service.ErrPaymentNotCompleted), errors.Is(err, service.ErrCaptureUnavailable):
		msg = service.ErrPaymentNotCompleted.Error()
	case errors.Is(err, service.ErrSettlementBlocked), errors.Is(err, service.ErrTransferFailed):
		msg = payoutPendingMessage
	case code >= http.StatusInternalServerError:
		msg = http.StatusText(code)
	}
	c.JSON(code, ErrorResponse{Error: msg})
}

// bindJSON binds the request body, answering 400 itself when it cannot.
// A provider net that is not a whole number of cents is an invalid amount.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "provider_net_cents" {
		respondError(c, pricing.ErrInvalidAmount)
		return false
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	return false
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, pricing.ErrInvalidAmount),
		errors.Is(err, pricing.ErrInvalidSessionCount),
		errors.Is(err, pricing.ErrInvalidFeeConfig),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidBuyerID),
		errors.Is(err, service.ErrInvalidProviderID),
		errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrInvalidFeeKind),
		errors.Is(err, service.ErrWebhookVerification):
		return http.StatusBadRequest

	// Payment required
	case errors.Is(err, service.ErrPaymentNotCompleted):
		return http.StatusPaymentRequired

	// Forbidden
	case errors.Is(err, service.ErrNotOrderParty):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, service.ErrOrderNotEligible),
		errors.Is(err, service.ErrOrderNotRetryable),
		errors.Is(err, service.ErrSettlementBlocked),
		errors.Is(err, service.ErrNotPackOrder),
		errors.Is(err, repository.ErrAlreadySet),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Provider not ready to be paid
	case errors.Is(err, service.ErrPayoutAccountMissing),
		errors.Is(err, service.ErrPayoutsDisabled):
		return http.StatusUnprocessableEntity

	// Processor errors
	case errors.Is(err, service.ErrCaptureUnavailable),
		errors.Is(err, service.ErrProcessorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrTransferFailed):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
