package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// FeeHandler quotes fee breakdowns.
type FeeHandler struct {
	checkout *service.CheckoutService
}

// NewFeeHandler creates a new FeeHandler.
func NewFeeHandler(checkout *service.CheckoutService) *FeeHandler {
	return &FeeHandler{checkout: checkout}
}

// QuoteRequest is the HTTP request body for a fee quote.
type QuoteRequest struct {
	Kind             string `json:"kind"`
	ProviderNetCents int64  `json:"provider_net_cents"`
	SessionsCount    int    `json:"sessions_count"`
}

// QuoteResponse is the HTTP response for a fee quote.
type QuoteResponse struct {
	Kind                  string `json:"kind"`
	SessionsCount         int    `json:"sessions_count"`
	Currency              string `json:"currency"`
	ProviderNetCents      int64  `json:"provider_net_cents"`
	ProcessorFeeCents     int64  `json:"processor_fee_cents"`
	PlatformFeeCents      int64  `json:"platform_fee_cents"`
	BuyerServiceFeeCents  int64  `json:"buyer_service_fee_cents"`
	BuyerTotalCents       int64  `json:"buyer_total_cents"`
	PerSessionPayoutCents int64  `json:"per_session_payout_cents,omitempty"`
	PayoutRemainderCents  int64  `json:"payout_remainder_cents,omitempty"`
	RoundingMode          string `json:"rounding_mode"`
}

// Quote handles POST /v1/fees/quote
func (h *FeeHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.checkout.Quote(domain.FeeKind(req.Kind), req.ProviderNetCents, req.SessionsCount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, QuoteResponse{
		Kind:                  string(b.Kind),
		SessionsCount:         b.SessionsCount,
		Currency:              b.Currency,
		ProviderNetCents:      b.ProviderNetCents,
		ProcessorFeeCents:     b.ProcessorFeeCents,
		PlatformFeeCents:      b.PlatformFeeCents,
		BuyerServiceFeeCents:  b.BuyerServiceFeeCents,
		BuyerTotalCents:       b.BuyerTotalCents,
		PerSessionPayoutCents: b.PerSessionPayoutCents,
		PayoutRemainderCents:  b.PayoutRemainderCents,
		RoundingMode:          string(b.RoundingMode),
	})
}
