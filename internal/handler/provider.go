package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coachpay/internal/service"
)

// ProviderHandler handles payout account onboarding.
type ProviderHandler struct {
	providers *service.ProviderService
}

// NewProviderHandler creates a new ProviderHandler.
func NewProviderHandler(providers *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{providers: providers}
}

// StartOnboarding handles POST /v1/providers/:id/payout-account
func (h *ProviderHandler) StartOnboarding(c *gin.Context) {
	result, err := h.providers.StartOnboarding(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, result)
}

// GetPayoutAccount handles GET /v1/providers/:id/payout-account
func (h *ProviderHandler) GetPayoutAccount(c *gin.Context) {
	account, err := h.providers.PayoutAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{
		"provider_id":     account.ProviderID,
		"account_id":      account.AccountID,
		"payouts_enabled": account.PayoutsEnabled,
	})
}
