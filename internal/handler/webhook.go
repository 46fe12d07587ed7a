package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"coachpay/internal/service"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBytes = 65536
)

// WebhookHandler receives processor notifications.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Stripe handles POST /v1/webhooks/stripe
// A 5xx makes the processor redeliver; verification failures are final.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(payload) > maxWebhookBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
		return
	}

	ctx := c.Request.Context()
	event, err := h.webhooks.VerifyAndParse(ctx, payload, c.GetHeader(signatureHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	outcome, err := h.webhooks.Ingest(ctx, event)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
