package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// OpsHandler serves the operator endpoints.
type OpsHandler struct {
	audit   *service.AuditService
	trigger *service.TriggerService
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(audit *service.AuditService, trigger *service.TriggerService) *OpsHandler {
	return &OpsHandler{audit: audit, trigger: trigger}
}

// AnomalyResponse is one entry of the operator audit feed.
type AnomalyResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id,omitempty"`
	Category  string    `json:"category"`
	Severity  string    `json:"severity"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// OpsOrderResponse is the operator view of an order's settlement.
type OpsOrderResponse struct {
	ID                 string `json:"id"`
	PaymentStatus      string `json:"payment_status"`
	SettlementStatus   string `json:"settlement_status"`
	SettlementAttempts int    `json:"settlement_attempts"`
	Stage              string `json:"stage"`
	TransferID         string `json:"transfer_id,omitempty"`
}

// ListAnomalies handles GET /v1/ops/anomalies?severity=&order_id=&limit=
func (h *OpsHandler) ListAnomalies(c *gin.Context) {
	filter := domain.AnomalyFilter{
		Severity: domain.Severity(strings.ToUpper(c.Query("severity"))),
		OrderID:  c.Query("order_id"),
	}
	switch filter.Severity {
	case "", domain.SeverityInfo, domain.SeverityWarn, domain.SeverityError:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "severity must be INFO, WARN or ERROR"})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	anomalies, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]AnomalyResponse, 0, len(anomalies))
	for _, a := range anomalies {
		response = append(response, AnomalyResponse{
			ID:        a.ID,
			OrderID:   a.OrderID,
			Category:  string(a.Category),
			Severity:  string(a.Severity),
			Detail:    a.Detail,
			CreatedAt: a.CreatedAt,
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// Sweep handles POST /v1/ops/settlements/sweep
func (h *OpsHandler) Sweep(c *gin.Context) {
	result, err := h.trigger.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, result)
}

// Unblock handles POST /v1/ops/orders/:id/unblock
func (h *OpsHandler) Unblock(c *gin.Context) {
	order, err := h.trigger.Unblock(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, OpsOrderResponse{
		ID:                 order.ID,
		PaymentStatus:      string(order.PaymentStatus),
		SettlementStatus:   string(order.SettlementStatus),
		SettlementAttempts: order.SettlementAttempts,
		Stage:              string(order.Stage()),
		TransferID:         order.TransferID,
	})
}
