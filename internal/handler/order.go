package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	checkout *service.CheckoutService
	receipts *service.ReceiptService
	trigger  *service.TriggerService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(checkout *service.CheckoutService, receipts *service.ReceiptService, trigger *service.TriggerService) *OrderHandler {
	return &OrderHandler{checkout: checkout, receipts: receipts, trigger: trigger}
}

// CreateOrderRequest is the HTTP request body for checking out a session or a pack.
type CreateOrderRequest struct {
	BuyerID          string     `json:"buyer_id"`
	ProviderID       string     `json:"provider_id"`
	Kind             string     `json:"kind"`
	ProviderNetCents int64      `json:"provider_net_cents"`
	SessionsCount    int        `json:"sessions_count"`
	ScheduledStart   *time.Time `json:"scheduled_start"`
	ScheduledEnd     *time.Time `json:"scheduled_end"`
}

// BookSessionRequest is the HTTP request body for booking a pack session.
type BookSessionRequest struct {
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
}

// OrderResponse is the buyer- and provider-facing view of an order.
// It never exposes attempt counts, processor errors, or the BLOCKED state.
type OrderResponse struct {
	ID                string     `json:"id"`
	BuyerID           string     `json:"buyer_id"`
	ProviderID        string     `json:"provider_id"`
	Kind              string     `json:"kind"`
	SessionsCount     int        `json:"sessions_count"`
	SessionsBooked    int        `json:"sessions_booked"`
	ScheduledStart    *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd      *time.Time `json:"scheduled_end,omitempty"`
	Currency          string     `json:"currency"`
	ProviderNetCents  int64      `json:"provider_net_cents"`
	ServiceFeeCents   int64      `json:"service_fee_cents"`
	TotalCents        int64      `json:"total_cents"`
	PaymentStatus     string     `json:"payment_status"`
	PayoutStatus      string     `json:"payout_status"`
	SupersedesOrderID string     `json:"supersedes_order_id,omitempty"`
	CaptureURL        string     `json:"capture_url,omitempty"`
}

// Payout statuses shown to buyers and providers.
const (
	payoutNotDue  = "NOT_DUE"
	payoutPending = "PENDING"
	payoutSent    = "SENT"
	payoutVoid    = "VOID"
)

func newOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:                o.ID,
		BuyerID:           o.BuyerID,
		ProviderID:        o.ProviderID,
		Kind:              string(o.Fees.Kind),
		SessionsCount:     o.Fees.SessionsCount,
		SessionsBooked:    o.SessionsBooked,
		Currency:          o.Fees.Currency,
		ProviderNetCents:  o.Fees.ProviderNetCents,
		ServiceFeeCents:   o.Fees.BuyerServiceFeeCents,
		TotalCents:        o.Fees.BuyerTotalCents,
		PaymentStatus:     string(o.PaymentStatus),
		PayoutStatus:      payoutStatus(o),
		SupersedesOrderID: o.SupersedesOrderID,
	}
	if !o.ScheduledStart.IsZero() {
		start, end := o.ScheduledStart, o.ScheduledEnd
		resp.ScheduledStart, resp.ScheduledEnd = &start, &end
	}
	return resp
}

func payoutStatus(o *domain.Order) string {
	switch {
	case o.SettlementStatus == domain.SettlementStatusTransferred:
		return payoutSent
	case o.PaymentStatus != domain.PaymentStatusPaid:
		if o.PaymentStatus == domain.PaymentStatusPending {
			return payoutNotDue
		}
		return payoutVoid
	case o.SettlementStatus == domain.SettlementStatusPending:
		return payoutNotDue
	}
	return payoutPending
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	checkout := service.CheckoutRequest{
		BuyerID:          req.BuyerID,
		ProviderID:       req.ProviderID,
		Kind:             domain.FeeKind(req.Kind),
		ProviderNetCents: req.ProviderNetCents,
		SessionsCount:    req.SessionsCount,
	}
	if req.ScheduledStart != nil && req.ScheduledEnd != nil {
		checkout.ScheduledStart = req.ScheduledStart.UTC()
		checkout.ScheduledEnd = req.ScheduledEnd.UTC()
	}

	result, err := h.checkout.CreateOrder(c.Request.Context(), checkout)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := newOrderResponse(result.Order)
	resp.CaptureURL = result.CaptureURL
	respondJSON(c, http.StatusCreated, resp)
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.checkout.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newOrderResponse(order))
}

// GetReceipt handles GET /v1/orders/:id/receipt
// ?format=text returns the printable receipt.
func (h *OrderHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receipts.GetReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, service.FormatReceipt(receipt))
		return
	}
	respondJSON(c, http.StatusOK, receipt)
}

// RetryPayment handles POST /v1/orders/:id/retry-payment
func (h *OrderHandler) RetryPayment(c *gin.Context) {
	result, err := h.checkout.RetryPayment(c.Request.Context(), c.Param("id"), c.GetHeader(actorHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := newOrderResponse(result.Order)
	resp.CaptureURL = result.CaptureURL
	respondJSON(c, http.StatusCreated, resp)
}

// BookSession handles POST /v1/orders/:id/sessions
func (h *OrderHandler) BookSession(c *gin.Context) {
	var req BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.checkout.BookPackSession(c.Request.Context(), c.Param("id"), c.GetHeader(actorHeader),
		req.ScheduledStart.UTC(), req.ScheduledEnd.UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, gin.H{
		"id":              session.ID,
		"order_id":        session.OrderID,
		"index":           session.Index,
		"scheduled_start": session.ScheduledStart,
		"scheduled_end":   session.ScheduledEnd,
	})
}

// Complete handles POST /v1/orders/:id/complete
func (h *OrderHandler) Complete(c *gin.Context) {
	orderID := c.Param("id")
	result, err := h.trigger.MarkComplete(c.Request.Context(), orderID, c.GetHeader(actorHeader))
	if errors.Is(err, service.ErrTransferFailed) || errors.Is(err, service.ErrSettlementBlocked) {
		// The sweep or an operator picks it up from here.
		_ = c.Error(err)
		respondJSON(c, http.StatusAccepted, gin.H{"order_id": orderID, "payout_status": payoutPending})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	status := payoutPending
	if result.Status == domain.SettlementStatusTransferred {
		status = payoutSent
	}
	respondJSON(c, http.StatusOK, gin.H{"order_id": result.OrderID, "payout_status": status})
}

// CheckoutSuccess handles GET /v1/checkout/success?session_id=
func (h *OrderHandler) CheckoutSuccess(c *gin.Context) {
	order, err := h.checkout.ConfirmCheckout(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newOrderResponse(order))
}
