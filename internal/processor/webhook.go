package processor

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

const (
	metadataOrderID        = "order_id"
	metadataProviderID     = "provider_id"
	metadataDestination    = "destination_account"
	metadataApplicationFee = "application_fee_cents"
)

// Only the fields the engine reads are decoded; expandable references arrive as plain ids.
type checkoutSessionObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     string            `json:"payment_intent"`
	Metadata          map[string]string `json:"metadata"`
}

type paymentIntentObject struct {
	ID               string            `json:"id"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type chargeObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type accountObject struct {
	ID             string `json:"id"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

func parseEvent(payload []byte, signatureHeader, secret string) (*domain.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrWebhookVerification, err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", service.ErrWebhookVerification, event.ID)
	}

	out := &domain.WebhookEvent{
		ID:   event.ID,
		Type: domain.WebhookEventType(event.Type),
	}

	if err := decodeObject(event, out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", service.ErrWebhookVerification, event.Type, err)
	}
	return out, nil
}

func decodeObject(event stripe.Event, out *domain.WebhookEvent) error {
	raw := event.Data.Raw

	switch out.Type {
	case domain.EventCheckoutCompleted:
		var obj checkoutSessionObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return err
		}
		out.OrderID = obj.ClientReferenceID
		if out.OrderID == "" {
			out.OrderID = obj.Metadata[metadataOrderID]
		}
		out.CaptureSessionID = obj.ID
		out.PaymentID = obj.PaymentIntent
		out.Paid = obj.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)

	case domain.EventPaymentSucceeded, domain.EventPaymentFailed:
		var obj paymentIntentObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return err
		}
		out.OrderID = obj.Metadata[metadataOrderID]
		out.PaymentID = obj.ID
		out.Paid = out.Type == domain.EventPaymentSucceeded
		if obj.LastPaymentError != nil {
			out.FailureReason = obj.LastPaymentError.Code
			if out.FailureReason == "" {
				out.FailureReason = obj.LastPaymentError.Message
			}
		}

	case domain.EventChargeRefunded:
		var obj chargeObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return err
		}
		out.OrderID = obj.Metadata[metadataOrderID]
		out.PaymentID = obj.PaymentIntent

	case domain.EventAccountUpdated:
		var obj accountObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return err
		}
		out.AccountID = obj.ID
		out.PayoutsEnabled = obj.PayoutsEnabled
	}
	return nil
}
