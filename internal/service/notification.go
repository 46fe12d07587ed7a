package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"coachpay/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationPaymentConfirmed NotificationType = "PAYMENT_CONFIRMED"
	NotificationPaymentFailed    NotificationType = "PAYMENT_FAILED"
	NotificationSessionBooked    NotificationType = "SESSION_BOOKED"
	NotificationPayoutSent       NotificationType = "PAYOUT_SENT"
	NotificationPayoutPending    NotificationType = "PAYOUT_PENDING"
	NotificationOrderRefunded    NotificationType = "ORDER_REFUNDED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string // buyer or provider ID
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// NotificationService delivers user-facing messages. Messages stay generic:
// processor errors and anomalies are never shown to buyers or providers.
type NotificationService struct {
	log logrus.FieldLogger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(log logrus.FieldLogger) *NotificationService {
	return &NotificationService{log: log.WithField("component", "notification")}
}

// NotifyPaymentConfirmed tells the buyer the payment went through.
func (s *NotificationService) NotifyPaymentConfirmed(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentConfirmed,
		RecipientID: order.BuyerID,
		Title:       "Payment confirmed",
		Message:     "Your booking is confirmed.",
		Data:        map[string]interface{}{"order_id": order.ID},
		CreatedAt:   time.Now(),
	})
}

// NotifyPaymentFailed tells the buyer the payment did not go through.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, Notification{
		Type:        NotificationPaymentFailed,
		RecipientID: order.BuyerID,
		Title:       "Payment failed",
		Message:     "The payment could not be completed. Please try again.",
		Data:        map[string]interface{}{"order_id": order.ID},
		CreatedAt:   time.Now(),
	})
}

// NotifySessionBooked tells the provider a pack session was scheduled.
func (s *NotificationService) NotifySessionBooked(ctx context.Context, order *domain.Order, session *domain.PackSession) error {
	return s.send(ctx, Notification{
		Type:        NotificationSessionBooked,
		RecipientID: order.ProviderID,
		Title:       "Session booked",
		Message:     "A session from a pack was scheduled.",
		Data: map[string]interface{}{
			"order_id":        order.ID,
			"session_index":   session.Index,
			"scheduled_start": session.ScheduledStart,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPayoutSent tells the provider the payout was transferred.
func (s *NotificationService) NotifyPayoutSent(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, Notification{
		Type:        NotificationPayoutSent,
		RecipientID: order.ProviderID,
		Title:       "Payout sent",
		Message:     "Your payout is on its way.",
		Data: map[string]interface{}{
			"order_id":     order.ID,
			"amount_cents": order.Fees.ProviderNetCents,
			"currency":     order.Fees.Currency,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPayoutPending tells the provider the payout is delayed while it is retried or reviewed.
func (s *NotificationService) NotifyPayoutPending(ctx context.Context, order *domain.Order) error {
	return s.send(ctx, Notification{
		Type:        NotificationPayoutPending,
		RecipientID: order.ProviderID,
		Title:       "Payout pending",
		Message:     "Your payout is pending. No action is needed.",
		Data:        map[string]interface{}{"order_id": order.ID},
		CreatedAt:   time.Now(),
	})
}

// NotifyOrderRefunded tells both parties the payment was reversed.
func (s *NotificationService) NotifyOrderRefunded(ctx context.Context, order *domain.Order) error {
	for _, recipient := range []string{order.BuyerID, order.ProviderID} {
		if err := s.send(ctx, Notification{
			Type:        NotificationOrderRefunded,
			RecipientID: recipient,
			Title:       "Order refunded",
			Message:     "The payment for this booking was refunded.",
			Data:        map[string]interface{}{"order_id": order.ID},
			CreatedAt:   time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// send delivers a notification. Delivery channels (push, email) live outside this service;
// the structured log line is what downstream consumers pick up.
func (s *NotificationService) send(ctx context.Context, n Notification) error {
	s.log.WithFields(logrus.Fields{
		"type":      n.Type,
		"recipient": n.RecipientID,
		"title":     n.Title,
	}).Info(n.Message)
	return nil
}
