package service

import (
	"time"

	"coachpay/internal/domain"
)

// Metrics receives settlement engine measurements.
type Metrics interface {
	AnomalyRecorded(category domain.AnomalyCategory, severity domain.Severity)
	AnomalyDropped()
	SettlementOutcome(status domain.SettlementStatus)
	WebhookProcessed(eventType domain.WebhookEventType, outcome string)
	SweepFinished(duration time.Duration, attempted int)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) AnomalyRecorded(domain.AnomalyCategory, domain.Severity) {}
func (NopMetrics) AnomalyDropped()                                         {}
func (NopMetrics) SettlementOutcome(domain.SettlementStatus)               {}
func (NopMetrics) WebhookProcessed(domain.WebhookEventType, string)        {}
func (NopMetrics) SweepFinished(time.Duration, int)                        {}
