package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"coachpay/internal/clock"
	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

const auditWriteTimeout = 5 * time.Second

// Auditor records anomalies without blocking the caller.
type Auditor interface {
	Record(ctx context.Context, anomaly domain.Anomaly)
}

// AnomalyPublisher fans anomalies out to an external feed.
type AnomalyPublisher interface {
	Publish(ctx context.Context, anomaly *domain.Anomaly) error
}

// AuditService is the asynchronous audit sink. Records are queued on a buffered channel
// and written by a single worker; a full queue drops the record.
type AuditService struct {
	repo      repository.AnomalyRepository
	publisher AnomalyPublisher
	metrics   Metrics
	clock     clock.Clock
	log       logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	queue  chan *domain.Anomaly
	done   chan struct{}
}

var _ Auditor = (*AuditService)(nil)

// NewAuditService creates the sink and starts its worker. publisher may be nil.
func NewAuditService(
	repo repository.AnomalyRepository,
	publisher AnomalyPublisher,
	metrics Metrics,
	clk clock.Clock,
	log logrus.FieldLogger,
	queueSize int,
) *AuditService {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &AuditService{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		clock:     clk,
		log:       log.WithField("component", "audit"),
		queue:     make(chan *domain.Anomaly, queueSize),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Record enqueues an anomaly. It never blocks and never fails the caller.
func (s *AuditService) Record(ctx context.Context, anomaly domain.Anomaly) {
	if anomaly.ID == "" {
		anomaly.ID = uuid.New().String()
	}
	if anomaly.CreatedAt.IsZero() {
		anomaly.CreatedAt = s.clock.Now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(&anomaly, "audit sink closed")
		return
	}

	select {
	case s.queue <- &anomaly:
	default:
		s.drop(&anomaly, "audit queue full")
	}
}

// List returns anomalies for the operator feed.
func (s *AuditService) List(ctx context.Context, filter domain.AnomalyFilter) ([]*domain.Anomaly, error) {
	return s.repo.List(ctx, filter)
}

// Close stops accepting records and waits until the queue is drained or ctx ends.
func (s *AuditService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuditService) run() {
	defer close(s.done)
	for anomaly := range s.queue {
		s.write(anomaly)
	}
}

func (s *AuditService) write(anomaly *domain.Anomaly) {
	entry := s.log.WithFields(logrus.Fields{
		"anomaly_id": anomaly.ID,
		"order_id":   anomaly.OrderID,
		"category":   anomaly.Category,
		"severity":   anomaly.Severity,
	})

	switch anomaly.Severity {
	case domain.SeverityError:
		entry.Error(anomaly.Detail)
	case domain.SeverityWarn:
		entry.Warn(anomaly.Detail)
	default:
		entry.Info(anomaly.Detail)
	}
	s.metrics.AnomalyRecorded(anomaly.Category, anomaly.Severity)

	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.repo.Create(ctx, anomaly); err != nil {
		entry.WithError(err).Error("failed to persist anomaly")
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, anomaly); err != nil {
			entry.WithError(err).Warn("failed to publish anomaly")
		}
	}
}

func (s *AuditService) drop(anomaly *domain.Anomaly, reason string) {
	s.metrics.AnomalyDropped()
	s.log.WithFields(logrus.Fields{
		"order_id": anomaly.OrderID,
		"category": anomaly.Category,
		"severity": anomaly.Severity,
		"detail":   anomaly.Detail,
	}).Error(reason)
}
