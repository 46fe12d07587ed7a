package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// ──────────────────────────────────────────────
// 5. AUDIT SINK
// ──────────────────────────────────────────────

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, a *domain.Anomaly) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, a.ID)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newAuditService(h *Harness, repo *MockAnomalyRepository, pub service.AnomalyPublisher, queueSize int) *service.AuditService {
	return service.NewAuditService(repo, pub, h.Metrics, h.Clock, h.Log, queueSize)
}

func TestAudit_PersistsAndPublishesOnClose(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	repo := NewMockAnomalyRepository()
	pub := &recordingPublisher{}
	audit := newAuditService(h, repo, pub, 16)

	for i := 0; i < 5; i++ {
		audit.Record(context.Background(), domain.Anomaly{
			OrderID:  "order-1",
			Category: domain.AnomalyTransferFailure,
			Severity: domain.SeverityWarn,
			Detail:   "attempt failed",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := audit.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.Count() != 5 {
		t.Errorf("expected 5 persisted anomalies, got %d", repo.Count())
	}
	if pub.count() != 5 {
		t.Errorf("expected 5 published anomalies, got %d", pub.count())
	}

	listed, err := audit.List(context.Background(), domain.AnomalyFilter{Severity: domain.SeverityWarn, OrderID: "order-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range listed {
		if a.ID == "" || a.CreatedAt.IsZero() {
			t.Errorf("expected id and timestamp to be assigned, got %+v", a)
		}
	}
}

func TestAudit_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	repo := NewMockAnomalyRepository()
	repo.Block = make(chan struct{})
	audit := newAuditService(h, repo, nil, 1)

	const records = 10
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < records; i++ {
			audit.Record(context.Background(), domain.Anomaly{Category: domain.AnomalyZeroMargin, Severity: domain.SeverityWarn})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(repo.Block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := audit.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, dropped := h.Metrics.Snapshot()
	if dropped < records-2 {
		t.Errorf("expected at least %d drops, got %d", records-2, dropped)
	}
	if dropped+repo.Count() != records {
		t.Errorf("expected drops + persisted == %d, got %d + %d", records, dropped, repo.Count())
	}
}

func TestAudit_CloseHonoursContext(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	repo := NewMockAnomalyRepository()
	repo.Block = make(chan struct{})
	defer close(repo.Block)
	audit := newAuditService(h, repo, nil, 4)

	audit.Record(context.Background(), domain.Anomaly{Category: domain.AnomalyZeroMargin})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := audit.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// Records after Close are dropped, never panic on the closed queue.
	audit.Record(context.Background(), domain.Anomaly{Category: domain.AnomalyZeroMargin})
	_, _, dropped := h.Metrics.Snapshot()
	if dropped != 1 {
		t.Errorf("expected 1 drop after close, got %d", dropped)
	}
}

func TestAudit_PublishFailureStillPersists(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	repo := NewMockAnomalyRepository()
	pub := &recordingPublisher{err: errors.New("broker down")}
	audit := newAuditService(h, repo, pub, 4)

	audit.Record(context.Background(), domain.Anomaly{Category: domain.AnomalySettlementBlocked, Severity: domain.SeverityError})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := audit.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Count() != 1 {
		t.Errorf("expected anomaly to be persisted, got %d", repo.Count())
	}
}
