package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"coachpay/internal/domain"
	"coachpay/internal/repository"
	"coachpay/internal/service"
)

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is an in-memory OrderRepository with the same conditional
// update semantics as the Postgres implementation.
type MockOrderRepository struct {
	mu            sync.Mutex
	orders        map[string]*domain.Order
	sessions      []*domain.PackSession
	cancellations []*domain.Cancellation

	// Counters for verification
	ClaimCallCount    int32
	CompleteCallCount int32

	// Error injection
	CreateError   error
	ClaimError    error
	CompleteError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*domain.Order)}
}

// AddOrder stores an order as-is.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
}

// Get returns a copy of an order, or nil.
func (m *MockOrderRepository) Get(id string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	copy := *o
	return &copy
}

// Orders returns copies of all stored orders.
func (m *MockOrderRepository) Orders() []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		copy := *o
		out = append(out, &copy)
	}
	return out
}

// PackSessions returns the booked pack sessions.
func (m *MockOrderRepository) PackSessions() []*domain.PackSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.PackSession(nil), m.sessions...)
}

// Cancellations returns the recorded cancellations.
func (m *MockOrderRepository) Cancellations() []*domain.Cancellation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Cancellation(nil), m.cancellations...)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return repository.ErrDuplicate
	}
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return m.find(func(o *domain.Order) bool { return o.ID == id })
}

func (m *MockOrderRepository) GetByCaptureSessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return m.find(func(o *domain.Order) bool { return o.CaptureSessionID == sessionID })
}

func (m *MockOrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return m.find(func(o *domain.Order) bool { return o.PaymentID == paymentID })
}

func (m *MockOrderRepository) find(match func(*domain.Order) bool) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if match(o) {
			copy := *o
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockOrderRepository) SetCaptureSession(ctx context.Context, id, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if o.CaptureSessionID != "" && o.CaptureSessionID != sessionID {
		return repository.ErrAlreadySet
	}
	o.CaptureSessionID = sessionID
	return nil
}

// update applies fn to the order when guard holds.
func (m *MockOrderRepository) update(id string, guard func(*domain.Order) bool, fn func(*domain.Order)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || !guard(o) {
		return false
	}
	fn(o)
	return true
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	return m.update(id,
		func(o *domain.Order) bool { return o.PaymentStatus == domain.PaymentStatusPending },
		func(o *domain.Order) {
			o.PaymentStatus = domain.PaymentStatusPaid
			if o.PaymentID == "" {
				o.PaymentID = paymentID
			}
			o.PaidAt = at
			o.UpdatedAt = at
		}), nil
}

func (m *MockOrderRepository) MarkPaymentFailed(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	return m.update(id,
		func(o *domain.Order) bool { return o.PaymentStatus == domain.PaymentStatusPending },
		func(o *domain.Order) {
			o.PaymentStatus = domain.PaymentStatusFailed
			if o.PaymentID == "" {
				o.PaymentID = paymentID
			}
			o.UpdatedAt = at
		}), nil
}

func (m *MockOrderRepository) RecoverPayment(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	return m.update(id,
		func(o *domain.Order) bool {
			return o.PaymentStatus == domain.PaymentStatusFailed && paymentID != "" && o.PaymentID == paymentID
		},
		func(o *domain.Order) {
			o.PaymentStatus = domain.PaymentStatusPaid
			o.PaidAt = at
			o.UpdatedAt = at
		}), nil
}

func (m *MockOrderRepository) MarkRefunded(ctx context.Context, id string, at time.Time) (bool, error) {
	return m.update(id,
		func(o *domain.Order) bool { return o.PaymentStatus == domain.PaymentStatusPaid },
		func(o *domain.Order) {
			o.PaymentStatus = domain.PaymentStatusRefunded
			o.UpdatedAt = at
		}), nil
}

func (m *MockOrderRepository) ClaimSettlement(ctx context.Context, id string, now time.Time) (bool, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	if m.ClaimError != nil {
		return false, m.ClaimError
	}
	return m.update(id,
		func(o *domain.Order) bool { return o.EligibleForSettlement(now) },
		func(o *domain.Order) {
			o.SettlementStatus = domain.SettlementStatusSettling
			o.SettlementAttempts++
			o.SettlingSince = now
			o.UpdatedAt = now
		}), nil
}

func (m *MockOrderRepository) CompleteSettlement(ctx context.Context, id, transferID string, at time.Time) error {
	atomic.AddInt32(&m.CompleteCallCount, 1)
	if m.CompleteError != nil {
		return m.CompleteError
	}
	ok := m.update(id,
		func(o *domain.Order) bool { return o.SettlementStatus == domain.SettlementStatusSettling },
		func(o *domain.Order) {
			o.SettlementStatus = domain.SettlementStatusTransferred
			o.TransferID = transferID
			o.SettledAt = at
			o.SettlingSince = time.Time{}
			o.UpdatedAt = at
		})
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

func (m *MockOrderRepository) FailSettlement(ctx context.Context, id string, status domain.SettlementStatus, at time.Time) error {
	ok := m.update(id,
		func(o *domain.Order) bool { return o.SettlementStatus == domain.SettlementStatusSettling },
		func(o *domain.Order) {
			o.SettlementStatus = status
			o.SettlingSince = time.Time{}
			o.UpdatedAt = at
		})
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

func (m *MockOrderRepository) ReclaimSettlement(ctx context.Context, id string, settlingSince, now time.Time) (bool, error) {
	return m.update(id,
		func(o *domain.Order) bool {
			return o.SettlementStatus == domain.SettlementStatusSettling && o.SettlingSince.Equal(settlingSince)
		},
		func(o *domain.Order) {
			o.SettlingSince = now
			o.SettlementAttempts++
			o.UpdatedAt = now
		}), nil
}

func (m *MockOrderRepository) Unblock(ctx context.Context, id string, at time.Time) (bool, error) {
	return m.update(id,
		func(o *domain.Order) bool { return o.SettlementStatus == domain.SettlementStatusBlocked },
		func(o *domain.Order) {
			o.SettlementStatus = domain.SettlementStatusFailed
			o.SettlementAttempts = 0
			o.UpdatedAt = at
		}), nil
}

func (m *MockOrderRepository) ListEligibleForSettlement(ctx context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var eligible []*domain.Order
	for _, o := range m.orders {
		if o.EligibleForSettlement(now) {
			eligible = append(eligible, o)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ScheduledEnd.Before(eligible[j].ScheduledEnd) })

	ids := make([]string, 0, len(eligible))
	for _, o := range eligible {
		if len(ids) == limit {
			break
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (m *MockOrderRepository) ListStaleSettling(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.SettlementStatus == domain.SettlementStatusSettling && o.SettlingSince.Before(olderThan) && len(out) < limit {
			copy := *o
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) IncrementSessionsBooked(ctx context.Context, id string, start, end time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Fees.Kind != domain.FeeKindPack || o.SessionsBooked >= o.Fees.SessionsCount {
		return 0, repository.ErrConflict
	}
	index := o.SessionsBooked
	o.SessionsBooked++
	if o.ScheduledStart.IsZero() || start.Before(o.ScheduledStart) {
		o.ScheduledStart = start
	}
	if end.After(o.ScheduledEnd) {
		o.ScheduledEnd = end
	}
	return index, nil
}

func (m *MockOrderRepository) CreatePackSession(ctx context.Context, session *domain.PackSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *MockOrderRepository) CreateCancellation(ctx context.Context, c *domain.Cancellation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations = append(m.cancellations, c)
	return nil
}

// ──────────────────────────────────────────────
// MOCK TRANSFER ATTEMPT REPOSITORY
// ──────────────────────────────────────────────

// MockTransferAttemptRepository is an in-memory attempt log.
type MockTransferAttemptRepository struct {
	mu       sync.Mutex
	attempts []*domain.TransferAttempt
}

// NewMockTransferAttemptRepository creates a new mock attempt repository.
func NewMockTransferAttemptRepository() *MockTransferAttemptRepository {
	return &MockTransferAttemptRepository{}
}

func (m *MockTransferAttemptRepository) Append(ctx context.Context, attempt *domain.TransferAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *attempt
	m.attempts = append(m.attempts, &copy)
	return nil
}

func (m *MockTransferAttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.TransferAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TransferAttempt
	for _, a := range m.attempts {
		if a.OrderID == orderID {
			copy := *a
			out = append(out, &copy)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK WEBHOOK EVENT REPOSITORY
// ──────────────────────────────────────────────

// MockWebhookEventRepository is an in-memory processed-event ledger.
type MockWebhookEventRepository struct {
	mu     sync.Mutex
	events map[string]*domain.ProcessedEvent
}

// NewMockWebhookEventRepository creates a new mock event ledger.
func NewMockWebhookEventRepository() *MockWebhookEventRepository {
	return &MockWebhookEventRepository{events: make(map[string]*domain.ProcessedEvent)}
}

func (m *MockWebhookEventRepository) Claim(ctx context.Context, event *domain.ProcessedEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; ok {
		return false, nil
	}
	copy := *event
	m.events[event.ID] = &copy
	return true, nil
}

// Get returns a processed event, or nil.
func (m *MockWebhookEventRepository) Get(id string) *domain.ProcessedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id]
}

// ──────────────────────────────────────────────
// MOCK ANOMALY REPOSITORY
// ──────────────────────────────────────────────

// MockAnomalyRepository is an in-memory anomaly store.
type MockAnomalyRepository struct {
	mu        sync.Mutex
	anomalies []*domain.Anomaly

	// Block, when set, holds every Create until it is closed.
	Block chan struct{}
}

// NewMockAnomalyRepository creates a new mock anomaly repository.
func NewMockAnomalyRepository() *MockAnomalyRepository {
	return &MockAnomalyRepository{}
}

func (m *MockAnomalyRepository) Create(ctx context.Context, anomaly *domain.Anomaly) error {
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *anomaly
	m.anomalies = append(m.anomalies, &copy)
	return nil
}

func (m *MockAnomalyRepository) List(ctx context.Context, filter domain.AnomalyFilter) ([]*domain.Anomaly, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Anomaly
	for i := len(m.anomalies) - 1; i >= 0; i-- {
		a := m.anomalies[i]
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.OrderID != "" && a.OrderID != filter.OrderID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Count returns the number of stored anomalies.
func (m *MockAnomalyRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.anomalies)
}

// ──────────────────────────────────────────────
// MOCK PROVIDER ACCOUNT REPOSITORY
// ──────────────────────────────────────────────

// MockProviderAccountRepository is an in-memory payout account store.
type MockProviderAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.ProviderAccount

	GetCallCount int32
}

// NewMockProviderAccountRepository creates a new mock provider account repository.
func NewMockProviderAccountRepository() *MockProviderAccountRepository {
	return &MockProviderAccountRepository{accounts: make(map[string]*domain.ProviderAccount)}
}

// AddAccount stores an account.
func (m *MockProviderAccountRepository) AddAccount(account *domain.ProviderAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *account
	m.accounts[account.ProviderID] = &copy
}

func (m *MockProviderAccountRepository) Upsert(ctx context.Context, account *domain.ProviderAccount) error {
	m.AddAccount(account)
	return nil
}

func (m *MockProviderAccountRepository) GetByProviderID(ctx context.Context, providerID string) (*domain.ProviderAccount, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[providerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (m *MockProviderAccountRepository) SetPayoutsEnabled(ctx context.Context, accountID string, enabled bool, at time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.AccountID == accountID {
			a.PayoutsEnabled = enabled
			a.UpdatedAt = at
			return a.ProviderID, nil
		}
	}
	return "", repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK TX MANAGER
// ──────────────────────────────────────────────

// MockTxManager serializes transactions. It does not roll back.
type MockTxManager struct {
	mu        sync.Mutex
	CallCount int32
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	atomic.AddInt32(&m.CallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// ──────────────────────────────────────────────
// MOCK PROCESSOR GATEWAYS
// ──────────────────────────────────────────────

// MockTransferGateway records transfers. Errors in CreateErrors are returned by
// successive CreateTransfer calls; once exhausted, calls succeed. A key that already
// failed keeps failing with the same error.
type MockTransferGateway struct {
	mu           sync.Mutex
	transfers    map[string]*service.Transfer // by idempotency key
	failures     map[string]error             // by idempotency key, replayed like the processor does
	requests     []service.TransferRequest
	CreateErrors []error

	// Existing is returned by FindTransfer when set.
	Existing  *service.Transfer
	FindError error

	// Delay is applied to CreateTransfer before it returns.
	Delay time.Duration

	CreateCallCount int32
	FindCallCount   int32
}

// NewMockTransferGateway creates a new mock transfer gateway.
func NewMockTransferGateway() *MockTransferGateway {
	return &MockTransferGateway{
		transfers: make(map[string]*service.Transfer),
		failures:  make(map[string]error),
	}
}

func (m *MockTransferGateway) CreateTransfer(ctx context.Context, req service.TransferRequest) (*service.Transfer, error) {
	n := atomic.AddInt32(&m.CreateCallCount, 1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err, ok := m.failures[req.IdempotencyKey]; ok {
		return nil, err
	}
	if int(n) <= len(m.CreateErrors) && m.CreateErrors[n-1] != nil {
		m.failures[req.IdempotencyKey] = m.CreateErrors[n-1]
		return nil, m.CreateErrors[n-1]
	}
	if t, ok := m.transfers[req.IdempotencyKey]; ok {
		return t, nil
	}
	t := &service.Transfer{
		ID:          fmt.Sprintf("tr_%d", len(m.transfers)+1),
		AmountCents: req.AmountCents,
		Destination: req.Destination,
	}
	m.transfers[req.IdempotencyKey] = t
	return t, nil
}

func (m *MockTransferGateway) FindTransfer(ctx context.Context, transferGroup string) (*service.Transfer, error) {
	atomic.AddInt32(&m.FindCallCount, 1)
	if m.FindError != nil {
		return nil, m.FindError
	}
	return m.Existing, nil
}

// Requests returns the transfer requests received.
func (m *MockTransferGateway) Requests() []service.TransferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.TransferRequest(nil), m.requests...)
}

// TransferCount returns the number of distinct transfers issued.
func (m *MockTransferGateway) TransferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
}

// MockCaptureGateway opens capture sessions in memory.
type MockCaptureGateway struct {
	mu       sync.Mutex
	sessions map[string]*service.CaptureSession
	requests []service.CaptureRequest

	CreateError error
}

// NewMockCaptureGateway creates a new mock capture gateway.
func NewMockCaptureGateway() *MockCaptureGateway {
	return &MockCaptureGateway{sessions: make(map[string]*service.CaptureSession)}
}

func (m *MockCaptureGateway) CreateCaptureSession(ctx context.Context, req service.CaptureRequest) (*service.CaptureSession, error) {
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	id := fmt.Sprintf("cs_%d", len(m.sessions)+1)
	s := &service.CaptureSession{
		ID:      id,
		URL:     "https://pay.example/" + id,
		OrderID: req.OrderID,
	}
	m.sessions[id] = s
	return s, nil
}

func (m *MockCaptureGateway) GetCaptureSession(ctx context.Context, sessionID string) (*service.CaptureSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *s
	return &copy, nil
}

// Pay marks a capture session as paid.
func (m *MockCaptureGateway) Pay(sessionID, paymentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Paid = true
		s.PaymentID = paymentID
	}
}

// Requests returns the capture requests received.
func (m *MockCaptureGateway) Requests() []service.CaptureRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.CaptureRequest(nil), m.requests...)
}

// MockAccountGateway creates payout accounts in memory.
type MockAccountGateway struct {
	CreateCallCount int32
}

func (m *MockAccountGateway) CreatePayoutAccount(ctx context.Context, providerID string) (string, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)
	return "acct_" + providerID, nil
}

func (m *MockAccountGateway) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	return "https://connect.example/onboard/" + accountID, nil
}

// MockWebhookVerifier returns Event, or Err when set.
type MockWebhookVerifier struct {
	Event *domain.WebhookEvent
	Err   error
}

func (m *MockWebhookVerifier) ParseWebhookEvent(payload []byte, signatureHeader string) (*domain.WebhookEvent, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Event, nil
}

// ──────────────────────────────────────────────
// MOCK AUDIT / CACHE / METRICS
// ──────────────────────────────────────────────

// RecordingAuditor stores anomalies synchronously.
type RecordingAuditor struct {
	mu        sync.Mutex
	anomalies []domain.Anomaly
}

func (r *RecordingAuditor) Record(ctx context.Context, anomaly domain.Anomaly) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies = append(r.anomalies, anomaly)
}

// Anomalies returns the recorded anomalies.
func (r *RecordingAuditor) Anomalies() []domain.Anomaly {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Anomaly(nil), r.anomalies...)
}

// ByCategory returns the recorded anomalies of one category.
func (r *RecordingAuditor) ByCategory(category domain.AnomalyCategory) []domain.Anomaly {
	var out []domain.Anomaly
	for _, a := range r.Anomalies() {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

// MockAccountCache is an in-memory AccountCache.
type MockAccountCache struct {
	mu       sync.Mutex
	accounts map[string]*domain.ProviderAccount

	Invalidations int32
}

// NewMockAccountCache creates a new mock account cache.
func NewMockAccountCache() *MockAccountCache {
	return &MockAccountCache{accounts: make(map[string]*domain.ProviderAccount)}
}

func (m *MockAccountCache) GetPayoutAccount(ctx context.Context, providerID string) (*domain.ProviderAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[providerID]
	if !ok {
		return nil, nil
	}
	copy := *a
	return &copy, nil
}

func (m *MockAccountCache) SetPayoutAccount(ctx context.Context, account *domain.ProviderAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *account
	m.accounts[account.ProviderID] = &copy
	return nil
}

func (m *MockAccountCache) InvalidatePayoutAccount(ctx context.Context, providerID string) error {
	atomic.AddInt32(&m.Invalidations, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, providerID)
	return nil
}

// RecordingMetrics counts measurements.
type RecordingMetrics struct {
	mu          sync.Mutex
	Settlements map[domain.SettlementStatus]int
	Webhooks    map[string]int
	Dropped     int
	Recorded    int
	Sweeps      int
}

// NewRecordingMetrics creates a new RecordingMetrics.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		Settlements: make(map[domain.SettlementStatus]int),
		Webhooks:    make(map[string]int),
	}
}

func (r *RecordingMetrics) AnomalyRecorded(domain.AnomalyCategory, domain.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Recorded++
}

func (r *RecordingMetrics) AnomalyDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dropped++
}

func (r *RecordingMetrics) SettlementOutcome(status domain.SettlementStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Settlements[status]++
}

func (r *RecordingMetrics) WebhookProcessed(_ domain.WebhookEventType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Webhooks[outcome]++
}

func (r *RecordingMetrics) SweepFinished(time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sweeps++
}

// Snapshot returns the counters under lock.
func (r *RecordingMetrics) Snapshot() (settlements map[domain.SettlementStatus]int, webhooks map[string]int, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	settlements = make(map[domain.SettlementStatus]int, len(r.Settlements))
	for k, v := range r.Settlements {
		settlements[k] = v
	}
	webhooks = make(map[string]int, len(r.Webhooks))
	for k, v := range r.Webhooks {
		webhooks[k] = v
	}
	return settlements, webhooks, r.Dropped
}

// Ensure mocks implement interfaces.
var (
	_ repository.OrderRepository           = (*MockOrderRepository)(nil)
	_ repository.TransferAttemptRepository = (*MockTransferAttemptRepository)(nil)
	_ repository.WebhookEventRepository    = (*MockWebhookEventRepository)(nil)
	_ repository.AnomalyRepository         = (*MockAnomalyRepository)(nil)
	_ repository.ProviderAccountRepository = (*MockProviderAccountRepository)(nil)
	_ repository.TxManager                 = (*MockTxManager)(nil)
	_ service.TransferGateway              = (*MockTransferGateway)(nil)
	_ service.CaptureGateway               = (*MockCaptureGateway)(nil)
	_ service.AccountGateway               = (*MockAccountGateway)(nil)
	_ service.WebhookVerifier              = (*MockWebhookVerifier)(nil)
	_ service.Auditor                      = (*RecordingAuditor)(nil)
	_ service.AccountCache                 = (*MockAccountCache)(nil)
	_ service.Metrics                      = (*RecordingMetrics)(nil)
)
