package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// Mock is an in-memory processor for local runs without Stripe credentials.
// Capture sessions are paid as soon as they are created.
type Mock struct {
	mu            sync.Mutex
	sessions      map[string]*service.CaptureSession
	transfers     map[string]*service.Transfer // by transfer group
	idempotency   map[string]*service.Transfer
	webhookSecret string
	baseURL       string
}

var (
	_ service.CaptureGateway  = (*Mock)(nil)
	_ service.TransferGateway = (*Mock)(nil)
	_ service.AccountGateway  = (*Mock)(nil)
	_ service.WebhookVerifier = (*Mock)(nil)
)

// NewMock creates a mock processor. Webhooks are still verified with webhookSecret.
func NewMock(baseURL, webhookSecret string) *Mock {
	return &Mock{
		sessions:      make(map[string]*service.CaptureSession),
		transfers:     make(map[string]*service.Transfer),
		idempotency:   make(map[string]*service.Transfer),
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
	}
}

func (m *Mock) CreateCaptureSession(ctx context.Context, req service.CaptureRequest) (*service.CaptureSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "cs_mock_" + uuid.New().String()
	sess := &service.CaptureSession{
		ID:        id,
		URL:       fmt.Sprintf("%s/v1/checkout/success?session_id=%s", m.baseURL, id),
		OrderID:   req.OrderID,
		PaymentID: "pi_mock_" + uuid.New().String(),
		Paid:      true,
	}
	m.sessions[id] = sess
	copy := *sess
	return &copy, nil
}

func (m *Mock) GetCaptureSession(ctx context.Context, sessionID string) (*service.CaptureSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", sessionID)
	}
	copy := *sess
	return &copy, nil
}

func (m *Mock) CreateTransfer(ctx context.Context, req service.TransferRequest) (*service.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tr, ok := m.idempotency[req.IdempotencyKey]; ok {
		return tr, nil
	}
	tr := &service.Transfer{
		ID:          "tr_mock_" + uuid.New().String(),
		AmountCents: req.AmountCents,
		Destination: req.Destination,
	}
	m.idempotency[req.IdempotencyKey] = tr
	m.transfers[req.TransferGroup] = tr
	return tr, nil
}

func (m *Mock) FindTransfer(ctx context.Context, transferGroup string) (*service.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transfers[transferGroup], nil
}

func (m *Mock) CreatePayoutAccount(ctx context.Context, providerID string) (string, error) {
	return "acct_mock_" + providerID, nil
}

func (m *Mock) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	return fmt.Sprintf("%s/onboarding/%s", m.baseURL, accountID), nil
}

func (m *Mock) ParseWebhookEvent(payload []byte, signatureHeader string) (*domain.WebhookEvent, error) {
	return parseEvent(payload, signatureHeader, m.webhookSecret)
}
