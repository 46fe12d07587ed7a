// Package processor adapts the Stripe API to the settlement engine's gateway ports.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"golang.org/x/time/rate"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// Config holds the Stripe credentials and redirect URLs.
type Config struct {
	SecretKey     string
	WebhookSecret string

	SuccessURL string // must carry {CHECKOUT_SESSION_ID}
	CancelURL  string
	RefreshURL string
	ReturnURL  string

	RatePerSecond float64

	// BackendURL overrides the API endpoint (stripe-mock, tests).
	BackendURL string
}

// Stripe implements the capture, transfer, account and webhook ports on top of stripe-go.
type Stripe struct {
	api     *client.API
	limiter *rate.Limiter
	cfg     Config
}

var (
	_ service.CaptureGateway  = (*Stripe)(nil)
	_ service.TransferGateway = (*Stripe)(nil)
	_ service.AccountGateway  = (*Stripe)(nil)
	_ service.WebhookVerifier = (*Stripe)(nil)
)

// NewStripe creates a Stripe adapter. Every outgoing call waits on a client-side rate limiter.
func NewStripe(cfg Config) *Stripe {
	var backends *stripe.Backends
	if cfg.BackendURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.BackendURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Stripe{
		api:     client.New(cfg.SecretKey, backends),
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
	}
}

// CreateCaptureSession opens a hosted Checkout page for the buyer total. The payment intent
// carries the order's transfer group so the later payout is linked to this charge, and records
// the payout account and platform fee; no destination charge is made.
func (s *Stripe) CreateCaptureSession(ctx context.Context, req service.CaptureRequest) (*service.CaptureSession, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferGroup: stripe.String(req.TransferGroup),
			Metadata: map[string]string{
				metadataOrderID:        req.OrderID,
				metadataDestination:    req.DestinationAccountID,
				metadataApplicationFee: strconv.FormatInt(req.ApplicationFeeCents, 10),
			},
		},
	}
	params.AddMetadata(metadataOrderID, req.OrderID)
	params.SetIdempotencyKey(fmt.Sprintf("checkout-%s", req.OrderID))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return toCaptureSession(sess), nil
}

// GetCaptureSession fetches the current state of a Checkout page.
func (s *Stripe) GetCaptureSession(ctx context.Context, sessionID string) (*service.CaptureSession, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sess, err := s.api.CheckoutSessions.Get(sessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, classify(err)
	}
	return toCaptureSession(sess), nil
}

func toCaptureSession(sess *stripe.CheckoutSession) *service.CaptureSession {
	out := &service.CaptureSession{
		ID:      sess.ID,
		URL:     sess.URL,
		OrderID: sess.ClientReferenceID,
		Paid:    sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if sess.PaymentIntent != nil {
		out.PaymentID = sess.PaymentIntent.ID
	}
	return out
}

// CreateTransfer pays the provider net out of the platform balance.
func (s *Stripe) CreateTransfer(ctx context.Context, req service.TransferRequest) (*service.Transfer, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.TransferParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Destination:   stripe.String(req.Destination),
		TransferGroup: stripe.String(req.TransferGroup),
	}
	params.AddMetadata(metadataOrderID, req.OrderID)
	params.SetIdempotencyKey(req.IdempotencyKey)

	tr, err := s.api.Transfers.New(params)
	if err != nil {
		return nil, classify(err)
	}
	return toTransfer(tr), nil
}

// FindTransfer returns the first non-reversed transfer of a transfer group, or nil.
func (s *Stripe) FindTransfer(ctx context.Context, transferGroup string) (*service.Transfer, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := &stripe.TransferListParams{
		ListParams:    stripe.ListParams{Context: ctx},
		TransferGroup: stripe.String(transferGroup),
	}
	it := s.api.Transfers.List(params)
	for it.Next() {
		if tr := it.Transfer(); !tr.Reversed {
			return toTransfer(tr), nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, classify(err)
	}
	return nil, nil
}

func toTransfer(tr *stripe.Transfer) *service.Transfer {
	out := &service.Transfer{ID: tr.ID, AmountCents: tr.Amount}
	if tr.Destination != nil {
		out.Destination = tr.Destination.ID
	}
	return out
}

// CreatePayoutAccount creates an Express connected account able to receive transfers.
func (s *Stripe) CreatePayoutAccount(ctx context.Context, providerID string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
		Type:   stripe.String(string(stripe.AccountTypeExpress)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.AddMetadata(metadataProviderID, providerID)
	params.SetIdempotencyKey(fmt.Sprintf("account-%s", providerID))

	acct, err := s.api.Accounts.New(params)
	if err != nil {
		return "", classify(err)
	}
	return acct.ID, nil
}

// CreateOnboardingLink returns a one-time onboarding URL for a connected account.
func (s *Stripe) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	link, err := s.api.AccountLinks.New(&stripe.AccountLinkParams{
		Params:     stripe.Params{Context: ctx},
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(s.cfg.RefreshURL),
		ReturnURL:  stripe.String(s.cfg.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return "", classify(err)
	}
	return link.URL, nil
}

// ParseWebhookEvent verifies the Stripe-Signature header and decodes the event.
func (s *Stripe) ParseWebhookEvent(payload []byte, signatureHeader string) (*domain.WebhookEvent, error) {
	return parseEvent(payload, signatureHeader, s.cfg.WebhookSecret)
}

// classify marks errors whose outcome at Stripe is unknown as ErrProcessorUnavailable.
// Card and validation errors are definite and pass through unchanged.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%w: %w", service.ErrProcessorUnavailable, err)
		}
		return err
	}
	return fmt.Errorf("%w: %w", service.ErrProcessorUnavailable, err)
}
