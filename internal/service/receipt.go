package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coachpay/internal/clock"
	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

// Receipt is the buyer-facing breakdown of an order, rendered from its fee snapshot.
type Receipt struct {
	OrderID          string         `json:"order_id"`
	Kind             domain.FeeKind `json:"kind"`
	SessionsCount    int            `json:"sessions_count"`
	Currency         string         `json:"currency"`
	ProviderNet      string         `json:"provider_net"`
	ServiceFee       string         `json:"service_fee"`
	Total            string         `json:"total"`
	PerSessionPayout string         `json:"per_session_payout,omitempty"`
	Stage            domain.Stage   `json:"stage"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	IssuedAt         time.Time      `json:"issued_at"`
	Lines            []ReceiptLine  `json:"lines"`
}

// ReceiptLine is one priced line of a receipt.
type ReceiptLine struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// ReceiptService re-displays historical breakdowns. It reads only the order snapshot,
// never the current fee configuration.
type ReceiptService struct {
	orders repository.OrderRepository
	clock  clock.Clock
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(orders repository.OrderRepository, clk clock.Clock) *ReceiptService {
	return &ReceiptService{orders: orders, clock: clk}
}

// GetReceipt builds the receipt of an order.
func (s *ReceiptService) GetReceipt(ctx context.Context, orderID string) (*Receipt, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return BuildReceipt(order, s.clock.Now()), nil
}

// BuildReceipt renders the receipt of order as of issuedAt.
func BuildReceipt(order *domain.Order, issuedAt time.Time) *Receipt {
	f := order.Fees
	r := &Receipt{
		OrderID:       order.ID,
		Kind:          f.Kind,
		SessionsCount: f.SessionsCount,
		Currency:      f.Currency,
		ProviderNet:   formatCents(f.ProviderNetCents),
		ServiceFee:    formatCents(f.BuyerServiceFeeCents),
		Total:         formatCents(f.BuyerTotalCents),
		Stage:         order.Stage(),
		IssuedAt:      issuedAt,
		Lines: []ReceiptLine{
			{Label: sessionLabel(f), Amount: formatCents(f.ProviderNetCents)},
			{Label: "Service fee", Amount: formatCents(f.BuyerServiceFeeCents)},
		},
	}
	if f.Kind == domain.FeeKindPack {
		r.PerSessionPayout = formatCents(f.PerSessionPayoutCents)
	}
	if !order.PaidAt.IsZero() {
		paidAt := order.PaidAt
		r.PaidAt = &paidAt
	}
	return r
}

// FormatReceipt formats the receipt as plain text (for email/print).
func FormatReceipt(r *Receipt) string {
	var b strings.Builder
	b.WriteString("=====================================\n")
	b.WriteString("          COACHING RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Order: %s\n", r.OrderID)
	fmt.Fprintf(&b, "Date:  %s\n\n", r.IssuedAt.Format("Jan 02, 2006 3:04 PM"))
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "%-24s %8s %s\n", line.Label, line.Amount, r.Currency)
	}
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "%-24s %8s %s\n", "TOTAL", r.Total, r.Currency)
	b.WriteString("=====================================\n")
	return b.String()
}

func sessionLabel(f domain.FeeBreakdown) string {
	if f.Kind == domain.FeeKindPack {
		return fmt.Sprintf("Coaching pack (%d sessions)", f.SessionsCount)
	}
	return "Coaching session"
}

// formatCents renders minor units as a two-decimal major amount.
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
