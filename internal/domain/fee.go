package domain

import "errors"

// FeeKind distinguishes single-session bookings from prepaid packs.
type FeeKind string

const (
	FeeKindSingle FeeKind = "SINGLE"
	FeeKindPack   FeeKind = "PACK"
)

// RoundingMode is applied at every rounding step of a fee computation.
type RoundingMode string

const (
	RoundingNearest RoundingMode = "NEAREST" // half away from zero
	RoundingUp      RoundingMode = "UP"
	RoundingDown    RoundingMode = "DOWN"
)

// Valid reports whether m is a known rounding mode.
func (m RoundingMode) Valid() bool {
	switch m {
	case RoundingNearest, RoundingUp, RoundingDown:
		return true
	}
	return false
}

// ErrBreakdownUnbalanced is returned by FeeBreakdown.Validate when the money does not add up.
var ErrBreakdownUnbalanced = errors.New("fee breakdown does not balance")

// ErrNegativeMargin is returned by FeeBreakdown.Validate when the platform fee is below zero.
var ErrNegativeMargin = errors.New("fee breakdown has negative platform margin")

// FeeBreakdown is the immutable split of a buyer payment, snapshotted into an order at creation.
// All amounts are in minor currency units.
type FeeBreakdown struct {
	Kind          FeeKind
	SessionsCount int

	ProviderNetCents     int64
	ProcessorFeeCents    int64
	PlatformFeeCents     int64
	BuyerServiceFeeCents int64
	BuyerTotalCents      int64

	// RawMarginCents is the platform margin before it was floored at zero.
	RawMarginCents int64

	// Pack only.
	PerSessionPayoutCents int64
	PayoutRemainderCents  int64

	Currency     string
	RoundingMode RoundingMode
}

// Validate checks the money invariants of a breakdown.
func (b FeeBreakdown) Validate() error {
	if b.PlatformFeeCents < 0 {
		return ErrNegativeMargin
	}
	if b.BuyerServiceFeeCents != b.ProcessorFeeCents+b.PlatformFeeCents {
		return ErrBreakdownUnbalanced
	}
	if b.BuyerTotalCents != b.ProviderNetCents+b.ProcessorFeeCents+b.PlatformFeeCents {
		return ErrBreakdownUnbalanced
	}
	if b.Kind == FeeKindPack {
		if b.SessionsCount <= 0 {
			return ErrBreakdownUnbalanced
		}
		if b.PerSessionPayoutCents*int64(b.SessionsCount)+b.PayoutRemainderCents != b.ProviderNetCents {
			return ErrBreakdownUnbalanced
		}
	}
	return nil
}

// MarginAnomaly reports whether the platform margin warrants an audit record.
func (b FeeBreakdown) MarginAnomaly() (AnomalyCategory, Severity, bool) {
	switch {
	case b.PlatformFeeCents < 0:
		return AnomalyNegativeMargin, SeverityError, true
	case b.PlatformFeeCents == 0:
		return AnomalyZeroMargin, SeverityWarn, true
	}
	return "", "", false
}

// SessionPayouts returns the payout of each pack session; the first session carries the remainder.
func (b FeeBreakdown) SessionPayouts() []int64 {
	if b.Kind != FeeKindPack || b.SessionsCount <= 0 {
		return []int64{b.ProviderNetCents}
	}
	payouts := make([]int64, b.SessionsCount)
	for i := range payouts {
		payouts[i] = b.PerSessionPayoutCents
	}
	payouts[0] += b.PayoutRemainderCents
	return payouts
}
