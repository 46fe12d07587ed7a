// Package pricing splits a buyer payment between the coach, the platform and the processor.
// Every function here is pure: no I/O, no clock, no globals.
package pricing

import (
	"strings"

	"coachpay/internal/domain"
)

// ComputeSingleSessionFee returns the breakdown for one session whose coach is owed providerNetCents.
func ComputeSingleSessionFee(providerNetCents int64, cfg FeeConfig) (domain.FeeBreakdown, error) {
	if err := checkInputs(providerNetCents, cfg); err != nil {
		return domain.FeeBreakdown{}, err
	}

	markup := applyPercent(providerNetCents, cfg.PlatformSinglePercentPPM, cfg.Rounding)
	b := split(providerNetCents, markup, cfg)
	b.Kind = domain.FeeKindSingle
	b.SessionsCount = 1
	return b, nil
}

// ComputePackFee returns the breakdown for a pack of sessionsCount sessions. The markup is a fixed
// pack fee plus a percentage, and the payout is divided per session with the remainder kept whole.
func ComputePackFee(providerNetCents int64, sessionsCount int, cfg FeeConfig) (domain.FeeBreakdown, error) {
	if err := checkInputs(providerNetCents, cfg); err != nil {
		return domain.FeeBreakdown{}, err
	}
	if sessionsCount <= 0 {
		return domain.FeeBreakdown{}, ErrInvalidSessionCount
	}

	markup := cfg.PlatformPackFixedCents + applyPercent(providerNetCents, cfg.PlatformPackPercentPPM, cfg.Rounding)
	b := split(providerNetCents, markup, cfg)
	b.Kind = domain.FeeKindPack
	b.SessionsCount = sessionsCount

	n := int64(sessionsCount)
	b.PerSessionPayoutCents = providerNetCents / n
	b.PayoutRemainderCents = providerNetCents - b.PerSessionPayoutCents*n
	return b, nil
}

func checkInputs(providerNetCents int64, cfg FeeConfig) error {
	if providerNetCents <= 0 || providerNetCents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return cfg.Validate()
}

// split derives the processor and platform fees from the platform markup.
func split(net, markup int64, cfg FeeConfig) domain.FeeBreakdown {
	basis := net
	if cfg.ProcessorFeeBasis == FeeBasisGross {
		basis = net + markup
	}
	processorFee := cfg.ProcessorFixedCents + applyPercent(basis, cfg.ProcessorPercentPPM, cfg.Rounding)

	grossMarkup := markup
	if !cfg.AbsorbProcessorFee {
		grossMarkup += processorFee
	}
	rawMargin := grossMarkup - processorFee
	platformFee := rawMargin
	if platformFee < 0 {
		platformFee = 0
	}

	serviceFee := processorFee + platformFee
	return domain.FeeBreakdown{
		ProviderNetCents:     net,
		ProcessorFeeCents:    processorFee,
		PlatformFeeCents:     platformFee,
		BuyerServiceFeeCents: serviceFee,
		BuyerTotalCents:      net + serviceFee,
		RawMarginCents:       rawMargin,
		Currency:             strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		RoundingMode:         cfg.Rounding,
	}
}

// applyPercent returns amount*ppm/PPM rounded with mode.
func applyPercent(amount, ppm int64, mode domain.RoundingMode) int64 {
	return roundDiv(amount*ppm, PPM, mode)
}

// roundDiv divides a non-negative numerator by a positive denominator.
func roundDiv(num, den int64, mode domain.RoundingMode) int64 {
	q, r := num/den, num%den
	if r == 0 {
		return q
	}
	switch mode {
	case domain.RoundingUp:
		return q + 1
	case domain.RoundingDown:
		return q
	default:
		if 2*r >= den {
			return q + 1
		}
		return q
	}
}
