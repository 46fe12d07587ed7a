package pricing

import (
	"fmt"
	"strings"

	"coachpay/internal/domain"
)

// PPM is the fixed-point scale of every percentage: 1% == 10_000 PPM.
const PPM int64 = 1_000_000

// MaxAmountCents bounds inputs so that amount*PPM cannot overflow int64.
const MaxAmountCents int64 = 1_000_000_000_000

// FeeBasis selects the amount the processor percentage is applied to.
type FeeBasis string

const (
	// FeeBasisNet applies the processor percentage to the provider net amount.
	FeeBasisNet FeeBasis = "NET"
	// FeeBasisGross applies it to the buyer-facing preliminary total (net + platform markup).
	FeeBasisGross FeeBasis = "GROSS"
)

// FeeConfig is the explicit fee configuration passed to the calculator at call time.
// Percentages are parts-per-million so that all arithmetic stays in integers.
type FeeConfig struct {
	ProcessorPercentPPM int64
	ProcessorFixedCents int64
	ProcessorFeeBasis   FeeBasis

	PlatformSinglePercentPPM int64
	PlatformPackFixedCents   int64
	PlatformPackPercentPPM   int64

	// AbsorbProcessorFee makes the platform pay the processor out of its own markup
	// instead of passing the processor fee through to the buyer.
	AbsorbProcessorFee bool

	Rounding domain.RoundingMode
	Currency string
}

// DefaultFeeConfig returns the deployment defaults: processor 1.5% + 25, single 5%, pack 300 + 2%.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		ProcessorPercentPPM:      15_000,
		ProcessorFixedCents:      25,
		ProcessorFeeBasis:        FeeBasisNet,
		PlatformSinglePercentPPM: 50_000,
		PlatformPackFixedCents:   300,
		PlatformPackPercentPPM:   20_000,
		Rounding:                 domain.RoundingNearest,
		Currency:                 "EUR",
	}
}

// Validate rejects configurations the calculator cannot apply safely.
func (c FeeConfig) Validate() error {
	percents := []struct {
		name string
		ppm  int64
	}{
		{"processor percent", c.ProcessorPercentPPM},
		{"platform single percent", c.PlatformSinglePercentPPM},
		{"platform pack percent", c.PlatformPackPercentPPM},
	}
	for _, p := range percents {
		if p.ppm < 0 || p.ppm > PPM {
			return fmt.Errorf("%w: %s %d ppm out of range", ErrInvalidFeeConfig, p.name, p.ppm)
		}
	}
	if c.ProcessorFixedCents < 0 || c.ProcessorFixedCents > MaxAmountCents {
		return fmt.Errorf("%w: processor fixed fee %d", ErrInvalidFeeConfig, c.ProcessorFixedCents)
	}
	if c.PlatformPackFixedCents < 0 || c.PlatformPackFixedCents > MaxAmountCents {
		return fmt.Errorf("%w: pack fixed fee %d", ErrInvalidFeeConfig, c.PlatformPackFixedCents)
	}
	if c.ProcessorFeeBasis != FeeBasisNet && c.ProcessorFeeBasis != FeeBasisGross {
		return fmt.Errorf("%w: fee basis %q", ErrInvalidFeeConfig, c.ProcessorFeeBasis)
	}
	if !c.Rounding.Valid() {
		return fmt.Errorf("%w: rounding mode %q", ErrInvalidFeeConfig, c.Rounding)
	}
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("%w: currency %q", ErrInvalidFeeConfig, c.Currency)
	}
	return nil
}
