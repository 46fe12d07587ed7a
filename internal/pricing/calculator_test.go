package pricing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachpay/internal/domain"
)

var roundingModes = []domain.RoundingMode{domain.RoundingNearest, domain.RoundingUp, domain.RoundingDown}

func TestComputeSingleSessionFee_Scenario(t *testing.T) {
	t.Parallel()

	b, err := ComputeSingleSessionFee(10000, DefaultFeeConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.FeeKindSingle, b.Kind)
	assert.EqualValues(t, 175, b.ProcessorFeeCents)
	assert.EqualValues(t, 500, b.PlatformFeeCents)
	assert.EqualValues(t, 675, b.BuyerServiceFeeCents)
	assert.EqualValues(t, 10675, b.BuyerTotalCents)
	assert.Equal(t, "EUR", b.Currency)
	assert.NoError(t, b.Validate())
}

func TestComputePackFee_Scenario(t *testing.T) {
	t.Parallel()

	b, err := ComputePackFee(50000, 5, DefaultFeeConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.FeeKindPack, b.Kind)
	assert.EqualValues(t, 775, b.ProcessorFeeCents)
	assert.EqualValues(t, 1300, b.PlatformFeeCents)
	assert.EqualValues(t, 52075, b.BuyerTotalCents)
	assert.EqualValues(t, 10000, b.PerSessionPayoutCents)
	assert.EqualValues(t, 0, b.PayoutRemainderCents)
}

func TestComputePackFee_Remainder(t *testing.T) {
	t.Parallel()

	b, err := ComputePackFee(10001, 3, DefaultFeeConfig())
	require.NoError(t, err)

	assert.EqualValues(t, 3333, b.PerSessionPayoutCents)
	assert.EqualValues(t, 2, b.PayoutRemainderCents)
	assert.Equal(t, []int64{3335, 3333, 3333}, b.SessionPayouts())
}

func TestCompute_InvalidInputs(t *testing.T) {
	t.Parallel()

	cfg := DefaultFeeConfig()

	for _, amount := range []int64{0, -1, MaxAmountCents + 1} {
		_, err := ComputeSingleSessionFee(amount, cfg)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)

		_, err = ComputePackFee(amount, 2, cfg)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}

	for _, n := range []int{0, -3} {
		_, err := ComputePackFee(1000, n, cfg)
		assert.ErrorIs(t, err, ErrInvalidSessionCount, "sessions %d", n)
	}

	bad := cfg
	bad.Rounding = "SIDEWAYS"
	_, err := ComputeSingleSessionFee(1000, bad)
	assert.ErrorIs(t, err, ErrInvalidFeeConfig)

	bad = cfg
	bad.ProcessorPercentPPM = PPM + 1
	_, err = ComputeSingleSessionFee(1000, bad)
	assert.ErrorIs(t, err, ErrInvalidFeeConfig)
}

func TestCompute_GrossBasis(t *testing.T) {
	t.Parallel()

	cfg := DefaultFeeConfig()
	cfg.ProcessorFeeBasis = FeeBasisGross

	b, err := ComputeSingleSessionFee(10000, cfg)
	require.NoError(t, err)

	// 1.5% of 10500 is 157.5, rounded half away from zero.
	assert.EqualValues(t, 183, b.ProcessorFeeCents)
	assert.EqualValues(t, 500, b.PlatformFeeCents)
	assert.EqualValues(t, 10683, b.BuyerTotalCents)

	cfg.Rounding = domain.RoundingDown
	b, err = ComputeSingleSessionFee(10000, cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 182, b.ProcessorFeeCents)
}

func TestCompute_AbsorbedFeeClampsMargin(t *testing.T) {
	t.Parallel()

	cfg := DefaultFeeConfig()
	cfg.AbsorbProcessorFee = true
	cfg.ProcessorFixedCents = 1000 // processor cost exceeds the 5% markup on small orders

	b, err := ComputeSingleSessionFee(2000, cfg)
	require.NoError(t, err)

	assert.EqualValues(t, 1030, b.ProcessorFeeCents)
	assert.EqualValues(t, 0, b.PlatformFeeCents)
	assert.EqualValues(t, 100-1030, b.RawMarginCents)
	assert.EqualValues(t, 2000+1030, b.BuyerTotalCents)
	assert.NoError(t, b.Validate())

	category, severity, ok := b.MarginAnomaly()
	assert.True(t, ok)
	assert.Equal(t, domain.AnomalyZeroMargin, category)
	assert.Equal(t, domain.SeverityWarn, severity)
}

func TestCompute_BalanceInvariant(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	amounts := []int64{1, 2, 3, 99, 100, 101, 333, 9999, 10000, 10001, 123457, MaxAmountCents}
	for i := 0; i < 200; i++ {
		amounts = append(amounts, 1+rng.Int63n(10_000_000))
	}

	for _, mode := range roundingModes {
		for _, basis := range []FeeBasis{FeeBasisNet, FeeBasisGross} {
			for _, absorb := range []bool{false, true} {
				cfg := DefaultFeeConfig()
				cfg.Rounding = mode
				cfg.ProcessorFeeBasis = basis
				cfg.AbsorbProcessorFee = absorb

				for _, net := range amounts {
					single, err := ComputeSingleSessionFee(net, cfg)
					require.NoError(t, err)
					assertBalanced(t, net, single)

					sessions := 1 + int(net%7)
					pack, err := ComputePackFee(net, sessions, cfg)
					require.NoError(t, err)
					assertBalanced(t, net, pack)
					assert.Equal(t, net, pack.PerSessionPayoutCents*int64(sessions)+pack.PayoutRemainderCents)
					assert.GreaterOrEqual(t, pack.PayoutRemainderCents, int64(0))
				}
			}
		}
	}
}

func TestCompute_AdversarialConfigNeverNegative(t *testing.T) {
	t.Parallel()

	cfg := FeeConfig{
		ProcessorPercentPPM:      PPM,
		ProcessorFixedCents:      5000,
		ProcessorFeeBasis:        FeeBasisGross,
		PlatformSinglePercentPPM: 0,
		PlatformPackFixedCents:   0,
		PlatformPackPercentPPM:   0,
		AbsorbProcessorFee:       true,
		Rounding:                 domain.RoundingUp,
		Currency:                 "usd",
	}

	for _, net := range []int64{1, 50, 10000, 987654} {
		b, err := ComputeSingleSessionFee(net, cfg)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b.PlatformFeeCents, int64(0))
		assert.Less(t, b.RawMarginCents, int64(0))
		assertBalanced(t, net, b)
		assert.Equal(t, "USD", b.Currency)

		p, err := ComputePackFee(net, 4, cfg)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.PlatformFeeCents, int64(0))
	}
}

func TestCompute_IsPure(t *testing.T) {
	t.Parallel()

	cfg := DefaultFeeConfig()
	cfg.Rounding = domain.RoundingUp

	first, err := ComputePackFee(77777, 6, cfg)
	require.NoError(t, err)
	second, err := ComputePackFee(77777, 6, cfg)
	require.NoError(t, err)

	assert.True(t, first == second)
}

func TestRoundDiv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		num, den int64
		mode     domain.RoundingMode
		want     int64
	}{
		{15, 10, domain.RoundingNearest, 2},
		{14, 10, domain.RoundingNearest, 1},
		{11, 10, domain.RoundingUp, 2},
		{19, 10, domain.RoundingDown, 1},
		{20, 10, domain.RoundingUp, 2},
		{0, 10, domain.RoundingUp, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundDiv(tt.num, tt.den, tt.mode), "%d/%d %s", tt.num, tt.den, tt.mode)
	}
}

func assertBalanced(t *testing.T, net int64, b domain.FeeBreakdown) {
	t.Helper()
	assert.Equal(t, net, b.ProviderNetCents)
	assert.Equal(t, b.ProviderNetCents+b.ProcessorFeeCents+b.PlatformFeeCents, b.BuyerTotalCents)
	assert.Equal(t, b.ProcessorFeeCents+b.PlatformFeeCents, b.BuyerServiceFeeCents)
	assert.GreaterOrEqual(t, b.PlatformFeeCents, int64(0))
	assert.NoError(t, b.Validate())
}
