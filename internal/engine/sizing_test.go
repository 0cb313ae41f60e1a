package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoorTierSizing(t *testing.T) {
	// 0.03 SOL balance: (0.03 - 0.005 reserve) * 90% = 0.0225.
	assert.InDelta(t, 0.0225, BaseSize(0.03), 1e-9)
}

func TestPoorTierCap(t *testing.T) {
	// Just under the tier ceiling, the 0.05 cap binds before the
	// percentage does: (0.059 - 0.005) * 0.9 = 0.0486 < cap, so no.
	// Use a value where the raw size would exceed the cap.
	size := BaseSize(0.0599)
	assert.LessOrEqual(t, size, poorTierCap)
}

func TestMediumTierSizing(t *testing.T) {
	// 1.0 SOL: (1.0 - 0.005) * 70% = 0.6965, capped at 0.5.
	assert.InDelta(t, 0.5, BaseSize(1.0), 1e-9)

	// 0.5 SOL: (0.5 - 0.005) * 70% = 0.3465, under the cap.
	assert.InDelta(t, 0.3465, BaseSize(0.5), 1e-9)
}

func TestRichTierSizing(t *testing.T) {
	// 2.0 SOL: (2.0 - 0.005) * 35% = 0.69825.
	assert.InDelta(t, 0.69825, BaseSize(2.0), 1e-9)

	// 10 SOL: (10 - 0.005) * 35% = 3.49825, capped at 2.5.
	assert.InDelta(t, 2.5, BaseSize(10), 1e-9)
}

func TestDustBalanceSizesToZero(t *testing.T) {
	assert.Equal(t, 0.0, BaseSize(0.004))
	assert.Equal(t, 0.0, BaseSize(0.005))
	assert.Equal(t, 0.0, BaseSize(0))
}

func TestBreakoutSizedBelowDip(t *testing.T) {
	dip := Size(0.5, StrategyDip, 0, 1.0)
	breakout := Size(0.5, StrategyBreakout, 0, 1.0)
	assert.InDelta(t, dip*0.8, breakout, 1e-9)
}

func TestVolatilityHaircut(t *testing.T) {
	assert.Equal(t, 1.0, VolatilityFactor(2))
	assert.Equal(t, 0.85, VolatilityFactor(4))
	assert.Equal(t, 0.70, VolatilityFactor(6))

	calm := Size(0.5, StrategyDip, 1, 1.0)
	hot := Size(0.5, StrategyDip, 6, 1.0)
	assert.InDelta(t, calm*0.7, hot, 1e-9)
}

func TestReinvestmentNeverExceedsTierBase(t *testing.T) {
	// A hot streak factor above 1 must not push size past the tier
	// allowance.
	size := Size(0.5, StrategyDip, 0, 1.25)
	assert.LessOrEqual(t, size, BaseSize(0.5)+1e-12)
}
