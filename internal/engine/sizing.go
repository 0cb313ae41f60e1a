package engine

// Balance tiers in SOL. Small wallets swing hard to grow, large wallets
// protect capital.
const (
	feeReserveSOL = 0.005

	poorTierMax   = 0.06
	mediumTierMax = 1.1

	poorTierPct   = 0.90
	mediumTierPct = 0.70
	richTierPct   = 0.35

	poorTierCap   = 0.05
	mediumTierCap = 0.5
	richTierCap   = 2.5

	// Breakout entries chase momentum; they get a smaller clip than
	// dip entries at the same balance.
	breakoutSizeFactor = 0.80
)

// BaseSize returns the SOL to commit for a dip entry given a wallet
// balance, before volatility and performance adjustments. The fee
// reserve is always held back; balances at or under it size to zero.
func BaseSize(balanceSOL float64) float64 {
	available := balanceSOL - feeReserveSOL
	if available <= 0 {
		return 0
	}

	var size, cap_ float64
	switch {
	case balanceSOL < poorTierMax:
		size, cap_ = available*poorTierPct, poorTierCap
	case balanceSOL < mediumTierMax:
		size, cap_ = available*mediumTierPct, mediumTierCap
	default:
		size, cap_ = available*richTierPct, richTierCap
	}
	if size > cap_ {
		size = cap_
	}
	return size
}

// VolatilityFactor haircuts size when the ATR runs hot relative to
// price.
func VolatilityFactor(volatilityPct float64) float64 {
	switch {
	case volatilityPct > 5:
		return 0.70
	case volatilityPct > 3:
		return 0.85
	default:
		return 1.0
	}
}

// Size returns the final SOL amount for an entry: tier base, strategy
// factor, volatility haircut and the reinvestment factor from recent
// performance.
func Size(balanceSOL float64, strategy Strategy, volatilityPct float64, reinvestment float64) float64 {
	size := BaseSize(balanceSOL)
	if strategy == StrategyBreakout {
		size *= breakoutSizeFactor
	}
	size *= VolatilityFactor(volatilityPct)
	size *= reinvestment

	// Never size past what the tier logic already allowed.
	if max := BaseSize(balanceSOL); size > max {
		size = max
	}
	return size
}
