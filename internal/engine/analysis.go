package engine

// Indicator periods and entry thresholds. Dip entries tolerate a lower
// score because the ATR stop sits tighter; breakouts must earn their
// wider stop.
const (
	emaFastPeriod   = 20
	emaSlowPeriod   = 50
	rsiPeriod       = 14
	atrPeriod       = 14
	bollingerPeriod = 20
	bollingerStdDev = 2.0
	volumePeriod    = 20

	minDipScore      = 55.0
	minBreakoutScore = 65.0
)

// Strategy is the entry style that opened a position. It decides stop
// distances and sizing for the whole life of the trade.
type Strategy string

const (
	StrategyDip      Strategy = "DIP"
	StrategyBreakout Strategy = "BREAKOUT"
)

// Analysis is an indicator snapshot over one token's candle history.
type Analysis struct {
	Price          float64
	EMAFast        float64
	EMASlow        float64
	RSI            float64
	ATR            float64
	BollingerMid   float64
	BollingerUpper float64
	BollingerLower float64
	VolumeRatio    float64
}

// VolatilityPct is the ATR as a percentage of price.
func (a *Analysis) VolatilityPct() float64 {
	if a.Price == 0 {
		return 0
	}
	return a.ATR / a.Price * 100
}

// Analyze computes the indicator snapshot for a candle series. Returns
// nil until enough history exists for the slowest indicator.
func Analyze(candles []Candle) *Analysis {
	if len(candles) < emaSlowPeriod {
		return nil
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	mid, upper, lower := Bollinger(closes, bollingerPeriod, bollingerStdDev)
	return &Analysis{
		Price:          closes[len(closes)-1],
		EMAFast:        EMA(closes, emaFastPeriod),
		EMASlow:        EMA(closes, emaSlowPeriod),
		RSI:            RSI(closes, rsiPeriod),
		ATR:            ATR(candles, atrPeriod),
		BollingerMid:   mid,
		BollingerUpper: upper,
		BollingerLower: lower,
		VolumeRatio:    VolumeRatio(candles, volumePeriod),
	}
}

// Signal is a scored entry opportunity.
type Signal struct {
	Strategy Strategy
	Score    float64
	Analysis *Analysis
}

// DipScore rates an oversold pullback entry out of 100.
func DipScore(a *Analysis, candles []Candle) float64 {
	score := 0.0

	if a.RSI < 30 {
		score += 25
	} else if a.RSI < 40 {
		score += 15
	}
	if a.BollingerLower > 0 && a.Price <= a.BollingerLower {
		score += 20
	}
	// Price holding near the slow EMA reads as support, not collapse.
	if a.EMASlow > 0 && a.Price >= a.EMASlow*0.95 {
		score += 15
	}
	if a.VolumeRatio > 1.5 {
		score += 20
	}
	// A green latest candle suggests the dip is being bought.
	if last := candles[len(candles)-1]; last.Close > last.Open {
		score += 20
	}
	return score
}

// BreakoutScore rates a momentum continuation entry out of 100.
func BreakoutScore(a *Analysis, candles []Candle) float64 {
	score := 0.0

	if a.BollingerUpper > 0 && a.Price >= a.BollingerUpper {
		score += 25
	}
	if a.EMAFast > a.EMASlow {
		score += 20
	}
	// Overbought breakouts chase tops; the band keeps entries on the
	// early side of the move.
	if a.RSI >= 50 && a.RSI <= 70 {
		score += 15
	}
	if a.VolumeRatio > 2.0 {
		score += 25
	}
	if len(candles) >= 2 && candles[len(candles)-1].High > candles[len(candles)-2].High {
		score += 15
	}
	return score
}

// Evaluate scores both entry styles and returns the best qualifying
// signal, nil when neither clears its threshold.
func Evaluate(candles []Candle) *Signal {
	a := Analyze(candles)
	if a == nil {
		return nil
	}

	dip := DipScore(a, candles)
	breakout := BreakoutScore(a, candles)

	best := &Signal{Strategy: StrategyDip, Score: dip, Analysis: a}
	if breakout > dip {
		best = &Signal{Strategy: StrategyBreakout, Score: breakout, Analysis: a}
	}

	switch best.Strategy {
	case StrategyDip:
		if best.Score < minDipScore {
			return nil
		}
	case StrategyBreakout:
		if best.Score < minBreakoutScore {
			return nil
		}
	}
	return best
}
