package engine

import "math"

// Indicator math runs on float64. Precision at the sub-lamport level is
// irrelevant for signal generation; exact arithmetic is reserved for
// balances and persisted trade records.

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of the last period values,
// seeded with an SMA.
func EMA(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	multiplier := 2.0 / (float64(period) + 1.0)
	ema := SMA(values[:period], period)
	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
	}
	return ema
}

// RSI returns the relative strength index over the last period changes.
func RSI(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50 // neutral until enough history
	}

	var gains, losses float64
	recent := values[len(values)-period-1:]
	for i := 1; i < len(recent); i++ {
		change := recent[i] - recent[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - (100 / (1 + rs))
}

// ATR returns the average true range over the last period candles.
func ATR(candles []Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}
	recent := candles[len(candles)-period-1:]
	sum := 0.0
	for i := 1; i < len(recent); i++ {
		high := recent[i].High
		low := recent[i].Low
		prevClose := recent[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		sum += tr
	}
	return sum / float64(period)
}

// Bollinger returns the middle, upper and lower bands over period values
// with stdDev standard deviations.
func Bollinger(values []float64, period int, stdDev float64) (middle, upper, lower float64) {
	if len(values) < period {
		return 0, 0, 0
	}
	middle = SMA(values, period)

	variance := 0.0
	for _, v := range values[len(values)-period:] {
		d := v - middle
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(period))
	return middle, middle + stdDev*sigma, middle - stdDev*sigma
}

// VolumeRatio compares the latest candle volume against the average of
// the preceding period candles.
func VolumeRatio(candles []Candle, period int) float64 {
	if len(candles) < period+1 {
		return 1
	}
	prior := candles[len(candles)-period-1 : len(candles)-1]
	sum := 0.0
	for _, c := range prior {
		sum += c.Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 1
	}
	return candles[len(candles)-1].Volume / avg
}
