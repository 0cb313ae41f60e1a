package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 4.0, SMA(values, 3))
	assert.Equal(t, 3.0, SMA(values, 5))
	assert.Equal(t, 0.0, SMA(values, 6), "not enough history")
}

func TestEMAFollowsTrend(t *testing.T) {
	rising := make([]float64, 40)
	for i := range rising {
		rising[i] = float64(i + 1)
	}
	ema := EMA(rising, 20)
	assert.Greater(t, ema, SMA(rising, 40), "EMA weights recent values harder")
	assert.Less(t, ema, rising[len(rising)-1])
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 20)
	falling := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i + 1)
		falling[i] = float64(20 - i)
	}

	assert.Equal(t, 100.0, RSI(rising, 14), "all gains")
	assert.InDelta(t, 0.0, RSI(falling, 14), 1e-9, "all losses")
	assert.Equal(t, 50.0, RSI([]float64{1, 2}, 14), "insufficient history is neutral")
}

func TestBollingerBandsBracketMean(t *testing.T) {
	values := []float64{10, 11, 9, 10, 12, 8, 10, 11, 9, 10, 10, 11, 9, 10, 12, 8, 10, 11, 9, 10}
	mid, upper, lower := Bollinger(values, 20, 2.0)

	assert.InDelta(t, 10.0, mid, 0.01)
	assert.Greater(t, upper, mid)
	assert.Less(t, lower, mid)
	assert.InDelta(t, upper-mid, mid-lower, 1e-9, "bands are symmetric")
}

func TestATRPositiveForVolatileSeries(t *testing.T) {
	candles := make([]Candle, 20)
	for i := range candles {
		base := 10.0 + float64(i%3)
		candles[i] = Candle{Open: base, High: base + 1, Low: base - 1, Close: base + 0.5}
	}
	atr := ATR(candles, 14)
	assert.Greater(t, atr, 0.0)
	assert.LessOrEqual(t, atr, 4.0)
}

func TestVolumeRatio(t *testing.T) {
	candles := make([]Candle, 21)
	for i := range candles {
		candles[i] = Candle{Volume: 100}
	}
	candles[20].Volume = 300
	assert.InDelta(t, 3.0, VolumeRatio(candles, 20), 1e-9)

	assert.Equal(t, 1.0, VolumeRatio(candles[:5], 20), "insufficient history is neutral")
}
