package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicksRollIntoCandles(t *testing.T) {
	agg := NewAggregator()

	prices := []float64{10, 12, 9, 11, 10.5}
	for _, p := range prices {
		agg.Record("mint", p, 100)
	}

	candles := agg.Candles("mint")
	require.Len(t, candles, 1)
	assert.Equal(t, 10.0, candles[0].Open)
	assert.Equal(t, 12.0, candles[0].High)
	assert.Equal(t, 9.0, candles[0].Low)
	assert.Equal(t, 10.5, candles[0].Close)
	assert.Equal(t, 500.0, candles[0].Volume)
}

func TestPartialCandleNotVisible(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 4; i++ {
		agg.Record("mint", 10, 1)
	}
	assert.Empty(t, agg.Candles("mint"))
	assert.Empty(t, agg.Tracked())

	agg.Record("mint", 10, 1)
	assert.Len(t, agg.Candles("mint"), 1)
	assert.Equal(t, []string{"mint"}, agg.Tracked())
}

func TestHistoryCapped(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < (maxCandles+50)*ticksPerCandle; i++ {
		agg.Record("mint", float64(i), 1)
	}

	candles := agg.Candles("mint")
	assert.Len(t, candles, maxCandles)
	// The oldest candles were dropped, so the first close is late.
	assert.Greater(t, candles[0].Close, float64(ticksPerCandle*40))
}

func TestDropRemovesSeries(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < ticksPerCandle; i++ {
		agg.Record("mint", 1, 1)
	}
	require.NotEmpty(t, agg.Candles("mint"))

	agg.Drop("mint")
	assert.Empty(t, agg.Candles("mint"))
}

func TestSeriesIsolatedPerMint(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < ticksPerCandle; i++ {
		agg.Record(fmt.Sprintf("mint%d", i%2), float64(i), 1)
	}
	// Neither mint reached a full candle on its own.
	assert.Empty(t, agg.Candles("mint0"))
	assert.Empty(t, agg.Candles("mint1"))
}
