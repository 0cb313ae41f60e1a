package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighestPriceOnlyRatchetsUp(t *testing.T) {
	pos := NewPosition(1, "mint", "TEST", StrategyDip, 1.0, 1000, 0.5, 0.05)

	pos.Evaluate(1.5)
	assert.Equal(t, 1.5, pos.HighestPrice)

	pos.Evaluate(1.2)
	assert.Equal(t, 1.5, pos.HighestPrice, "high-water mark must not move down")

	pos.Evaluate(1.6)
	assert.Equal(t, 1.6, pos.HighestPrice)
}

func TestTrailingStopTightensWithProfit(t *testing.T) {
	// Entry at 1.0, price doubled and peaked at 2.2: +120% puts the
	// trailing retrace at 5%, so 2.2 * 0.95 = 2.09 is the floor.
	pos := NewPosition(1, "mint", "TEST", StrategyDip, 1.0, 1000, 0.5, 0.05)
	pos.Evaluate(2.2)

	assert.Equal(t, ExitNone, pos.Evaluate(2.10), "still above the 5%% trail")
	assert.Equal(t, ExitTrailingStop, pos.Evaluate(2.05), "5%% retrace from 2.2 must sell")
}

func TestTrailingBrackets(t *testing.T) {
	tests := []struct {
		peakProfitPct float64
		want          float64
	}{
		{150, 5},
		{60, 8},
		{30, 12},
		{10, 15},
		{-5, 25},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trailingPct(tt.peakProfitPct), "peak profit %.0f%%", tt.peakProfitPct)
	}
}

func TestATRStopFiresBeforeProfit(t *testing.T) {
	// Dip stop sits 1.5 ATR under entry: 1.0 - 1.5*0.1 = 0.85.
	pos := NewPosition(1, "mint", "TEST", StrategyDip, 1.0, 1000, 0.5, 0.1)

	assert.Equal(t, ExitNone, pos.Evaluate(0.90))
	assert.Equal(t, ExitATRStop, pos.Evaluate(0.84))
}

func TestATRStopDisabledOnceInProfit(t *testing.T) {
	pos := NewPosition(1, "mint", "TEST", StrategyDip, 1.0, 1000, 0.5, 0.1)
	pos.Evaluate(1.10) // high above entry, trailing owns the exit now

	// 0.84 is under the old ATR stop but also way past the loss-bracket
	// trail from the 1.10 high (1.10 * 0.85 = 0.935).
	assert.Equal(t, ExitTrailingStop, pos.Evaluate(0.84))
}

func TestZeroATREntryHasNoHardStop(t *testing.T) {
	// Sniped and manual entries open without candle history, so the
	// position has no ATR. A flat or slightly-down first tick must not
	// trip the hard stop; only the wide loss-bracket trail applies.
	pos := NewPosition(1, "mint", "TEST", StrategyDip, 1.0, 1000, 0.5, 0)

	assert.Zero(t, pos.StopLoss)
	assert.Zero(t, pos.TakeProfit)
	assert.Equal(t, ExitNone, pos.Evaluate(1.0), "flat tick at entry must hold")
	assert.Equal(t, ExitNone, pos.Evaluate(0.90))
	assert.Equal(t, ExitTrailingStop, pos.Evaluate(0.74), "25%% retrace still sells")
}

func TestConcurrentEvaluateAndHigh(t *testing.T) {
	pos := NewPosition(1, "mint", "TEST", StrategyDip, 1.0, 1000, 0.5, 0.05)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			pos.Evaluate(1.0 + float64(i)/10000)
		}
	}()
	for i := 0; i < 1000; i++ {
		_ = pos.High()
	}
	<-done

	assert.InDelta(t, 1.0999, pos.High(), 1e-9)
}

func TestBreakoutGetsWiderStop(t *testing.T) {
	dip := NewPosition(1, "mint", "TEST", StrategyDip, 1.0, 1000, 0.5, 0.1)
	breakout := NewPosition(1, "mint", "TEST", StrategyBreakout, 1.0, 1000, 0.5, 0.1)

	assert.InDelta(t, 0.85, dip.StopLoss, 1e-9)
	assert.InDelta(t, 0.80, breakout.StopLoss, 1e-9)
	assert.Less(t, breakout.StopLoss, dip.StopLoss)
}

func TestBookFindAndRemove(t *testing.T) {
	book := NewBook()
	pos := NewPosition(7, "mintA", "A", StrategyDip, 1.0, 10, 0.1, 0.01)
	book.Add(pos)

	require.NotNil(t, book.Find(7, "mintA"))
	assert.Nil(t, book.Find(7, "mintB"))
	assert.Nil(t, book.Find(8, "mintA"))
	assert.Equal(t, 1, book.CountFor(7))

	removed := book.Remove(pos.ID)
	require.NotNil(t, removed)
	assert.Equal(t, pos.ID, removed.ID)
	assert.Nil(t, book.Find(7, "mintA"))
	assert.Equal(t, 0, book.CountFor(7))
}

func TestBookSnapshotIsACopy(t *testing.T) {
	book := NewBook()
	book.Add(NewPosition(1, "m1", "A", StrategyDip, 1, 1, 0.1, 0.01))
	book.Add(NewPosition(2, "m2", "B", StrategyBreakout, 1, 1, 0.1, 0.01))

	snap := book.Snapshot()
	assert.Len(t, snap, 2)

	book.Remove(snap[0].ID)
	assert.Len(t, snap, 2, "snapshot must not observe later mutations")
}
