package engine

import (
	"sync"
	"time"
)

const (
	// ticksPerCandle is how many price ticks aggregate into one candle.
	ticksPerCandle = 5
	// maxCandles caps per-token history so long-running sessions stay
	// bounded.
	maxCandles = 200
)

// Candle is one aggregated OHLCV bar.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// Series aggregates raw ticks into candles for one token.
type Series struct {
	candles []Candle
	pending []float64
	volume  float64
}

// Aggregator maintains candle series keyed by token mint.
type Aggregator struct {
	mu     sync.Mutex
	series map[string]*Series
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{series: make(map[string]*Series)}
}

// Record adds a price tick for a token. Every ticksPerCandle ticks roll
// into a new candle; history beyond maxCandles is discarded oldest-first.
func (a *Aggregator) Record(mint string, price, volume float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[mint]
	if !ok {
		s = &Series{}
		a.series[mint] = s
	}

	s.pending = append(s.pending, price)
	s.volume += volume
	if len(s.pending) < ticksPerCandle {
		return
	}

	c := Candle{
		Open:   s.pending[0],
		High:   s.pending[0],
		Low:    s.pending[0],
		Close:  s.pending[len(s.pending)-1],
		Volume: s.volume,
		Time:   time.Now(),
	}
	for _, p := range s.pending {
		if p > c.High {
			c.High = p
		}
		if p < c.Low {
			c.Low = p
		}
	}

	s.candles = append(s.candles, c)
	if len(s.candles) > maxCandles {
		s.candles = s.candles[len(s.candles)-maxCandles:]
	}
	s.pending = s.pending[:0]
	s.volume = 0
}

// Candles returns a copy of a token's candle history.
func (a *Aggregator) Candles(mint string) []Candle {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[mint]
	if !ok {
		return nil
	}
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Drop removes a token's history, used once a position is closed.
func (a *Aggregator) Drop(mint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.series, mint)
}

// Tracked returns the mints with at least one full candle.
func (a *Aggregator) Tracked() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.series))
	for mint, s := range a.series {
		if len(s.candles) > 0 {
			out = append(out, mint)
		}
	}
	return out
}
