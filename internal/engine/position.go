package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ATR multipliers per entry style. Dips enter at support and get a
// tight stop; breakouts need room to breathe.
const (
	dipStopATR        = 1.5
	dipTargetATR      = 2.0
	breakoutStopATR   = 2.0
	breakoutTargetATR = 3.0
)

// ExitReason labels why a position was closed.
type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitATRStop      ExitReason = "ATR_STOP"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitManual       ExitReason = "MANUAL"
)

// Position is one open trade for one user.
type Position struct {
	ID         string
	UserID     int64
	Mint       string
	Symbol     string
	Strategy   Strategy
	EntryPrice float64
	// Amount is the token quantity in base units.
	Amount uint64
	// SpentSOL is the SOL committed at entry, fees included.
	SpentSOL float64
	// HighestPrice only ever ratchets upward. The monitor loop writes
	// it while Telegram handlers read it, so access goes through mu.
	HighestPrice float64
	ATRAtEntry   float64
	StopLoss     float64
	TakeProfit   float64
	OpenedAt     time.Time

	mu sync.Mutex
}

// NewPosition opens a position with ATR-derived stop and target levels.
func NewPosition(userID int64, mint, symbol string, strategy Strategy, entryPrice float64, amount uint64, spentSOL, atr float64) *Position {
	p := &Position{
		ID:           uuid.NewString(),
		UserID:       userID,
		Mint:         mint,
		Symbol:       symbol,
		Strategy:     strategy,
		EntryPrice:   entryPrice,
		Amount:       amount,
		SpentSOL:     spentSOL,
		HighestPrice: entryPrice,
		ATRAtEntry:   atr,
		OpenedAt:     time.Now(),
	}
	// Manual and sniped entries carry no candle history, so there is no
	// ATR to derive a hard stop from. Leaving the levels at zero keeps
	// the trailing stop as the only exit; a stop at the entry price
	// itself would cut the trade on the first flat tick.
	if atr > 0 {
		stopMult, targetMult := dipStopATR, dipTargetATR
		if strategy == StrategyBreakout {
			stopMult, targetMult = breakoutStopATR, breakoutTargetATR
		}
		p.StopLoss = entryPrice - stopMult*atr
		p.TakeProfit = entryPrice + targetMult*atr
	}
	return p
}

// High returns the current high-water mark.
func (p *Position) High() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HighestPrice
}

// ProfitPct returns the unrealized profit at a price, in percent.
func (p *Position) ProfitPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// trailingPct maps the peak profit bracket to how far price may retrace
// from the high before the position is cut. Deep winners are guarded
// tightly; underwater positions get the widest leash.
func trailingPct(peakProfitPct float64) float64 {
	switch {
	case peakProfitPct > 100:
		return 5
	case peakProfitPct > 50:
		return 8
	case peakProfitPct > 20:
		return 12
	case peakProfitPct > 0:
		return 15
	default:
		return 25
	}
}

// Evaluate updates the high-water mark with the new price and decides
// whether to exit. The ratchet never moves down, so every price update
// can only tighten the trailing stop.
func (p *Position) Evaluate(price float64) ExitReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	if price > p.HighestPrice {
		p.HighestPrice = price
	}

	// Hard ATR stop only while the trade has never been in profit;
	// once the high is above entry the trailing logic owns the exit.
	if p.HighestPrice <= p.EntryPrice && p.StopLoss > 0 && price <= p.StopLoss {
		return ExitATRStop
	}

	peakProfit := p.ProfitPct(p.HighestPrice)
	trailStop := p.HighestPrice * (1 - trailingPct(peakProfit)/100)
	if price <= trailStop {
		return ExitTrailingStop
	}
	return ExitNone
}

// Book tracks open positions across all users.
type Book struct {
	mu        sync.Mutex
	positions map[string]*Position // keyed by position ID
}

// NewBook creates an empty position book.
func NewBook() *Book {
	return &Book{positions: make(map[string]*Position)}
}

// Add inserts a position.
func (b *Book) Add(p *Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[p.ID] = p
}

// Remove deletes a position by ID and returns it, nil if absent.
func (b *Book) Remove(id string) *Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.positions[id]
	delete(b.positions, id)
	return p
}

// Get returns a position by ID, nil if absent.
func (b *Book) Get(id string) *Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positions[id]
}

// Find returns the position a user holds in a mint, nil if none.
func (b *Book) Find(userID int64, mint string) *Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.positions {
		if p.UserID == userID && p.Mint == mint {
			return p
		}
	}
	return nil
}

// Snapshot returns a copy of the current position list. Callers iterate
// the snapshot without holding the book lock.
func (b *Book) Snapshot() []*Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out
}

// CountFor returns how many positions a user has open.
func (b *Book) CountFor(userID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.positions {
		if p.UserID == userID {
			n++
		}
	}
	return n
}
