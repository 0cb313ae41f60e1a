package engine

import (
	"sync"
	"time"
)

// StrategyStats is the per-mode slice of a user's results.
type StrategyStats struct {
	Trades int
	PnlSOL float64
}

// PortfolioStats tracks realized performance per user and feeds the
// reinvestment factor. A win/loss streak is signed: positive counts
// consecutive wins, negative consecutive losses.
type PortfolioStats struct {
	mu          sync.Mutex
	totalTrades int
	wins        int
	losses      int
	totalPnlSOL float64
	streak      int
	bestSOL     float64
	worstSOL    float64
	totalHold   time.Duration
	byStrategy  map[Strategy]StrategyStats
}

// NewPortfolioStats creates empty stats.
func NewPortfolioStats() *PortfolioStats {
	return &PortfolioStats{byStrategy: make(map[Strategy]StrategyStats)}
}

// RecordTrade folds one closed trade into the stats.
func (s *PortfolioStats) RecordTrade(strategy Strategy, pnlSOL float64, held time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalTrades++
	s.totalPnlSOL += pnlSOL
	s.totalHold += held
	if s.totalTrades == 1 || pnlSOL > s.bestSOL {
		s.bestSOL = pnlSOL
	}
	if s.totalTrades == 1 || pnlSOL < s.worstSOL {
		s.worstSOL = pnlSOL
	}

	mode := s.byStrategy[strategy]
	mode.Trades++
	mode.PnlSOL += pnlSOL
	s.byStrategy[strategy] = mode

	if pnlSOL > 0 {
		s.wins++
		if s.streak < 0 {
			s.streak = 0
		}
		s.streak++
	} else {
		s.losses++
		if s.streak > 0 {
			s.streak = 0
		}
		s.streak--
	}
}

// Summary is a point-in-time view of the stats.
type Summary struct {
	TotalTrades    int
	Wins           int
	Losses         int
	WinRate        float64
	TotalPnlSOL    float64
	Streak         int
	BestSOL        float64
	WorstSOL       float64
	AvgHoldMinutes float64
	ByStrategy     map[Strategy]StrategyStats
}

// Summary returns the current stats snapshot.
func (s *PortfolioStats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	winRate := 0.0
	avgHold := 0.0
	if s.totalTrades > 0 {
		winRate = float64(s.wins) / float64(s.totalTrades) * 100
		avgHold = s.totalHold.Minutes() / float64(s.totalTrades)
	}
	byStrategy := make(map[Strategy]StrategyStats, len(s.byStrategy))
	for k, v := range s.byStrategy {
		byStrategy[k] = v
	}
	return Summary{
		TotalTrades:    s.totalTrades,
		Wins:           s.wins,
		Losses:         s.losses,
		WinRate:        winRate,
		TotalPnlSOL:    s.totalPnlSOL,
		Streak:         s.streak,
		BestSOL:        s.bestSOL,
		WorstSOL:       s.worstSOL,
		AvgHoldMinutes: avgHold,
		ByStrategy:     byStrategy,
	}
}

// Reinvestment returns the sizing multiplier earned by recent
// performance: press winning streaks, shrink through drawdowns. The
// momentum leg keys off cumulative PnL as a percent of the given
// bankroll.
func (s *PortfolioStats) Reinvestment(bankrollSOL float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var streakFactor float64
	switch {
	case s.streak >= 3:
		streakFactor = 1.15
	case s.streak >= 1:
		streakFactor = 1.05
	case s.streak <= -3:
		streakFactor = 0.70
	case s.streak < 0:
		streakFactor = 0.85
	default:
		streakFactor = 1.0
	}

	pnlPct := 0.0
	if bankrollSOL > 0 {
		pnlPct = s.totalPnlSOL / bankrollSOL * 100
	}
	var momentumFactor float64
	switch {
	case pnlPct > 20:
		momentumFactor = 1.10
	case pnlPct >= 0:
		momentumFactor = 1.0
	case pnlPct > -10:
		momentumFactor = 0.90
	default:
		momentumFactor = 0.75
	}

	return streakFactor * momentumFactor
}
