package marketdata

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Candidate is a discovered token that cleared the liquidity and volume
// gates. Safety classification happens downstream.
type Candidate struct {
	Mint         string
	Symbol       string
	PriceSOL     float64
	LiquidityUSD float64
	Volume24hUSD float64
	Quality      float64
}

// Discovery scans aggregator feeds for tradeable tokens and dedupes
// what it has already surfaced.
type Discovery struct {
	dex             *DexScreener
	minLiquidityUSD float64
	minVolumeUSD    float64

	mu   sync.Mutex
	seen map[string]struct{}
}

// seenCap bounds the dedup set. Clearing wholesale is acceptable: a
// re-surfaced token just makes one extra pass through the safety gate.
const seenCap = 10_000

// NewDiscovery creates a scanner with the given gates.
func NewDiscovery(dex *DexScreener, minLiquidityUSD, minVolumeUSD decimal.Decimal) *Discovery {
	return &Discovery{
		dex:             dex,
		minLiquidityUSD: minLiquidityUSD.InexactFloat64(),
		minVolumeUSD:    minVolumeUSD.InexactFloat64(),
		seen:            make(map[string]struct{}),
	}
}

// markSeen records a mint, reporting whether it was new.
func (d *Discovery) markSeen(mint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[mint]; ok {
		return false
	}
	if len(d.seen) >= seenCap {
		log.Info().Int("size", len(d.seen)).Msg("dedup set full, clearing")
		d.seen = make(map[string]struct{})
	}
	d.seen[mint] = struct{}{}
	return true
}

// Scan pulls the latest token profiles and returns the unseen ones that
// clear both gates.
func (d *Discovery) Scan(ctx context.Context) ([]Candidate, error) {
	profiles, err := d.dex.LatestProfiles(ctx)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, p := range profiles {
		if p.Mint == "" || !d.markSeen(p.Mint) {
			continue
		}

		pairs, err := d.dex.TokenPairs(ctx, p.Mint)
		if err != nil {
			log.Warn().Err(err).Str("mint", p.Mint).Msg("pair lookup failed")
			continue
		}
		best := bestPair(pairs)
		if best == nil {
			continue
		}
		if best.LiquidityUSD < d.minLiquidityUSD || best.Volume24hUSD < d.minVolumeUSD {
			continue
		}

		out = append(out, Candidate{
			Mint:         p.Mint,
			Symbol:       best.BaseSymbol,
			PriceSOL:     best.PriceNative,
			LiquidityUSD: best.LiquidityUSD,
			Volume24hUSD: best.Volume24hUSD,
			Quality:      qualityScore(best),
		})
	}

	if len(out) > 0 {
		log.Info().Int("candidates", len(out)).Msg("💎 discovery scan complete")
	}
	return out, nil
}

func bestPair(pairs []Pair) *Pair {
	var best *Pair
	for i := range pairs {
		if best == nil || pairs[i].LiquidityUSD > best.LiquidityUSD {
			best = &pairs[i]
		}
	}
	return best
}
