// Package marketdata sources token prices and candidates from public
// aggregators: DexScreener for polling and discovery, Birdeye for the
// streaming price feed.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Pair is one DEX trading pair for a token.
type Pair struct {
	PairAddress    string
	DexID          string
	BaseSymbol     string
	PriceUSD       float64
	PriceNative    float64 // price in SOL
	LiquidityUSD   float64
	Volume24hUSD   float64
	PriceChange5m  float64
	PriceChange1h  float64
	PriceChange24h float64
	CreatedAt      time.Time
}

// DexScreener polls the DexScreener public API.
type DexScreener struct {
	baseURL    string
	httpClient *http.Client
}

// NewDexScreener creates a client against the given API root.
func NewDexScreener(baseURL string) *DexScreener {
	return &DexScreener{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DexScreener) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dexscreener %s: read body: %w", path, err)
	}
	return body, nil
}

func parsePair(p gjson.Result) Pair {
	return Pair{
		PairAddress:    p.Get("pairAddress").String(),
		DexID:          p.Get("dexId").String(),
		BaseSymbol:     p.Get("baseToken.symbol").String(),
		PriceUSD:       p.Get("priceUsd").Float(),
		PriceNative:    p.Get("priceNative").Float(),
		LiquidityUSD:   p.Get("liquidity.usd").Float(),
		Volume24hUSD:   p.Get("volume.h24").Float(),
		PriceChange5m:  p.Get("priceChange.m5").Float(),
		PriceChange1h:  p.Get("priceChange.h1").Float(),
		PriceChange24h: p.Get("priceChange.h24").Float(),
		CreatedAt:      time.UnixMilli(p.Get("pairCreatedAt").Int()),
	}
}

// TokenPairs returns the Solana pairs trading a mint, best-liquidity
// first as the API orders them.
func (d *DexScreener) TokenPairs(ctx context.Context, mint string) ([]Pair, error) {
	body, err := d.get(ctx, "/latest/dex/tokens/"+mint)
	if err != nil {
		return nil, err
	}

	var pairs []Pair
	for _, p := range gjson.GetBytes(body, "pairs").Array() {
		if p.Get("chainId").String() != "solana" {
			continue
		}
		pairs = append(pairs, parsePair(p))
	}
	return pairs, nil
}

// Price returns the best available SOL price for a mint, using the
// deepest pair. Returns false when no pair trades the token.
func (d *DexScreener) Price(ctx context.Context, mint string) (priceSOL, volumeUSD float64, ok bool, err error) {
	pairs, err := d.TokenPairs(ctx, mint)
	if err != nil {
		return 0, 0, false, err
	}

	best := -1
	for i, p := range pairs {
		if best < 0 || p.LiquidityUSD > pairs[best].LiquidityUSD {
			best = i
		}
	}
	if best < 0 {
		return 0, 0, false, nil
	}
	return pairs[best].PriceNative, pairs[best].Volume24hUSD, true, nil
}

// TokenData is the aggregate market view of one token, taken from its
// deepest pair.
type TokenData struct {
	Symbol       string
	PriceSOL     float64
	PriceUSD     float64
	LiquidityUSD float64
	Volume24hUSD float64
	Change5m     float64
	Change1h     float64
	Change24h    float64
	QualityScore float64
}

// TokenData returns the market snapshot for a mint. Returns nil, nil
// when no pair trades it yet.
func (d *DexScreener) TokenData(ctx context.Context, mint string) (*TokenData, error) {
	pairs, err := d.TokenPairs(ctx, mint)
	if err != nil {
		return nil, err
	}
	best := bestPair(pairs)
	if best == nil {
		return nil, nil
	}
	return &TokenData{
		Symbol:       best.BaseSymbol,
		PriceSOL:     best.PriceNative,
		PriceUSD:     best.PriceUSD,
		LiquidityUSD: best.LiquidityUSD,
		Volume24hUSD: best.Volume24hUSD,
		Change5m:     best.PriceChange5m,
		Change1h:     best.PriceChange1h,
		Change24h:    best.PriceChange24h,
		QualityScore: qualityScore(best),
	}, nil
}

// qualityScore grades a pair 0..100: half for depth, half for turnover,
// with a penalty when the 24h move looks like a rug in progress.
func qualityScore(p *Pair) float64 {
	score := 0.0
	if p.LiquidityUSD > 0 {
		liq := p.LiquidityUSD / 50_000 * 50
		if liq > 50 {
			liq = 50
		}
		score += liq
	}
	if p.Volume24hUSD > 0 {
		vol := p.Volume24hUSD / 100_000 * 50
		if vol > 50 {
			vol = 50
		}
		score += vol
	}
	if p.PriceChange24h < -80 {
		score *= 0.25
	}
	return score
}

// Profile is one token surfaced by the DexScreener profile feed.
type Profile struct {
	Mint        string
	Description string
}

// LatestProfiles returns recently promoted Solana tokens, the raw
// material for gem discovery.
func (d *DexScreener) LatestProfiles(ctx context.Context) ([]Profile, error) {
	body, err := d.get(ctx, "/token-profiles/latest/v1")
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	for _, p := range gjson.ParseBytes(body).Array() {
		if p.Get("chainId").String() != "solana" {
			continue
		}
		profiles = append(profiles, Profile{
			Mint:        p.Get("tokenAddress").String(),
			Description: p.Get("description").String(),
		})
	}
	return profiles, nil
}
