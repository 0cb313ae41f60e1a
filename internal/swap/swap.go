// Package swap defines the execution interface shared by the native
// AMM path and aggregator fallbacks, and the router that chains them.
package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
)

// ErrNoProvider is returned when every provider in the chain failed.
var ErrNoProvider = errors.New("swap: all providers failed")

// Result is one executed swap. EstimatedOut is zero when the provider
// cannot estimate the fill ahead of confirmation.
type Result struct {
	Provider     string
	Signature    solana.Signature
	EstimatedOut uint64
}

// Provider executes swaps between SOL and a token for a signing wallet.
type Provider interface {
	Name() string
	Buy(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, lamports uint64, slippageBps int) (*Result, error)
	Sell(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, tokenAmount uint64, slippageBps int) (*Result, error)
}

// Router tries providers in configured order until one fills.
type Router struct {
	providers []Provider
}

// NewRouter creates a router over an ordered provider chain.
func NewRouter(providers ...Provider) *Router {
	return &Router{providers: providers}
}

// Buy routes a SOL-to-token swap down the chain.
func (r *Router) Buy(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, lamports uint64, slippageBps int) (*Result, error) {
	return r.route(ctx, "buy", func(p Provider) (*Result, error) {
		return p.Buy(ctx, signer, mint, lamports, slippageBps)
	})
}

// Sell routes a token-to-SOL swap down the chain.
func (r *Router) Sell(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, tokenAmount uint64, slippageBps int) (*Result, error) {
	return r.route(ctx, "sell", func(p Provider) (*Result, error) {
		return p.Sell(ctx, signer, mint, tokenAmount, slippageBps)
	})
}

func (r *Router) route(ctx context.Context, side string, attempt func(Provider) (*Result, error)) (*Result, error) {
	var lastErr error
	for _, p := range r.providers {
		result, err := attempt(p)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("provider", p.Name()).Str("side", side).Msg("provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrNoProvider, side, lastErr)
}
