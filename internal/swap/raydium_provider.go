package swap

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/solsniper/internal/network"
	"github.com/web3guy0/solsniper/internal/raydium"
)

// RaydiumProvider swaps directly against AMM v4 pools. It is first in
// the chain: no aggregator hop, and the tip rides in the same
// transaction as the swap.
type RaydiumProvider struct {
	net  *network.Client
	amm  *raydium.Client
	jito *network.JitoClient
}

// NewRaydiumProvider creates the native AMM provider.
func NewRaydiumProvider(net *network.Client, amm *raydium.Client, jito *network.JitoClient) *RaydiumProvider {
	return &RaydiumProvider{net: net, amm: amm, jito: jito}
}

func (p *RaydiumProvider) Name() string { return "raydium" }

func (p *RaydiumProvider) execute(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, direction raydium.Direction, amountIn uint64) (*Result, error) {
	keys, err := p.amm.FindPool(ctx, mint)
	if err != nil {
		return nil, err
	}

	params := raydium.SwapParams{
		Keys:      keys,
		Direction: direction,
		Owner:     signer.PublicKey(),
		AmountIn:  amountIn,
		// Slippage is bounded by sizing rather than a quote floor;
		// new pools have no reliable quote source to derive one from.
		MinAmountOut: 0,
	}
	if p.jito != nil {
		params.TipAccount = p.jito.TipAccount()
		params.TipLamports = p.jito.TipLamports()
	}

	tx, err := p.amm.BuildSwapTransaction(ctx, p.net, params)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign swap: %w", err)
	}

	sig, err := p.net.SubmitWithRetry(ctx, tx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("mint", mint.String()).
		Str("pool", keys.AmmID.String()).
		Str("tx", sig.String()).
		Msg("⚡ raydium swap submitted")
	return &Result{Provider: p.Name(), Signature: sig}, nil
}

// Buy swaps lamports into the token. slippageBps is unused on this
// path, see MinAmountOut above.
func (p *RaydiumProvider) Buy(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, lamports uint64, slippageBps int) (*Result, error) {
	return p.execute(ctx, signer, mint, raydium.Buy, lamports)
}

// Sell swaps the token amount back into SOL.
func (p *RaydiumProvider) Sell(ctx context.Context, signer solana.PrivateKey, mint solana.PublicKey, tokenAmount uint64, slippageBps int) (*Result, error) {
	return p.execute(ctx, signer, mint, raydium.Sell, tokenAmount)
}
