package raydium

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/solsniper/internal/network"
)

// ErrPoolNotFound is returned when no AMM pool pairs the token with SOL.
var ErrPoolNotFound = errors.New("raydium: no pool found for mint")

var (
	// AMMProgramID is the Raydium liquidity pool v4 program.
	AMMProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")

	// AMMAuthority is the fixed authority PDA shared by all v4 pools.
	AMMAuthority = solana.MustPublicKeyFromBase58("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")

	// WSOLMint is the wrapped-SOL mint.
	WSOLMint = solana.SolMint
)

// PoolKeys is the full account set needed to swap against one pool,
// combining the AMM state with its Serum market side.
type PoolKeys struct {
	AmmID             solana.PublicKey
	BaseMint          solana.PublicKey
	QuoteMint         solana.PublicKey
	BaseDecimals      uint8
	QuoteDecimals     uint8
	BaseVault         solana.PublicKey
	QuoteVault        solana.PublicKey
	OpenOrders        solana.PublicKey
	TargetOrders      solana.PublicKey
	MarketProgram     solana.PublicKey
	MarketID          solana.PublicKey
	MarketBids        solana.PublicKey
	MarketAsks        solana.PublicKey
	MarketEventQueue  solana.PublicKey
	MarketBaseVault   solana.PublicKey
	MarketQuoteVault  solana.PublicKey
	MarketVaultSigner solana.PublicKey
}

// SolIsQuote reports whether wrapped SOL sits on the quote side.
func (k *PoolKeys) SolIsQuote() bool {
	return k.QuoteMint.Equals(WSOLMint)
}

// TokenMint returns the non-SOL side of the pool.
func (k *PoolKeys) TokenMint() solana.PublicKey {
	if k.SolIsQuote() {
		return k.BaseMint
	}
	return k.QuoteMint
}

// Client resolves pools and markets for the AMM program.
type Client struct {
	net *network.Client
}

// NewClient creates a pool resolver on top of the network client.
func NewClient(net *network.Client) *Client {
	return &Client{net: net}
}

// FindPool locates a token/SOL pool by scanning program accounts with
// memcmp filters on the mint columns. The token is tried on the base
// side first, then the quote side. The first match wins; pool quality is
// judged upstream by the market data layer, not here.
func (c *Client) FindPool(ctx context.Context, mint solana.PublicKey) (*PoolKeys, error) {
	for _, side := range []struct {
		tokenOffset uint64
		solOffset   uint64
	}{
		{poolBaseMintOffset, poolQuoteMintOffset},
		{poolQuoteMintOffset, poolBaseMintOffset},
	} {
		accounts, err := c.net.ProgramAccounts(ctx, AMMProgramID, []rpc.RPCFilter{
			{DataSize: PoolStateLen},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: side.tokenOffset, Bytes: solana.Base58(mint.Bytes())}},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: side.solOffset, Bytes: solana.Base58(WSOLMint.Bytes())}},
		})
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			continue
		}

		acc := accounts[0]
		state, err := DecodePoolState(acc.Account.Data.GetBinary())
		if err != nil {
			return nil, err
		}
		log.Debug().
			Str("mint", mint.String()).
			Str("pool", acc.Pubkey.String()).
			Msg("pool located")
		return c.resolveMarket(ctx, acc.Pubkey, state)
	}
	return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, mint)
}

// LoadPool decodes a known pool account and resolves its market side.
func (c *Client) LoadPool(ctx context.Context, ammID solana.PublicKey) (*PoolKeys, error) {
	data, err := c.net.AccountData(ctx, ammID)
	if err != nil {
		return nil, err
	}
	state, err := DecodePoolState(data)
	if err != nil {
		return nil, err
	}
	return c.resolveMarket(ctx, ammID, state)
}

func (c *Client) resolveMarket(ctx context.Context, ammID solana.PublicKey, state *PoolState) (*PoolKeys, error) {
	marketData, err := c.net.AccountData(ctx, state.MarketID)
	if err != nil {
		return nil, fmt.Errorf("load market %s: %w", state.MarketID, err)
	}
	market, err := DecodeMarketState(marketData)
	if err != nil {
		return nil, err
	}
	vaultSigner, err := VaultSigner(state.MarketID, state.MarketProgram, market.VaultSignerNonce)
	if err != nil {
		return nil, err
	}

	return &PoolKeys{
		AmmID:             ammID,
		BaseMint:          state.BaseMint,
		QuoteMint:         state.QuoteMint,
		BaseDecimals:      state.BaseDecimals,
		QuoteDecimals:     state.QuoteDecimals,
		BaseVault:         state.BaseVault,
		QuoteVault:        state.QuoteVault,
		OpenOrders:        state.OpenOrders,
		TargetOrders:      state.TargetOrders,
		MarketProgram:     state.MarketProgram,
		MarketID:          state.MarketID,
		MarketBids:        market.Bids,
		MarketAsks:        market.Asks,
		MarketEventQueue:  market.EventQueue,
		MarketBaseVault:   market.BaseVault,
		MarketQuoteVault:  market.QuoteVault,
		MarketVaultSigner: vaultSigner,
	}, nil
}
