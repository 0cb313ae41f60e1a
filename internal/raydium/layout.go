package raydium

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrDecode is returned when on-chain account data does not match the
// expected layout.
var ErrDecode = errors.New("raydium: account layout mismatch")

// AMM v4 liquidity state layout. Offsets are into the 752-byte pool
// account; only the fields the swap path needs are decoded.
const (
	PoolStateLen = 752

	poolBaseDecimalOffset  = 32
	poolQuoteDecimalOffset = 40
	poolBaseVaultOffset    = 336
	poolQuoteVaultOffset   = 368
	poolBaseMintOffset     = 400
	poolQuoteMintOffset    = 432
	poolLpMintOffset       = 464
	poolOpenOrdersOffset   = 496
	poolMarketIDOffset     = 528
	poolMarketProgOffset   = 560
	poolTargetOrdersOffset = 592
)

// Serum market v3 layout. The account starts with a 5-byte "serum"
// padding prefix; offsets below are absolute.
const (
	marketStateMinLen = 349

	marketVaultSignerNonceOffset = 45
	marketBaseVaultOffset        = 117
	marketQuoteVaultOffset       = 165
	marketRequestQueueOffset     = 221
	marketEventQueueOffset       = 253
	marketBidsOffset             = 285
	marketAsksOffset             = 317
)

// PoolState holds the swap-relevant fields of an AMM v4 pool account.
type PoolState struct {
	BaseDecimals  uint8
	QuoteDecimals uint8
	BaseVault     solana.PublicKey
	QuoteVault    solana.PublicKey
	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	LpMint        solana.PublicKey
	OpenOrders    solana.PublicKey
	MarketID      solana.PublicKey
	MarketProgram solana.PublicKey
	TargetOrders  solana.PublicKey
}

// MarketState holds the swap-relevant fields of a Serum v3 market account.
type MarketState struct {
	VaultSignerNonce uint64
	BaseVault        solana.PublicKey
	QuoteVault       solana.PublicKey
	RequestQueue     solana.PublicKey
	EventQueue       solana.PublicKey
	Bids             solana.PublicKey
	Asks             solana.PublicKey
}

func pubkeyAt(data []byte, offset int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offset : offset+32])
}

// DecodePoolState parses an AMM v4 pool account.
func DecodePoolState(data []byte) (*PoolState, error) {
	if len(data) != PoolStateLen {
		return nil, fmt.Errorf("%w: pool account is %d bytes, want %d", ErrDecode, len(data), PoolStateLen)
	}
	return &PoolState{
		BaseDecimals:  uint8(binary.LittleEndian.Uint64(data[poolBaseDecimalOffset:])),
		QuoteDecimals: uint8(binary.LittleEndian.Uint64(data[poolQuoteDecimalOffset:])),
		BaseVault:     pubkeyAt(data, poolBaseVaultOffset),
		QuoteVault:    pubkeyAt(data, poolQuoteVaultOffset),
		BaseMint:      pubkeyAt(data, poolBaseMintOffset),
		QuoteMint:     pubkeyAt(data, poolQuoteMintOffset),
		LpMint:        pubkeyAt(data, poolLpMintOffset),
		OpenOrders:    pubkeyAt(data, poolOpenOrdersOffset),
		MarketID:      pubkeyAt(data, poolMarketIDOffset),
		MarketProgram: pubkeyAt(data, poolMarketProgOffset),
		TargetOrders:  pubkeyAt(data, poolTargetOrdersOffset),
	}, nil
}

// DecodeMarketState parses a Serum v3 market account.
func DecodeMarketState(data []byte) (*MarketState, error) {
	if len(data) < marketStateMinLen {
		return nil, fmt.Errorf("%w: market account is %d bytes, want at least %d", ErrDecode, len(data), marketStateMinLen)
	}
	return &MarketState{
		VaultSignerNonce: binary.LittleEndian.Uint64(data[marketVaultSignerNonceOffset:]),
		BaseVault:        pubkeyAt(data, marketBaseVaultOffset),
		QuoteVault:       pubkeyAt(data, marketQuoteVaultOffset),
		RequestQueue:     pubkeyAt(data, marketRequestQueueOffset),
		EventQueue:       pubkeyAt(data, marketEventQueueOffset),
		Bids:             pubkeyAt(data, marketBidsOffset),
		Asks:             pubkeyAt(data, marketAsksOffset),
	}, nil
}

// VaultSigner derives the Serum vault authority for a market.
func VaultSigner(market solana.PublicKey, program solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	nonceBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceBytes, nonce)
	signer, err := solana.CreateProgramAddress([][]byte{market.Bytes(), nonceBytes}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive vault signer for %s: %w", market, err)
	}
	return signer, nil
}
