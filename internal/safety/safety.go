// Package safety classifies token mints by their on-chain authority
// configuration before any capital is committed.
package safety

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/solsniper/internal/network"
	"github.com/web3guy0/solsniper/internal/raydium"
)

// SPL mint account layout.
const (
	mintAccountLen = 82

	mintAuthorityTagOffset    = 0  // COption<Pubkey>: u32 tag + 32-byte key
	mintSupplyOffset          = 36 // u64 LE
	mintDecimalsOffset        = 44
	mintInitializedOffset     = 45
	mintFreezeAuthorityOffset = 46 // COption<Pubkey>
)

// MintInfo is the decoded state of an SPL mint.
type MintInfo struct {
	HasMintAuthority   bool
	MintAuthority      solana.PublicKey
	Supply             uint64
	Decimals           uint8
	Initialized        bool
	HasFreezeAuthority bool
	FreezeAuthority    solana.PublicKey
}

// Safe reports whether the mint is tradeable: both authorities must be
// renounced, otherwise the deployer can inflate supply or freeze holder
// accounts at will.
func (m *MintInfo) Safe() bool {
	return !m.HasMintAuthority && !m.HasFreezeAuthority
}

// Reasons lists why the mint failed classification. Empty when safe.
func (m *MintInfo) Reasons() []string {
	var reasons []string
	if m.HasMintAuthority {
		reasons = append(reasons, "mint authority present: "+m.MintAuthority.String())
	}
	if m.HasFreezeAuthority {
		reasons = append(reasons, "freeze authority present: "+m.FreezeAuthority.String())
	}
	return reasons
}

// DecodeMint parses a raw SPL mint account.
func DecodeMint(data []byte) (*MintInfo, error) {
	if len(data) < mintAccountLen {
		return nil, fmt.Errorf("%w: mint account is %d bytes, want %d", raydium.ErrDecode, len(data), mintAccountLen)
	}

	info := &MintInfo{
		Supply:      binary.LittleEndian.Uint64(data[mintSupplyOffset:]),
		Decimals:    data[mintDecimalsOffset],
		Initialized: data[mintInitializedOffset] == 1,
	}
	if binary.LittleEndian.Uint32(data[mintAuthorityTagOffset:]) == 1 {
		info.HasMintAuthority = true
		info.MintAuthority = solana.PublicKeyFromBytes(data[mintAuthorityTagOffset+4 : mintAuthorityTagOffset+36])
	}
	if binary.LittleEndian.Uint32(data[mintFreezeAuthorityOffset:]) == 1 {
		info.HasFreezeAuthority = true
		info.FreezeAuthority = solana.PublicKeyFromBytes(data[mintFreezeAuthorityOffset+4 : mintFreezeAuthorityOffset+36])
	}
	return info, nil
}

// Checker fetches and classifies mints.
type Checker struct {
	net *network.Client
}

// NewChecker creates a safety checker.
func NewChecker(net *network.Client) *Checker {
	return &Checker{net: net}
}

// Check fetches the mint account and returns its decoded state.
func (c *Checker) Check(ctx context.Context, mint solana.PublicKey) (*MintInfo, error) {
	data, err := c.net.AccountData(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("fetch mint %s: %w", mint, err)
	}
	info, err := DecodeMint(data)
	if err != nil {
		return nil, err
	}

	if !info.Safe() {
		log.Debug().
			Str("mint", mint.String()).
			Strs("reasons", info.Reasons()).
			Msg("🚫 mint failed safety check")
	}
	return info, nil
}
