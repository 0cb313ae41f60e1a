package raydium

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/web3guy0/solsniper/internal/network"
)

const (
	swapBaseInOpcode = 9

	// Compute budget for a wrap + swap + unwrap transaction.
	computeUnitLimit = 300_000
	computeUnitPrice = 25_000 // micro-lamports per CU
)

// Direction of a swap relative to SOL.
type Direction int

const (
	// Buy spends SOL for the pool's token.
	Buy Direction = iota
	// Sell spends the pool's token for SOL.
	Sell
)

// SwapParams describes one swap to assemble.
type SwapParams struct {
	Keys      *PoolKeys
	Direction Direction
	Owner     solana.PublicKey
	// AmountIn is the raw input amount: lamports for Buy, token base
	// units for Sell.
	AmountIn uint64
	// MinAmountOut is the slippage floor, zero to accept any fill.
	MinAmountOut uint64
	// TipAccount and TipLamports add a block-engine tip transfer when
	// TipLamports is non-zero.
	TipAccount  solana.PublicKey
	TipLamports uint64
}

// swapInstruction builds the AMM swap-base-in instruction. Account order
// is fixed by the program.
func swapInstruction(keys *PoolKeys, source, destination, owner solana.PublicKey, amountIn, minOut uint64) solana.Instruction {
	data := make([]byte, 17)
	data[0] = swapBaseInOpcode
	binary.LittleEndian.PutUint64(data[1:], amountIn)
	binary.LittleEndian.PutUint64(data[9:], minOut)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(keys.AmmID, true, false),
		solana.NewAccountMeta(AMMAuthority, false, false),
		solana.NewAccountMeta(keys.OpenOrders, true, false),
		solana.NewAccountMeta(keys.TargetOrders, true, false),
		solana.NewAccountMeta(keys.BaseVault, true, false),
		solana.NewAccountMeta(keys.QuoteVault, true, false),
		solana.NewAccountMeta(keys.MarketProgram, false, false),
		solana.NewAccountMeta(keys.MarketID, true, false),
		solana.NewAccountMeta(keys.MarketBids, true, false),
		solana.NewAccountMeta(keys.MarketAsks, true, false),
		solana.NewAccountMeta(keys.MarketEventQueue, true, false),
		solana.NewAccountMeta(keys.MarketBaseVault, true, false),
		solana.NewAccountMeta(keys.MarketQuoteVault, true, false),
		solana.NewAccountMeta(keys.MarketVaultSigner, false, false),
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return solana.NewInstruction(AMMProgramID, accounts, data)
}

// createATAIdempotent builds the associated-token-account CreateIdempotent
// instruction, a no-op when the account already exists.
func createATAIdempotent(payer, owner, mint, ata solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1})
}

// BuildSwapTransaction assembles a complete, signable swap transaction:
// compute budget, idempotent token accounts, WSOL wrap or unwrap around
// the swap, and an optional tip transfer. The caller signs and submits.
func (c *Client) BuildSwapTransaction(ctx context.Context, net *network.Client, p SwapParams) (*solana.Transaction, error) {
	tokenMint := p.Keys.TokenMint()

	wsolATA, _, err := solana.FindAssociatedTokenAddress(p.Owner, WSOLMint)
	if err != nil {
		return nil, fmt.Errorf("derive wsol account: %w", err)
	}
	tokenATA, _, err := solana.FindAssociatedTokenAddress(p.Owner, tokenMint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(computeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(computeUnitPrice).Build(),
		createATAIdempotent(p.Owner, p.Owner, WSOLMint, wsolATA),
		createATAIdempotent(p.Owner, p.Owner, tokenMint, tokenATA),
	}

	switch p.Direction {
	case Buy:
		// Fund the WSOL account and sync so the program sees the
		// lamports as token balance.
		instructions = append(instructions,
			system.NewTransferInstruction(p.AmountIn, p.Owner, wsolATA).Build(),
			token.NewSyncNativeInstruction(wsolATA).Build(),
			swapInstruction(p.Keys, wsolATA, tokenATA, p.Owner, p.AmountIn, p.MinAmountOut),
		)
	case Sell:
		instructions = append(instructions,
			swapInstruction(p.Keys, tokenATA, wsolATA, p.Owner, p.AmountIn, p.MinAmountOut),
		)
	default:
		return nil, fmt.Errorf("unknown swap direction %d", p.Direction)
	}

	// Closing the WSOL account unwraps back to native SOL either way.
	instructions = append(instructions,
		token.NewCloseAccountInstruction(wsolATA, p.Owner, p.Owner, nil).Build(),
	)

	if p.TipLamports > 0 {
		instructions = append(instructions,
			system.NewTransferInstruction(p.TipLamports, p.Owner, p.TipAccount).Build(),
		)
	}

	blockhash, err := net.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(p.Owner))
	if err != nil {
		return nil, fmt.Errorf("assemble swap transaction: %w", err)
	}
	return tx, nil
}
