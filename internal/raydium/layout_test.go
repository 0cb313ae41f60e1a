package raydium

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(fill byte) solana.PublicKey {
	var b [32]byte
	for i := range b {
		b[i] = fill
	}
	return solana.PublicKeyFromBytes(b[:])
}

func buildPoolAccount() []byte {
	data := make([]byte, PoolStateLen)
	binary.LittleEndian.PutUint64(data[poolBaseDecimalOffset:], 6)
	binary.LittleEndian.PutUint64(data[poolQuoteDecimalOffset:], 9)
	copy(data[poolBaseVaultOffset:], testKey(1).Bytes())
	copy(data[poolQuoteVaultOffset:], testKey(2).Bytes())
	copy(data[poolBaseMintOffset:], testKey(3).Bytes())
	copy(data[poolQuoteMintOffset:], WSOLMint.Bytes())
	copy(data[poolLpMintOffset:], testKey(5).Bytes())
	copy(data[poolOpenOrdersOffset:], testKey(6).Bytes())
	copy(data[poolMarketIDOffset:], testKey(7).Bytes())
	copy(data[poolMarketProgOffset:], testKey(8).Bytes())
	copy(data[poolTargetOrdersOffset:], testKey(9).Bytes())
	return data
}

func TestDecodePoolState(t *testing.T) {
	state, err := DecodePoolState(buildPoolAccount())
	require.NoError(t, err)

	assert.Equal(t, uint8(6), state.BaseDecimals)
	assert.Equal(t, uint8(9), state.QuoteDecimals)
	assert.Equal(t, testKey(1), state.BaseVault)
	assert.Equal(t, testKey(2), state.QuoteVault)
	assert.Equal(t, testKey(3), state.BaseMint)
	assert.Equal(t, WSOLMint, state.QuoteMint)
	assert.Equal(t, testKey(7), state.MarketID)
	assert.Equal(t, testKey(8), state.MarketProgram)
	assert.Equal(t, testKey(9), state.TargetOrders)
}

func TestDecodePoolStateRejectsWrongSize(t *testing.T) {
	_, err := DecodePoolState(make([]byte, 100))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodePoolState(make([]byte, PoolStateLen+1))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeMarketState(t *testing.T) {
	data := make([]byte, 400)
	binary.LittleEndian.PutUint64(data[marketVaultSignerNonceOffset:], 1)
	copy(data[marketBaseVaultOffset:], testKey(10).Bytes())
	copy(data[marketQuoteVaultOffset:], testKey(11).Bytes())
	copy(data[marketEventQueueOffset:], testKey(12).Bytes())
	copy(data[marketBidsOffset:], testKey(13).Bytes())
	copy(data[marketAsksOffset:], testKey(14).Bytes())

	market, err := DecodeMarketState(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), market.VaultSignerNonce)
	assert.Equal(t, testKey(10), market.BaseVault)
	assert.Equal(t, testKey(11), market.QuoteVault)
	assert.Equal(t, testKey(12), market.EventQueue)
	assert.Equal(t, testKey(13), market.Bids)
	assert.Equal(t, testKey(14), market.Asks)
}

func TestDecodeMarketStateRejectsShortAccount(t *testing.T) {
	_, err := DecodeMarketState(make([]byte, marketStateMinLen-1))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestPoolKeysSolSide(t *testing.T) {
	keys := &PoolKeys{BaseMint: testKey(3), QuoteMint: WSOLMint}
	assert.True(t, keys.SolIsQuote())
	assert.Equal(t, testKey(3), keys.TokenMint())

	flipped := &PoolKeys{BaseMint: WSOLMint, QuoteMint: testKey(3)}
	assert.False(t, flipped.SolIsQuote())
	assert.Equal(t, testKey(3), flipped.TokenMint())
}

func TestSwapInstructionEncoding(t *testing.T) {
	keys := &PoolKeys{
		AmmID:             testKey(1),
		OpenOrders:        testKey(2),
		TargetOrders:      testKey(3),
		BaseVault:         testKey(4),
		QuoteVault:        testKey(5),
		MarketProgram:     testKey(6),
		MarketID:          testKey(7),
		MarketBids:        testKey(8),
		MarketAsks:        testKey(9),
		MarketEventQueue:  testKey(10),
		MarketBaseVault:   testKey(11),
		MarketQuoteVault:  testKey(12),
		MarketVaultSigner: testKey(13),
	}
	owner := testKey(20)
	source := testKey(21)
	dest := testKey(22)

	ix := swapInstruction(keys, source, dest, owner, 5_000_000, 1_234)

	assert.Equal(t, AMMProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 17)
	assert.Equal(t, byte(swapBaseInOpcode), data[0])
	assert.Equal(t, uint64(5_000_000), binary.LittleEndian.Uint64(data[1:9]))
	assert.Equal(t, uint64(1_234), binary.LittleEndian.Uint64(data[9:17]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 18)
	assert.Equal(t, solana.TokenProgramID, accounts[0].PublicKey)
	assert.Equal(t, AMMAuthority, accounts[2].PublicKey)
	assert.Equal(t, source, accounts[15].PublicKey)
	assert.Equal(t, dest, accounts[16].PublicKey)
	assert.Equal(t, owner, accounts[17].PublicKey)
	assert.True(t, accounts[17].IsSigner, "owner signs the swap")
	assert.False(t, accounts[0].IsWritable, "token program is read-only")
}

func TestCreateATAIdempotentEncoding(t *testing.T) {
	payer := testKey(1)
	owner := testKey(2)
	mint := testKey(3)
	ata := testKey(4)

	ix := createATAIdempotent(payer, owner, mint, ata)

	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data, "discriminator 1 selects CreateIdempotent")

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[1].IsWritable)
}
