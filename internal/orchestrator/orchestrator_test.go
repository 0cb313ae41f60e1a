package orchestrator

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/solsniper/internal/config"
	"github.com/web3guy0/solsniper/internal/database"
	"github.com/web3guy0/solsniper/internal/engine"
	"github.com/web3guy0/solsniper/internal/state"
	"github.com/web3guy0/solsniper/internal/worker"
)

func TestDispatchEntryArmsCooldownOnAccept(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.SaveUser(&database.User{
		ChatID:       7,
		Active:       true,
		AutoTrade:    true,
		EncryptedKey: "aa:bb",
	}))

	pool := worker.NewPool(1, 4)
	defer pool.Stop()
	o := &Orchestrator{
		cfg:     &config.Config{MaxOpenPositions: 5},
		db:      db,
		book:    engine.NewBook(),
		tracker: state.NewTracker(time.Minute),
		pool:    pool,
	}

	// Not a valid base58 key, so the queued buy bails before it needs
	// any wallet or RPC wiring. The cooldown must be armed regardless:
	// it starts at the attempt, not at the fill.
	mint := "!!not-a-mint"
	signal := &engine.Signal{Strategy: engine.StrategyDip, Score: 100, Analysis: &engine.Analysis{}}

	assert.False(t, o.tracker.OnCooldown(7, mint))
	o.dispatchEntry(context.Background(), mint, signal)
	assert.True(t, o.tracker.OnCooldown(7, mint), "failed attempts must still cool down")
}

func TestDispatchEntryReleasesWhenQueueRejects(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.SaveUser(&database.User{
		ChatID:       9,
		Active:       true,
		AutoTrade:    true,
		EncryptedKey: "aa:bb",
	}))

	pool := worker.NewPool(1, 1)
	pool.Stop() // a stopped pool rejects every command
	o := &Orchestrator{
		cfg:     &config.Config{MaxOpenPositions: 5},
		db:      db,
		book:    engine.NewBook(),
		tracker: state.NewTracker(time.Minute),
		pool:    pool,
	}

	mint := "!!not-a-mint"
	o.dispatchEntry(context.Background(), mint, &engine.Signal{Strategy: engine.StrategyDip, Score: 100, Analysis: &engine.Analysis{}})

	assert.False(t, o.tracker.OnCooldown(9, mint), "a rejected command never attempted anything")
	assert.True(t, o.tracker.TryAcquire(9, mint), "in-flight slot must have been released")
}

func TestSeenSignatureDedup(t *testing.T) {
	o := &Orchestrator{seenSig: make(map[solana.Signature]struct{})}
	sig := numberedSignature(1)

	assert.False(t, o.seenSignature(sig), "first sighting is new")
	assert.True(t, o.seenSignature(sig), "replays must be recognized")
}

func TestSeenSignatureClearsAtCap(t *testing.T) {
	o := &Orchestrator{seenSig: make(map[solana.Signature]struct{})}

	for i := uint64(0); i < 10_000; i++ {
		require.False(t, o.seenSignature(numberedSignature(i)))
	}
	require.Len(t, o.seenSig, 10_000)

	// The insert at the cap wipes the set first, so memory stays
	// bounded and the new signature is the only survivor.
	assert.False(t, o.seenSignature(numberedSignature(10_000)))
	assert.Len(t, o.seenSig, 1)
	assert.False(t, o.seenSignature(numberedSignature(0)), "cleared signatures read as new again")
}

func numberedSignature(n uint64) solana.Signature {
	var sig solana.Signature
	binary.BigEndian.PutUint64(sig[:8], n)
	return sig
}

func TestSellAmountReconciliation(t *testing.T) {
	tests := []struct {
		name       string
		recorded   uint64
		onChain    uint64
		lookupErr  error
		wantAmount uint64
		wantClosed bool
	}{
		{"balance matches", 500, 500, nil, 500, false},
		{"airdrop grew the account", 500, 750, nil, 750, false},
		{"partial transfer out", 500, 200, nil, 200, false},
		{"emptied outside the bot", 500, 0, nil, 0, true},
		{"lookup failed, trust the record", 500, 0, errors.New("rpc down"), 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, closed := sellAmount(tt.recorded, tt.onChain, tt.lookupErr)
			assert.Equal(t, tt.wantAmount, amount)
			assert.Equal(t, tt.wantClosed, closed)
		})
	}
}
