package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func TestSaveAndGetUser(t *testing.T) {
	db := testDB(t)

	_, err := db.GetUser(42)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, db.SaveUser(&User{
		ChatID:        42,
		Username:      "trader",
		WalletAddress: "WalletAddr",
		EncryptedKey:  "aa:bb",
		Active:        true,
	}))

	user, err := db.GetUser(42)
	require.NoError(t, err)
	assert.Equal(t, "trader", user.Username)
	assert.Equal(t, "WalletAddr", user.WalletAddress)
	assert.False(t, user.AutoTrade)
}

func TestAutoTradeUsersFiltersInactive(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveUser(&User{ChatID: 1, Active: true, AutoTrade: true}))
	require.NoError(t, db.SaveUser(&User{ChatID: 2, Active: true, AutoTrade: false}))
	require.NoError(t, db.SaveUser(&User{ChatID: 3, Active: false, AutoTrade: true}))

	users, err := db.AutoTradeUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(1), users[0].ChatID)
}

func TestRaiseHighestPriceIsMonotonic(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SavePosition(&PositionRecord{
		ID:           "pos-1",
		UserID:       1,
		Mint:         "MintA",
		EntryPrice:   decimal.NewFromFloat(1.0),
		HighestPrice: decimal.NewFromFloat(1.0),
		Status:       "open",
		OpenedAt:     time.Now(),
	}))

	require.NoError(t, db.RaiseHighestPrice("pos-1", decimal.NewFromFloat(1.5)))
	// A stale lower tick must not lower the mark.
	require.NoError(t, db.RaiseHighestPrice("pos-1", decimal.NewFromFloat(1.2)))

	positions, err := db.OpenPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].HighestPrice.Equal(decimal.NewFromFloat(1.5)),
		"got %s", positions[0].HighestPrice)
}

func TestClosePositionLeavesOpenSet(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SavePosition(&PositionRecord{ID: "pos-1", UserID: 1, Status: "open", OpenedAt: time.Now()}))
	require.NoError(t, db.SavePosition(&PositionRecord{ID: "pos-2", UserID: 1, Status: "open", OpenedAt: time.Now()}))

	require.NoError(t, db.ClosePosition("pos-1", "TRAILING_STOP"))

	open, err := db.OpenPositionsForUser(1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "pos-2", open[0].ID)
}

func TestWithdrawalTwoPhase(t *testing.T) {
	db := testDB(t)

	w := &Withdrawal{
		ID:          "wd-1",
		UserID:      1,
		Destination: "DestAddr",
		AmountSOL:   decimal.NewFromFloat(0.5),
		Status:      "COMPLETED", // must be overridden
	}
	require.NoError(t, db.CreateWithdrawal(w))
	assert.Equal(t, "PENDING", w.Status)

	pending, err := db.PendingWithdrawals()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, db.CompleteWithdrawal("wd-1", "SigXYZ"))

	pending, err = db.PendingWithdrawals()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFailWithdrawalRecordsError(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.CreateWithdrawal(&Withdrawal{ID: "wd-1", UserID: 1, AmountSOL: decimal.NewFromFloat(1)}))
	require.NoError(t, db.FailWithdrawal("wd-1", "insufficient balance"))

	pending, err := db.PendingWithdrawals()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTotalPnlSkipsFailedTrades(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveTrade(&TradeRecord{
		UserID: 1, Side: "SELL", Status: "executed", PnlSOL: decimal.NewFromFloat(0.3),
	}))
	require.NoError(t, db.SaveTrade(&TradeRecord{
		UserID: 1, Side: "SELL", Status: "executed", PnlSOL: decimal.NewFromFloat(-0.1),
	}))
	require.NoError(t, db.SaveTrade(&TradeRecord{
		UserID: 1, Side: "SELL", Status: "failed", PnlSOL: decimal.NewFromFloat(-9),
	}))

	pnl, err := db.TotalPnl(1)
	require.NoError(t, err)
	assert.True(t, pnl.Equal(decimal.NewFromFloat(0.2)), "got %s", pnl)
}

func TestGetStats(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.SaveTrade(&TradeRecord{UserID: 1, Side: "SELL", Status: "executed", PnlSOL: decimal.NewFromFloat(0.5)}))
	require.NoError(t, db.SaveTrade(&TradeRecord{UserID: 1, Side: "SELL", Status: "executed", PnlSOL: decimal.NewFromFloat(-0.2)}))
	require.NoError(t, db.SavePosition(&PositionRecord{ID: "pos-1", UserID: 1, Status: "open", OpenedAt: time.Now()}))

	stats, err := db.GetStats(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["total_trades"])
	assert.Equal(t, int64(1), stats["winning_trades"])
	assert.Equal(t, int64(1), stats["open_positions"])
}

func TestRecentTradesOrderAndLimit(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveTrade(&TradeRecord{
			UserID:    1,
			Mint:      "MintA",
			Side:      "BUY",
			Status:    "executed",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	trades, err := db.RecentTrades(1, 3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.True(t, trades[0].CreatedAt.After(trades[2].CreatedAt))
}
