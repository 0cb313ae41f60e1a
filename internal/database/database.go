package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

// Models

// User is one Telegram-registered trader with a custodial wallet. The
// private key is stored AES-GCM sealed and never leaves the wallet
// package in plaintext.
type User struct {
	ChatID        int64  `gorm:"primaryKey"`
	Username      string
	WalletAddress string `gorm:"index"`
	EncryptedKey  string
	Active        bool `gorm:"default:true"`
	AutoTrade     bool `gorm:"default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PositionRecord is the persisted form of an open or closed position.
type PositionRecord struct {
	ID           string `gorm:"primaryKey"`
	UserID       int64  `gorm:"index"`
	Mint         string `gorm:"index"`
	Symbol       string
	Strategy     string
	EntryPrice   decimal.Decimal `gorm:"type:decimal(30,15)"`
	TokenAmount  decimal.Decimal `gorm:"type:decimal(30,9)"`
	SpentSOL     decimal.Decimal `gorm:"type:decimal(20,9)"`
	HighestPrice decimal.Decimal `gorm:"type:decimal(30,15)"`
	ATRAtEntry   decimal.Decimal `gorm:"type:decimal(30,15)"`
	Status       string          `gorm:"index"` // "open", "closed"
	ExitReason   string
	OpenedAt     time.Time
	ClosedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TradeRecord is one executed (or failed) swap.
type TradeRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	UserID       int64  `gorm:"index"`
	Mint         string `gorm:"index"`
	Symbol       string
	Side         string // "BUY" or "SELL"
	Strategy     string
	AmountSOL    decimal.Decimal `gorm:"type:decimal(20,9)"`
	TokenAmount  decimal.Decimal `gorm:"type:decimal(30,9)"`
	Price        decimal.Decimal `gorm:"type:decimal(30,15)"`
	TxSignature  string
	Status       string // "executed", "failed"
	ErrorMessage string
	PnlSOL       decimal.Decimal `gorm:"type:decimal(20,9)"`
	CreatedAt    time.Time
}

// Withdrawal is a two-phase SOL withdrawal: created PENDING before the
// transfer is submitted, resolved to COMPLETED or FAILED afterwards so
// a crash between the two steps is visible at restart.
type Withdrawal struct {
	ID           string `gorm:"primaryKey"`
	UserID       int64  `gorm:"index"`
	Destination  string
	AmountSOL    decimal.Decimal `gorm:"type:decimal(20,9)"`
	Status       string          `gorm:"index"` // "PENDING", "COMPLETED", "FAILED"
	TxSignature  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New opens the database. A postgres:// DSN selects PostgreSQL,
// anything else is treated as a SQLite file path.
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&User{}, &PositionRecord{}, &TradeRecord{}, &Withdrawal{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// User operations

func (d *Database) SaveUser(user *User) error {
	return d.db.Save(user).Error
}

func (d *Database) GetUser(chatID int64) (*User, error) {
	var user User
	err := d.db.First(&user, "chat_id = ?", chatID).Error
	return &user, err
}

func (d *Database) ActiveUsers() ([]User, error) {
	var users []User
	err := d.db.Where("active = ?", true).Find(&users).Error
	return users, err
}

func (d *Database) AutoTradeUsers() ([]User, error) {
	var users []User
	err := d.db.Where("active = ? AND auto_trade = ?", true, true).Find(&users).Error
	return users, err
}

// Position operations

func (d *Database) SavePosition(pos *PositionRecord) error {
	return d.db.Save(pos).Error
}

// RaiseHighestPrice ratchets the persisted high-water mark. The guard
// in the WHERE clause keeps the update monotonic even if ticks arrive
// out of order.
func (d *Database) RaiseHighestPrice(id string, price decimal.Decimal) error {
	return d.db.Model(&PositionRecord{}).
		Where("id = ? AND highest_price < ?", id, price).
		Update("highest_price", price).Error
}

func (d *Database) ClosePosition(id, exitReason string) error {
	now := time.Now()
	return d.db.Model(&PositionRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      "closed",
		"exit_reason": exitReason,
		"closed_at":   &now,
	}).Error
}

func (d *Database) OpenPositions() ([]PositionRecord, error) {
	var positions []PositionRecord
	err := d.db.Where("status = ?", "open").Find(&positions).Error
	return positions, err
}

func (d *Database) OpenPositionsForUser(userID int64) ([]PositionRecord, error) {
	var positions []PositionRecord
	err := d.db.Where("user_id = ? AND status = ?", userID, "open").Find(&positions).Error
	return positions, err
}

// Trade operations

func (d *Database) SaveTrade(trade *TradeRecord) error {
	return d.db.Create(trade).Error
}

func (d *Database) RecentTrades(userID int64, limit int) ([]TradeRecord, error) {
	var trades []TradeRecord
	err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

func (d *Database) TotalPnl(userID int64) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := d.db.Model(&TradeRecord{}).
		Where("user_id = ? AND status = ?", userID, "executed").
		Select("COALESCE(SUM(pnl_sol), 0) as total").Scan(&result).Error
	return result.Total, err
}

// Withdrawal operations

func (d *Database) CreateWithdrawal(w *Withdrawal) error {
	w.Status = "PENDING"
	return d.db.Create(w).Error
}

func (d *Database) CompleteWithdrawal(id, txSignature string) error {
	return d.db.Model(&Withdrawal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       "COMPLETED",
		"tx_signature": txSignature,
	}).Error
}

func (d *Database) FailWithdrawal(id, errorMessage string) error {
	return d.db.Model(&Withdrawal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        "FAILED",
		"error_message": errorMessage,
	}).Error
}

// PendingWithdrawals returns withdrawals stuck in PENDING, checked at
// startup to surface transfers whose outcome is unknown.
func (d *Database) PendingWithdrawals() ([]Withdrawal, error) {
	var withdrawals []Withdrawal
	err := d.db.Where("status = ?", "PENDING").Find(&withdrawals).Error
	return withdrawals, err
}

// Stats operations

func (d *Database) GetStats(userID int64) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var tradeCount int64
	d.db.Model(&TradeRecord{}).Where("user_id = ? AND status = ?", userID, "executed").Count(&tradeCount)
	stats["total_trades"] = tradeCount

	var winCount int64
	d.db.Model(&TradeRecord{}).Where("user_id = ? AND side = ? AND pnl_sol > 0", userID, "SELL").Count(&winCount)
	stats["winning_trades"] = winCount

	var openCount int64
	d.db.Model(&PositionRecord{}).Where("user_id = ? AND status = ?", userID, "open").Count(&openCount)
	stats["open_positions"] = openCount

	pnl, _ := d.TotalPnl(userID)
	stats["total_pnl_sol"] = pnl

	return stats, nil
}
