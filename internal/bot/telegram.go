// Package bot provides Telegram bot functionality
//
// telegram.go - Telegram interface for the sniper: wallet custody
// commands, manual trading, and push notifications for automated fills.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/solsniper/internal/config"
	"github.com/web3guy0/solsniper/internal/orchestrator"
)

// Bot handles Telegram interactions for the trading system
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	stopCh chan struct{}
}

// New creates the Telegram bot and registers it as the orchestrator's
// notifier.
func New(cfg *config.Config, orch *orchestrator.Orchestrator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	bot := &Bot{
		api:    api,
		cfg:    cfg,
		orch:   orch,
		stopCh: make(chan struct{}),
	}
	orch.SetNotifier(bot)
	return bot, nil
}

// Start begins the bot's command listener
func (b *Bot) Start() {
	go b.listenForCommands()
}

// Stop stops the bot
func (b *Bot) Stop() {
	close(b.stopCh)
}

// Notify implements orchestrator.Notifier.
func (b *Bot) Notify(chatID int64, text string) {
	b.sendText(chatID, text)
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	log.Debug().
		Int64("chat_id", chatID).
		Str("text", msg.Text).
		Msg("Received message")

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		b.cmdStart(chatID, msg.From.UserName)
	case "help":
		b.cmdHelp(chatID)
	case "balance":
		b.cmdBalance(chatID)
	case "deposit":
		b.cmdDeposit(chatID)
	case "withdraw":
		b.cmdWithdraw(chatID, msg.CommandArguments())
	case "buy":
		b.cmdBuy(chatID, msg.CommandArguments())
	case "sell":
		b.cmdSell(chatID, msg.CommandArguments())
	case "positions":
		b.cmdPositions(chatID)
	case "stats":
		b.cmdStats(chatID)
	case "trades":
		b.cmdTrades(chatID)
	case "autotrade":
		b.cmdAutoTrade(chatID, msg.CommandArguments())
	default:
		b.sendText(chatID, "❓ Unknown command. Use /help for available commands.")
	}
}

// Commands

func (b *Bot) cmdStart(chatID int64, username string) {
	user, err := b.orch.RegisterUser(chatID, username)
	if err != nil {
		b.sendText(chatID, "❌ Registration failed: "+err.Error())
		return
	}

	text := fmt.Sprintf(`🚀 *Welcome to SolSniper!*

Your autonomous Solana trading bot.

*What I do:*
• 💎 Discover fresh tokens the moment pools open
• 🛡 Reject anything with live mint or freeze authority
• ⚡ Execute swaps through the block engine
• 📉 Trail every position with volatility-aware stops

*Your wallet:*
`+"`%s`"+`

Deposit SOL to that address to start trading.

*Quick Start:*
1️⃣ /deposit to see your address again
2️⃣ /autotrade on to let the bot trade for you
3️⃣ /positions to watch open trades

*Commands:*
/help - All commands`, user.WalletAddress)

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `📚 *SolSniper Commands*

*💰 Wallet:*
/balance - SOL balance
/deposit - Your deposit address
/withdraw <address> <amount> - Send SOL out

*📈 Trading:*
/buy <mint> - Buy a token manually
/sell <mint> - Close a position
/autotrade on/off - Toggle automatic trading
/positions - Open positions
/trades - Recent trades
/stats - Performance statistics

*How entries work:*
The bot scores dip and breakout setups from
EMA, RSI, ATR, Bollinger bands and volume.
Only tokens with renounced mint and freeze
authority are ever bought.`

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdBalance(chatID int64) {
	balance, address, err := b.orch.WalletBalance(context.Background(), chatID)
	if err != nil {
		b.sendText(chatID, "❌ "+err.Error()+"\nUse /start first.")
		return
	}
	b.sendMarkdown(chatID, fmt.Sprintf("💰 *Balance:* %.4f SOL\n`%s`", balance, address))
}

func (b *Bot) cmdDeposit(chatID int64) {
	_, address, err := b.orch.WalletBalance(context.Background(), chatID)
	if err != nil {
		b.sendText(chatID, "❌ "+err.Error()+"\nUse /start first.")
		return
	}
	b.sendMarkdown(chatID, fmt.Sprintf("📥 Send SOL to your deposit address:\n\n`%s`", address))
}

func (b *Bot) cmdWithdraw(chatID int64, args string) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		b.sendText(chatID, "Usage: /withdraw <address> <amount>")
		return
	}
	amount, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		b.sendText(chatID, "❌ Invalid amount: "+parts[1])
		return
	}

	sig, err := b.orch.Withdraw(context.Background(), chatID, parts[0], amount)
	if err != nil {
		b.sendText(chatID, "❌ Withdrawal failed: "+err.Error())
		return
	}
	b.sendText(chatID, fmt.Sprintf("💸 Sent %.4f SOL\nhttps://solscan.io/tx/%s", amount, sig))
}

func (b *Bot) cmdBuy(chatID int64, args string) {
	mint := strings.TrimSpace(args)
	if mint == "" {
		b.sendText(chatID, "Usage: /buy <mint>")
		return
	}
	if err := b.orch.ManualBuy(context.Background(), chatID, mint); err != nil {
		b.sendText(chatID, "❌ "+err.Error())
		return
	}
	b.sendText(chatID, "⏳ Buy queued, you'll get a fill notification.")
}

func (b *Bot) cmdSell(chatID int64, args string) {
	mint := strings.TrimSpace(args)
	if mint == "" {
		b.sendText(chatID, "Usage: /sell <mint>")
		return
	}
	if err := b.orch.ManualSell(context.Background(), chatID, mint); err != nil {
		b.sendText(chatID, "❌ "+err.Error())
		return
	}
	b.sendText(chatID, "⏳ Sell queued, you'll get a fill notification.")
}

func (b *Bot) cmdPositions(chatID int64) {
	var lines []string
	for _, pos := range b.orch.Book().Snapshot() {
		if pos.UserID != chatID {
			continue
		}
		lines = append(lines, fmt.Sprintf(
			"• %s (%s)\n  entry %.10f | high %.10f | %.4f SOL",
			pos.Symbol, pos.Strategy, pos.EntryPrice, pos.High(), pos.SpentSOL,
		))
	}
	if len(lines) == 0 {
		b.sendText(chatID, "📭 No open positions.")
		return
	}
	b.sendText(chatID, "📈 Open positions:\n\n"+strings.Join(lines, "\n"))
}

func (b *Bot) cmdStats(chatID int64) {
	stats, err := b.orch.Stats(chatID)
	if err != nil {
		b.sendText(chatID, "❌ "+err.Error())
		return
	}
	b.sendText(chatID, fmt.Sprintf(
		"📊 Statistics\n\nTrades: %v\nWins: %v\nOpen positions: %v\nTotal PnL: %v SOL",
		stats["total_trades"], stats["winning_trades"], stats["open_positions"], stats["total_pnl_sol"],
	))
}

func (b *Bot) cmdTrades(chatID int64) {
	trades, err := b.orch.RecentTrades(chatID, 10)
	if err != nil || len(trades) == 0 {
		b.sendText(chatID, "📭 No trades yet.")
		return
	}

	var lines []string
	for _, t := range trades {
		status := "✅"
		if t.Status == "failed" {
			status = "❌"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %.4f SOL", status, t.Side, t.Symbol, t.AmountSOL.InexactFloat64()))
	}
	b.sendText(chatID, "🧾 Recent trades:\n\n"+strings.Join(lines, "\n"))
}

func (b *Bot) cmdAutoTrade(chatID int64, args string) {
	arg := strings.ToLower(strings.TrimSpace(args))
	switch arg {
	case "on":
		if err := b.orch.SetAutoTrade(chatID, true); err != nil {
			b.sendText(chatID, "❌ "+err.Error())
			return
		}
		b.sendText(chatID, "🟢 Auto-trading enabled. The bot will open and close positions for you.")
	case "off":
		if err := b.orch.SetAutoTrade(chatID, false); err != nil {
			b.sendText(chatID, "❌ "+err.Error())
			return
		}
		b.sendText(chatID, "🔴 Auto-trading disabled. Open positions are still monitored.")
	default:
		b.sendText(chatID, "Usage: /autotrade on|off")
	}
}

// Send helpers

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}
