package orchestrator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/solsniper/internal/database"
	"github.com/web3guy0/solsniper/internal/engine"
)

const lamportsPerSOL = 1_000_000_000

// minTradeSOL floors entries: anything smaller is eaten by fees.
const minTradeSOL = 0.001

func floatDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func formatSummary(s engine.Summary, openPositions int) string {
	msg := fmt.Sprintf(
		"📊 Portfolio Report\n\nTrades: %d (W %d / L %d)\nWin rate: %.1f%%\nTotal PnL: %.4f SOL\nBest: %+.4f / Worst: %+.4f\nAvg hold: %.0f min\nStreak: %+d\nOpen positions: %d",
		s.TotalTrades, s.Wins, s.Losses, s.WinRate, s.TotalPnlSOL,
		s.BestSOL, s.WorstSOL, s.AvgHoldMinutes, s.Streak, openPositions,
	)
	for _, strategy := range []engine.Strategy{engine.StrategyDip, engine.StrategyBreakout} {
		if mode, ok := s.ByStrategy[strategy]; ok {
			msg += fmt.Sprintf("\n%s: %d trades, %+.4f SOL", strategy, mode.Trades, mode.PnlSOL)
		}
	}
	return msg
}

// executeBuy sizes and fills an entry for one user, then registers the
// position everywhere it needs to live.
func (o *Orchestrator) executeBuy(ctx context.Context, user *database.User, mint string, signal *engine.Signal) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return
	}
	signer, err := o.vault.Decrypt(user.EncryptedKey)
	if err != nil {
		log.Error().Err(err).Int64("user", user.ChatID).Msg("unseal wallet failed")
		return
	}

	balanceSOL := float64(o.net.Balance(ctx, signer.PublicKey())) / lamportsPerSOL
	reinvestment := o.statsFor(user.ChatID).Reinvestment(balanceSOL)
	sizeSOL := engine.Size(balanceSOL, signal.Strategy, signal.Analysis.VolatilityPct(), reinvestment)
	if sizeSOL < minTradeSOL {
		log.Debug().Int64("user", user.ChatID).Float64("balance", balanceSOL).Msg("balance too small to trade")
		return
	}
	lamports := uint64(sizeSOL * lamportsPerSOL)

	symbol := o.symbolFor(mint)
	if o.cfg.DryRun {
		log.Info().
			Str("symbol", symbol).
			Str("strategy", string(signal.Strategy)).
			Float64("size_sol", sizeSOL).
			Msg("🧪 DRY RUN: would buy")
		return
	}

	result, err := o.router.Buy(ctx, signer, mintKey, lamports, o.cfg.SlippageBps)
	if err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("buy failed")
		o.recordFailedTrade(user.ChatID, mint, symbol, "BUY", signal.Strategy, sizeSOL, err)
		return
	}

	tokenAmount, decimals, err := o.observeFill(ctx, signer.PublicKey(), mintKey, result.EstimatedOut)
	if err != nil {
		log.Warn().Err(err).Str("mint", mint).Msg("fill not observed, using estimate")
	}
	if tokenAmount == 0 {
		log.Error().Str("mint", mint).Str("tx", result.Signature.String()).Msg("buy filled nothing")
		return
	}

	entryPrice := sizeSOL / (float64(tokenAmount) / math.Pow10(int(decimals)))
	pos := engine.NewPosition(user.ChatID, mint, symbol, signal.Strategy, entryPrice, tokenAmount, sizeSOL, signal.Analysis.ATR)
	o.book.Add(pos)

	record := &database.PositionRecord{
		ID:           pos.ID,
		UserID:       pos.UserID,
		Mint:         pos.Mint,
		Symbol:       pos.Symbol,
		Strategy:     string(pos.Strategy),
		EntryPrice:   floatDecimal(pos.EntryPrice),
		TokenAmount:  decimal.NewFromInt(int64(tokenAmount)),
		SpentSOL:     floatDecimal(pos.SpentSOL),
		HighestPrice: floatDecimal(pos.High()),
		ATRAtEntry:   floatDecimal(pos.ATRAtEntry),
		Status:       "open",
		OpenedAt:     pos.OpenedAt,
	}
	if err := o.db.SavePosition(record); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Msg("persist position failed")
	}
	o.saveTrade(&database.TradeRecord{
		UserID:      user.ChatID,
		Mint:        mint,
		Symbol:      symbol,
		Side:        "BUY",
		Strategy:    string(signal.Strategy),
		AmountSOL:   floatDecimal(sizeSOL),
		TokenAmount: decimal.NewFromInt(int64(tokenAmount)),
		Price:       floatDecimal(entryPrice),
		TxSignature: result.Signature.String(),
		Status:      "executed",
	})

	log.Info().
		Str("symbol", symbol).
		Str("strategy", string(signal.Strategy)).
		Float64("size_sol", sizeSOL).
		Str("tx", result.Signature.String()).
		Msg("💰 position opened")
	o.notify(user.ChatID, fmt.Sprintf(
		"💰 BUY %s (%s)\n%.4f SOL @ %.10f\nScore: %.0f\nhttps://solscan.io/tx/%s",
		symbol, string(signal.Strategy), sizeSOL, entryPrice, signal.Score, result.Signature,
	))
}

// executeSell closes a position and books the realized result.
func (o *Orchestrator) executeSell(ctx context.Context, pos *engine.Position, reason engine.ExitReason, price float64) {
	user, err := o.db.GetUser(pos.UserID)
	if err != nil {
		log.Error().Err(err).Int64("user", pos.UserID).Msg("load user failed")
		return
	}
	signer, err := o.vault.Decrypt(user.EncryptedKey)
	if err != nil {
		log.Error().Err(err).Int64("user", pos.UserID).Msg("unseal wallet failed")
		return
	}
	mintKey, err := solana.PublicKeyFromBase58(pos.Mint)
	if err != nil {
		return
	}

	if o.cfg.DryRun {
		log.Info().Str("symbol", pos.Symbol).Str("reason", string(reason)).Msg("🧪 DRY RUN: would sell")
		o.book.Remove(pos.ID)
		return
	}

	// Sell what the token account actually holds right now, not what
	// was recorded at entry. Airdrops, partial fills and wallet-side
	// transfers all drift the two apart, and selling a stale amount
	// either leaves dust behind or fails outright.
	amount := pos.Amount
	ata, _, ataErr := solana.FindAssociatedTokenAddress(signer.PublicKey(), mintKey)
	if ataErr == nil {
		onChain, lookupErr := o.net.TokenBalance(ctx, ata)
		var sold bool
		amount, sold = sellAmount(pos.Amount, onChain, lookupErr)
		if sold {
			log.Warn().
				Str("symbol", pos.Symbol).
				Uint64("recorded", pos.Amount).
				Msg("token account already empty, closing without a swap")
			o.retirePosition(pos)
			if err := o.db.ClosePosition(pos.ID, string(reason)); err != nil {
				log.Error().Err(err).Str("position", pos.ID).Msg("close position failed")
			}
			o.notify(pos.UserID, fmt.Sprintf("ℹ️ %s was already sold outside the bot, position closed.", pos.Symbol))
			return
		}
	}

	result, err := o.router.Sell(ctx, signer, mintKey, amount, o.cfg.SlippageBps)
	if err != nil {
		// The position stays in the book; the monitor loop retries on
		// the next tick.
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("sell failed")
		o.recordFailedTrade(pos.UserID, pos.Mint, pos.Symbol, "SELL", pos.Strategy, pos.SpentSOL, err)
		return
	}

	o.retirePosition(pos)

	receivedSOL := price * float64(amount) / math.Pow10(tokenDecimalsGuess(pos))
	pnl := receivedSOL - pos.SpentSOL
	o.statsFor(pos.UserID).RecordTrade(pos.Strategy, pnl, time.Since(pos.OpenedAt))

	if err := o.db.ClosePosition(pos.ID, string(reason)); err != nil {
		log.Error().Err(err).Str("position", pos.ID).Msg("close position failed")
	}
	o.saveTrade(&database.TradeRecord{
		UserID:      pos.UserID,
		Mint:        pos.Mint,
		Symbol:      pos.Symbol,
		Side:        "SELL",
		Strategy:    string(pos.Strategy),
		AmountSOL:   floatDecimal(receivedSOL),
		TokenAmount: decimal.NewFromInt(int64(amount)),
		Price:       floatDecimal(price),
		TxSignature: result.Signature.String(),
		Status:      "executed",
		PnlSOL:      floatDecimal(pnl),
	})

	emoji := "🟢"
	if pnl < 0 {
		emoji = "🔴"
	}
	log.Info().
		Str("symbol", pos.Symbol).
		Str("reason", string(reason)).
		Float64("pnl_sol", pnl).
		Str("tx", result.Signature.String()).
		Msg(emoji + " position closed")
	o.notify(pos.UserID, fmt.Sprintf(
		"%s SELL %s (%s)\nPnL: %+.4f SOL (%.1f%%)\nhttps://solscan.io/tx/%s",
		emoji, pos.Symbol, string(reason), pnl, pos.ProfitPct(price), result.Signature,
	))
}

// sellAmount reconciles the recorded position size with the live token
// account balance. A zero balance means the tokens left the wallet some
// other way and there is nothing to swap. When the lookup itself fails
// the recorded amount is the best available answer.
func sellAmount(recorded, onChain uint64, lookupErr error) (amount uint64, alreadySold bool) {
	if lookupErr != nil {
		return recorded, false
	}
	if onChain == 0 {
		return 0, true
	}
	return onChain, false
}

// retirePosition drops a position from the book, arms the re-entry
// cooldown, and stops price tracking once no holder remains.
func (o *Orchestrator) retirePosition(pos *engine.Position) {
	o.book.Remove(pos.ID)
	o.tracker.StartCooldown(pos.UserID, pos.Mint)
	if o.book.Find(pos.UserID, pos.Mint) == nil {
		o.agg.Drop(pos.Mint)
		if o.birdeye != nil {
			o.birdeye.Unsubscribe(pos.Mint)
		}
	}
}

// tokenDecimalsGuess recovers decimals from the recorded entry: entry
// price and spent SOL pin the token quantity scale.
func tokenDecimalsGuess(pos *engine.Position) int {
	if pos.EntryPrice <= 0 || pos.SpentSOL <= 0 || pos.Amount == 0 {
		return 9
	}
	uiAmount := pos.SpentSOL / pos.EntryPrice
	ratio := float64(pos.Amount) / uiAmount
	d := int(math.Round(math.Log10(ratio)))
	if d < 0 || d > 12 {
		return 9
	}
	return d
}

// observeFill polls the buyer's token account until the purchased
// tokens land, returning the raw amount and the mint decimals.
func (o *Orchestrator) observeFill(ctx context.Context, owner, mint solana.PublicKey, estimate uint64) (uint64, uint8, error) {
	info, err := o.checker.Check(ctx, mint)
	if err != nil {
		return estimate, 9, err
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return estimate, info.Decimals, err
	}

	for attempt := 0; attempt < 10; attempt++ {
		amount, err := o.net.TokenBalance(ctx, ata)
		if err == nil && amount > 0 {
			return amount, info.Decimals, nil
		}
		select {
		case <-ctx.Done():
			return estimate, info.Decimals, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return estimate, info.Decimals, fmt.Errorf("token balance never appeared for %s", mint)
}

func (o *Orchestrator) recordFailedTrade(userID int64, mint, symbol, side string, strategy engine.Strategy, amountSOL float64, cause error) {
	o.saveTrade(&database.TradeRecord{
		UserID:       userID,
		Mint:         mint,
		Symbol:       symbol,
		Side:         side,
		Strategy:     string(strategy),
		AmountSOL:    floatDecimal(amountSOL),
		Status:       "failed",
		ErrorMessage: cause.Error(),
	})
}

func (o *Orchestrator) saveTrade(trade *database.TradeRecord) {
	if err := o.db.SaveTrade(trade); err != nil {
		log.Error().Err(err).Msg("persist trade failed")
	}
}
