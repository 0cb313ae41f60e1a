package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/web3guy0/solsniper/internal/database"
	"github.com/web3guy0/solsniper/internal/engine"
	"github.com/web3guy0/solsniper/internal/marketdata"
	"github.com/web3guy0/solsniper/internal/worker"
)

// restore reloads open positions into the book after a restart and
// surfaces withdrawals whose outcome the previous run never recorded.
func (o *Orchestrator) restore(ctx context.Context) error {
	positions, err := o.db.OpenPositions()
	if err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}
	for _, rec := range positions {
		pos := &engine.Position{
			ID:           rec.ID,
			UserID:       rec.UserID,
			Mint:         rec.Mint,
			Symbol:       rec.Symbol,
			Strategy:     engine.Strategy(rec.Strategy),
			EntryPrice:   rec.EntryPrice.InexactFloat64(),
			Amount:       uint64(rec.TokenAmount.IntPart()),
			SpentSOL:     rec.SpentSOL.InexactFloat64(),
			HighestPrice: rec.HighestPrice.InexactFloat64(),
			ATRAtEntry:   rec.ATRAtEntry.InexactFloat64(),
			OpenedAt:     rec.OpenedAt,
		}
		o.book.Add(pos)
		o.watchCandidate(marketdata.Candidate{Mint: pos.Mint, Symbol: pos.Symbol, PriceSOL: pos.HighestPrice})
	}
	if len(positions) > 0 {
		log.Info().Int("positions", len(positions)).Msg("♻️ open positions restored")
	}

	pending, err := o.db.PendingWithdrawals()
	if err != nil {
		return fmt.Errorf("restore withdrawals: %w", err)
	}
	for _, w := range pending {
		// The transfer may or may not have landed before the crash;
		// a human has to reconcile against chain state.
		log.Warn().
			Str("withdrawal", w.ID).
			Int64("user", w.UserID).
			Str("amount_sol", w.AmountSOL.String()).
			Msg("⚠️ withdrawal left PENDING by previous run")
		o.notify(w.UserID, fmt.Sprintf(
			"⚠️ Withdrawal %s was interrupted. Check your destination wallet before retrying.", w.ID[:8]))
	}
	return nil
}

// RegisterUser creates (or reactivates) a user, generating a custodial
// wallet on first contact.
func (o *Orchestrator) RegisterUser(chatID int64, username string) (*database.User, error) {
	user, err := o.db.GetUser(chatID)
	if err == nil {
		user.Active = true
		user.Username = username
		return user, o.db.SaveUser(user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pubkey, sealed, err := o.vault.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate wallet: %w", err)
	}
	user = &database.User{
		ChatID:        chatID,
		Username:      username,
		WalletAddress: pubkey.String(),
		EncryptedKey:  sealed,
		Active:        true,
	}
	if err := o.db.SaveUser(user); err != nil {
		return nil, err
	}
	log.Info().Int64("user", chatID).Str("wallet", pubkey.String()).Msg("👤 user registered")
	return user, nil
}

// SetAutoTrade toggles automatic trading for a user.
func (o *Orchestrator) SetAutoTrade(chatID int64, enabled bool) error {
	user, err := o.db.GetUser(chatID)
	if err != nil {
		return err
	}
	user.AutoTrade = enabled
	return o.db.SaveUser(user)
}

// WalletBalance returns a user's SOL balance.
func (o *Orchestrator) WalletBalance(ctx context.Context, chatID int64) (float64, string, error) {
	user, err := o.db.GetUser(chatID)
	if err != nil {
		return 0, "", err
	}
	pubkey, err := solana.PublicKeyFromBase58(user.WalletAddress)
	if err != nil {
		return 0, "", fmt.Errorf("stored wallet address invalid: %w", err)
	}
	return float64(o.net.Balance(ctx, pubkey)) / lamportsPerSOL, user.WalletAddress, nil
}

// Withdraw moves SOL from the custodial wallet to a destination in two
// phases: the intent is persisted PENDING before the transfer is
// submitted, then resolved by the outcome.
func (o *Orchestrator) Withdraw(ctx context.Context, chatID int64, destination string, amountSOL float64) (string, error) {
	user, err := o.db.GetUser(chatID)
	if err != nil {
		return "", err
	}
	dest, err := solana.PublicKeyFromBase58(destination)
	if err != nil {
		return "", fmt.Errorf("invalid destination address: %w", err)
	}
	if amountSOL <= 0 {
		return "", errors.New("amount must be positive")
	}

	signer, err := o.vault.Decrypt(user.EncryptedKey)
	if err != nil {
		return "", fmt.Errorf("unseal wallet: %w", err)
	}
	balance := o.net.Balance(ctx, signer.PublicKey())
	lamports := uint64(amountSOL * lamportsPerSOL)
	if lamports+uint64(0.005*lamportsPerSOL) > balance {
		return "", fmt.Errorf("insufficient balance: have %.4f SOL", float64(balance)/lamportsPerSOL)
	}

	withdrawal := &database.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      chatID,
		Destination: destination,
		AmountSOL:   floatDecimal(amountSOL),
	}
	if err := o.db.CreateWithdrawal(withdrawal); err != nil {
		return "", fmt.Errorf("record withdrawal: %w", err)
	}

	blockhash, err := o.net.LatestBlockhash(ctx)
	if err != nil {
		o.db.FailWithdrawal(withdrawal.ID, err.Error())
		return "", err
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, signer.PublicKey(), dest).Build()},
		blockhash,
		solana.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		o.db.FailWithdrawal(withdrawal.ID, err.Error())
		return "", fmt.Errorf("assemble transfer: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	}); err != nil {
		o.db.FailWithdrawal(withdrawal.ID, err.Error())
		return "", fmt.Errorf("sign transfer: %w", err)
	}

	sig, err := o.net.SubmitWithRetry(ctx, tx)
	if err != nil {
		o.db.FailWithdrawal(withdrawal.ID, err.Error())
		return "", fmt.Errorf("submit transfer: %w", err)
	}
	if err := o.db.CompleteWithdrawal(withdrawal.ID, sig.String()); err != nil {
		log.Error().Err(err).Str("withdrawal", withdrawal.ID).Msg("mark withdrawal completed failed")
	}

	log.Info().
		Int64("user", chatID).
		Float64("amount_sol", amountSOL).
		Str("tx", sig.String()).
		Msg("💸 withdrawal completed")
	return sig.String(), nil
}

// ManualBuy opens a position on user request, bypassing signal scoring
// but not safety or sizing.
func (o *Orchestrator) ManualBuy(ctx context.Context, chatID int64, mint string) error {
	user, err := o.db.GetUser(chatID)
	if err != nil {
		return err
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return fmt.Errorf("invalid mint address: %w", err)
	}

	info, err := o.checker.Check(ctx, mintKey)
	if err != nil {
		return fmt.Errorf("safety check: %w", err)
	}
	if !info.Safe() {
		return errors.New("token failed safety check: authorities not renounced")
	}
	if o.book.Find(chatID, mint) != nil {
		return errors.New("position already open for this token")
	}
	if !o.tracker.TryAcquire(chatID, mint) {
		return errors.New("trade already in flight for this token")
	}

	price, volume, ok, err := o.dex.Price(ctx, mint)
	if err == nil && ok {
		o.agg.Record(mint, price, volume)
	}

	signal := &engine.Signal{Strategy: engine.StrategyDip, Score: 100, Analysis: &engine.Analysis{}}
	if a := engine.Analyze(o.agg.Candles(mint)); a != nil {
		signal.Analysis = a
	}

	accepted := o.pool.Submit(worker.Command{
		Kind:  worker.KindBuy,
		Label: o.symbolFor(mint),
		Run: func(cctx context.Context) {
			defer o.tracker.Release(chatID, mint)
			o.executeBuy(cctx, user, mint, signal)
		},
	})
	if !accepted {
		o.tracker.Release(chatID, mint)
		return errors.New("trading queue is full, try again shortly")
	}
	o.tracker.StartCooldown(chatID, mint)
	return nil
}

// ManualSell closes a user's position at the next price regardless of
// stops.
func (o *Orchestrator) ManualSell(ctx context.Context, chatID int64, mint string) error {
	pos := o.book.Find(chatID, mint)
	if pos == nil {
		return errors.New("no open position for this token")
	}
	price, ok := o.latestPrice(ctx, mint)
	if !ok {
		price = pos.EntryPrice
	}
	if !o.tracker.TryAcquire(chatID, mint) {
		return errors.New("trade already in flight for this token")
	}

	accepted := o.pool.Submit(worker.Command{
		Kind:  worker.KindSell,
		Label: pos.Symbol,
		Run: func(cctx context.Context) {
			defer o.tracker.Release(chatID, mint)
			o.executeSell(cctx, pos, engine.ExitManual, price)
		},
	})
	if !accepted {
		o.tracker.Release(chatID, mint)
		return errors.New("trading queue is full, try again shortly")
	}
	return nil
}

// Stats returns persisted statistics for a user.
func (o *Orchestrator) Stats(chatID int64) (map[string]interface{}, error) {
	return o.db.GetStats(chatID)
}

// RecentTrades returns a user's latest trades.
func (o *Orchestrator) RecentTrades(chatID int64, limit int) ([]database.TradeRecord, error) {
	return o.db.RecentTrades(chatID, limit)
}
