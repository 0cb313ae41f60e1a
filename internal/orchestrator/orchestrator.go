// Package orchestrator wires discovery, safety, strategy and execution
// into the long-running trading loops.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/web3guy0/solsniper/internal/config"
	"github.com/web3guy0/solsniper/internal/database"
	"github.com/web3guy0/solsniper/internal/engine"
	"github.com/web3guy0/solsniper/internal/marketdata"
	"github.com/web3guy0/solsniper/internal/network"
	"github.com/web3guy0/solsniper/internal/raydium"
	"github.com/web3guy0/solsniper/internal/safety"
	"github.com/web3guy0/solsniper/internal/state"
	"github.com/web3guy0/solsniper/internal/swap"
	"github.com/web3guy0/solsniper/internal/wallet"
	"github.com/web3guy0/solsniper/internal/worker"
)

// Notifier pushes user-facing messages; the Telegram bot implements it.
type Notifier interface {
	Notify(chatID int64, text string)
}

// pacing between per-token polls inside one strategy pass, so a long
// watchlist does not hammer the aggregator API.
const pollPacing = 500 * time.Millisecond

// Orchestrator owns the trading loops and the shared state they act on.
type Orchestrator struct {
	cfg       *config.Config
	db        *database.Database
	net       *network.Client
	amm       *raydium.Client
	checker   *safety.Checker
	router    *swap.Router
	vault     *wallet.Vault
	dex       *marketdata.DexScreener
	birdeye   *marketdata.BirdeyeStream
	discovery *marketdata.Discovery

	agg     *engine.Aggregator
	book    *engine.Book
	tracker *state.Tracker
	pool    *worker.Pool

	statsMu sync.Mutex
	stats   map[int64]*engine.PortfolioStats

	watchMu sync.Mutex
	watch   map[string]marketdata.Candidate // mint -> candidate

	sigMu   sync.Mutex
	seenSig map[solana.Signature]struct{}

	notifier Notifier
}

// New assembles an orchestrator from its dependencies.
func New(
	cfg *config.Config,
	db *database.Database,
	net *network.Client,
	amm *raydium.Client,
	checker *safety.Checker,
	router *swap.Router,
	vault *wallet.Vault,
	dex *marketdata.DexScreener,
	birdeye *marketdata.BirdeyeStream,
	discovery *marketdata.Discovery,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		db:        db,
		net:       net,
		amm:       amm,
		checker:   checker,
		router:    router,
		vault:     vault,
		dex:       dex,
		birdeye:   birdeye,
		discovery: discovery,
		agg:       engine.NewAggregator(),
		book:      engine.NewBook(),
		tracker:   state.NewTracker(cfg.TradeCooldown),
		pool:      worker.NewPool(4, 64),
		stats:     make(map[int64]*engine.PortfolioStats),
		watch:     make(map[string]marketdata.Candidate),
		seenSig:   make(map[solana.Signature]struct{}),
	}

	if birdeye != nil {
		birdeye.OnPrice(func(mint string, priceSOL, volumeUSD float64) {
			o.agg.Record(mint, priceSOL, volumeUSD)
		})
	}
	return o
}

// SetNotifier attaches the user-facing message sink.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// Book exposes the open position book, used by the bot for /positions.
func (o *Orchestrator) Book() *engine.Book {
	return o.book
}

func (o *Orchestrator) notify(chatID int64, text string) {
	if o.notifier != nil {
		o.notifier.Notify(chatID, text)
	}
}

func (o *Orchestrator) statsFor(userID int64) *engine.PortfolioStats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	s, ok := o.stats[userID]
	if !ok {
		s = engine.NewPortfolioStats()
		o.stats[userID] = s
	}
	return s
}

func (o *Orchestrator) watchCandidate(c marketdata.Candidate) {
	o.watchMu.Lock()
	o.watch[c.Mint] = c
	o.watchMu.Unlock()

	if o.birdeye != nil && o.birdeye.IsConnected() {
		if err := o.birdeye.Subscribe(c.Mint); err != nil {
			log.Warn().Err(err).Str("mint", c.Mint).Msg("stream subscribe failed")
		}
	}
	// Seed the series so the polling fallback has a starting tick.
	o.agg.Record(c.Mint, c.PriceSOL, c.Volume24hUSD)
}

func (o *Orchestrator) symbolFor(mint string) string {
	o.watchMu.Lock()
	defer o.watchMu.Unlock()
	if c, ok := o.watch[mint]; ok && c.Symbol != "" {
		return c.Symbol
	}
	if len(mint) > 8 {
		return mint[:8]
	}
	return mint
}

// Run starts every loop and blocks until the context ends, then drains
// the worker pool.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.restore(ctx); err != nil {
		return err
	}

	if o.birdeye != nil {
		if err := o.birdeye.Connect(); err != nil {
			log.Warn().Err(err).Msg("price stream unavailable, polling only")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.discoveryLoop(gctx) })
	g.Go(func() error { return o.strategyLoop(gctx) })
	g.Go(func() error { return o.monitorLoop(gctx) })
	g.Go(func() error { return o.reportLoop(gctx) })
	if o.cfg.SniperEnabled {
		g.Go(func() error { o.sniperLoop(gctx); return nil })
	}

	err := g.Wait()
	o.pool.Stop()
	if o.birdeye != nil {
		o.birdeye.Close()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// discoveryLoop surfaces new tokens, gates them through the safety
// classifier and adds survivors to the watchlist.
func (o *Orchestrator) discoveryLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		candidates, err := o.discovery.Scan(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("discovery scan failed")
			continue
		}

		for _, c := range candidates {
			mint, err := solana.PublicKeyFromBase58(c.Mint)
			if err != nil {
				continue
			}
			info, err := o.checker.Check(ctx, mint)
			if err != nil {
				log.Warn().Err(err).Str("mint", c.Mint).Msg("safety check failed")
				continue
			}
			if !info.Safe() {
				continue
			}

			log.Info().
				Str("mint", c.Mint).
				Str("symbol", c.Symbol).
				Float64("liquidity_usd", c.LiquidityUSD).
				Float64("quality", c.Quality).
				Msg("💎 gem passed safety gate")
			o.watchCandidate(c)
		}
	}
}

// strategyLoop scores every watched token and queues entries for
// auto-trading users. When the price stream is down it also polls
// prices, paced so the watchlist walk spreads over the interval.
func (o *Orchestrator) strategyLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.StrategyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		streaming := o.birdeye != nil && o.birdeye.IsConnected()

		o.watchMu.Lock()
		mints := make([]string, 0, len(o.watch))
		for mint := range o.watch {
			mints = append(mints, mint)
		}
		o.watchMu.Unlock()

		for _, mint := range mints {
			if !streaming {
				price, volume, ok, err := o.dex.Price(ctx, mint)
				if err != nil || !ok {
					continue
				}
				o.agg.Record(mint, price, volume)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(pollPacing):
				}
			}

			signal := engine.Evaluate(o.agg.Candles(mint))
			if signal == nil {
				continue
			}
			o.dispatchEntry(ctx, mint, signal)
		}
	}
}

func (o *Orchestrator) dispatchEntry(ctx context.Context, mint string, signal *engine.Signal) {
	users, err := o.db.AutoTradeUsers()
	if err != nil {
		log.Error().Err(err).Msg("load auto-trade users failed")
		return
	}

	for _, user := range users {
		user := user
		if o.book.Find(user.ChatID, mint) != nil {
			continue
		}
		if o.book.CountFor(user.ChatID) >= o.cfg.MaxOpenPositions {
			continue
		}
		if o.tracker.OnCooldown(user.ChatID, mint) {
			continue
		}
		if !o.tracker.TryAcquire(user.ChatID, mint) {
			continue
		}

		accepted := o.pool.Submit(worker.Command{
			Kind:  worker.KindBuy,
			Label: o.symbolFor(mint),
			Run: func(cctx context.Context) {
				defer o.tracker.Release(user.ChatID, mint)
				o.executeBuy(cctx, &user, mint, signal)
			},
		})
		if accepted {
			// Cooldown starts at the attempt, not at the fill. A buy
			// that errors out mid-flight must not leave the mint
			// eligible for an immediate re-entry storm.
			o.tracker.StartCooldown(user.ChatID, mint)
		} else {
			o.tracker.Release(user.ChatID, mint)
		}
	}
}

// monitorLoop walks open positions against fresh prices and queues
// exits the moment a stop fires.
func (o *Orchestrator) monitorLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for _, pos := range o.book.Snapshot() {
			price, ok := o.latestPrice(ctx, pos.Mint)
			if !ok {
				continue
			}

			reason := pos.Evaluate(price)
			if err := o.db.RaiseHighestPrice(pos.ID, floatDecimal(pos.High())); err != nil {
				log.Warn().Err(err).Str("position", pos.ID).Msg("persist high-water mark failed")
			}
			if reason == engine.ExitNone {
				continue
			}

			pos := pos
			if !o.tracker.TryAcquire(pos.UserID, pos.Mint) {
				continue
			}
			accepted := o.pool.Submit(worker.Command{
				Kind:  worker.KindSell,
				Label: pos.Symbol,
				Run: func(cctx context.Context) {
					defer o.tracker.Release(pos.UserID, pos.Mint)
					o.executeSell(cctx, pos, reason, price)
				},
			})
			if !accepted {
				o.tracker.Release(pos.UserID, pos.Mint)
			}
		}
	}
}

// latestPrice prefers the freshest candle close, falling back to an
// aggregator poll for positions whose stream went quiet.
func (o *Orchestrator) latestPrice(ctx context.Context, mint string) (float64, bool) {
	candles := o.agg.Candles(mint)
	if len(candles) > 0 {
		return candles[len(candles)-1].Close, true
	}
	price, volume, ok, err := o.dex.Price(ctx, mint)
	if err != nil || !ok {
		return 0, false
	}
	o.agg.Record(mint, price, volume)
	return price, true
}

// reportLoop posts hourly portfolio summaries to active users.
func (o *Orchestrator) reportLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		users, err := o.db.ActiveUsers()
		if err != nil {
			continue
		}
		for _, user := range users {
			summary := o.statsFor(user.ChatID).Summary()
			if summary.TotalTrades == 0 && o.book.CountFor(user.ChatID) == 0 {
				continue
			}
			o.notify(user.ChatID, formatSummary(summary, o.book.CountFor(user.ChatID)))
		}
	}
}

// sniperLoop listens for pool initializations on the AMM program and
// fast-tracks brand new tokens through safety straight to a buy.
func (o *Orchestrator) sniperLoop(ctx context.Context) {
	o.net.SubscribeProgramLogs(ctx, raydium.AMMProgramID, func(ev network.LogEvent) {
		joined := strings.Join(ev.Logs, " ")
		if !strings.Contains(joined, "initialize2") {
			return
		}
		if o.seenSignature(ev.Signature) {
			return
		}
		sig := ev.Signature
		// A markets-wide pool-init burst must not turn into a burst of
		// goroutines; the lookup runs on the same bounded pool as the
		// trades it may trigger, and a full queue just skips the pool.
		if !o.pool.Submit(worker.Command{
			Kind:  worker.KindSnipe,
			Label: sig.String(),
			Run: func(cctx context.Context) {
				o.handlePoolInit(cctx, sig)
			},
		}) {
			log.Warn().Str("signature", sig.String()).Msg("queue full, pool-init skipped")
		}
	})
}

// seenSignature records a sniped signature, reporting whether it was
// already handled. The subscription replays events across reconnects.
// The set clears wholesale at its cap; a replayed old signature past a
// clear just fails the pool-init lookup again.
func (o *Orchestrator) seenSignature(sig solana.Signature) bool {
	o.sigMu.Lock()
	defer o.sigMu.Unlock()

	if _, ok := o.seenSig[sig]; ok {
		return true
	}
	if len(o.seenSig) >= 10_000 {
		o.seenSig = make(map[solana.Signature]struct{})
	}
	o.seenSig[sig] = struct{}{}
	return false
}

func (o *Orchestrator) handlePoolInit(ctx context.Context, sig solana.Signature) {
	// The transaction may not be queryable at processed commitment yet.
	var mint solana.PublicKey
	found := false
	for attempt := 0; attempt < 3 && !found; attempt++ {
		res, err := o.net.Transaction(ctx, sig)
		if err != nil || res == nil || res.Meta == nil {
			time.Sleep(300 * time.Millisecond)
			continue
		}
		for _, bal := range res.Meta.PostTokenBalances {
			if !bal.Mint.Equals(raydium.WSOLMint) {
				mint = bal.Mint
				found = true
				break
			}
		}
	}
	if !found {
		return
	}

	info, err := o.checker.Check(ctx, mint)
	if err != nil || !info.Safe() {
		return
	}

	log.Info().Str("mint", mint.String()).Str("tx", sig.String()).Msg("🎯 new pool sniped")
	o.watchCandidate(marketdata.Candidate{Mint: mint.String(), Symbol: mint.String()[:8]})

	// Snipes skip indicator history: the edge is being first, sized as
	// a dip entry with no volatility reading yet.
	signal := &engine.Signal{
		Strategy: engine.StrategyDip,
		Score:    100,
		Analysis: &engine.Analysis{},
	}
	o.dispatchEntry(ctx, mint.String(), signal)
}
