// SolSniper - Autonomous on-chain trading engine for Solana
//
// The bot hunts fresh tokens across Raydium pools, rejects anything
// whose mint or freeze authority is still live, and trades survivors
// with volatility-adaptive trailing stops.
//
// Pipeline:
// 1. Discover candidates from aggregator feeds and pool-init logs
// 2. Classify mint safety from raw on-chain account data
// 3. Score dip/breakout entries from tick-aggregated candles
// 4. Execute through the block engine with RPC fallback
// 5. Trail every position and report to Telegram
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/solsniper/internal/bot"
	"github.com/web3guy0/solsniper/internal/config"
	"github.com/web3guy0/solsniper/internal/database"
	"github.com/web3guy0/solsniper/internal/jupiter"
	"github.com/web3guy0/solsniper/internal/marketdata"
	"github.com/web3guy0/solsniper/internal/network"
	"github.com/web3guy0/solsniper/internal/orchestrator"
	"github.com/web3guy0/solsniper/internal/raydium"
	"github.com/web3guy0/solsniper/internal/safety"
	"github.com/web3guy0/solsniper/internal/swap"
	"github.com/web3guy0/solsniper/internal/wallet"
)

const version = "1.2.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Bool("dry_run", cfg.DryRun).
		Bool("sniper", cfg.SniperEnabled).
		Msg("⚡ SolSniper starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	dbPath := cfg.DatabaseURL
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	db, err := database.New(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// ====== CORE COMPONENTS ======

	// 1. Wallet vault - custodial key storage
	vault, err := wallet.NewVault(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize wallet vault")
	}

	// 2. Network layer - RPC, websocket and block engine
	jito := network.NewJitoClient(cfg.JitoURL, cfg.JitoTip)
	net := network.New(cfg.RPCURL, cfg.WSURL, jito)
	log.Info().Str("rpc", cfg.RPCURL).Msg("🌐 Solana RPC configured")

	// 3. AMM client and safety classifier
	amm := raydium.NewClient(net)
	checker := safety.NewChecker(net)

	// 4. Execution chain - native pools first, aggregator fallback
	router := swap.NewRouter(
		swap.NewRaydiumProvider(net, amm, jito),
		jupiter.New(cfg.JupiterURL, net),
	)

	// 5. Market data - polling, streaming and discovery
	dex := marketdata.NewDexScreener(cfg.DexScreenerURL)
	var birdeye *marketdata.BirdeyeStream
	if cfg.BirdeyeAPIKey != "" {
		birdeye = marketdata.NewBirdeyeStream(cfg.BirdeyeWSURL, cfg.BirdeyeAPIKey)
	} else {
		log.Warn().Msg("⚠️ No Birdeye API key - price stream disabled, polling only")
	}
	discovery := marketdata.NewDiscovery(dex, cfg.MinLiquidityUSD, cfg.MinVolumeUSD)

	// 6. Orchestrator - the trading loops
	orch := orchestrator.New(cfg, db, net, amm, checker, router, vault, dex, birdeye, discovery)

	// ====== TELEGRAM BOT ======
	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg, orch)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
		}
		telegramBot.Start()
	} else {
		log.Warn().Msg("⚠️ No Telegram token - running headless, no user commands")
	}

	// Run loops in the background so the signal handler stays in charge
	errCh := make(chan error, 1)
	go func() {
		errCh <- orch.Run(ctx)
	}()

	// ====== STARTUP COMPLETE ======
	log.Info().Msg("✅ All systems online")
	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════╗")
	log.Info().Msg("║         SOLSNIPER ENGINE ACTIVE          ║")
	log.Info().Msg("║                                          ║")
	log.Info().Msg("║  → Scan fresh pools and token profiles   ║")
	log.Info().Msg("║  → Reject live mint/freeze authorities   ║")
	log.Info().Msg("║  → Enter scored dips and breakouts       ║")
	log.Info().Msg("║  → Trail exits on volatility brackets    ║")
	log.Info().Msg("╚══════════════════════════════════════════╝")
	log.Info().Msg("")
	log.Info().Msg("💡 Use /help in Telegram for commands")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	orchDone := false
	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case err := <-errCh:
		orchDone = true
		if err != nil {
			log.Error().Err(err).Msg("🛑 Orchestrator stopped")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	if telegramBot != nil {
		telegramBot.Stop()
	}
	cancel()
	if !orchDone {
		<-errCh
	}

	log.Info().Msg("👋 Goodbye!")
}
