package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the sniper
type Config struct {
	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Mode
	DryRun bool
	Debug  bool

	// Solana RPC
	RPCURL     string
	WSURL      string
	JitoURL    string
	JitoTip    uint64 // lamports
	Commitment string

	// Market data
	DexScreenerURL string
	JupiterURL     string
	BirdeyeURL     string
	BirdeyeWSURL   string
	BirdeyeAPIKey  string

	// Discovery
	DiscoveryInterval time.Duration
	SniperEnabled     bool
	MinLiquidityUSD   decimal.Decimal
	MinVolumeUSD      decimal.Decimal

	// Strategy
	StrategyInterval time.Duration
	MonitorInterval  time.Duration
	TradeCooldown    time.Duration
	MaxOpenPositions int
	SlippageBps      int

	// Wallet custody
	EncryptionKey string // 32-byte hex, AES-256-GCM

	// Database
	DatabaseURL  string
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Telegram
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Mode
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		// Solana RPC
		RPCURL:     getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		WSURL:      getEnv("SOLANA_WS_URL", "wss://api.mainnet-beta.solana.com"),
		JitoURL:    getEnv("JITO_BLOCK_ENGINE_URL", "https://mainnet.block-engine.jito.wtf/api/v1/bundles"),
		JitoTip:    uint64(getEnvInt("JITO_TIP_LAMPORTS", 10000)),
		Commitment: getEnv("SOLANA_COMMITMENT", "processed"),

		// Market data
		DexScreenerURL: getEnv("DEXSCREENER_API_URL", "https://api.dexscreener.com"),
		JupiterURL:     getEnv("JUPITER_API_URL", "https://quote-api.jup.ag/v6"),
		BirdeyeURL:     getEnv("BIRDEYE_API_URL", "https://public-api.birdeye.so"),
		BirdeyeWSURL:   getEnv("BIRDEYE_WS_URL", "wss://public-api.birdeye.so/socket"),
		BirdeyeAPIKey:  os.Getenv("BIRDEYE_API_KEY"),

		// Discovery
		DiscoveryInterval: getEnvDuration("DISCOVERY_INTERVAL", 60*time.Second),
		SniperEnabled:     getEnvBool("SNIPER_ENABLED", true),
		MinLiquidityUSD:   getEnvDecimal("MIN_LIQUIDITY_USD", decimal.NewFromInt(20000)),
		MinVolumeUSD:      getEnvDecimal("MIN_VOLUME_USD", decimal.NewFromInt(5000)),

		// Strategy
		StrategyInterval: getEnvDuration("STRATEGY_INTERVAL", 30*time.Second),
		MonitorInterval:  getEnvDuration("MONITOR_INTERVAL", 10*time.Second),
		TradeCooldown:    getEnvDuration("TRADE_COOLDOWN", 600*time.Second),
		MaxOpenPositions: getEnvInt("MAX_OPEN_POSITIONS", 5),
		SlippageBps:      getEnvInt("SLIPPAGE_BPS", 500),

		// Wallet custody
		EncryptionKey: os.Getenv("WALLET_ENCRYPTION_KEY"),

		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: getEnv("DATABASE_PATH", "data/solsniper.db"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Validate required fields
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("WALLET_ENCRYPTION_KEY is required")
	}
	if len(cfg.EncryptionKey) != 64 {
		return nil, fmt.Errorf("WALLET_ENCRYPTION_KEY must be 32 bytes hex-encoded")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
