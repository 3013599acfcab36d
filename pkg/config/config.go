package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Mode selects the execution backend once at process start.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// Config holds environment-driven settings for the engine.
type Config struct {
	Port string

	// Execution
	Mode           Mode
	Pair           string
	InitialBalance decimal.Decimal

	// Trade sizing. A fixed amount wins over the percentage when set.
	TradeAmount        decimal.Decimal // 0 = use percentage
	TradeAmountPercent decimal.Decimal
	MinReserve         decimal.Decimal // 0 = use percentage
	MinReservePercent  decimal.Decimal

	// Trailing stop
	RetentionFactor decimal.Decimal

	// Scheduler
	CycleInterval time.Duration

	// Kraken venue
	KrakenAPIKey      string
	KrakenAPISecret   string
	KrakenBaseURL     string
	OHLCInterval      int // minutes per candle for indicator history
	VenueTimeout      time.Duration
	FillConfirmWindow time.Duration

	// Advisory signal
	AdvisorURL     string
	AdvisorAPIKey  string
	AdvisorModel   string
	AdvisorTimeout time.Duration

	// Alerts
	TelegramToken  string
	TelegramChatID string

	// Database
	DBPath string

	// Strategy thresholds, loaded from the YAML file when present.
	Strategy StrategyConfig

	// Development
	UseMockFeed bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	mode := Mode(strings.ToLower(getEnv("TRADING_MODE", "paper")))
	if mode != ModePaper && mode != ModeLive {
		return nil, fmt.Errorf("unknown trading mode %q", mode)
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Mode:               mode,
		Pair:               getEnv("TRADING_PAIR", "XBTUSD"),
		InitialBalance:     getEnvDecimal("INITIAL_BALANCE", "1000"),
		TradeAmount:        getEnvDecimal("TRADE_AMOUNT", "0"),
		TradeAmountPercent: getEnvDecimal("TRADE_AMOUNT_PERCENT", "10"),
		MinReserve:         getEnvDecimal("MIN_RESERVE", "0"),
		MinReservePercent:  getEnvDecimal("MIN_RESERVE_PERCENT", "20"),
		RetentionFactor:    getEnvDecimal("RETENTION_FACTOR", "0.99"),
		CycleInterval:      getEnvDuration("CYCLE_INTERVAL", time.Hour),
		KrakenAPIKey:       os.Getenv("KRAKEN_API_KEY"),
		KrakenAPISecret:    os.Getenv("KRAKEN_API_SECRET"),
		KrakenBaseURL:      getEnv("KRAKEN_BASE_URL", "https://api.kraken.com"),
		OHLCInterval:       getEnvInt("OHLC_INTERVAL_MINUTES", 60),
		VenueTimeout:       getEnvDuration("VENUE_TIMEOUT", 15*time.Second),
		FillConfirmWindow:  getEnvDuration("FILL_CONFIRM_WINDOW", 30*time.Second),
		AdvisorURL:         getEnv("ADVISOR_URL", "https://api.openai.com/v1/chat/completions"),
		AdvisorAPIKey:      os.Getenv("ADVISOR_API_KEY"),
		AdvisorModel:       getEnv("ADVISOR_MODEL", "gpt-4o-mini"),
		AdvisorTimeout:     getEnvDuration("ADVISOR_TIMEOUT", 20*time.Second),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:     os.Getenv("TELEGRAM_CHAT_ID"),
		DBPath:             getEnv("DB_PATH", "./data/swingbot.db"),
		UseMockFeed:        getEnv("USE_MOCK_FEED", "false") == "true",
	}

	strat, err := LoadStrategy(getEnv("STRATEGY_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("load strategy file: %w", err)
	}
	cfg.Strategy = strat

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	one := decimal.NewFromInt(1)
	if c.RetentionFactor.LessThanOrEqual(decimal.Zero) || c.RetentionFactor.GreaterThanOrEqual(one) {
		return fmt.Errorf("retention factor must be in (0,1), got %s", c.RetentionFactor)
	}
	if c.InitialBalance.IsNegative() {
		return fmt.Errorf("initial balance must be >= 0, got %s", c.InitialBalance)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be positive, got %s", c.CycleInterval)
	}
	if c.Mode == ModeLive && c.KrakenAPIKey == "" {
		return fmt.Errorf("live mode requires KRAKEN_API_KEY")
	}
	return c.Strategy.validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDecimal(key, def string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(def)
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
