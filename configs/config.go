package configs

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Feed     PriceFeedConfig
	Auth     AuthConfig
	Log      LogConfig
	Trading  TradingConfig
	Telegram TelegramConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string `env:"PORT" envDefault:"8080"`
	OpsPort string `env:"OPS_PORT" envDefault:"9090"`
	Env     string `env:"GO_ENV" envDefault:"development"`
}

// DatabaseConfig holds database configuration. An empty URL runs the live
// ledger in memory.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string        `env:"REDIS_URL"`
	QuoteTTL time.Duration `env:"REDIS_QUOTE_TTL" envDefault:"2s"`
}

// PriceFeedConfig holds the live price feed configuration. An empty URL
// serves live quotes from the generator.
type PriceFeedConfig struct {
	URL     string        `env:"PRICE_FEED_URL"`
	Timeout time.Duration `env:"PRICE_FEED_TIMEOUT" envDefault:"5s"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level             string `env:"LOG_LEVEL" envDefault:"info"`
	Encoding          string `env:"LOG_ENCODING" envDefault:"json"`
	Development       bool   `env:"LOG_DEVELOPMENT"`
	DisableStacktrace bool   `env:"LOG_DISABLE_STACKTRACE"`
}

// TradingConfig holds accounting engine defaults
type TradingConfig struct {
	StartingBalance decimal.Decimal `env:"STARTING_BALANCE" envDefault:"100000"`
	MaxLeverage     decimal.Decimal `env:"MAX_LEVERAGE" envDefault:"500"`
	TickSchedule    string          `env:"TICK_SCHEDULE" envDefault:"*/10 * * * * *"`
	RankSchedule    string          `env:"RANK_SCHEDULE" envDefault:"0 * * * * *"`
	TickTimeout     time.Duration   `env:"TICK_TIMEOUT" envDefault:"8s"`
	DemoSeed        int64           `env:"DEMO_SEED" envDefault:"1"`
	JournalPath     string          `env:"JOURNAL_PATH"`
	InstrumentsPath string          `env:"INSTRUMENTS_PATH"`
}

// TelegramConfig holds auto-close notification settings
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `env:"TELEGRAM_CHAT_ID"`
}

// Load parses configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if !c.Trading.StartingBalance.IsPositive() {
		return fmt.Errorf("STARTING_BALANCE must be positive, got %s", c.Trading.StartingBalance)
	}
	if c.Trading.MaxLeverage.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MAX_LEVERAGE must be at least 1, got %s", c.Trading.MaxLeverage)
	}
	if c.Server.Env == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_ENCODING must be json or console, got %q", c.Log.Encoding)
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
