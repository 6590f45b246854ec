package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ExchangeConfig     ExchangeConfig     `json:"exchange"`
	BotConfig          BotConfig          `json:"bot"`
	StrategyConfig     StrategyConfig     `json:"strategy"`
	RiskConfig         RiskConfig         `json:"risk"`
	KillSwitchConfig   KillSwitchConfig   `json:"kill_switch"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	RedisConfig        RedisConfig        `json:"redis"`
	ServerConfig       ServerConfig       `json:"server"`
	NotificationConfig NotificationConfig `json:"notification"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ExchangeConfig holds exchange connectivity configuration
type ExchangeConfig struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	BaseURL   string `json:"base_url"`
	TestNet   bool   `json:"testnet"`
	PaperMode bool   `json:"paper_mode"` // Simulated data and fills, no real orders
	Mode      string `json:"mode"`       // "spot" or "futures"
	Leverage  int    `json:"leverage"`   // Futures leverage, ignored for spot
}

// BotConfig selects the bot variant and its trading pairs
type BotConfig struct {
	AutoStart bool     `json:"auto_start"` // Start the bot on boot instead of waiting for the API
	Variant   string   `json:"variant"`    // single_pair, multi_pair, high_freq, high_freq_multi
	Symbols   []string `json:"symbols"`
}

// StrategyConfig holds strategy selection and tuning
type StrategyConfig struct {
	Name          string  `json:"name"` // crossover, confirmed, scalping, momentum, breakout
	ShortPeriod   int     `json:"short_period"`
	LongPeriod    int     `json:"long_period"`
	MinVolatility float64 `json:"min_volatility"`
	MaxVolatility float64 `json:"max_volatility"`
}

type RiskConfig struct {
	RiskPercent       float64 `json:"risk_percent"`        // % of balance risked per trade
	TradeAmount       float64 `json:"trade_amount"`        // Fixed cash per trade; overrides risk_percent when > 0
	StopLossPercent   float64 `json:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent"`
}

// KillSwitchConfig holds the loss-streak halt configuration
type KillSwitchConfig struct {
	Threshold int `json:"threshold"` // Consecutive losses before trading halts
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds the live status mirror configuration
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // Comma-separated CORS origins
	ProductionMode  bool   `json:"production_mode"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
	StartingBalance float64 `json:"starting_balance"` // Baseline for P&L reporting
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Exchange config
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.ExchangeConfig.SecretKey)
	cfg.ExchangeConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.ExchangeConfig.BaseURL)
	if cfg.ExchangeConfig.BaseURL == "" {
		cfg.ExchangeConfig.BaseURL = "https://api.binance.com"
	}
	if os.Getenv("EXCHANGE_TESTNET") != "" {
		cfg.ExchangeConfig.TestNet = getEnvOrDefault("EXCHANGE_TESTNET", "false") == "true"
	}
	if os.Getenv("PAPER_MODE") != "" {
		cfg.ExchangeConfig.PaperMode = getEnvOrDefault("PAPER_MODE", "true") == "true"
	}
	cfg.ExchangeConfig.Mode = getEnvOrDefault("EXCHANGE_MODE", defaultString(cfg.ExchangeConfig.Mode, "spot"))
	cfg.ExchangeConfig.Leverage = getEnvIntOrDefault("EXCHANGE_LEVERAGE", defaultInt(cfg.ExchangeConfig.Leverage, 1))

	// Bot config
	if os.Getenv("BOT_AUTO_START") != "" {
		cfg.BotConfig.AutoStart = getEnvOrDefault("BOT_AUTO_START", "false") == "true"
	}
	cfg.BotConfig.Variant = getEnvOrDefault("BOT_VARIANT", defaultString(cfg.BotConfig.Variant, "single_pair"))
	if symbols := os.Getenv("BOT_SYMBOLS"); symbols != "" {
		cfg.BotConfig.Symbols = splitAndTrim(symbols)
	}
	if len(cfg.BotConfig.Symbols) == 0 {
		cfg.BotConfig.Symbols = []string{"BTCUSDT"}
	}

	// Strategy config
	cfg.StrategyConfig.Name = getEnvOrDefault("STRATEGY_NAME", defaultString(cfg.StrategyConfig.Name, "crossover"))
	cfg.StrategyConfig.ShortPeriod = getEnvIntOrDefault("STRATEGY_SHORT_PERIOD", cfg.StrategyConfig.ShortPeriod)
	cfg.StrategyConfig.LongPeriod = getEnvIntOrDefault("STRATEGY_LONG_PERIOD", cfg.StrategyConfig.LongPeriod)
	cfg.StrategyConfig.MinVolatility = getEnvFloatOrDefault("STRATEGY_MIN_VOLATILITY", cfg.StrategyConfig.MinVolatility)
	cfg.StrategyConfig.MaxVolatility = getEnvFloatOrDefault("STRATEGY_MAX_VOLATILITY", cfg.StrategyConfig.MaxVolatility)

	// Risk config
	cfg.RiskConfig.RiskPercent = getEnvFloatOrDefault("RISK_PERCENT", cfg.RiskConfig.RiskPercent)
	cfg.RiskConfig.TradeAmount = getEnvFloatOrDefault("TRADE_AMOUNT", cfg.RiskConfig.TradeAmount)
	cfg.RiskConfig.StopLossPercent = getEnvFloatOrDefault("STOP_LOSS_PERCENT", cfg.RiskConfig.StopLossPercent)
	cfg.RiskConfig.TakeProfitPercent = getEnvFloatOrDefault("TAKE_PROFIT_PERCENT", cfg.RiskConfig.TakeProfitPercent)

	// Kill switch config
	cfg.KillSwitchConfig.Threshold = getEnvIntOrDefault("KILL_SWITCH_THRESHOLD", cfg.KillSwitchConfig.Threshold)

	// Database config
	if os.Getenv("DB_ENABLED") != "" {
		cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "false") == "true"
	}
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultString(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "tradingbot"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	if os.Getenv("REDIS_ENABLED") != "" {
		cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	}
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", defaultString(cfg.RedisConfig.Addr, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	if os.Getenv("SERVER_PRODUCTION") != "" {
		cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", "false") == "true"
	}
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))
	cfg.ServerConfig.StartingBalance = getEnvFloatOrDefault("STARTING_BALANCE", cfg.ServerConfig.StartingBalance)
	if cfg.ServerConfig.StartingBalance <= 0 {
		cfg.ServerConfig.StartingBalance = 10000.0
	}

	// Notification config
	if os.Getenv("NOTIFICATIONS_ENABLED") != "" {
		cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", "false") == "true"
	}
	if os.Getenv("TELEGRAM_ENABLED") != "" {
		cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true"
	}
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	if os.Getenv("DISCORD_ENABLED") != "" {
		cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", "false") == "true"
	}
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultString(cfg.LoggingConfig.Output, "stdout"))
	if os.Getenv("LOG_JSON") != "" {
		cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// AllowedOriginsList splits the comma-separated CORS origins.
func (s ServerConfig) AllowedOriginsList() []string {
	if s.AllowedOrigins == "" {
		return nil
	}
	return splitAndTrim(s.AllowedOrigins)
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ExchangeConfig: ExchangeConfig{
			APIKey:    "your_api_key_here",
			SecretKey: "your_secret_key_here",
			BaseURL:   "https://api.binance.com",
			TestNet:   true,
			PaperMode: true,
			Mode:      "spot",
			Leverage:  1,
		},
		BotConfig: BotConfig{
			AutoStart: false,
			Variant:   "single_pair",
			Symbols:   []string{"BTCUSDT"},
		},
		StrategyConfig: StrategyConfig{
			Name:          "crossover",
			ShortPeriod:   9,
			LongPeriod:    21,
			MinVolatility: 0.5,
			MaxVolatility: 5.0,
		},
		RiskConfig: RiskConfig{
			RiskPercent:       1.0,
			StopLossPercent:   2.0,
			TakeProfitPercent: 3.0,
		},
		KillSwitchConfig: KillSwitchConfig{
			Threshold: 3,
		},
		DatabaseConfig: DatabaseConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "tradingbot",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ShutdownTimeout: 10,
			StartingBalance: 10000,
		},
		NotificationConfig: NotificationConfig{
			Enabled: false,
			Telegram: TelegramConfig{
				Enabled:  false,
				BotToken: "",
				ChatID:   "",
			},
			Discord: DiscordConfig{
				Enabled:    false,
				WebhookURL: "",
			},
		},
		LoggingConfig: LoggingConfig{
			Level:      "info",
			Output:     "stdout",
			JSONFormat: true,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
