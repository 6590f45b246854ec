package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-trading-controller/config"
	"crypto-trading-controller/internal/api"
	"crypto-trading-controller/internal/bot"
	"crypto-trading-controller/internal/database"
	"crypto-trading-controller/internal/events"
	"crypto-trading-controller/internal/logging"
	"crypto-trading-controller/internal/market"
	"crypto-trading-controller/internal/notification"
	"crypto-trading-controller/internal/strategy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.Init(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Output:     logOutput(cfg.LoggingConfig.Output),
	})
	logger := logging.Component("main")
	logger.Info().Msg("structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()

	// Initialize notification manager and subscribe it to the bus
	if cfg.NotificationConfig.Enabled {
		notifyManager := notification.NewManager()

		if cfg.NotificationConfig.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  cfg.NotificationConfig.Telegram.Enabled,
			}))
			logger.Info().Msg("Telegram notifications enabled")
		}

		if cfg.NotificationConfig.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    cfg.NotificationConfig.Discord.Enabled,
			}))
			logger.Info().Msg("Discord notifications enabled")
		}

		notifyManager.SubscribeToBus(eventBus)
	}

	// Initialize database
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(context.Background()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		repo = database.NewRepository(db)
		logger.Info().Msg("database connected, migrations applied")
	} else {
		logger.Warn().Msg("database disabled, trades will not be persisted")
	}

	// Initialize the Redis status mirror (nil when disabled)
	state, err := database.NewStateStore(database.RedisConfig{
		Enabled:  cfg.RedisConfig.Enabled,
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer state.Close()

	// Initialize the exchange client
	mode := market.TradingMode(cfg.ExchangeConfig.Mode)
	if mode != market.ModeFutures {
		mode = market.ModeSpot
	}

	var client market.ExchangeClient
	if cfg.ExchangeConfig.PaperMode {
		client = market.NewMockClient(mode, cfg.ExchangeConfig.Leverage)
		logger.Info().Str("mode", string(mode)).Msg("paper trading with simulated market data")
	} else {
		client = market.NewClient(
			cfg.ExchangeConfig.APIKey,
			cfg.ExchangeConfig.SecretKey,
			cfg.ExchangeConfig.BaseURL,
			mode,
			cfg.ExchangeConfig.Leverage,
		)
		logger.Info().Str("mode", string(mode)).Str("base_url", cfg.ExchangeConfig.BaseURL).Msg("live exchange client initialized")
	}

	// Initialize the API server
	server := api.NewServer(api.ServerConfig{
		Host:            cfg.ServerConfig.Host,
		Port:            cfg.ServerConfig.Port,
		ProductionMode:  cfg.ServerConfig.ProductionMode,
		AllowedOrigins:  cfg.ServerConfig.AllowedOriginsList(),
		StartingBalance: cfg.ServerConfig.StartingBalance,
	}, client, repo, state, eventBus)

	// Optionally start the configured bot immediately instead of waiting for
	// a /api/bot/start call.
	var botCancel context.CancelFunc
	if cfg.BotConfig.AutoStart {
		b, err := buildBot(cfg, client, repo, eventBus)
		if err != nil {
			log.Fatalf("Failed to build bot: %v", err)
		}

		var botCtx context.Context
		botCtx, botCancel = context.WithCancel(context.Background())
		go b.Run(botCtx)
		logger.Info().Str("variant", b.Variant()).Strs("symbols", b.Symbols()).Msg("bot auto-started")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	if botCancel != nil {
		botCancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
	logger.Info().Msg("shutdown complete")
}

// buildBot constructs the configured bot variant.
func buildBot(cfg *config.Config, client market.ExchangeClient, repo *database.Repository, bus *events.EventBus) (*bot.Bot, error) {
	opts := bot.Options{
		Strategy:            strategy.Name(cfg.StrategyConfig.Name),
		RiskPercent:         cfg.RiskConfig.RiskPercent,
		TradeAmount:         cfg.RiskConfig.TradeAmount,
		StopLossPercent:     cfg.RiskConfig.StopLossPercent,
		TakeProfitPercent:   cfg.RiskConfig.TakeProfitPercent,
		KillSwitchThreshold: cfg.KillSwitchConfig.Threshold,
		Params: strategy.Params{
			ShortPeriod:   cfg.StrategyConfig.ShortPeriod,
			LongPeriod:    cfg.StrategyConfig.LongPeriod,
			MinVolatility: cfg.StrategyConfig.MinVolatility,
			MaxVolatility: cfg.StrategyConfig.MaxVolatility,
		},
		Bus: bus,
	}
	if repo != nil {
		opts.Store = repo
	}

	symbols := cfg.BotConfig.Symbols
	switch cfg.BotConfig.Variant {
	case "single_pair_tracked":
		return bot.NewTrackedTradingBot(client, symbols[0], opts)
	case "multi_pair":
		return bot.NewMultiPairBot(client, symbols, opts)
	case "high_freq":
		return bot.NewHighFreqBot(client, symbols[0], opts)
	case "high_freq_multi":
		return bot.NewHighFreqMultiPairBot(client, symbols, opts)
	default:
		return bot.NewTradingBot(client, symbols[0], opts)
	}
}

// logOutput maps the configured log destination to a writer.
func logOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Failed to open log file %s, falling back to stdout: %v", output, err)
			return os.Stdout
		}
		return f
	}
}
