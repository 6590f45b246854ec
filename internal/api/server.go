package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crypto-trading-controller/internal/bot"
	"crypto-trading-controller/internal/database"
	"crypto-trading-controller/internal/events"
	"crypto-trading-controller/internal/logging"
	"crypto-trading-controller/internal/market"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ProductionMode  bool
	AllowedOrigins  []string
	StartingBalance float64
}

// Server exposes the control plane over HTTP: bot lifecycle, status,
// balance, trade history and a WebSocket event stream. It owns at most one
// live bot at a time.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	client market.ExchangeClient
	repo   *database.Repository
	state  *database.StateStore
	bus    *events.EventBus
	hub    *WSHub
	logger zerolog.Logger

	mu      sync.Mutex
	bot     *bot.Bot
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewServer creates the API server. repo and state may be nil when
// persistence is disabled.
func NewServer(
	config ServerConfig,
	client market.ExchangeClient,
	repo *database.Repository,
	state *database.StateStore,
	bus *events.EventBus,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router: router,
		config: config,
		client: client,
		repo:   repo,
		state:  state,
		bus:    bus,
		hub:    NewWSHub(),
		logger: logging.Component("api"),
	}

	server.setupRoutes()

	// Mirror every bus event to connected WebSocket clients.
	go server.hub.Run()
	bus.SubscribeAll(server.hub.BroadcastEvent)

	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/strategies", s.handleStrategies)
		api.GET("/balance", s.handleBalance)
		api.GET("/trades", s.handleTrades)
		api.GET("/ohlcv", s.handleOHLCV)
		api.GET("/current-price", s.handleCurrentPrice)

		botGroup := api.Group("/bot")
		{
			botGroup.POST("/start", s.handleStart)
			botGroup.POST("/stop", s.handleStop)
			botGroup.GET("/status", s.handleStatus)
			botGroup.POST("/killswitch/reset", s.handleKillSwitchReset)
		}
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the running bot and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopBot()

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

// startBot installs the bot as the single live instance and launches its run
// loop. Fails if a bot is already running.
func (s *Server) startBot(b *bot.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bot != nil {
		return fmt.Errorf("bot %s is already running", s.bot.Variant())
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	s.bot = b
	s.cancel = cancel
	s.stopped = stopped

	go func() {
		defer close(stopped)
		b.Run(ctx)
	}()

	return nil
}

// stopBot cancels the live bot, if any, and waits briefly for its loop to
// exit.
func (s *Server) stopBot() bool {
	s.mu.Lock()
	b := s.bot
	cancel := s.cancel
	stopped := s.stopped
	s.bot = nil
	s.cancel = nil
	s.stopped = nil
	s.mu.Unlock()

	if b == nil {
		return false
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("bot did not stop within 5s, detaching")
	}
	return true
}

// currentBot returns the live bot or nil.
func (s *Server) currentBot() *bot.Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bot
}
