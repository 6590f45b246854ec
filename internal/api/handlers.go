package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crypto-trading-controller/internal/bot"
	"crypto-trading-controller/internal/strategy"
)

// startRequest is the payload for POST /api/bot/start.
type startRequest struct {
	Variant             string   `json:"variant" binding:"required"`
	Symbols             []string `json:"symbols" binding:"required"`
	Strategy            string   `json:"strategy"`
	RiskPercent         float64  `json:"risk_percent"`
	TradeAmount         float64  `json:"trade_amount"`
	StopLossPercent     float64  `json:"stop_loss_percent"`
	TakeProfitPercent   float64  `json:"take_profit_percent"`
	KillSwitchThreshold int      `json:"kill_switch_threshold"`

	ShortPeriod   int     `json:"short_period"`
	LongPeriod    int     `json:"long_period"`
	MinVolatility float64 `json:"min_volatility"`
	MaxVolatility float64 `json:"max_volatility"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":     "ok",
		"ws_clients": s.hub.ClientCount(),
	}
	if s.repo != nil {
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStrategies(c *gin.Context) {
	defaults := strategy.DefaultParams()
	strategies := make([]gin.H, 0, len(strategy.Names()))
	for _, name := range strategy.Names() {
		strategies = append(strategies, gin.H{"name": name})
	}
	c.JSON(http.StatusOK, gin.H{
		"strategies": strategies,
		"default_params": gin.H{
			"short_period":   defaults.ShortPeriod,
			"long_period":    defaults.LongPeriod,
			"min_volatility": defaults.MinVolatility,
			"max_volatility": defaults.MaxVolatility,
		},
	})
}

func (s *Server) handleBalance(c *gin.Context) {
	asset := c.DefaultQuery("asset", "USDT")

	balance, err := s.client.GetBalance(asset)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"asset": balance.Asset,
		"free":  balance.Free,
		"used":  balance.Used,
		"total": balance.Total,
	}

	if s.repo != nil {
		snapshot, err := s.repo.GetBalanceSnapshot(c.Request.Context(), s.config.StartingBalance)
		if err != nil {
			s.logger.Error().Err(err).Msg("balance snapshot query failed")
		} else {
			resp["total_pnl"] = snapshot.TotalPnL
			resp["total_trades"] = snapshot.TotalTrades
			resp["wins"] = snapshot.Wins
			resp["losses"] = snapshot.Losses
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade history requires a database"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	trades, err := s.repo.GetTradeHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// handleOHLCV proxies candle data for charting.
func (s *Server) handleOHLCV(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	interval := c.DefaultQuery("interval", "1h")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = parsed
	}

	candles, err := s.client.GetKlines(symbol, interval, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": interval,
		"candles":  candles,
	})
}

// handleCurrentPrice proxies the latest ticker price.
func (s *Server) handleCurrentPrice(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	price, err := s.client.GetCurrentPrice(symbol)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := bot.Options{
		Strategy:            strategy.Name(req.Strategy),
		RiskPercent:         req.RiskPercent,
		TradeAmount:         req.TradeAmount,
		StopLossPercent:     req.StopLossPercent,
		TakeProfitPercent:   req.TakeProfitPercent,
		KillSwitchThreshold: req.KillSwitchThreshold,
		Params: strategy.Params{
			ShortPeriod:   req.ShortPeriod,
			LongPeriod:    req.LongPeriod,
			MinVolatility: req.MinVolatility,
			MaxVolatility: req.MaxVolatility,
		},
		Bus: s.bus,
	}
	if s.repo != nil {
		opts.Store = s.repo
	}

	var (
		b   *bot.Bot
		err error
	)
	switch req.Variant {
	case "single_pair":
		if len(req.Symbols) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "single_pair requires exactly one symbol"})
			return
		}
		b, err = bot.NewTradingBot(s.client, req.Symbols[0], opts)
	case "single_pair_tracked":
		if len(req.Symbols) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "single_pair_tracked requires exactly one symbol"})
			return
		}
		b, err = bot.NewTrackedTradingBot(s.client, req.Symbols[0], opts)
	case "multi_pair":
		b, err = bot.NewMultiPairBot(s.client, req.Symbols, opts)
	case "high_freq":
		if len(req.Symbols) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "high_freq requires exactly one symbol"})
			return
		}
		b, err = bot.NewHighFreqBot(s.client, req.Symbols[0], opts)
	case "high_freq_multi":
		b, err = bot.NewHighFreqMultiPairBot(s.client, req.Symbols, opts)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown variant: " + req.Variant})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.startBot(b); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"running": true, "status": b.Status()})
}

func (s *Server) handleStop(c *gin.Context) {
	if !s.stopBot() {
		c.JSON(http.StatusOK, gin.H{"running": false, "message": "no bot running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": false, "message": "bot stopped"})
}

func (s *Server) handleStatus(c *gin.Context) {
	b := s.currentBot()
	if b == nil {
		// Fall back to the Redis mirror so dashboards keep the last known
		// snapshot across restarts.
		var last bot.Status
		if s.state.LoadStatus(c.Request.Context(), &last) {
			c.JSON(http.StatusOK, gin.H{"running": false, "last_status": last})
			return
		}
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}

	status := b.Status()
	s.state.SaveStatus(c.Request.Context(), status)

	c.JSON(http.StatusOK, gin.H{"running": true, "status": status})
}

func (s *Server) handleKillSwitchReset(c *gin.Context) {
	b := s.currentBot()
	if b == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no bot running"})
		return
	}

	b.ResetKillSwitch()
	c.JSON(http.StatusOK, gin.H{"kill_switch": b.Status().KillSwitch})
}
