package bot

import (
	"time"

	"crypto-trading-controller/internal/market"
	"crypto-trading-controller/internal/risk"
	"crypto-trading-controller/internal/strategy"
)

// Status is a full snapshot of a bot. Every field is always populated; zero
// values mean "not applicable", fields are never conditionally absent.
type Status struct {
	Variant           string             `json:"variant"`
	Symbols           []string           `json:"symbols"`
	Strategy          strategy.Name      `json:"strategy"`
	Interval          string             `json:"interval"`
	FastDispatch      bool               `json:"fast_dispatch"`
	CooldownSeconds   int                `json:"cooldown_seconds"`
	MaxPerSymbol      int                `json:"max_per_symbol"`
	TradingMode       market.TradingMode `json:"trading_mode"`
	Leverage          int                `json:"leverage"`
	RiskPercent       float64            `json:"risk_percent"`
	StopLossPercent   float64            `json:"stop_loss_percent"`
	TakeProfitPercent float64            `json:"take_profit_percent"`
	OpenPositions     int                `json:"open_positions"`
	Positions         []Position         `json:"positions"`
	KillSwitch        risk.SwitchStatus  `json:"kill_switch"`
	LastTick          time.Time          `json:"last_tick"`
}

// Status returns a point-in-time snapshot of the bot.
func (b *Bot) Status() Status {
	b.mu.Lock()
	positions := make([]Position, len(b.positions))
	for i, p := range b.positions {
		positions[i] = *p
	}
	lastTick := b.lastTick
	b.mu.Unlock()

	return Status{
		Variant:           b.variant,
		Symbols:           b.Symbols(),
		Strategy:          b.stratName,
		Interval:          b.interval,
		FastDispatch:      b.fastDispatch,
		CooldownSeconds:   int(b.cooldown / time.Second),
		MaxPerSymbol:      b.maxPerSymbol,
		TradingMode:       b.client.Mode(),
		Leverage:          b.client.Leverage(),
		RiskPercent:       b.sizer.RiskPercent,
		StopLossPercent:   b.stopLossPercent,
		TakeProfitPercent: b.takeProfitPercent,
		OpenPositions:     len(positions),
		Positions:         positions,
		KillSwitch:        b.ks.Status(),
		LastTick:          lastTick,
	}
}
