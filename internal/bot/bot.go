package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-trading-controller/internal/database"
	"crypto-trading-controller/internal/events"
	"crypto-trading-controller/internal/logging"
	"crypto-trading-controller/internal/market"
	"crypto-trading-controller/internal/risk"
	"crypto-trading-controller/internal/strategy"
)

// TradeStore is the narrow persistence contract the bot writes through.
// Failures from the store are logged and swallowed: the in-memory position
// and kill-switch state advance even when the log write fails.
type TradeStore interface {
	LogTrade(ctx context.Context, trade *database.Trade) (int64, error)
	CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64, status string) error
}

var _ TradeStore = (*database.Repository)(nil)

// ErrNoSymbols is returned when a bot is constructed without trading pairs.
var ErrNoSymbols = errors.New("bot: at least one symbol is required")

// Options carries the caller-tunable knobs shared by all bot variants.
// Zero values fall back to sane defaults; each constructor applies its own
// variant-specific adjustments on top.
type Options struct {
	Strategy            strategy.Name
	Params              strategy.Params
	RiskPercent         float64 // % of balance risked per trade (default 1.0)
	TradeAmount         float64 // fixed cash per trade; switches sizing mode when > 0
	StopLossPercent     float64 // default 2.0
	TakeProfitPercent   float64 // default 3.0
	KillSwitchThreshold int     // default 3 (15 for high-frequency variants)
	Asset               string  // balance asset, default USDT

	Store TradeStore
	Bus   *events.EventBus
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = strategy.Crossover
	}
	if o.RiskPercent <= 0 {
		o.RiskPercent = 1.0
	}
	if o.StopLossPercent <= 0 {
		o.StopLossPercent = 2.0
	}
	if o.TakeProfitPercent <= 0 {
		o.TakeProfitPercent = 3.0
	}
	if o.KillSwitchThreshold <= 0 {
		o.KillSwitchThreshold = 3
	}
	if o.Asset == "" {
		o.Asset = "USDT"
	}
	return o
}

// Bot runs the full decision loop for one or more symbols: close checks for
// every open position, then entry checks per symbol, every tick. All four
// variants share this one implementation and differ only in configuration.
type Bot struct {
	variant      string
	symbols      []string
	interval     string
	candleLimit  int
	cooldown     time.Duration
	maxPerSymbol int
	fastDispatch bool
	feePercent   float64

	stratName         strategy.Name
	params            strategy.Params
	sizer             risk.Sizer
	stopLossPercent   float64
	takeProfitPercent float64
	asset             string

	client market.ExchangeClient
	store  TradeStore
	bus    *events.EventBus
	ks     *risk.KillSwitch
	logger zerolog.Logger

	mu        sync.Mutex
	positions []*Position
	lastEntry map[string]time.Time
	nextID    int64
	lastTick  time.Time
}

// variantConfig is the per-variant shape applied by each constructor.
type variantConfig struct {
	name         string
	interval     string
	cooldown     time.Duration
	maxPerSymbol int
	fastDispatch bool
	feePercent   float64
	ksFloor      float64
}

func newBot(client market.ExchangeClient, symbols []string, opts Options, vc variantConfig) (*Bot, error) {
	if client == nil {
		return nil, errors.New("bot: exchange client is required")
	}
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	for _, s := range symbols {
		if s == "" {
			return nil, ErrNoSymbols
		}
	}

	opts = opts.withDefaults()

	var ks *risk.KillSwitch
	if vc.ksFloor != 0 {
		ks = risk.NewKillSwitchWithFloor(opts.KillSwitchThreshold, vc.ksFloor)
	} else {
		ks = risk.NewKillSwitch(opts.KillSwitchThreshold)
	}

	b := &Bot{
		variant:           vc.name,
		symbols:           append([]string(nil), symbols...),
		interval:          vc.interval,
		candleLimit:       100,
		cooldown:          vc.cooldown,
		maxPerSymbol:      vc.maxPerSymbol,
		fastDispatch:      vc.fastDispatch,
		feePercent:        vc.feePercent,
		stratName:         opts.Strategy,
		params:            opts.Params,
		sizer:             risk.Sizer{RiskPercent: opts.RiskPercent, TradeAmount: opts.TradeAmount},
		stopLossPercent:   opts.StopLossPercent,
		takeProfitPercent: opts.TakeProfitPercent,
		asset:             opts.Asset,
		client:            client,
		store:             opts.Store,
		bus:               opts.Bus,
		ks:                ks,
		logger:            logging.Component("bot").With().Str("variant", vc.name).Logger(),
		lastEntry:         make(map[string]time.Time),
	}

	if b.bus != nil {
		ks.OnTrip(func(reason string) {
			status := ks.Status()
			b.bus.PublishKillSwitchTripped(reason, status.ConsecutiveLosses, status.TotalPnL)
		})
		ks.OnReset(func() {
			b.bus.PublishKillSwitchReset()
		})
	}
	ks.OnStreakBroken(func(losses int) {
		b.logger.Info().Int("losses", losses).Msg("loss streak broken")
	})

	return b, nil
}

// RunOnce executes one full tick: close checks for all symbols, then entry
// checks for all symbols, in a fixed order. It never propagates a fault; a
// failing symbol is skipped and the tick continues.
func (b *Bot) RunOnce(ctx context.Context) {
	b.mu.Lock()
	b.lastTick = time.Now()
	b.mu.Unlock()

	if b.ks.Triggered() {
		b.logger.Warn().Str("reason", b.ks.Reason()).Msg("kill switch active, tick skipped")
		return
	}

	for _, symbol := range b.symbols {
		b.closePositions(ctx, symbol)
		// A kill-switch trip on a closing trade suppresses the rest of the
		// tick, including close checks for the remaining symbols.
		if b.ks.Triggered() {
			return
		}
	}

	for _, symbol := range b.symbols {
		b.tryEnter(ctx, symbol)
	}
}

// closePositions evaluates stop-loss/take-profit for every open position on
// the symbol against the latest price.
func (b *Bot) closePositions(ctx context.Context, symbol string) {
	b.mu.Lock()
	hasOpen := false
	for _, p := range b.positions {
		if p.Symbol == symbol {
			hasOpen = true
			break
		}
	}
	b.mu.Unlock()
	if !hasOpen {
		return
	}

	price, err := b.client.GetCurrentPrice(symbol)
	if err != nil {
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("price fetch failed, skipping close checks")
		b.publishError("price fetch failed for "+symbol, err)
		return
	}

	for {
		b.mu.Lock()
		var closing *Position
		var idx int
		for i, p := range b.positions {
			if p.Symbol == symbol && p.CheckExit(price) != ExitNone {
				closing, idx = p, i
				break
			}
		}
		if closing == nil {
			b.mu.Unlock()
			return
		}
		b.positions = append(b.positions[:idx], b.positions[idx+1:]...)
		b.mu.Unlock()

		reason := closing.CheckExit(price)
		pnl := closing.PnL(price, b.feePercent)

		// The kill switch sees the close before persistence does.
		b.ks.RecordTrade(pnl)

		status := database.StatusClosedStopLoss
		if reason == ExitTakeProfit {
			status = database.StatusClosedTakeProfit
		}

		if b.store != nil && closing.RecordID != 0 {
			if err := b.store.CloseTrade(ctx, closing.RecordID, price, pnl, status); err != nil {
				b.logger.Error().Err(err).Int64("record_id", closing.RecordID).Msg("trade close not persisted")
			}
		}

		if b.bus != nil {
			b.bus.PublishTradeClosed(symbol, string(closing.Side), status,
				closing.EntryPrice, price, closing.Size, pnl)
		}

		b.logger.Info().
			Str("symbol", symbol).
			Str("side", string(closing.Side)).
			Str("exit", string(reason)).
			Float64("entry", closing.EntryPrice).
			Float64("exit_price", price).
			Float64("pnl", pnl).
			Msg("position closed")

		if b.ks.Triggered() {
			return
		}
	}
}

// tryEnter runs the entry gate chain for one symbol: concurrency cap,
// per-symbol cooldown, then strategy signal, sizing and order placement.
func (b *Bot) tryEnter(ctx context.Context, symbol string) {
	b.mu.Lock()
	open := 0
	for _, p := range b.positions {
		if p.Symbol == symbol {
			open++
		}
	}
	last, traded := b.lastEntry[symbol]
	b.mu.Unlock()

	if open >= b.maxPerSymbol {
		return
	}
	if traded && time.Since(last) < b.cooldown {
		return
	}

	candles, err := b.client.GetKlines(symbol, b.interval, b.candleLimit)
	if err != nil {
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("candle fetch failed, symbol skipped")
		b.publishError("candle fetch failed for "+symbol, err)
		return
	}

	var signal strategy.Signal
	if b.fastDispatch {
		signal = strategy.EvaluateFast(candles, b.stratName, b.params)
	} else {
		signal = strategy.Evaluate(candles, b.stratName, b.params)
	}
	if signal == strategy.SignalHold {
		return
	}

	price, err := b.client.GetCurrentPrice(symbol)
	if err != nil {
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("price fetch failed, entry skipped")
		b.publishError("price fetch failed for "+symbol, err)
		return
	}

	if b.bus != nil {
		b.bus.PublishSignal(string(b.stratName), symbol, string(signal), price)
	}

	balance, err := b.client.GetBalance(b.asset)
	if err != nil {
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("balance fetch failed, entry skipped")
		b.publishError("balance fetch failed for "+symbol, err)
		return
	}

	size := b.sizer.PositionSize(balance.Free, price, b.stopLossPercent)
	if size <= 0 {
		b.logger.Warn().Str("symbol", symbol).Msg("position size came out zero, entry skipped")
		return
	}
	size = risk.ClampMin(size)

	side := SideLong
	if signal == strategy.SignalSell {
		side = SideShort
	}

	order, err := b.client.PlaceOrder(symbol, string(side), size)
	if err != nil {
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("order placement failed")
		b.publishError("order placement failed for "+symbol, err)
		return
	}

	entry := order.Price
	if entry <= 0 {
		entry = price
	}

	b.mu.Lock()
	b.nextID++
	position := &Position{
		ID:                b.nextID,
		Symbol:            symbol,
		Side:              side,
		EntryPrice:        entry,
		Size:              size,
		USDAmount:         entry * size,
		StopLossPercent:   b.stopLossPercent,
		TakeProfitPercent: b.takeProfitPercent,
		OpenedAt:          time.Now(),
	}
	b.positions = append(b.positions, position)
	b.lastEntry[symbol] = time.Now()
	b.mu.Unlock()

	if b.store != nil {
		id, err := b.store.LogTrade(ctx, &database.Trade{
			Symbol:            symbol,
			Side:              string(side),
			EntryPrice:        entry,
			Quantity:          size,
			USDAmount:         position.USDAmount,
			StopLossPercent:   b.stopLossPercent,
			TakeProfitPercent: b.takeProfitPercent,
			Status:            database.StatusOpen,
			TradingMode:       string(b.client.Mode()),
			Leverage:          b.client.Leverage(),
			EntryTime:         position.OpenedAt,
		})
		if err != nil {
			b.logger.Error().Err(err).Str("symbol", symbol).Msg("trade open not persisted")
		} else {
			b.mu.Lock()
			position.RecordID = id
			b.mu.Unlock()
		}
	}

	if b.bus != nil {
		b.bus.PublishTradeOpened(symbol, string(side), entry, size)
	}

	b.logger.Info().
		Str("symbol", market.FormatSymbol(symbol, b.client.Mode())).
		Str("side", string(side)).
		Float64("entry", entry).
		Float64("size", size).
		Msg("position opened")
}

// Run drives the bot until the context is cancelled. The first tick fires
// immediately, then one tick per cooldown period.
func (b *Bot) Run(ctx context.Context) {
	if b.bus != nil {
		b.bus.PublishBotStarted(b.variant, b.Symbols())
	}
	b.logger.Info().Strs("symbols", b.symbols).Str("interval", b.interval).Msg("bot started")

	ticker := time.NewTicker(b.cooldown)
	defer ticker.Stop()

	b.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			if b.bus != nil {
				b.bus.PublishBotStopped(b.variant)
			}
			b.logger.Info().Msg("bot stopped")
			return
		case <-ticker.C:
			b.RunOnce(ctx)
		}
	}
}

// publishError mirrors a fault onto the event bus so operators see it even
// when they are not tailing logs.
func (b *Bot) publishError(message string, err error) {
	if b.bus != nil {
		b.bus.PublishError(b.variant, message, err)
	}
}

// IsKillSwitchActive reports whether trading is halted.
func (b *Bot) IsKillSwitchActive() bool {
	return b.ks.Triggered()
}

// ResetKillSwitch unconditionally re-arms the kill switch.
func (b *Bot) ResetKillSwitch() {
	b.ks.Reset()
}

// Variant returns the bot variant name.
func (b *Bot) Variant() string {
	return b.variant
}

// Symbols returns the traded symbols in tick order.
func (b *Bot) Symbols() []string {
	return append([]string(nil), b.symbols...)
}
