package bot

import (
	"time"

	"crypto-trading-controller/internal/market"
	"crypto-trading-controller/internal/strategy"
)

// Kill-switch P&L floors for the high-frequency variants. Both conditions
// (loss streak AND cumulative P&L below the floor) must hold to trigger.
const (
	highFreqSingleFloor = -100.0
	highFreqMultiFloor  = -200.0
)

// NewTradingBot creates the single-pair bot: hourly candles, a 45 second
// entry cooldown and a single position slot.
func NewTradingBot(client market.ExchangeClient, symbol string, opts Options) (*Bot, error) {
	return newBot(client, []string{symbol}, opts, variantConfig{
		name:         "single_pair",
		interval:     "1h",
		cooldown:     45 * time.Second,
		maxPerSymbol: 1,
	})
}

// NewTrackedTradingBot creates the position-tracking single-pair bot: hourly
// candles with up to 3 concurrent positions and a 5 minute entry cooldown,
// trading one symbol but running each position lifecycle independently.
func NewTrackedTradingBot(client market.ExchangeClient, symbol string, opts Options) (*Bot, error) {
	return newBot(client, []string{symbol}, opts, variantConfig{
		name:         "single_pair_tracked",
		interval:     "1h",
		cooldown:     300 * time.Second,
		maxPerSymbol: 3,
	})
}

// NewMultiPairBot creates the multi-pair bot: hourly candles, a 5 minute
// per-symbol cooldown, up to 2 positions per symbol, and the configured risk
// percentage split evenly across the symbols so the shared budget stays
// constant regardless of pair count.
func NewMultiPairBot(client market.ExchangeClient, symbols []string, opts Options) (*Bot, error) {
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	opts = opts.withDefaults()
	opts.RiskPercent /= float64(len(symbols))

	return newBot(client, symbols, opts, variantConfig{
		name:         "multi_pair",
		interval:     "1h",
		cooldown:     300 * time.Second,
		maxPerSymbol: 2,
	})
}

// NewHighFreqBot creates the high-frequency single-pair bot: 5 minute
// candles, a 30 second cooldown, up to 3 concurrent positions and the fast
// strategy dispatch with no volatility or trend filters. The kill switch is
// the lenient two-condition variant.
func NewHighFreqBot(client market.ExchangeClient, symbol string, opts Options) (*Bot, error) {
	opts = applyHighFreqOpts(opts)

	return newBot(client, []string{symbol}, opts, variantConfig{
		name:         "high_freq",
		interval:     "5m",
		cooldown:     30 * time.Second,
		maxPerSymbol: 3,
		fastDispatch: true,
		feePercent:   0.1,
		ksFloor:      highFreqSingleFloor,
	})
}

// NewHighFreqMultiPairBot creates the high-frequency multi-pair bot: the
// high-frequency shape with up to 2 positions per symbol, the risk budget
// split across symbols before the high-frequency bias is applied, and a
// deeper kill-switch P&L floor.
func NewHighFreqMultiPairBot(client market.ExchangeClient, symbols []string, opts Options) (*Bot, error) {
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	opts = opts.withDefaults()
	opts.RiskPercent /= float64(len(symbols))
	opts = applyHighFreqOpts(opts)

	return newBot(client, symbols, opts, variantConfig{
		name:         "high_freq_multi",
		interval:     "5m",
		cooldown:     30 * time.Second,
		maxPerSymbol: 2,
		fastDispatch: true,
		feePercent:   0.1,
		ksFloor:      highFreqMultiFloor,
	})
}

// applyHighFreqOpts biases the shared options for high-frequency trading:
// risk up 1.5x capped at 3%, stop-loss and take-profit floors wide enough to
// survive 5 minute candle noise, breakout strategy and a 15-loss threshold
// unless overridden.
func applyHighFreqOpts(opts Options) Options {
	if opts.Strategy == "" {
		opts.Strategy = strategy.Breakout
	}
	if opts.KillSwitchThreshold <= 0 {
		opts.KillSwitchThreshold = 15
	}

	opts = opts.withDefaults()

	opts.RiskPercent *= 1.5
	if opts.RiskPercent > 3.0 {
		opts.RiskPercent = 3.0
	}
	if opts.StopLossPercent < 1.5 {
		opts.StopLossPercent = 1.5
	}
	if opts.TakeProfitPercent < 2.0 {
		opts.TakeProfitPercent = 2.0
	}

	return opts
}
