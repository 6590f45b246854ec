package risk

import (
	"crypto-trading-controller/internal/indicator"
	"crypto-trading-controller/internal/market"
)

const (
	// MaxRiskPercent is the hard ceiling on the per-trade risk percentage,
	// applied regardless of configuration.
	MaxRiskPercent = 2.0

	// MaxNotionalShare caps any single position at this share of the account
	// balance.
	MaxNotionalShare = 0.10

	// MaxFixedNotional caps fixed-amount positions in quote currency.
	MaxFixedNotional = 1000.0

	// MinPositionSize is the minimum viable order size in base units.
	// Callers raise any smaller computed size to this floor.
	MinPositionSize = 0.001
)

// Sizer converts a risk appetite plus a stop-loss distance into a position
// size in base-asset units. A nonzero TradeAmount switches from balance-based
// to fixed-amount sizing.
type Sizer struct {
	RiskPercent float64
	TradeAmount float64
}

// PositionSize returns the size in base units for a trade at the given price
// with the given stop-loss percentage. Returns 0 when the inputs cannot
// produce a safe size.
func (s Sizer) PositionSize(balance, price, stopLossPercent float64) float64 {
	if s.TradeAmount > 0 {
		return s.fixedSize(price)
	}
	return s.balanceSize(balance, price, stopLossPercent)
}

func (s Sizer) balanceSize(balance, price, stopLossPercent float64) float64 {
	if balance <= 0 || price <= 0 {
		return 0
	}

	riskPercent := s.RiskPercent
	if riskPercent > MaxRiskPercent {
		riskPercent = MaxRiskPercent
	}

	riskAmount := balance * riskPercent / 100
	stopDistance := price * stopLossPercent / 100
	if stopDistance <= 0 {
		return 0
	}

	size := riskAmount / stopDistance

	// No single position may exceed 10% of balance notional.
	maxSize := balance * MaxNotionalShare / price
	if size > maxSize {
		size = maxSize
	}

	return size
}

func (s Sizer) fixedSize(price float64) float64 {
	if price <= 0 {
		return 0
	}

	size := s.TradeAmount / price

	maxNotional := s.TradeAmount
	if maxNotional > MaxFixedNotional {
		maxNotional = MaxFixedNotional
	}
	if size*price > maxNotional {
		size = maxNotional / price
	}

	return size
}

// ClampMin raises a computed size to the minimum viable order size.
func ClampMin(size float64) float64 {
	if size < MinPositionSize {
		return MinPositionSize
	}
	return size
}

// DynamicStopLoss derives a stop-loss percentage from recent volatility,
// bounded to a sane 1-8% band. Quiet markets get tight stops, volatile
// markets get room to breathe.
func DynamicStopLoss(candles []market.Candle) float64 {
	sl := indicator.VolatilityPercent(candles) * 1.5

	if sl < 1.0 {
		sl = 1.0
	}
	if sl > 8.0 {
		sl = 8.0
	}

	return sl
}

// DynamicTakeProfit derives a take-profit percentage from the stop-loss
// distance, stretched when the market is trending strongly in either
// direction.
func DynamicTakeProfit(stopLossPercent float64, trend indicator.Trend) float64 {
	tp := stopLossPercent * 1.5
	if trend == indicator.TrendStrongUp || trend == indicator.TrendStrongDown {
		tp *= 1.5
	}
	return tp
}

// KellyAmount returns a quarter-Kelly cash allocation for the observed win
// rate and win/loss ratio, capped at 5% of balance. Returns 0 when the edge
// is negative or the inputs are degenerate.
func KellyAmount(balance, winRate, avgWin, avgLoss float64) float64 {
	if balance <= 0 || avgLoss <= 0 || avgWin <= 0 {
		return 0
	}
	if winRate <= 0 || winRate >= 1 {
		return 0
	}

	ratio := avgWin / avgLoss
	kelly := winRate - (1-winRate)/ratio
	if kelly <= 0 {
		return 0
	}

	fraction := kelly / 4
	if fraction > 0.05 {
		fraction = 0.05
	}

	return balance * fraction
}
