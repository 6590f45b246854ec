package strategy

import (
	"math"

	"crypto-trading-controller/internal/indicator"
	"crypto-trading-controller/internal/market"
)

// Signal is a trading decision for one evaluation of a candle series.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// Name selects a strategy variant.
type Name string

const (
	// Crossover is the default SMA 9/21 edge-triggered crossover.
	Crossover Name = "crossover"
	// Confirmed is the crossover gated by multi-indicator confirmation voting.
	Confirmed Name = "confirmed"
	// Scalping is the EMA 5/13 crossover with RSI(7) confirmations.
	Scalping Name = "scalping"
	// Momentum trades Bollinger band breakouts with RSI and volume checks.
	Momentum Name = "momentum"
	// Breakout trades 8-period rolling high/low breaks, built for the fast
	// dispatch path.
	Breakout Name = "breakout"
)

// Names lists the selectable strategy variants.
func Names() []Name {
	return []Name{Crossover, Confirmed, Scalping, Momentum, Breakout}
}

// Params tunes an evaluation. Zero-value periods fall back to the crossover
// defaults. MinVolatility of 0 turns the volatility gate into an
// upper-bound-only check.
type Params struct {
	ShortPeriod   int
	LongPeriod    int
	MinVolatility float64
	MaxVolatility float64
}

// DefaultParams returns the standard crossover configuration with the full
// volatility band enabled.
func DefaultParams() Params {
	return Params{
		ShortPeriod:   9,
		LongPeriod:    21,
		MinVolatility: 0.5,
		MaxVolatility: 5.0,
	}
}

func (p Params) withDefaults() Params {
	if p.ShortPeriod <= 0 {
		p.ShortPeriod = 9
	}
	if p.LongPeriod <= 0 {
		p.LongPeriod = 21
	}
	return p
}

// Evaluate runs the named strategy over the candle series with the volatility
// pre-filter and the counter-trend post-filter applied. Any series too short
// for the strategy yields hold.
func Evaluate(candles []market.Candle, name Name, params Params) Signal {
	params = params.withDefaults()

	if !volatilityGatePasses(candles, params) {
		return SignalHold
	}

	signal := dispatch(candles, name, params)

	// Counter-trend veto: never sell into a strong up-trend or buy into a
	// strong down-trend.
	trend := indicator.ClassifyTrend(candles)
	if (signal == SignalSell && trend == indicator.TrendStrongUp) ||
		(signal == SignalBuy && trend == indicator.TrendStrongDown) {
		return SignalHold
	}

	return signal
}

// EvaluateFast runs the named strategy with no volatility gate and no trend
// veto. High-frequency bots use this path for pure reactive signals.
func EvaluateFast(candles []market.Candle, name Name, params Params) Signal {
	return dispatch(candles, name, params.withDefaults())
}

func dispatch(candles []market.Candle, name Name, params Params) Signal {
	switch name {
	case Confirmed:
		return evaluateConfirmed(candles, params)
	case Scalping:
		return evaluateScalping(candles)
	case Momentum:
		return evaluateMomentum(candles)
	case Breakout:
		return evaluateBreakout(candles)
	default:
		return evaluateCrossover(candles, params)
	}
}

// volatilityGatePasses checks the single-step percentage move between the
// last two closes against the configured band. Fewer than two candles passes
// the gate; the strategy's own history checks take over from there.
func volatilityGatePasses(candles []market.Candle, params Params) bool {
	if len(candles) < 2 {
		return true
	}

	change := math.Abs(indicator.PriceChangePercent(candles))

	if params.MaxVolatility > 0 && change > params.MaxVolatility {
		return false
	}
	if params.MinVolatility > 0 && change < params.MinVolatility {
		return false
	}

	return true
}

// crossDirection detects an edge-triggered moving-average cross between the
// previous and current candle. avg computes the moving average over the tail
// of a series prefix.
func crossDirection(candles []market.Candle, short, long int,
	avg func([]market.Candle, int) float64) Signal {

	prev := candles[:len(candles)-1]

	prevShort := avg(prev, short)
	prevLong := avg(prev, long)
	currShort := avg(candles, short)
	currLong := avg(candles, long)

	switch {
	case prevShort < prevLong && currShort > currLong:
		return SignalBuy
	case prevShort > prevLong && currShort < currLong:
		return SignalSell
	default:
		return SignalHold
	}
}

func crossoverMinHistory(long int) int {
	min := long + 5
	if min < 26 {
		min = 26
	}
	return min
}

// evaluateCrossover emits buy/sell only at the candle where the short SMA
// crosses the long SMA.
func evaluateCrossover(candles []market.Candle, params Params) Signal {
	if len(candles) < crossoverMinHistory(params.LongPeriod) {
		return SignalHold
	}

	return crossDirection(candles, params.ShortPeriod, params.LongPeriod, indicator.SMA)
}

// evaluateConfirmed requires an SMA cross plus at least 3 of 4 supporting
// confirmations before emitting the signal.
func evaluateConfirmed(candles []market.Candle, params Params) Signal {
	if len(candles) < crossoverMinHistory(params.LongPeriod) {
		return SignalHold
	}

	cross := crossDirection(candles, params.ShortPeriod, params.LongPeriod, indicator.SMA)
	if cross == SignalHold {
		return SignalHold
	}

	rsi := indicator.RSI(candles, 14)
	macd := indicator.MACD(candles, 12, 26, 9)
	shortMA := indicator.SMA(candles, params.ShortPeriod)
	close := candles[len(candles)-1].Close

	confirmations := 0

	if cross == SignalBuy {
		if rsi < 75 {
			confirmations++
		}
		if macd.MACD > macd.Signal && macd.Histogram > 0 {
			confirmations++
		}
		if close > shortMA {
			confirmations++
		}
	} else {
		if rsi > 25 {
			confirmations++
		}
		if macd.MACD < macd.Signal && macd.Histogram < 0 {
			confirmations++
		}
		if close < shortMA {
			confirmations++
		}
	}

	if indicator.VolumeConfirms(candles) {
		confirmations++
	}

	if confirmations >= 3 {
		return cross
	}
	return SignalHold
}

// evaluateScalping trades EMA 5/13 crosses confirmed by at least 2 of 3
// short-horizon checks: an RSI(7) momentum band, 3-candle momentum beyond
// 0.1%, and price beyond the fast EMA.
func evaluateScalping(candles []market.Candle) Signal {
	if len(candles) < 20 {
		return SignalHold
	}

	cross := crossDirection(candles, 5, 13, indicator.EMA)
	if cross == SignalHold {
		return SignalHold
	}

	rsi := indicator.RSI(candles, 7)
	momentum := indicator.Momentum(candles, 3)
	fastEMA := indicator.EMA(candles, 5)
	close := candles[len(candles)-1].Close

	confirmations := 0

	if cross == SignalBuy {
		if rsi > 40 && rsi < 80 {
			confirmations++
		}
		if momentum > 0.1 {
			confirmations++
		}
		if close > fastEMA {
			confirmations++
		}
	} else {
		if rsi > 20 && rsi < 60 {
			confirmations++
		}
		if momentum < -0.1 {
			confirmations++
		}
		if close < fastEMA {
			confirmations++
		}
	}

	if confirmations >= 2 {
		return cross
	}
	return SignalHold
}

// evaluateMomentum trades closes beyond the Bollinger bands when the move is
// supported by the 20-period SMA side, an RSI momentum band and volume.
func evaluateMomentum(candles []market.Candle) Signal {
	if len(candles) < 30 {
		return SignalHold
	}

	bands := indicator.Bollinger(candles, 20, 2.0)
	sma20 := indicator.SMA(candles, 20)
	rsi := indicator.RSI(candles, 14)
	close := candles[len(candles)-1].Close

	if close > bands.Upper && close > sma20 &&
		rsi > 60 && rsi < 80 &&
		indicator.VolumeConfirms(candles) {
		return SignalBuy
	}

	if close < bands.Lower && close < sma20 &&
		rsi > 20 && rsi < 40 &&
		indicator.VolumeConfirms(candles) {
		return SignalSell
	}

	return SignalHold
}

// evaluateBreakout trades breaks of the 8-period rolling high/low preceding
// the current candle, confirmed by a volume spike or a 0.2% overshoot beyond
// the broken level.
func evaluateBreakout(candles []market.Candle) Signal {
	if len(candles) < 10 {
		return SignalHold
	}

	prev := candles[:len(candles)-1]
	high := indicator.HighestHigh(prev, 8)
	low := indicator.LowestLow(prev, 8)
	close := candles[len(candles)-1].Close

	spike := indicator.IsVolumeSpike(candles, 10, 1.2)

	if close > high && (spike || close >= high*1.002) {
		return SignalBuy
	}
	if close < low && (spike || close <= low*0.998) {
		return SignalSell
	}

	return SignalHold
}
