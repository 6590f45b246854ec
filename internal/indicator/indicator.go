package indicator

import (
	"math"

	"crypto-trading-controller/internal/market"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average of the closing prices over the
// last period candles. Returns 0 when there is not enough history.
func SMA(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	startIdx := len(candles) - period

	for i := startIdx; i < len(candles); i++ {
		sum += candles[i].Close
	}

	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average of the closing prices with
// span=period weighting, seeded from an initial SMA.
func EMA(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sma := SMA(candles[:period], period)
	multiplier := 2.0 / float64(period+1)

	ema := sma
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// emaSeries computes the EMA series of arbitrary values. Entries before
// index period-1 are not meaningful and must not be read by callers.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i] * multiplier) + (out[i-1] * (1 - multiplier))
	}

	return out
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI calculates the Relative Strength Index from simple rolling means of
// positive and negative closing deltas. A zero average loss yields 100.
// Insufficient history yields a neutral 50.
func RSI(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0

	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the MACD line, its EMA-smoothed signal line and the
// histogram. Returns zeroes when there is not enough history for the slow
// EMA plus the signal smoothing window.
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return MACDResult{}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// MACD values exist from the first index where the slow EMA is defined.
	macd := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macd = append(macd, fast[i]-slow[i])
	}

	signal := emaSeries(macd, signalPeriod)

	macdLine := macd[len(macd)-1]
	signalLine := signal[len(signal)-1]

	return MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerBands holds Bollinger Band values.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger calculates Bollinger Bands around the period SMA.
func Bollinger(candles []market.Candle, period int, stdDevMultiplier float64) BollingerBands {
	if period <= 0 || len(candles) < period {
		return BollingerBands{}
	}

	middle := SMA(candles, period)

	variance := 0.0
	startIdx := len(candles) - period
	for i := startIdx; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  middle + (stdDev * stdDevMultiplier),
		Middle: middle,
		Lower:  middle - (stdDev * stdDevMultiplier),
	}
}

// ============================================================================
// VOLATILITY (TRUE RANGE / ATR)
// ============================================================================

// ATR calculates the Average True Range as a rolling mean of the per-candle
// true range over period candles.
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	trSum := 0.0
	startIdx := len(candles) - period

	for i := startIdx; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)

		trSum += tr
	}

	return trSum / float64(period)
}

// VolatilityPercent expresses the 20-period ATR as a percentage of the
// current close.
func VolatilityPercent(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	atr := ATR(candles, 20)
	current := candles[len(candles)-1].Close
	if current <= 0 {
		return 0
	}

	return (atr / current) * 100
}

// PriceChangePercent returns the signed single-step percentage change
// between the last two closes. Returns 0 with fewer than two candles.
func PriceChangePercent(candles []market.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}

	prev := candles[len(candles)-2].Close
	if prev == 0 {
		return 0
	}

	return (candles[len(candles)-1].Close - prev) / prev * 100
}

// ============================================================================
// VOLUME ANALYSIS
// ============================================================================

// AverageVolume calculates the average volume over the last period candles.
func AverageVolume(candles []market.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	startIdx := len(candles) - period

	for i := startIdx; i < len(candles); i++ {
		sum += candles[i].Volume
	}

	return sum / float64(period)
}

// VolumeConfirms reports whether the current volume holds up against the
// 20-period average (at least 80% of it).
func VolumeConfirms(candles []market.Candle) bool {
	if len(candles) < 20 {
		return false
	}

	avg := AverageVolume(candles, 20)
	return candles[len(candles)-1].Volume >= 0.8*avg
}

// IsVolumeSpike checks if the current volume exceeds the recent average by
// the given multiplier.
func IsVolumeSpike(candles []market.Candle, period int, multiplier float64) bool {
	if len(candles) < period+1 {
		return false
	}

	avg := AverageVolume(candles[:len(candles)-1], period)
	return candles[len(candles)-1].Volume > avg*multiplier
}

// ============================================================================
// MOMENTUM
// ============================================================================

// Momentum calculates the percentage price change over the last period
// candles.
func Momentum(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	current := candles[len(candles)-1].Close
	past := candles[len(candles)-period-1].Close
	if past == 0 {
		return 0
	}

	return ((current - past) / past) * 100
}

// ============================================================================
// ROLLING EXTREMES
// ============================================================================

// HighestHigh returns the highest high over the last period candles.
func HighestHigh(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	startIdx := len(candles) - period
	highest := candles[startIdx].High
	for i := startIdx; i < len(candles); i++ {
		if candles[i].High > highest {
			highest = candles[i].High
		}
	}

	return highest
}

// LowestLow returns the lowest low over the last period candles.
func LowestLow(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	startIdx := len(candles) - period
	lowest := candles[startIdx].Low
	for i := startIdx; i < len(candles); i++ {
		if candles[i].Low < lowest {
			lowest = candles[i].Low
		}
	}

	return lowest
}

// ============================================================================
// TREND DETECTION
// ============================================================================

// Trend classifies trend strength from closing price against the rolling
// 20-period extremes.
type Trend string

const (
	TrendStrongUp   Trend = "strong_up"
	TrendStrongDown Trend = "strong_down"
	TrendNeutral    Trend = "neutral"
)

// ClassifyTrend reports a strong up-trend when the close sits within 2% of
// the 20-period high, a strong down-trend within 2% of the 20-period low,
// and neutral otherwise.
func ClassifyTrend(candles []market.Candle) Trend {
	if len(candles) < 20 {
		return TrendNeutral
	}

	close := candles[len(candles)-1].Close
	high := HighestHigh(candles, 20)
	low := LowestLow(candles, 20)

	switch {
	case close >= 0.98*high:
		return TrendStrongUp
	case close <= 1.02*low:
		return TrendStrongDown
	default:
		return TrendNeutral
	}
}
