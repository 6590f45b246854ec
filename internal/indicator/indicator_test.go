package indicator

import (
	"math"
	"testing"

	"crypto-trading-controller/internal/market"
)

// candlesFromCloses builds a candle series where every candle opens and
// closes at the given price with a small synthetic range around it.
func candlesFromCloses(closes []float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60000,
			Open:      c,
			High:      c * 1.001,
			Low:       c * 0.999,
			Close:     c,
			Volume:    1000,
			CloseTime: int64(i+1) * 60000,
		}
	}
	return candles
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestSMA(t *testing.T) {
	candles := candlesFromCloses([]float64{10, 20, 30, 40, 50})

	sma := SMA(candles, 5)
	if sma != 30 {
		t.Errorf("expected SMA 30, got %f", sma)
	}

	sma = SMA(candles, 2)
	if sma != 45 {
		t.Errorf("expected SMA 45 over last 2 closes, got %f", sma)
	}
}

func TestSMAInsufficientData(t *testing.T) {
	candles := candlesFromCloses([]float64{10, 20})

	if sma := SMA(candles, 5); sma != 0 {
		t.Errorf("expected 0 with insufficient data, got %f", sma)
	}
	if sma := SMA(candles, 0); sma != 0 {
		t.Errorf("expected 0 for zero period, got %f", sma)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	candles := candlesFromCloses([]float64{50, 50, 50, 50, 50, 50, 50, 50})

	ema := EMA(candles, 5)
	if !almostEqual(ema, 50, 1e-9) {
		t.Errorf("EMA of constant series should equal the constant, got %f", ema)
	}
}

func TestEMATracksRecentPrices(t *testing.T) {
	// Rising series: EMA should sit above SMA since it weights recent closes.
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	candles := candlesFromCloses(closes)

	ema := EMA(candles, 5)
	sma := SMA(candles, len(closes))
	if ema <= sma {
		t.Errorf("EMA %f should exceed full-series SMA %f on a rising series", ema, sma)
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	candles := candlesFromCloses(closes)

	rsi := RSI(candles, 14)
	if rsi != 100 {
		t.Errorf("expected RSI 100 with zero losses, got %f", rsi)
	}
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	candles := candlesFromCloses(closes)

	rsi := RSI(candles, 14)
	if rsi != 0 {
		t.Errorf("expected RSI 0 with zero gains, got %f", rsi)
	}
}

func TestRSINeutralOnInsufficientData(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 101, 102})

	rsi := RSI(candles, 14)
	if rsi != 50 {
		t.Errorf("expected neutral 50 with insufficient data, got %f", rsi)
	}
}

func TestRSIBalancedMoves(t *testing.T) {
	// Alternating equal-size up and down moves should land near 50.
	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100, 101, 100}
	candles := candlesFromCloses(closes)

	rsi := RSI(candles, 14)
	if !almostEqual(rsi, 50, 1) {
		t.Errorf("expected RSI near 50 for balanced moves, got %f", rsi)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 101, 102})

	result := MACD(candles, 12, 26, 9)
	if result.MACD != 0 || result.Signal != 0 || result.Histogram != 0 {
		t.Errorf("expected zero MACD result with insufficient data, got %+v", result)
	}
}

func TestMACDConstantSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	candles := candlesFromCloses(closes)

	result := MACD(candles, 12, 26, 9)
	if !almostEqual(result.MACD, 0, 1e-9) {
		t.Errorf("expected MACD 0 on flat series, got %f", result.MACD)
	}
	if !almostEqual(result.Signal, 0, 1e-9) {
		t.Errorf("expected signal 0 on flat series, got %f", result.Signal)
	}
}

func TestMACDRisingSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	candles := candlesFromCloses(closes)

	result := MACD(candles, 12, 26, 9)
	if result.MACD <= 0 {
		t.Errorf("expected positive MACD on a sustained rise, got %f", result.MACD)
	}
	if result.Signal <= 0 {
		t.Errorf("expected positive signal line on a sustained rise, got %f", result.Signal)
	}
	if !almostEqual(result.Histogram, result.MACD-result.Signal, 1e-9) {
		t.Errorf("histogram should equal MACD-signal, got %f vs %f",
			result.Histogram, result.MACD-result.Signal)
	}
}

func TestMACDSignalIsSmoothed(t *testing.T) {
	// After a sharp reversal the signal line should lag the MACD line.
	closes := make([]float64, 80)
	for i := 0; i < 60; i++ {
		closes[i] = 100 + float64(i)
	}
	for i := 60; i < 80; i++ {
		closes[i] = 160 - float64(i-60)*2
	}
	candles := candlesFromCloses(closes)

	result := MACD(candles, 12, 26, 9)
	if result.Signal <= result.MACD {
		t.Errorf("signal %f should lag above MACD %f after a reversal down",
			result.Signal, result.MACD)
	}
}

func TestBollinger(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 98
		} else {
			closes[i] = 102
		}
	}
	candles := candlesFromCloses(closes)

	bands := Bollinger(candles, 20, 2.0)
	if bands.Middle != 100 {
		t.Errorf("expected middle band 100, got %f", bands.Middle)
	}
	// Stddev of alternating 98/102 around 100 is exactly 2.
	if !almostEqual(bands.Upper, 104, 1e-9) {
		t.Errorf("expected upper band 104, got %f", bands.Upper)
	}
	if !almostEqual(bands.Lower, 96, 1e-9) {
		t.Errorf("expected lower band 96, got %f", bands.Lower)
	}
}

func TestATRConstantRange(t *testing.T) {
	candles := make([]market.Candle, 25)
	for i := range candles {
		candles[i] = market.Candle{
			Open:  100,
			High:  102,
			Low:   98,
			Close: 100,
		}
	}

	atr := ATR(candles, 20)
	if !almostEqual(atr, 4, 1e-9) {
		t.Errorf("expected ATR 4 for constant 98-102 range, got %f", atr)
	}
}

func TestATRUsesGaps(t *testing.T) {
	// A gap between the previous close and the current range must widen the
	// true range beyond high-low.
	candles := make([]market.Candle, 25)
	for i := range candles {
		candles[i] = market.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}
	candles[24] = market.Candle{Open: 110, High: 111, Low: 109, Close: 110}

	atr := ATR(candles, 20)
	// 19 candles contribute TR=2, the gapped candle contributes 111-100=11.
	expected := (19*2 + 11) / 20.0
	if !almostEqual(atr, expected, 1e-9) {
		t.Errorf("expected ATR %f, got %f", expected, atr)
	}
}

func TestVolatilityPercent(t *testing.T) {
	candles := make([]market.Candle, 25)
	for i := range candles {
		candles[i] = market.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}

	vol := VolatilityPercent(candles)
	if !almostEqual(vol, 2, 1e-9) {
		t.Errorf("expected 2%% volatility, got %f", vol)
	}

	if v := VolatilityPercent(nil); v != 0 {
		t.Errorf("expected 0 volatility on empty series, got %f", v)
	}
}

func TestPriceChangePercent(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 102})

	change := PriceChangePercent(candles)
	if !almostEqual(change, 2, 1e-9) {
		t.Errorf("expected +2%% change, got %f", change)
	}

	candles = candlesFromCloses([]float64{100, 99})
	change = PriceChangePercent(candles)
	if !almostEqual(change, -1, 1e-9) {
		t.Errorf("expected -1%% change, got %f", change)
	}

	if c := PriceChangePercent(candlesFromCloses([]float64{100})); c != 0 {
		t.Errorf("expected 0 with one candle, got %f", c)
	}
}

func TestVolumeConfirms(t *testing.T) {
	candles := candlesFromCloses(make([]float64, 25))
	for i := range candles {
		candles[i].Close = 100
		candles[i].Volume = 1000
	}

	// Exactly average volume confirms.
	if !VolumeConfirms(candles) {
		t.Error("average volume should confirm")
	}

	// Volume collapsing below 80% of the average does not.
	candles[len(candles)-1].Volume = 700
	if VolumeConfirms(candles) {
		t.Error("70%% of average volume should not confirm")
	}
}

func TestIsVolumeSpike(t *testing.T) {
	candles := candlesFromCloses(make([]float64, 15))
	for i := range candles {
		candles[i].Close = 100
		candles[i].Volume = 1000
	}

	if IsVolumeSpike(candles, 10, 1.2) {
		t.Error("flat volume should not register as a spike")
	}

	candles[len(candles)-1].Volume = 1500
	if !IsVolumeSpike(candles, 10, 1.2) {
		t.Error("50%% above average should register as a spike")
	}
}

func TestMomentum(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 101, 102, 103})

	m := Momentum(candles, 3)
	if !almostEqual(m, 3, 1e-9) {
		t.Errorf("expected +3%% momentum, got %f", m)
	}

	if m := Momentum(candles, 10); m != 0 {
		t.Errorf("expected 0 momentum with insufficient data, got %f", m)
	}
}

func TestRollingExtremes(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 105, 95, 102, 98})

	high := HighestHigh(candles, 5)
	if !almostEqual(high, 105*1.001, 1e-9) {
		t.Errorf("unexpected highest high %f", high)
	}

	low := LowestLow(candles, 5)
	if !almostEqual(low, 95*0.999, 1e-9) {
		t.Errorf("unexpected lowest low %f", low)
	}

	// Shorter window only sees the tail of the series.
	high = HighestHigh(candles, 2)
	if !almostEqual(high, 102*1.001, 1e-9) {
		t.Errorf("unexpected 2-period highest high %f", high)
	}
}

func TestClassifyTrend(t *testing.T) {
	// Close at the rolling high: strong up.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	candles := candlesFromCloses(closes)
	if trend := ClassifyTrend(candles); trend != TrendStrongUp {
		t.Errorf("expected strong_up, got %s", trend)
	}

	// Close at the rolling low: strong down.
	for i := range closes {
		closes[i] = 120 - float64(i)
	}
	candles = candlesFromCloses(closes)
	if trend := ClassifyTrend(candles); trend != TrendStrongDown {
		t.Errorf("expected strong_down, got %s", trend)
	}

	// Close in the middle of the range: neutral.
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 90
		} else {
			closes[i] = 110
		}
	}
	closes[len(closes)-1] = 100
	candles = candlesFromCloses(closes)
	if trend := ClassifyTrend(candles); trend != TrendNeutral {
		t.Errorf("expected neutral, got %s", trend)
	}

	// Not enough history is neutral by definition.
	if trend := ClassifyTrend(candles[:10]); trend != TrendNeutral {
		t.Errorf("expected neutral with short history, got %s", trend)
	}
}
