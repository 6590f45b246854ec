package market

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockClient provides simulated market data and paper order fills for
// development and paper trading.
type MockClient struct {
	mode       TradingMode
	leverage   int
	prices     map[string]float64
	lastUpdate time.Time
	mu         sync.RWMutex // Protects prices map and lastUpdate
}

// NewMockClient creates a new mock client with realistic base prices.
func NewMockClient(mode TradingMode, leverage int) *MockClient {
	if leverage < 1 {
		leverage = 1
	}

	mc := &MockClient{
		mode:       mode,
		leverage:   leverage,
		lastUpdate: time.Now(),
	}

	mc.prices = map[string]float64{
		"BTCUSDT":  104500.00,
		"ETHUSDT":  3900.00,
		"BNBUSDT":  710.00,
		"SOLUSDT":  220.00,
		"XRPUSDT":  2.35,
		"ADAUSDT":  1.05,
		"DOGEUSDT": 0.40,
		"AVAXUSDT": 50.00,
		"DOTUSDT":  9.50,
		"LINKUSDT": 28.00,
		"LTCUSDT":  115.00,
		"ATOMUSDT": 12.00,
	}

	return mc
}

func (mc *MockClient) Mode() TradingMode { return mc.mode }

func (mc *MockClient) Leverage() int { return mc.leverage }

// updatePrices adds small random variations to simulate market movement.
func (mc *MockClient) updatePrices() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if time.Since(mc.lastUpdate) < time.Second {
		return
	}

	for symbol, price := range mc.prices {
		// Random walk: -0.5% to +0.5% change
		change := (rand.Float64() - 0.5) * 0.01
		mc.prices[symbol] = price * (1 + change)
	}
	mc.lastUpdate = time.Now()
}

// GetKlines returns simulated candlestick data.
func (mc *MockClient) GetKlines(symbol, interval string, limit int) ([]Candle, error) {
	if limit <= 0 {
		return nil, ErrNoData
	}

	mc.updatePrices()

	mc.mu.RLock()
	basePrice, ok := mc.prices[symbol]
	mc.mu.RUnlock()
	if !ok {
		basePrice = 100.0
	}

	var intervalDuration time.Duration
	switch interval {
	case "1m":
		intervalDuration = time.Minute
	case "5m":
		intervalDuration = 5 * time.Minute
	case "15m":
		intervalDuration = 15 * time.Minute
	case "1h":
		intervalDuration = time.Hour
	case "4h":
		intervalDuration = 4 * time.Hour
	case "1d":
		intervalDuration = 24 * time.Hour
	default:
		intervalDuration = time.Minute
	}

	candles := make([]Candle, limit)
	now := time.Now()

	// Generate historical candles working backwards
	currentPrice := basePrice
	for i := limit - 1; i >= 0; i-- {
		openTime := now.Add(-time.Duration(limit-i) * intervalDuration)
		closeTime := openTime.Add(intervalDuration)

		volatility := 0.02
		open := currentPrice
		change := (rand.Float64() - 0.5) * volatility * 2
		close := open * (1 + change)

		high := math.Max(open, close) * (1 + rand.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - rand.Float64()*volatility*0.5)

		volume := 1000 + rand.Float64()*5000

		candles[i] = Candle{
			OpenTime:  openTime.UnixMilli(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: closeTime.UnixMilli(),
		}

		currentPrice = close
	}

	return candles, nil
}

// GetCurrentPrice returns the simulated current price.
func (mc *MockClient) GetCurrentPrice(symbol string) (float64, error) {
	mc.updatePrices()

	mc.mu.RLock()
	price, ok := mc.prices[symbol]
	mc.mu.RUnlock()

	if ok {
		return price, nil
	}
	return 100.0, nil
}

// PlaceOrder simulates order placement. It always fills at the current
// simulated price and returns a synthetic client order id.
func (mc *MockClient) PlaceOrder(symbol, side string, quantity float64) (*OrderResult, error) {
	price, _ := mc.GetCurrentPrice(symbol)

	return &OrderResult{
		Symbol:        symbol,
		OrderID:       rand.Int63n(1000000),
		ClientOrderID: "paper_" + uuid.NewString(),
		Side:          side,
		Price:         price,
		Quantity:      quantity,
		Status:        "FILLED",
		TransactTime:  time.Now().UnixMilli(),
		Simulated:     true,
	}, nil
}

// GetBalance returns a simulated account balance.
func (mc *MockClient) GetBalance(asset string) (*Balance, error) {
	return &Balance{
		Asset: asset,
		Free:  10000.0,
		Used:  500.0,
		Total: 10500.0,
	}, nil
}
