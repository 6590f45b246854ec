package market

import (
	"errors"
	"time"
)

// ErrNoData is returned when the exchange responds with an empty or
// unusable candle series for a symbol.
var ErrNoData = errors.New("market: no candle data available")

// TradingMode selects spot or leveraged futures markets. It affects symbol
// display formatting and the leverage recorded on trades, nothing else.
type TradingMode string

const (
	ModeSpot    TradingMode = "spot"
	ModeFutures TradingMode = "futures"
)

// Candle represents one OHLCV sample for a fixed time bucket.
type Candle struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"`
}

// Time returns the candle open time as a time.Time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime)
}

// Balance represents the balance of a single asset.
type Balance struct {
	Asset string  `json:"asset"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// OrderResult represents the outcome of an order placement, real or
// simulated. Simulated orders still carry a fill price and a synthetic id.
type OrderResult struct {
	Symbol        string  `json:"symbol"`
	OrderID       int64   `json:"orderId"`
	ClientOrderID string  `json:"clientOrderId"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	Status        string  `json:"status"`
	TransactTime  int64   `json:"transactTime"`
	Simulated     bool    `json:"simulated"`
}

// FormatSymbol renders a symbol for display under the given trading mode.
// Futures symbols are tagged as perpetual contracts.
func FormatSymbol(symbol string, mode TradingMode) string {
	if mode == ModeFutures {
		return symbol + "-PERP"
	}
	return symbol
}
