package market

// ExchangeClient defines the narrow exchange contract the trading core
// consumes: market data, order placement and balance lookup.
type ExchangeClient interface {
	GetKlines(symbol, interval string, limit int) ([]Candle, error)
	GetCurrentPrice(symbol string) (float64, error)
	PlaceOrder(symbol, side string, quantity float64) (*OrderResult, error)
	GetBalance(asset string) (*Balance, error)

	// Mode and Leverage describe how trades on this client are recorded.
	Mode() TradingMode
	Leverage() int
}

// Ensure both Client and MockClient implement ExchangeClient
var _ ExchangeClient = (*Client)(nil)
var _ ExchangeClient = (*MockClient)(nil)
