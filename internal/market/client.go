package market

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to a Binance-compatible REST API.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	mode       TradingMode
	leverage   int
	httpClient *http.Client
}

// NewClient creates a new exchange client. Leverage below 1 is treated as 1.
func NewClient(apiKey, secretKey, baseURL string, mode TradingMode, leverage int) *Client {
	if leverage < 1 {
		leverage = 1
	}
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		mode:       mode,
		leverage:   leverage,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Mode() TradingMode { return c.mode }

func (c *Client) Leverage() int { return c.leverage }

// GetKlines fetches candlestick data.
func (c *Client) GetKlines(symbol, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	if len(rawKlines) == 0 {
		return nil, ErrNoData
	}

	candles := make([]Candle, len(rawKlines))
	for i, raw := range rawKlines {
		candles[i] = Candle{
			OpenTime:  int64(raw[0].(float64)),
			Open:      parseFloat(raw[1]),
			High:      parseFloat(raw[2]),
			Low:       parseFloat(raw[3]),
			Close:     parseFloat(raw[4]),
			Volume:    parseFloat(raw[5]),
			CloseTime: int64(raw[6].(float64)),
		}
	}

	return candles, nil
}

// GetCurrentPrice fetches the current price for a symbol.
func (c *Client) GetCurrentPrice(symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, symbol)

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API error: %s", string(body))
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}

	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return priceResp.Price, nil
}

// PlaceOrder places a market order.
func (c *Client) PlaceOrder(symbol, side string, quantity float64) (*OrderResult, error) {
	params := map[string]string{
		"symbol":    symbol,
		"side":      side,
		"type":      "MARKET",
		"quantity":  strconv.FormatFloat(quantity, 'f', 8, 64),
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	params["signature"] = c.sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	endpoint := fmt.Sprintf("%s/api/v3/order", c.baseURL)

	req, err := http.NewRequest("POST", endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var orderResp struct {
		Symbol        string  `json:"symbol"`
		OrderID       int64   `json:"orderId"`
		ClientOrderID string  `json:"clientOrderId"`
		TransactTime  int64   `json:"transactTime"`
		Price         float64 `json:"price,string"`
		ExecutedQty   float64 `json:"executedQty,string"`
		Status        string  `json:"status"`
		Side          string  `json:"side"`
	}
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}

	return &OrderResult{
		Symbol:        orderResp.Symbol,
		OrderID:       orderResp.OrderID,
		ClientOrderID: orderResp.ClientOrderID,
		Side:          orderResp.Side,
		Price:         orderResp.Price,
		Quantity:      orderResp.ExecutedQty,
		Status:        orderResp.Status,
		TransactTime:  orderResp.TransactTime,
	}, nil
}

// GetBalance fetches the balance of a single asset from the account endpoint.
func (c *Client) GetBalance(asset string) (*Balance, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	params["signature"] = c.sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	endpoint := fmt.Sprintf("%s/api/v3/account", c.baseURL)

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching account: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var account struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("error parsing account: %w", err)
	}

	for _, b := range account.Balances {
		if b.Asset == asset {
			free, _ := strconv.ParseFloat(b.Free, 64)
			locked, _ := strconv.ParseFloat(b.Locked, 64)
			return &Balance{
				Asset: asset,
				Free:  free,
				Used:  locked,
				Total: free + locked,
			}, nil
		}
	}

	return &Balance{Asset: asset}, nil
}

// sign creates a signature for authenticated requests.
func (c *Client) sign(params map[string]string) string {
	query := ""
	for k, v := range params {
		if k != "signature" {
			if query != "" {
				query += "&"
			}
			query += k + "=" + v
		}
	}

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
