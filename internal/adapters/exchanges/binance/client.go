package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchanges"
)

const (
	baseURL        = "https://fapi.binance.com"
	testnetURL     = "https://testnet.binancefuture.com"
	defaultTimeout = 10 * time.Second
	defaultRecvWin = 5 * time.Second
)

// Config configures the Binance futures client.
type Config struct {
	Testnet    bool
	HTTPClient *http.Client
	RecvWindow time.Duration
}

// NewClient creates a new Binance adapter instance.
func NewClient(cfg Config) exchanges.Exchange {
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = defaultRecvWin
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return &client{cfg: cfg}
}

type client struct {
	cfg Config
}

func (c *client) Name() string {
	return "binance"
}

// Ping hits the public connectivity endpoint, no authentication.
func (c *client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/fapi/v1/ping", nil, nil, nil)
}

func (c *client) GetTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	var res struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Time   int64  `json:"time"`
	}

	params := url.Values{"symbol": []string{normalizeSymbol(symbol)}}
	if err := c.call(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, nil, &res); err != nil {
		return nil, err
	}

	ts := time.UnixMilli(res.Time)
	if res.Time == 0 {
		ts = time.Now()
	}
	return &exchanges.Ticker{
		Symbol:    res.Symbol,
		LastPrice: dec(res.Price),
		Timestamp: ts,
	}, nil
}

func (c *client) GetInstrument(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	var res struct {
		Symbols []struct {
			Symbol            string `json:"symbol"`
			QuantityPrecision int32  `json:"quantityPrecision"`
		} `json:"symbols"`
	}

	if err := c.call(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, nil, &res); err != nil {
		return nil, err
	}

	wanted := normalizeSymbol(symbol)
	for _, s := range res.Symbols {
		if s.Symbol == wanted {
			return &exchanges.InstrumentInfo{
				Symbol:            s.Symbol,
				QuantityPrecision: s.QuantityPrecision,
			}, nil
		}
	}
	return nil, &exchanges.APIError{Exchange: c.Name(), Code: -1, Message: "instrument not found for " + symbol}
}

func (c *client) GetBalance(ctx context.Context, creds exchanges.Credentials) (*exchanges.Balance, error) {
	var res []struct {
		Asset            string `json:"asset"`
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}

	if err := c.call(ctx, http.MethodGet, "/fapi/v2/balance", nil, &creds, &res); err != nil {
		return nil, err
	}

	for _, b := range res {
		if b.Asset == "USDT" {
			return &exchanges.Balance{
				Currency:  b.Asset,
				Total:     dec(b.Balance),
				Available: dec(b.AvailableBalance),
			}, nil
		}
	}
	return nil, &exchanges.APIError{Exchange: c.Name(), Code: -1, Message: "no USDT balance returned"}
}

func (c *client) PlaceOrder(ctx context.Context, creds exchanges.Credentials, req *exchanges.OrderRequest) (*exchanges.OrderResult, error) {
	params := url.Values{
		"symbol":   []string{normalizeSymbol(req.Symbol)},
		"side":     []string{mapSide(req.Side)},
		"type":     []string{"MARKET"},
		"quantity": []string{req.Quantity.String()},
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	var res struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
		UpdateTime    int64  `json:"updateTime"`
	}
	if err := c.call(ctx, http.MethodPost, "/fapi/v1/order", params, &creds, &res); err != nil {
		return nil, err
	}

	return &exchanges.OrderResult{
		OrderID:   strconv.FormatInt(res.OrderID, 10),
		Status:    mapStatus(res.Status),
		CreatedAt: time.UnixMilli(res.UpdateTime),
	}, nil
}

func (c *client) CancelOrder(ctx context.Context, creds exchanges.Credentials, symbol, orderID string) error {
	params := url.Values{
		"symbol":  []string{normalizeSymbol(symbol)},
		"orderId": []string{orderID},
	}
	return c.call(ctx, http.MethodDelete, "/fapi/v1/order", params, &creds, nil)
}

// call performs a request; creds != nil makes it a signed call with the
// shared auth headers over the canonical query string.
func (c *client) call(ctx context.Context, method, path string, params url.Values, creds *exchanges.Credentials, target interface{}) error {
	query := ""
	if len(params) > 0 {
		query = params.Encode()
	}

	reqURL := c.baseURL() + path
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return err
	}

	if creds != nil {
		ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
		recv := strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10)
		sig := exchanges.Sign(creds.APISecret, ts, creds.APIKey, recv, query)

		req.Header.Set("API-KEY", creds.APIKey)
		req.Header.Set("SIGN", sig)
		req.Header.Set("SIGN-TYPE", exchanges.SignatureType)
		req.Header.Set("TIMESTAMP", ts)
		req.Header.Set("RECV-WINDOW", recv)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return &exchanges.TransportError{Exchange: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &exchanges.TransportError{Exchange: c.Name(), Err: err}
	}

	if resp.StatusCode >= 500 {
		return &exchanges.TransportError{
			Exchange: c.Name(),
			Err:      fmt.Errorf("http %d: %s", resp.StatusCode, string(body)),
		}
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return &exchanges.APIError{Exchange: c.Name(), Code: apiErr.Code, Message: apiErr.Msg}
		}
		return &exchanges.APIError{Exchange: c.Name(), Code: resp.StatusCode, Message: string(body)}
	}

	if target == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, target)
}

func (c *client) baseURL() string {
	if c.cfg.Testnet {
		return testnetURL
	}
	return baseURL
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func mapSide(side exchanges.OrderSide) string {
	if side == exchanges.OrderSideSell {
		return "SELL"
	}
	return "BUY"
}

func mapStatus(status string) exchanges.OrderStatus {
	switch strings.ToUpper(status) {
	case "FILLED":
		return exchanges.OrderStatusFilled
	case "REJECTED", "EXPIRED":
		return exchanges.OrderStatusRejected
	case "NEW", "PARTIALLY_FILLED":
		return exchanges.OrderStatusOpen
	default:
		return exchanges.OrderStatusUnknown
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
