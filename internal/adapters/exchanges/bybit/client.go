package bybit

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
	baseURL        = "https://api.bybit.com"
	testnetURL     = "https://api-testnet.bybit.com"
	defaultTimeout = 10 * time.Second
	defaultRecvWin = 5 * time.Second
)

// Config configures the Bybit client.
type Config struct {
	Testnet    bool
	HTTPClient *http.Client
	RecvWindow time.Duration
}

// NewClient creates a new Bybit adapter instance.
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
	return "bybit"
}

// Ping hits the public server-time endpoint, no authentication.
func (c *client) Ping(ctx context.Context) error {
	return c.publicGet(ctx, "/v5/market/time", nil, nil)
}

func (c *client) GetTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	var res struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			CloseTime int64  `json:"closeTime"`
		} `json:"list"`
	}

	params := url.Values{
		"category": []string{"linear"},
		"symbol":   []string{normalizeSymbol(symbol)},
	}
	if err := c.publicGet(ctx, "/v5/market/tickers", params, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, &exchanges.APIError{Exchange: c.Name(), Code: -1, Message: "ticker not found for " + symbol}
	}
	item := res.List[0]
	ts := time.UnixMilli(item.CloseTime)
	if item.CloseTime == 0 {
		ts = time.Now()
	}
	return &exchanges.Ticker{
		Symbol:    item.Symbol,
		LastPrice: dec(item.LastPrice),
		Timestamp: ts,
	}, nil
}

func (c *client) GetInstrument(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	var res struct {
		List []struct {
			Symbol        string `json:"symbol"`
			LotSizeFilter struct {
				QtyStep string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}

	params := url.Values{
		"category": []string{"linear"},
		"symbol":   []string{normalizeSymbol(symbol)},
	}
	if err := c.publicGet(ctx, "/v5/market/instruments-info", params, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, &exchanges.APIError{Exchange: c.Name(), Code: -1, Message: "instrument not found for " + symbol}
	}
	return &exchanges.InstrumentInfo{
		Symbol:            res.List[0].Symbol,
		QuantityPrecision: precisionFromStep(res.List[0].LotSizeFilter.QtyStep),
	}, nil
}

func (c *client) GetBalance(ctx context.Context, creds exchanges.Credentials) (*exchanges.Balance, error) {
	var res struct {
		List []struct {
			TotalEquity     string `json:"totalEquity"`
			TotalAvailable  string `json:"totalAvailableBalance"`
		} `json:"list"`
	}

	params := url.Values{"accountType": []string{"UNIFIED"}}
	if err := c.signedGet(ctx, creds, "/v5/account/wallet-balance", params, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, &exchanges.APIError{Exchange: c.Name(), Code: -1, Message: "no wallet balance returned"}
	}
	return &exchanges.Balance{
		Currency:  "USDT",
		Total:     dec(res.List[0].TotalEquity),
		Available: dec(res.List[0].TotalAvailable),
	}, nil
}

func (c *client) PlaceOrder(ctx context.Context, creds exchanges.Credentials, req *exchanges.OrderRequest) (*exchanges.OrderResult, error) {
	body := map[string]string{
		"category":    "linear",
		"symbol":      normalizeSymbol(req.Symbol),
		"side":        mapSide(req.Side),
		"orderType":   "Market",
		"qty":         req.Quantity.String(),
		"timeInForce": "GTC",
	}
	if req.StopLoss.IsPositive() {
		body["stopLoss"] = req.StopLoss.String()
	}
	if req.TakeProfit.IsPositive() {
		body["takeProfit"] = req.TakeProfit.String()
	}
	if req.ClientOrderID != "" {
		body["orderLinkId"] = req.ClientOrderID
	}

	var res struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := c.signedPost(ctx, creds, "/v5/order/create", body, &res); err != nil {
		return nil, err
	}

	return &exchanges.OrderResult{
		OrderID:   res.OrderID,
		Status:    exchanges.OrderStatusOpen,
		CreatedAt: time.Now(),
	}, nil
}

func (c *client) CancelOrder(ctx context.Context, creds exchanges.Credentials, symbol, orderID string) error {
	body := map[string]string{
		"category": "linear",
		"symbol":   normalizeSymbol(symbol),
		"orderId":  orderID,
	}
	return c.signedPost(ctx, creds, "/v5/order/cancel", body, nil)
}

// HTTP plumbing

func (c *client) publicGet(ctx context.Context, path string, params url.Values, target interface{}) error {
	reqURL := c.baseURL() + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	return c.do(req, target)
}

func (c *client) signedGet(ctx context.Context, creds exchanges.Credentials, path string, params url.Values, target interface{}) error {
	query := ""
	if len(params) > 0 {
		query = params.Encode()
	}

	reqURL := c.baseURL() + path
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	c.applyAuth(req, creds, query)

	return c.do(req, target)
}

func (c *client) signedPost(ctx context.Context, creds exchanges.Credentials, path string, payload interface{}, target interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, strings.NewReader(string(raw)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req, creds, string(raw))

	return c.do(req, target)
}

// applyAuth signs the canonical string (request body for POST, encoded query
// for GET) and sets the Bybit v5 auth headers.
func (c *client) applyAuth(req *http.Request, creds exchanges.Credentials, canonical string) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	recv := strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10)
	sig := exchanges.Sign(creds.APISecret, ts, creds.APIKey, recv, canonical)

	req.Header.Set("X-BAPI-API-KEY", creds.APIKey)
	req.Header.Set("X-BAPI-SIGN", sig)
	req.Header.Set("X-BAPI-SIGN-TYPE", exchanges.SignatureType)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recv)
}

func (c *client) do(req *http.Request, target interface{}) error {
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
		return &exchanges.APIError{Exchange: c.Name(), Code: resp.StatusCode, Message: string(body)}
	}

	return c.decodeResponse(body, target)
}

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *client) decodeResponse(body []byte, target interface{}) error {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &exchanges.TransportError{Exchange: c.Name(), Err: err}
	}
	if resp.RetCode != 0 {
		return &exchanges.APIError{Exchange: c.Name(), Code: resp.RetCode, Message: resp.RetMsg}
	}
	if target == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, target)
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
		return "Sell"
	}
	return "Buy"
}

// precisionFromStep converts a lot step like "0.001" to a decimal place count.
func precisionFromStep(step string) int32 {
	d, err := decimal.NewFromString(step)
	if err != nil || d.IsZero() {
		return 0
	}
	if d.Exponent() < 0 {
		return -d.Exponent()
	}
	return 0
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
