package exchanges

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide defines buy or sell direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus enumerates exchange-level order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusUnknown  OrderStatus = "unknown"
)

// Credentials is the decrypted key pair used to sign a request. Never logged.
type Credentials struct {
	APIKey    string
	APISecret string
}

// OrderRequest is the unified payload for order placement.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopLoss      decimal.Decimal
	TakeProfit    decimal.Decimal
	Leverage      int
	ClientOrderID string
}

// OrderResult is the normalized exchange response to a placement.
type OrderResult struct {
	OrderID   string
	Status    OrderStatus
	CreatedAt time.Time
}

// Ticker carries the last traded price for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice decimal.Decimal
	Timestamp time.Time
}

// Balance describes account balances in the quote currency.
type Balance struct {
	Currency  string
	Total     decimal.Decimal
	Available decimal.Decimal
}

// InstrumentInfo carries the venue-supplied precision for a symbol. The
// order sizer performs no rounding beyond this.
type InstrumentInfo struct {
	Symbol            string
	QuantityPrecision int32
}
