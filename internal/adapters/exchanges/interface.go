package exchanges

import (
	"context"
)

// Exchange defines the unified contract each exchange adapter must satisfy.
// Adapters share the signing algorithm and differ only in endpoint paths and
// field names. Credentials are supplied per call: the same adapter serves
// every tenant on that venue.
type Exchange interface {
	Name() string

	// Ping is the lightweight unauthenticated connectivity probe.
	Ping(ctx context.Context) error

	// Market data
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetInstrument(ctx context.Context, symbol string) (*InstrumentInfo, error)

	// Account
	GetBalance(ctx context.Context, creds Credentials) (*Balance, error)

	// Trading
	PlaceOrder(ctx context.Context, creds Credentials, req *OrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, creds Credentials, symbol, orderID string) error
}
