package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/adapters/exchanges/ratelimit"
	"hermes/internal/domain/credential"
	"hermes/internal/domain/signal"
	"hermes/internal/services/sizing"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

type fakeExchange struct {
	mu          sync.Mutex
	name        string
	placeErrs   []error // consumed one per PlaceOrder call
	placeCalls  int
	pingErr     error
	pingCalls   int
	lastRequest *exchanges.OrderRequest
}

func (f *fakeExchange) Name() string { return f.name }

func (f *fakeExchange) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingCalls++
	return f.pingErr
}

func (f *fakeExchange) GetTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	return &exchanges.Ticker{Symbol: symbol, LastPrice: decimal.NewFromInt(100)}, nil
}

func (f *fakeExchange) GetInstrument(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	return &exchanges.InstrumentInfo{Symbol: symbol, QuantityPrecision: 3}, nil
}

func (f *fakeExchange) GetBalance(ctx context.Context, creds exchanges.Credentials) (*exchanges.Balance, error) {
	return &exchanges.Balance{Currency: "USDT", Available: decimal.NewFromInt(10000)}, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, creds exchanges.Credentials, req *exchanges.OrderRequest) (*exchanges.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls++
	f.lastRequest = req
	if len(f.placeErrs) > 0 {
		err := f.placeErrs[0]
		f.placeErrs = f.placeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &exchanges.OrderResult{OrderID: "ord-1", Status: exchanges.OrderStatusOpen, CreatedAt: time.Now()}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, creds exchanges.Credentials, symbol, orderID string) error {
	return nil
}

type recordingCredRepo struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]credential.ValidationStatus
}

func newRecordingCredRepo() *recordingCredRepo {
	return &recordingCredRepo{statuses: make(map[uuid.UUID]credential.ValidationStatus)}
}

func (r *recordingCredRepo) GetActiveByUserAndExchange(ctx context.Context, userID uuid.UUID, exchange credential.Exchange) (*credential.Credential, error) {
	return nil, errors.ErrNotFound
}

func (r *recordingCredRepo) Create(ctx context.Context, cred *credential.Credential) error {
	return nil
}

func (r *recordingCredRepo) SetValidationStatus(ctx context.Context, id uuid.UUID, status credential.ValidationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
	return nil
}

func (r *recordingCredRepo) ListUnvalidated(ctx context.Context, limit int) ([]*credential.Credential, error) {
	return nil, nil
}

func (r *recordingCredRepo) status(id uuid.UUID) (credential.ValidationStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statuses[id]
	return s, ok
}

func testOrder() *sizing.Order {
	return &sizing.Order{
		Symbol:     "BTCUSDT",
		Side:       signal.SideBuy,
		Quantity:   decimal.NewFromInt(1),
		EntryPrice: decimal.NewFromInt(100),
		StopLoss:   decimal.NewFromInt(98),
		TakeProfit: decimal.NewFromInt(104),
		Leverage:   5,
	}
}

func sharedPair() *credential.KeyPair {
	return &credential.KeyPair{
		Exchange:  credential.ExchangeBybit,
		Scope:     credential.ScopeSharedFallback,
		APIKey:    "key",
		APISecret: "secret",
	}
}

func newTestDispatcher(ex *fakeExchange, repo credential.Repository, cfg Config) *Dispatcher {
	adapters := map[credential.Exchange]exchanges.Exchange{
		credential.ExchangeBybit: ex,
	}
	return NewDispatcher(adapters, repo, ratelimit.NewRegistry(), cfg, logger.Get())
}

func TestDispatchSuccess(t *testing.T) {
	ex := &fakeExchange{name: "bybit"}
	d := newTestDispatcher(ex, newRecordingCredRepo(), Config{MaxRetries: 2})

	result, err := d.Dispatch(context.Background(), sharedPair(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", result.OrderID)
	assert.Equal(t, exchanges.OrderStatusOpen, result.Status)
	assert.Equal(t, 1, ex.placeCalls)
	assert.Equal(t, exchanges.OrderSideBuy, ex.lastRequest.Side)
}

func TestDispatchRetriesTransportErrors(t *testing.T) {
	ex := &fakeExchange{
		name: "bybit",
		placeErrs: []error{
			&exchanges.TransportError{Exchange: "bybit", Err: errors.New("connection reset")},
			&exchanges.TransportError{Exchange: "bybit", Err: errors.New("connection reset")},
		},
	}
	d := newTestDispatcher(ex, newRecordingCredRepo(), Config{MaxRetries: 2})

	result, err := d.Dispatch(context.Background(), sharedPair(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", result.OrderID)
	assert.Equal(t, 3, ex.placeCalls, "two transport failures then success")
}

func TestDispatchGivesUpAfterMaxRetries(t *testing.T) {
	transport := &exchanges.TransportError{Exchange: "bybit", Err: errors.New("timeout")}
	ex := &fakeExchange{
		name:      "bybit",
		placeErrs: []error{transport, transport, transport},
	}
	d := newTestDispatcher(ex, newRecordingCredRepo(), Config{MaxRetries: 2})

	_, err := d.Dispatch(context.Background(), sharedPair(), testOrder())
	assert.Error(t, err)
	assert.Equal(t, 3, ex.placeCalls, "initial attempt plus two retries")
}

func TestDispatchNeverRetriesExchangeRejections(t *testing.T) {
	ex := &fakeExchange{
		name:      "bybit",
		placeErrs: []error{&exchanges.APIError{Exchange: "bybit", Code: 110007, Message: "insufficient balance"}},
	}
	d := newTestDispatcher(ex, newRecordingCredRepo(), Config{MaxRetries: 2})

	_, err := d.Dispatch(context.Background(), sharedPair(), testOrder())
	assert.Error(t, err)
	assert.Equal(t, 1, ex.placeCalls, "exchange-rejected orders are not retried")

	var apiErr *exchanges.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 110007, apiErr.Code)
}

func TestDispatchUnsupportedExchange(t *testing.T) {
	ex := &fakeExchange{name: "bybit"}
	d := newTestDispatcher(ex, newRecordingCredRepo(), Config{})

	pair := sharedPair()
	pair.Exchange = credential.ExchangeBinance
	_, err := d.Dispatch(context.Background(), pair, testOrder())
	assert.True(t, errors.Is(err, errors.ErrUnsupportedExchange))
}

func TestFirstUseProbeRecordsValidationStatus(t *testing.T) {
	ex := &fakeExchange{name: "bybit"}
	repo := newRecordingCredRepo()
	d := newTestDispatcher(ex, repo, Config{ProbeOnFirstUse: true})

	pair := sharedPair()
	pair.CredentialID = uuid.New()
	pair.Scope = credential.ScopeIndividual

	_, err := d.Dispatch(context.Background(), pair, testOrder())
	require.NoError(t, err)

	// The probe is asynchronous and must never block dispatch.
	require.Eventually(t, func() bool {
		status, ok := repo.status(pair.CredentialID)
		return ok && status == credential.ValidationValid
	}, 2*time.Second, 10*time.Millisecond)

	// Repeat dispatches do not probe again.
	_, err = d.Dispatch(context.Background(), pair, testOrder())
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		return ex.pingCalls == 1
	}, time.Second, 10*time.Millisecond)
}

func TestProbeRecordsErrorStatus(t *testing.T) {
	ex := &fakeExchange{name: "bybit", pingErr: errors.New("unreachable")}
	repo := newRecordingCredRepo()
	d := newTestDispatcher(ex, repo, Config{})

	cred := &credential.Credential{ID: uuid.New(), Exchange: credential.ExchangeBybit}
	err := d.Probe(context.Background(), cred)
	assert.Error(t, err)

	status, ok := repo.status(cred.ID)
	require.True(t, ok)
	assert.Equal(t, credential.ValidationError, status)
}
