package pipeline

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
	"hermes/internal/domain/operation"
	"hermes/internal/domain/riskprofile"
	"hermes/internal/domain/sentiment"
	"hermes/internal/domain/signal"
	"hermes/internal/events"
	"hermes/internal/services/credentials"
	"hermes/internal/services/dispatch"
	"hermes/internal/services/gate"
	"hermes/internal/services/ledger"
	"hermes/internal/services/risk"
	"hermes/internal/services/sizing"
	"hermes/pkg/crypto"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// In-memory fakes

type memSignalRepo struct {
	mu      sync.Mutex
	signals map[uuid.UUID]*signal.Signal
}

func newMemSignalRepo() *memSignalRepo {
	return &memSignalRepo{signals: make(map[uuid.UUID]*signal.Signal)}
}

func (m *memSignalRepo) Create(ctx context.Context, sig *signal.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sig
	m.signals[sig.ID] = &cp
	return nil
}

func (m *memSignalRepo) GetByID(ctx context.Context, id uuid.UUID) (*signal.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return sig, nil
}

func (m *memSignalRepo) SetStatus(ctx context.Context, id uuid.UUID, status signal.Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[id]
	if !ok {
		return errors.ErrNotFound
	}
	if sig.Status.IsTerminal() {
		return nil
	}
	sig.Status = status
	sig.Reason = reason
	return nil
}

type memProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*riskprofile.Profile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: make(map[uuid.UUID]*riskprofile.Profile)}
}

func (m *memProfileRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*riskprofile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return p, nil
}

func (m *memProfileRepo) Create(ctx context.Context, p *riskprofile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *memProfileRepo) Update(ctx context.Context, p *riskprofile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *memProfileRepo) Deactivate(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (m *memProfileRepo) ListActive(ctx context.Context, limit, offset int) ([]*riskprofile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*riskprofile.Profile
	for _, p := range m.profiles {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type memOperationRepo struct {
	mu  sync.Mutex
	ops map[uuid.UUID]*operation.Operation
}

func newMemOperationRepo() *memOperationRepo {
	return &memOperationRepo{ops: make(map[uuid.UUID]*operation.Operation)}
}

func (m *memOperationRepo) Create(ctx context.Context, op *operation.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.ID] = op
	return nil
}

func (m *memOperationRepo) GetByID(ctx context.Context, id uuid.UUID) (*operation.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return op, nil
}

func (m *memOperationRepo) GetOpenByUser(ctx context.Context, userID uuid.UUID) ([]*operation.Operation, error) {
	return nil, nil
}

func (m *memOperationRepo) ListOpen(ctx context.Context) ([]*operation.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*operation.Operation
	for _, op := range m.ops {
		if op.Status == operation.StatusOpen {
			out = append(out, op)
		}
	}
	return out, nil
}

func (m *memOperationRepo) ExistsForSignal(ctx context.Context, userID, signalID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.ops {
		if op.UserID == userID && op.SignalID != nil && *op.SignalID == signalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memOperationRepo) Update(ctx context.Context, op *operation.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.ID] = op
	return nil
}

func (m *memOperationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}

type memCredentialRepo struct{}

func (memCredentialRepo) GetActiveByUserAndExchange(ctx context.Context, userID uuid.UUID, exchange credential.Exchange) (*credential.Credential, error) {
	return nil, errors.ErrNotFound
}
func (memCredentialRepo) Create(ctx context.Context, cred *credential.Credential) error { return nil }
func (memCredentialRepo) SetValidationStatus(ctx context.Context, id uuid.UUID, status credential.ValidationStatus) error {
	return nil
}
func (memCredentialRepo) ListUnvalidated(ctx context.Context, limit int) ([]*credential.Credential, error) {
	return nil, nil
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: make(map[string]bool)}
}

func (m *memDeduper) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	gates    []*events.GateDecisionEvent
	risks    []*events.RiskDecisionEvent
	dispatch []*events.DispatchResultEvent
	ledgers  []*events.LedgerTransitionEvent
}

func (r *recordingPublisher) PublishGateDecision(ctx context.Context, e *events.GateDecisionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates = append(r.gates, e)
}

func (r *recordingPublisher) PublishRiskDecision(ctx context.Context, e *events.RiskDecisionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.risks = append(r.risks, e)
}

func (r *recordingPublisher) PublishDispatchResult(ctx context.Context, e *events.DispatchResultEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatch = append(r.dispatch, e)
}

func (r *recordingPublisher) PublishLedgerTransition(ctx context.Context, e *events.LedgerTransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers = append(r.ledgers, e)
}

type stubProvider struct {
	value int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Fetch(ctx context.Context) (*sentiment.Reading, error) {
	return sentiment.NewReading(p.value, "stub", time.Now()), nil
}

type memSentimentRepo struct{}

func (memSentimentRepo) Append(ctx context.Context, reading *sentiment.Reading) error { return nil }
func (memSentimentRepo) GetLatest(ctx context.Context) (*sentiment.Reading, error) {
	return nil, errors.ErrNotFound
}
func (memSentimentRepo) ListSince(ctx context.Context, limit int) ([]*sentiment.Reading, error) {
	return nil, nil
}

type stubExchange struct {
	mu         sync.Mutex
	placeErr   error
	placeCalls int
}

func (s *stubExchange) Name() string                   { return "bybit" }
func (s *stubExchange) Ping(ctx context.Context) error { return nil }

func (s *stubExchange) GetTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	return &exchanges.Ticker{Symbol: symbol, LastPrice: decimal.NewFromInt(100)}, nil
}

func (s *stubExchange) GetInstrument(ctx context.Context, symbol string) (*exchanges.InstrumentInfo, error) {
	return &exchanges.InstrumentInfo{Symbol: symbol, QuantityPrecision: 3}, nil
}

func (s *stubExchange) GetBalance(ctx context.Context, creds exchanges.Credentials) (*exchanges.Balance, error) {
	return &exchanges.Balance{Currency: "USDT", Available: decimal.NewFromInt(100000)}, nil
}

func (s *stubExchange) PlaceOrder(ctx context.Context, creds exchanges.Credentials, req *exchanges.OrderRequest) (*exchanges.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placeCalls++
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	return &exchanges.OrderResult{OrderID: "ord-1", Status: exchanges.OrderStatusOpen, CreatedAt: time.Now()}, nil
}

func (s *stubExchange) CancelOrder(ctx context.Context, creds exchanges.Credentials, symbol, orderID string) error {
	return nil
}

// Harness

type harness struct {
	pipeline   *Pipeline
	signals    *memSignalRepo
	profiles   *memProfileRepo
	operations *memOperationRepo
	exchange   *stubExchange
	publisher  *recordingPublisher
	provider   *stubProvider
}

func newHarness(t *testing.T, sentimentValue int) *harness {
	t.Helper()
	log := logger.Get()

	signals := newMemSignalRepo()
	profiles := newMemProfileRepo()
	operations := newMemOperationRepo()
	publisher := &recordingPublisher{}
	provider := &stubProvider{value: sentimentValue}
	exchange := &stubExchange{}

	gateSvc := gate.NewService([]gate.Provider{provider}, memSentimentRepo{}, 4*time.Hour, log)
	require.NoError(t, gateSvc.Refresh(context.Background()))

	riskSvc := risk.NewEvaluator(profiles, 0.10, log)

	encryptor, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	resolver := credentials.NewResolver(memCredentialRepo{}, encryptor, map[credential.Exchange]credentials.SharedKeys{
		credential.ExchangeBybit: {APIKey: "shared", APISecret: "shared"},
	}, log)

	sizer := sizing.NewSizer(0.02, 0.04, log)

	dispatcher := dispatch.NewDispatcher(
		map[credential.Exchange]exchanges.Exchange{credential.ExchangeBybit: exchange},
		memCredentialRepo{},
		ratelimit.NewRegistry(),
		dispatch.Config{MaxRetries: 0},
		log,
	)

	ledgerSvc := ledger.NewService(operations, profiles, dispatcher, log)

	pipe := NewPipeline(
		signals, profiles, operations,
		gateSvc, riskSvc, resolver, sizer, dispatcher, ledgerSvc,
		publisher, newMemDeduper(), credential.ExchangeBybit, log,
	)

	return &harness{
		pipeline:   pipe,
		signals:    signals,
		profiles:   profiles,
		operations: operations,
		exchange:   exchange,
		publisher:  publisher,
		provider:   provider,
	}
}

func (h *harness) addUser(t *testing.T) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	require.NoError(t, h.profiles.Create(context.Background(), &riskprofile.Profile{
		ID:              uuid.New(),
		UserID:          userID,
		RiskLevel:       riskprofile.RiskLow,
		RiskPercentage:  decimal.NewFromFloat(0.02),
		MaxPositionSize: decimal.NewFromInt(10000),
		Leverage:        5,
		MaxLeverage:     10,
		IsActive:        true,
	}))
	return userID
}

func buySignal() *signal.Signal {
	return &signal.Signal{
		ID:         uuid.New(),
		Symbol:     "BTCUSDT",
		Side:       signal.SideBuy,
		Price:      decimal.NewFromInt(100),
		Source:     "tradingview",
		ReceivedAt: time.Now(),
	}
}

// Tests

func TestProcessHappyPath(t *testing.T) {
	h := newHarness(t, 50)
	h.addUser(t)

	sig := buySignal()
	require.NoError(t, h.pipeline.Process(context.Background(), sig))

	stored, err := h.signals.GetByID(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Equal(t, signal.StatusDispatched, stored.Status)

	assert.Equal(t, 1, h.operations.count())
	assert.Len(t, h.publisher.gates, 1)
	assert.Len(t, h.publisher.risks, 1)
	assert.Len(t, h.publisher.dispatch, 1)
	assert.Len(t, h.publisher.ledgers, 1)
	assert.True(t, h.publisher.dispatch[0].Success)
}

func TestProcessFansOutAcrossUsers(t *testing.T) {
	h := newHarness(t, 50)
	h.addUser(t)
	h.addUser(t)
	h.addUser(t)

	require.NoError(t, h.pipeline.Process(context.Background(), buySignal()))

	assert.Equal(t, 3, h.operations.count(), "each user gets an independent operation")
	assert.Len(t, h.publisher.risks, 3)
}

func TestProcessGateBlocksBuyInExtremeGreed(t *testing.T) {
	h := newHarness(t, 90)
	h.addUser(t)

	sig := buySignal()
	require.NoError(t, h.pipeline.Process(context.Background(), sig))

	stored, err := h.signals.GetByID(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Equal(t, signal.StatusRejected, stored.Status)
	assert.NotEmpty(t, stored.Reason)
	assert.Equal(t, 0, h.operations.count())
	assert.Equal(t, 0, h.exchange.placeCalls)
}

func TestProcessDuplicateDeliveryIsSilentlyAbsorbed(t *testing.T) {
	h := newHarness(t, 50)
	h.addUser(t)

	sig := buySignal()
	require.NoError(t, h.pipeline.Process(context.Background(), sig))
	require.NoError(t, h.pipeline.Process(context.Background(), sig))

	assert.Equal(t, 1, h.operations.count(), "second delivery of the same id does nothing")
	assert.Len(t, h.publisher.gates, 1)
}

func TestProcessRiskRejectionForAllUsers(t *testing.T) {
	h := newHarness(t, 50)
	userID := h.addUser(t)
	h.profiles.profiles[userID].ConsecutiveLosses = 10

	sig := buySignal()
	require.NoError(t, h.pipeline.Process(context.Background(), sig))

	stored, err := h.signals.GetByID(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Equal(t, signal.StatusRejected, stored.Status)
	assert.Equal(t, "risk rejected for all users", stored.Reason)
	assert.Equal(t, 0, h.operations.count())
}

func TestProcessDispatchFailureMarksSignalFailed(t *testing.T) {
	h := newHarness(t, 50)
	h.addUser(t)
	h.exchange.placeErr = &exchanges.APIError{Exchange: "bybit", Code: 110007, Message: "insufficient balance"}

	sig := buySignal()
	require.NoError(t, h.pipeline.Process(context.Background(), sig))

	stored, err := h.signals.GetByID(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Equal(t, signal.StatusFailed, stored.Status)
	assert.Equal(t, 0, h.operations.count())

	require.Len(t, h.publisher.dispatch, 1)
	assert.False(t, h.publisher.dispatch[0].Success)
	assert.NotEmpty(t, h.publisher.dispatch[0].Error)
}

func TestProcessRejectsInvalidSignals(t *testing.T) {
	h := newHarness(t, 50)

	sig := buySignal()
	sig.Side = signal.Side("hold")
	err := h.pipeline.Process(context.Background(), sig)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	sig = buySignal()
	sig.Price = decimal.Zero
	err = h.pipeline.Process(context.Background(), sig)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestProcessNoUsersRejects(t *testing.T) {
	h := newHarness(t, 50)

	sig := buySignal()
	require.NoError(t, h.pipeline.Process(context.Background(), sig))

	stored, err := h.signals.GetByID(context.Background(), sig.ID)
	require.NoError(t, err)
	assert.Equal(t, signal.StatusRejected, stored.Status)
	assert.Equal(t, "no active users", stored.Reason)
}
