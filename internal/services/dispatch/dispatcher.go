package dispatch

import (
	"context"
	"sync"
	"time"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/adapters/exchanges/ratelimit"
	"hermes/internal/adapters/exchanges/retry"
	"hermes/internal/domain/credential"
	"hermes/internal/metrics"
	"hermes/internal/services/sizing"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Dispatcher submits sized orders to exchanges. Calls for different orders
// run concurrently, bounded per exchange by a semaphore plus the venue's
// rate limiter. Transport failures are retried with backoff; orders the
// exchange rejected are returned as typed errors without another attempt.
type Dispatcher struct {
	adapters    map[credential.Exchange]exchanges.Exchange
	credentials credential.Repository
	limits      *ratelimit.Registry
	retrier     *retry.Middleware

	semaphores map[credential.Exchange]chan struct{}

	probeOnFirstUse bool
	probed          sync.Map // credential ID -> struct{}

	log *logger.Logger
}

// Config carries dispatcher tunables.
type Config struct {
	PerExchangeParallel int
	MaxRetries          int
	ProbeOnFirstUse     bool
}

// NewDispatcher creates a new dispatcher over the given exchange adapters
func NewDispatcher(
	adapters map[credential.Exchange]exchanges.Exchange,
	credentials credential.Repository,
	limits *ratelimit.Registry,
	cfg Config,
	log *logger.Logger,
) *Dispatcher {
	if cfg.PerExchangeParallel <= 0 {
		cfg.PerExchangeParallel = 8
	}

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries >= 0 {
		retryCfg.MaxRetries = cfg.MaxRetries
	}

	semaphores := make(map[credential.Exchange]chan struct{}, len(adapters))
	for name := range adapters {
		semaphores[name] = make(chan struct{}, cfg.PerExchangeParallel)
	}

	return &Dispatcher{
		adapters:        adapters,
		credentials:     credentials,
		limits:          limits,
		retrier:         retry.New(retryCfg),
		semaphores:      semaphores,
		probeOnFirstUse: cfg.ProbeOnFirstUse,
		log:             log,
	}
}

// Dispatch signs and submits an order using the resolved key pair. On success
// the exchange order id and initial status come back; the dispatcher never
// waits for fills. An unvalidated credential is still attempted: the
// connectivity probe runs in the background and only records its result.
func (d *Dispatcher) Dispatch(ctx context.Context, keys *credential.KeyPair, order *sizing.Order) (*exchanges.OrderResult, error) {
	adapter, ok := d.adapters[keys.Exchange]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedExchange, "%s", keys.Exchange)
	}

	if d.probeOnFirstUse {
		d.maybeProbe(keys, adapter)
	}

	release, err := d.acquire(ctx, keys.Exchange)
	if err != nil {
		return nil, err
	}
	defer release()

	creds := exchanges.Credentials{APIKey: keys.APIKey, APISecret: keys.APISecret}
	req := &exchanges.OrderRequest{
		Symbol:     order.Symbol,
		Side:       exchanges.OrderSide(order.Side),
		Quantity:   order.Quantity,
		Price:      order.EntryPrice,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
		Leverage:   order.Leverage,
	}

	start := time.Now()
	var result *exchanges.OrderResult
	attempts := 0
	err = d.retrier.Do(ctx, func() error {
		attempts++
		if attempts > 1 {
			metrics.DispatchRetries.WithLabelValues(adapter.Name()).Inc()
		}
		if err := d.limits.Wait(ctx, adapter.Name()); err != nil {
			return err
		}
		var placeErr error
		result, placeErr = adapter.PlaceOrder(ctx, creds, req)
		return placeErr
	})
	metrics.DispatchDuration.WithLabelValues(adapter.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DispatchResults.WithLabelValues(adapter.Name(), "error").Inc()
		d.log.Errorw("Order dispatch failed",
			"exchange", adapter.Name(),
			"symbol", order.Symbol,
			"side", order.Side,
			"attempts", attempts,
			"error", err,
		)
		return nil, err
	}

	metrics.DispatchResults.WithLabelValues(adapter.Name(), "ok").Inc()
	d.log.Infow("Order dispatched",
		"exchange", adapter.Name(),
		"symbol", order.Symbol,
		"side", order.Side,
		"quantity", order.Quantity,
		"order_id", result.OrderID,
	)

	return result, nil
}

// GetBalance fetches the available balance for sizing.
func (d *Dispatcher) GetBalance(ctx context.Context, keys *credential.KeyPair) (*exchanges.Balance, error) {
	adapter, ok := d.adapters[keys.Exchange]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedExchange, "%s", keys.Exchange)
	}
	if err := d.limits.Wait(ctx, adapter.Name()); err != nil {
		return nil, err
	}
	creds := exchanges.Credentials{APIKey: keys.APIKey, APISecret: keys.APISecret}
	return adapter.GetBalance(ctx, creds)
}

// GetInstrument fetches the venue's symbol precision for the sizer.
func (d *Dispatcher) GetInstrument(ctx context.Context, exchange credential.Exchange, symbol string) (*exchanges.InstrumentInfo, error) {
	adapter, ok := d.adapters[exchange]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedExchange, "%s", exchange)
	}
	if err := d.limits.Wait(ctx, adapter.Name()); err != nil {
		return nil, err
	}
	return adapter.GetInstrument(ctx, symbol)
}

// GetTicker fetches the last traded price for a symbol.
func (d *Dispatcher) GetTicker(ctx context.Context, exchange credential.Exchange, symbol string) (*exchanges.Ticker, error) {
	adapter, ok := d.adapters[exchange]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedExchange, "%s", exchange)
	}
	if err := d.limits.Wait(ctx, adapter.Name()); err != nil {
		return nil, err
	}
	return adapter.GetTicker(ctx, symbol)
}

// Probe validates a credential against its exchange and records the result.
// Used by the periodic validation sweep; the first-use path goes through
// maybeProbe instead so dispatch is never blocked.
func (d *Dispatcher) Probe(ctx context.Context, cred *credential.Credential) error {
	adapter, ok := d.adapters[cred.Exchange]
	if !ok {
		return errors.Wrapf(errors.ErrUnsupportedExchange, "%s", cred.Exchange)
	}

	status := credential.ValidationValid
	pingErr := adapter.Ping(ctx)
	if pingErr != nil {
		status = credential.ValidationError
	}

	if err := d.credentials.SetValidationStatus(ctx, cred.ID, status); err != nil {
		d.log.Errorw("Failed to record credential validation status",
			"credential_id", cred.ID,
			"status", status,
			"error", err,
		)
	}
	return pingErr
}

// maybeProbe launches the one-time background connectivity probe for a
// credential. Shared fallback keys have no row to update and are skipped.
func (d *Dispatcher) maybeProbe(keys *credential.KeyPair, adapter exchanges.Exchange) {
	if keys.Scope != credential.ScopeIndividual {
		return
	}
	if _, already := d.probed.LoadOrStore(keys.CredentialID, struct{}{}); already {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		status := credential.ValidationValid
		if err := adapter.Ping(ctx); err != nil {
			status = credential.ValidationError
			d.log.Warnw("Credential connectivity probe failed",
				"credential_id", keys.CredentialID,
				"exchange", adapter.Name(),
				"error", err,
			)
		}

		if err := d.credentials.SetValidationStatus(ctx, keys.CredentialID, status); err != nil {
			d.log.Errorw("Failed to record credential validation status",
				"credential_id", keys.CredentialID,
				"error", err,
			)
		}
	}()
}

func (d *Dispatcher) acquire(ctx context.Context, exchange credential.Exchange) (func(), error) {
	sem, ok := d.semaphores[exchange]
	if !ok {
		return func() {}, nil
	}
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for dispatch slot")
	}
}
