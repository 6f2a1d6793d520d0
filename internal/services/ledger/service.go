package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/domain/credential"
	"hermes/internal/domain/operation"
	"hermes/internal/domain/riskprofile"
	"hermes/internal/domain/signal"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// PriceSource supplies the latest market price per exchange+symbol. In
// production this is the dispatcher's ticker path.
type PriceSource interface {
	GetTicker(ctx context.Context, exchange credential.Exchange, symbol string) (*exchanges.Ticker, error)
}

// Service is the operation ledger. It owns the Open → Closed|Cancelled state
// machine, realized and unrealized PnL, and the fold of closed outcomes into
// user risk profiles.
type Service struct {
	operations operation.Repository
	profiles   riskprofile.Repository
	prices     PriceSource
	log        *logger.Logger
}

// NewService creates a new operation ledger
func NewService(
	operations operation.Repository,
	profiles riskprofile.Repository,
	prices PriceSource,
	log *logger.Logger,
) *Service {
	return &Service{
		operations: operations,
		profiles:   profiles,
		prices:     prices,
		log:        log,
	}
}

// OpenParams describes a successful dispatch to record.
type OpenParams struct {
	UserID          uuid.UUID
	SignalID        *uuid.UUID
	Symbol          string
	Side            signal.Side
	Quantity        decimal.Decimal
	EntryPrice      decimal.Decimal
	StopLoss        decimal.Decimal
	TakeProfit      decimal.Decimal
	Leverage        int
	Exchange        credential.Exchange
	ExchangeOrderID string
}

// Open records a freshly dispatched operation.
func (s *Service) Open(ctx context.Context, p OpenParams) (*operation.Operation, error) {
	now := time.Now()
	op := &operation.Operation{
		ID:              uuid.New(),
		UserID:          p.UserID,
		SignalID:        p.SignalID,
		Symbol:          p.Symbol,
		Side:            p.Side,
		Quantity:        p.Quantity,
		EntryPrice:      p.EntryPrice,
		StopLoss:        p.StopLoss,
		TakeProfit:      p.TakeProfit,
		Leverage:        p.Leverage,
		Exchange:        p.Exchange,
		ExchangeOrderID: p.ExchangeOrderID,
		Status:          operation.StatusOpen,
		UnrealizedPnL:   decimal.Zero,
		OpenedAt:        now,
		UpdatedAt:       now,
	}

	if err := s.operations.Create(ctx, op); err != nil {
		return nil, errors.Wrap(err, "create operation")
	}

	metrics.LedgerTransitions.WithLabelValues(string(operation.StatusOpen)).Inc()
	metrics.OpenOperations.Inc()
	s.log.Infow("Operation opened",
		"operation_id", op.ID,
		"user_id", op.UserID,
		"symbol", op.Symbol,
		"side", op.Side,
		"quantity", op.Quantity,
		"entry_price", op.EntryPrice,
	)

	return op, nil
}

// Close closes an operation at the given exit price. Closing an already
// terminal operation is a no-op success. The realized outcome is folded into
// the user's risk profile exactly once.
func (s *Service) Close(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal, reason string) (*operation.Operation, error) {
	op, err := s.operations.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "operation %s", id)
	}

	if op.Status.IsTerminal() {
		return op, nil
	}

	op.Close(exitPrice, reason, time.Now())
	if err := s.operations.Update(ctx, op); err != nil {
		return nil, errors.Wrap(err, "update operation")
	}

	metrics.LedgerTransitions.WithLabelValues(string(operation.StatusClosed)).Inc()
	metrics.OpenOperations.Dec()
	s.log.Infow("Operation closed",
		"operation_id", op.ID,
		"user_id", op.UserID,
		"symbol", op.Symbol,
		"exit_price", exitPrice,
		"profit", op.Profit,
		"reason", reason,
	)

	s.recordOutcome(ctx, op)
	return op, nil
}

// Cancel voids an operation the exchange rejected post-dispatch. Idempotent.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*operation.Operation, error) {
	op, err := s.operations.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "operation %s", id)
	}

	if op.Status.IsTerminal() {
		return op, nil
	}

	op.Cancel(reason, time.Now())
	if err := s.operations.Update(ctx, op); err != nil {
		return nil, errors.Wrap(err, "update operation")
	}

	metrics.LedgerTransitions.WithLabelValues(string(operation.StatusCancelled)).Inc()
	metrics.OpenOperations.Dec()
	s.log.Warnw("Operation cancelled",
		"operation_id", op.ID,
		"user_id", op.UserID,
		"symbol", op.Symbol,
		"reason", reason,
	)

	return op, nil
}

// Reconcile refreshes every open operation against current market prices.
// Prices are fetched first, without holding anything, then applied per
// operation: unrealized PnL is re-marked, and operations whose stop-loss or
// take-profit has been crossed are closed.
func (s *Service) Reconcile(ctx context.Context) error {
	open, err := s.operations.ListOpen(ctx)
	if err != nil {
		return errors.Wrap(err, "list open operations")
	}
	metrics.OpenOperations.Set(float64(len(open)))
	if len(open) == 0 {
		return nil
	}

	prices := s.fetchPrices(ctx, open)

	now := time.Now()
	for _, op := range open {
		price, ok := prices[priceKey{op.Exchange, op.Symbol}]
		if !ok {
			continue
		}

		if closed, reason := op.ShouldClose(price); closed {
			if _, err := s.Close(ctx, op.ID, price, reason); err != nil {
				s.log.Errorw("Failed to close triggered operation",
					"operation_id", op.ID,
					"error", err,
				)
			}
			continue
		}

		op.MarkPrice(price, now)
		if err := s.operations.Update(ctx, op); err != nil {
			s.log.Errorw("Failed to update unrealized PnL",
				"operation_id", op.ID,
				"error", err,
			)
		}
	}

	return nil
}

type priceKey struct {
	exchange credential.Exchange
	symbol   string
}

func (s *Service) fetchPrices(ctx context.Context, open []*operation.Operation) map[priceKey]decimal.Decimal {
	prices := make(map[priceKey]decimal.Decimal)
	for _, op := range open {
		key := priceKey{op.Exchange, op.Symbol}
		if _, done := prices[key]; done {
			continue
		}

		ticker, err := s.prices.GetTicker(ctx, op.Exchange, op.Symbol)
		if err != nil {
			s.log.Warnw("Price fetch failed, skipping symbol this cycle",
				"exchange", op.Exchange,
				"symbol", op.Symbol,
				"error", err,
			)
			continue
		}
		prices[key] = ticker.LastPrice
	}
	return prices
}

// recordOutcome folds a closed operation into the owner's risk profile.
// Failures are logged, not propagated: the close itself already happened.
func (s *Service) recordOutcome(ctx context.Context, op *operation.Operation) {
	profile, err := s.profiles.GetByUser(ctx, op.UserID)
	if err != nil || profile == nil {
		s.log.Warnw("No risk profile to record outcome into",
			"user_id", op.UserID,
			"error", err,
		)
		return
	}

	won := op.Profit != nil && op.Profit.IsPositive()
	profile.RecordOutcome(won, time.Now())

	if err := s.profiles.Update(ctx, profile); err != nil {
		s.log.Errorw("Failed to update risk profile after close",
			"user_id", op.UserID,
			"error", err,
		)
	}
}
