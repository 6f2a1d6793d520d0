package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/domain/credential"
	"hermes/internal/domain/operation"
	"hermes/internal/domain/riskprofile"
	"hermes/internal/domain/signal"
	"hermes/internal/events"
	"hermes/internal/metrics"
	"hermes/internal/services/credentials"
	"hermes/internal/services/dispatch"
	"hermes/internal/services/gate"
	"hermes/internal/services/ledger"
	"hermes/internal/services/risk"
	"hermes/internal/services/sizing"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const dedupeTTL = 24 * time.Hour

// Deduper is the at-most-once ingestion guard, keyed by signal id.
type Deduper interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// StagePublisher emits the structured event every pipeline stage produces.
// Satisfied by events.Publisher.
type StagePublisher interface {
	PublishGateDecision(ctx context.Context, event *events.GateDecisionEvent)
	PublishRiskDecision(ctx context.Context, event *events.RiskDecisionEvent)
	PublishDispatchResult(ctx context.Context, event *events.DispatchResultEvent)
	PublishLedgerTransition(ctx context.Context, event *events.LedgerTransitionEvent)
}

// Pipeline runs a signal through gate, risk, credential resolution, sizing,
// dispatch, and the ledger. Signals for distinct users run concurrently;
// processing for the same user serializes through a per-user lock so risk
// counters and balance reads stay consistent. No lock is held across the
// whole pipeline, only across one user's pass.
type Pipeline struct {
	signals    signal.Repository
	profiles   riskprofile.Repository
	operations operation.Repository

	gate       *gate.Service
	risk       *risk.Evaluator
	resolver   *credentials.Resolver
	sizer      *sizing.Sizer
	dispatcher *dispatch.Dispatcher
	ledger     *ledger.Service
	events     StagePublisher
	dedupe     Deduper

	defaultExchange credential.Exchange

	userLocks sync.Map // uuid.UUID -> *sync.Mutex
	log       *logger.Logger
}

// NewPipeline wires the stages together
func NewPipeline(
	signals signal.Repository,
	profiles riskprofile.Repository,
	operations operation.Repository,
	gateSvc *gate.Service,
	riskSvc *risk.Evaluator,
	resolver *credentials.Resolver,
	sizer *sizing.Sizer,
	dispatcher *dispatch.Dispatcher,
	ledgerSvc *ledger.Service,
	publisher StagePublisher,
	dedupe Deduper,
	defaultExchange credential.Exchange,
	log *logger.Logger,
) *Pipeline {
	if !defaultExchange.Valid() {
		defaultExchange = credential.ExchangeBybit
	}
	return &Pipeline{
		signals:         signals,
		profiles:        profiles,
		operations:      operations,
		gate:            gateSvc,
		risk:            riskSvc,
		resolver:        resolver,
		sizer:           sizer,
		dispatcher:      dispatcher,
		ledger:          ledgerSvc,
		events:          publisher,
		dedupe:          dedupe,
		defaultExchange: defaultExchange,
		log:             log,
	}
}

// Process runs one signal end to end. Duplicate deliveries of the same
// signal id are absorbed silently. A gate or risk rejection is a normal
// terminal outcome, not an error; errors mean the pipeline itself failed.
func (p *Pipeline) Process(ctx context.Context, sig *signal.Signal) error {
	if err := p.validate(sig); err != nil {
		return err
	}

	fresh, err := p.dedupe.SetNX(ctx, dedupeKey(sig.ID), sig.Source, dedupeTTL)
	if err != nil {
		return errors.Wrap(err, "signal dedupe check")
	}
	if !fresh {
		metrics.SignalsProcessed.WithLabelValues("duplicate").Inc()
		p.log.Debugw("Duplicate signal delivery ignored", "signal_id", sig.ID)
		return nil
	}

	sig.Status = signal.StatusPending
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = time.Now()
	}
	if err := p.signals.Create(ctx, sig); err != nil {
		return errors.Wrap(err, "persist signal")
	}

	decision := p.gate.Evaluate(ctx, sig.Side)
	p.events.PublishGateDecision(ctx, &events.GateDecisionEvent{
		BaseEvent:      events.NewBaseEvent(sig.ID.String(), ""),
		Symbol:         sig.Symbol,
		Side:           sig.Side.String(),
		Allowed:        decision.Allowed,
		Direction:      string(decision.Direction),
		SentimentValue: decision.Value,
		Reason:         decision.Reason,
	})

	if !decision.Allowed {
		p.terminate(ctx, sig, signal.StatusRejected, decision.Reason)
		return nil
	}

	if err := p.signals.SetStatus(ctx, sig.ID, signal.StatusApproved, ""); err != nil {
		p.log.Errorw("Failed to mark signal approved", "signal_id", sig.ID, "error", err)
	}

	profiles, err := p.profiles.ListActive(ctx, 0, 0)
	if err != nil {
		p.terminate(ctx, sig, signal.StatusFailed, "could not list active users")
		return errors.Wrap(err, "list active profiles")
	}
	if len(profiles) == 0 {
		p.terminate(ctx, sig, signal.StatusRejected, "no active users")
		return nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	for _, profile := range profiles {
		wg.Add(1)
		go func(profile *riskprofile.Profile) {
			defer wg.Done()

			err := p.processForUser(ctx, sig, profile)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errors.ErrRejectedByPolicy):
				// Per-user rejection, not a pipeline failure.
			default:
				failed++
				p.log.Errorw("Signal processing failed for user",
					"signal_id", sig.ID,
					"user_id", profile.UserID,
					"error", err,
				)
			}
		}(profile)
	}
	wg.Wait()

	switch {
	case succeeded > 0:
		p.terminate(ctx, sig, signal.StatusDispatched, "")
	case failed > 0:
		p.terminate(ctx, sig, signal.StatusFailed, "dispatch failed for all eligible users")
	default:
		p.terminate(ctx, sig, signal.StatusRejected, "risk rejected for all users")
	}
	return nil
}

// processForUser runs one user's pass under that user's lock: risk check,
// credential resolution, sizing, dispatch, ledger entry. Policy rejections
// come back as ErrRejectedByPolicy.
func (p *Pipeline) processForUser(ctx context.Context, sig *signal.Signal, profile *riskprofile.Profile) error {
	unlock := p.lockUser(profile.UserID)
	defer unlock()

	exists, err := p.operations.ExistsForSignal(ctx, profile.UserID, sig.ID)
	if err != nil {
		return errors.Wrap(err, "check existing operation")
	}
	if exists {
		return nil
	}

	keys, err := p.resolver.Resolve(ctx, profile.UserID, p.defaultExchange)
	if err != nil {
		return errors.Wrap(err, "resolve credentials")
	}

	balance, err := p.dispatcher.GetBalance(ctx, keys)
	if err != nil {
		return errors.Wrap(err, "fetch balance")
	}

	notional := balance.Available.Mul(profile.RiskPercentage)
	if profile.MaxPositionSize.IsPositive() && notional.GreaterThan(profile.MaxPositionSize) {
		notional = profile.MaxPositionSize
	}

	assessment, err := p.risk.Assess(ctx, profile.UserID, risk.Candidate{
		Symbol:           sig.Symbol,
		Notional:         notional,
		AvailableBalance: balance.Available,
	})
	p.events.PublishRiskDecision(ctx, &events.RiskDecisionEvent{
		BaseEvent: events.NewBaseEvent(sig.ID.String(), profile.UserID.String()),
		Symbol:    sig.Symbol,
		Approved:  assessment.Approved,
		RiskScore: assessment.RiskScore,
		Reason:    assessment.Reason,
	})
	if err != nil {
		return errors.Wrap(errors.ErrRejectedByPolicy, assessment.Reason)
	}
	if !assessment.Approved {
		return errors.Wrap(errors.ErrRejectedByPolicy, assessment.Reason)
	}

	instrument, err := p.dispatcher.GetInstrument(ctx, keys.Exchange, sig.Symbol)
	if err != nil {
		return errors.Wrap(err, "fetch instrument info")
	}

	order, err := p.sizer.Size(sig, profile, balance.Available, instrument.QuantityPrecision)
	if err != nil {
		return errors.Wrap(err, "size order")
	}

	result, err := p.dispatcher.Dispatch(ctx, keys, order)
	p.events.PublishDispatchResult(ctx, &events.DispatchResultEvent{
		BaseEvent: events.NewBaseEvent(sig.ID.String(), profile.UserID.String()),
		Symbol:    sig.Symbol,
		Exchange:  keys.Exchange.String(),
		Success:   err == nil,
		ExchangeOrderID: func() string {
			if result != nil {
				return result.OrderID
			}
			return ""
		}(),
		Error: func() string {
			if err != nil {
				return err.Error()
			}
			return ""
		}(),
	})
	if err != nil {
		return errors.Wrap(err, "dispatch order")
	}

	signalID := sig.ID
	op, err := p.ledger.Open(ctx, ledger.OpenParams{
		UserID:          profile.UserID,
		SignalID:        &signalID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Quantity:        order.Quantity,
		EntryPrice:      order.EntryPrice,
		StopLoss:        order.StopLoss,
		TakeProfit:      order.TakeProfit,
		Leverage:        order.Leverage,
		Exchange:        keys.Exchange,
		ExchangeOrderID: result.OrderID,
	})
	if err != nil {
		return errors.Wrap(err, "record operation")
	}

	p.events.PublishLedgerTransition(ctx, &events.LedgerTransitionEvent{
		BaseEvent:   events.NewBaseEvent(sig.ID.String(), profile.UserID.String()),
		OperationID: op.ID.String(),
		Symbol:      op.Symbol,
		Status:      op.Status.String(),
	})
	return nil
}

func (p *Pipeline) validate(sig *signal.Signal) error {
	switch {
	case sig.ID == uuid.Nil:
		return errors.Wrap(errors.ErrInvalidInput, "signal id is required")
	case sig.Symbol == "":
		return errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	case !sig.Side.Valid():
		return errors.Wrapf(errors.ErrInvalidInput, "unknown side %q", sig.Side)
	case sig.Price.LessThanOrEqual(decimal.Zero):
		return errors.Wrap(errors.ErrInvalidInput, "price must be positive")
	}
	return nil
}

// terminate records the signal's final status with its reason.
func (p *Pipeline) terminate(ctx context.Context, sig *signal.Signal, status signal.Status, reason string) {
	metrics.SignalsProcessed.WithLabelValues(status.String()).Inc()
	if err := p.signals.SetStatus(ctx, sig.ID, status, reason); err != nil {
		p.log.Errorw("Failed to finalize signal status",
			"signal_id", sig.ID,
			"status", status,
			"error", err,
		)
	}
}

func (p *Pipeline) lockUser(userID uuid.UUID) func() {
	v, _ := p.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func dedupeKey(id uuid.UUID) string {
	return "hermes:signal:dedupe:" + id.String()
}
