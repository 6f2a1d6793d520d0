package gate

import (
	"context"
	"sync/atomic"
	"time"

	"hermes/internal/domain/sentiment"
	"hermes/internal/domain/signal"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Decision is the gate's verdict on a single signal
type Decision struct {
	Allowed   bool
	Direction sentiment.AllowedDirection
	Value     int
	Reason    string
}

// Service is the market direction gate. It holds the latest sentiment
// reading as an immutable snapshot behind an atomic pointer, so signal
// evaluation never blocks on provider I/O.
type Service struct {
	providers []Provider
	repo      sentiment.Repository

	staleness time.Duration
	current   atomic.Pointer[sentiment.Reading]
	log       *logger.Logger
}

// NewService creates a new gate over the given providers, tried in order.
func NewService(providers []Provider, repo sentiment.Repository, staleness time.Duration, log *logger.Logger) *Service {
	if staleness == 0 {
		staleness = 4 * time.Hour
	}
	return &Service{
		providers: providers,
		repo:      repo,
		staleness: staleness,
		log:       log,
	}
}

// Refresh pulls a fresh reading from the first provider that answers. On
// provider exhaustion it keeps the previous reading while it is younger than
// the staleness threshold, otherwise it substitutes the neutral fallback.
// Every adopted reading, fallback included, is appended to the audit history.
// Refresh never fails the caller: the gate must always be able to decide.
func (s *Service) Refresh(ctx context.Context) error {
	for _, p := range s.providers {
		reading, err := p.Fetch(ctx)
		if err != nil {
			s.log.Warnw("Sentiment provider failed",
				"provider", p.Name(),
				"error", err,
			)
			continue
		}

		s.adopt(ctx, reading)
		metrics.SentimentRefreshes.WithLabelValues("ok").Inc()
		s.log.Infow("Sentiment reading refreshed",
			"provider", p.Name(),
			"value", reading.Value,
			"classification", reading.Classification,
		)
		return nil
	}

	// All providers down. Reuse the previous reading unless stale.
	now := time.Now()
	if prev := s.current.Load(); prev != nil && prev.Age(now) < s.staleness {
		metrics.SentimentRefreshes.WithLabelValues("kept_previous").Inc()
		s.log.Warnw("All sentiment providers failed, keeping previous reading",
			"value", prev.Value,
			"age", prev.Age(now),
		)
		return errors.Wrap(errors.ErrUnavailable, "sentiment providers exhausted")
	}

	fallback := sentiment.NewFallbackReading(now)
	s.adopt(ctx, fallback)
	metrics.SentimentRefreshes.WithLabelValues("fallback").Inc()
	s.log.Warnw("Sentiment reading stale, substituted neutral fallback",
		"value", fallback.Value,
	)
	return errors.Wrap(errors.ErrStaleData, "sentiment providers exhausted")
}

func (s *Service) adopt(ctx context.Context, reading *sentiment.Reading) {
	s.current.Store(reading)
	metrics.SentimentValue.Set(float64(reading.Value))

	if err := s.repo.Append(ctx, reading); err != nil {
		// Reported, not fatal: the in-memory snapshot still serves gating.
		s.log.Errorw("Failed to append sentiment reading", "error", err)
	}
}

// Current returns the reading used for gating. When nothing was ever
// refreshed it synthesizes the neutral fallback so the gate can still decide.
func (s *Service) Current(ctx context.Context) *sentiment.Reading {
	if r := s.current.Load(); r != nil {
		return r
	}

	fallback := sentiment.NewFallbackReading(time.Now())
	s.adopt(ctx, fallback)
	return fallback
}

// Evaluate decides whether a signal's side is permitted under the current
// directional policy. A Buy is allowed unless the direction is ShortOnly; a
// Sell is allowed unless it is LongOnly.
func (s *Service) Evaluate(ctx context.Context, side signal.Side) Decision {
	reading := s.Current(ctx)
	direction := reading.Direction()

	decision := Decision{
		Allowed:   true,
		Direction: direction,
		Value:     reading.Value,
	}

	switch {
	case side == signal.SideBuy && direction == sentiment.ShortOnly:
		decision.Allowed = false
		decision.Reason = "buy signals disallowed: market direction policy is short-only"
	case side == signal.SideSell && direction == sentiment.LongOnly:
		decision.Allowed = false
		decision.Reason = "sell signals disallowed: market direction policy is long-only"
	}

	outcome := "allowed"
	if !decision.Allowed {
		outcome = "blocked"
	}
	metrics.GateDecisions.WithLabelValues(outcome, string(direction)).Inc()

	return decision
}
