package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"hermes/pkg/errors"
)

// Limiter provides rate limiting for exchange API calls
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a new rate limiter
// requestsPerMinute: maximum number of requests allowed per minute
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	rps := float64(requestsPerMinute) / 60.0

	// Allow burst of 10% of per-minute limit
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Registry keeps one limiter per exchange so dispatches to the same venue
// share a budget while different venues never contend.
type Registry struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

// NewRegistry creates limiters for all supported exchanges.
// Bybit: https://bybit-exchange.github.io/docs/v5/rate-limit
// Binance: https://binance-docs.github.io/apidocs/futures/en/#limits
func NewRegistry() *Registry {
	return &Registry{
		limiters: map[string]*Limiter{
			"bybit":   NewLimiter("bybit", 120),
			"binance": NewLimiter("binance", 1200),
		},
	}
}

// Wait blocks on the limiter for the named exchange, if one is registered.
func (r *Registry) Wait(ctx context.Context, exchange string) error {
	r.mu.RLock()
	limiter, ok := r.limiters[exchange]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// Set registers or replaces the limiter for an exchange.
func (r *Registry) Set(exchange string, limiter *Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[exchange] = limiter
}
