package sentiment

import (
	"context"
	"time"

	"hermes/internal/services/gate"
	"hermes/internal/workers"
)

// FearGreedRefresher keeps the direction gate's sentiment reading current.
// The gate itself handles provider fallback and staleness, so a failed
// refresh is already degraded gracefully by the time it reaches here.
type FearGreedRefresher struct {
	*workers.BaseWorker
	gate *gate.Service
}

// NewFearGreedRefresher creates a new sentiment refresh worker
func NewFearGreedRefresher(gateSvc *gate.Service, interval time.Duration, enabled bool) *FearGreedRefresher {
	return &FearGreedRefresher{
		BaseWorker: workers.NewBaseWorker("feargreed_refresher", interval, enabled),
		gate:       gateSvc,
	}
}

// Run executes one refresh cycle
func (w *FearGreedRefresher) Run(ctx context.Context) error {
	start := time.Now()

	err := w.gate.Refresh(ctx)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.RecordRun(time.Since(start))
	return nil
}
