package trading

import (
	"context"
	"time"

	"hermes/internal/services/ledger"
	"hermes/internal/workers"
)

// PnLReconciler refreshes every open operation against current market
// prices: re-marks unrealized PnL and closes operations whose stop-loss or
// take-profit has been crossed.
type PnLReconciler struct {
	*workers.BaseWorker
	ledger *ledger.Service
}

// NewPnLReconciler creates a new PnL reconciliation worker
func NewPnLReconciler(ledgerSvc *ledger.Service, interval time.Duration, enabled bool) *PnLReconciler {
	return &PnLReconciler{
		BaseWorker: workers.NewBaseWorker("pnl_reconciler", interval, enabled),
		ledger:     ledgerSvc,
	}
}

// Run executes one reconciliation cycle
func (w *PnLReconciler) Run(ctx context.Context) error {
	start := time.Now()

	err := w.ledger.Reconcile(ctx)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	w.RecordRun(time.Since(start))
	return nil
}
