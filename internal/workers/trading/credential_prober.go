package trading

import (
	"context"
	"time"

	"hermes/internal/domain/credential"
	"hermes/internal/services/dispatch"
	"hermes/internal/workers"
)

const probeBatchSize = 50

// CredentialProber sweeps credentials that have never been validated and
// probes exchange connectivity for them. Validation is advisory: an
// unvalidated credential is still attempted at dispatch time.
type CredentialProber struct {
	*workers.BaseWorker
	credentials credential.Repository
	dispatcher  *dispatch.Dispatcher
}

// NewCredentialProber creates a new credential validation worker
func NewCredentialProber(
	credentials credential.Repository,
	dispatcher *dispatch.Dispatcher,
	interval time.Duration,
	enabled bool,
) *CredentialProber {
	return &CredentialProber{
		BaseWorker:  workers.NewBaseWorker("credential_prober", interval, enabled),
		credentials: credentials,
		dispatcher:  dispatcher,
	}
}

// Run executes one validation sweep
func (w *CredentialProber) Run(ctx context.Context) error {
	start := time.Now()

	creds, err := w.credentials.ListUnvalidated(ctx, probeBatchSize)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	for _, cred := range creds {
		if err := w.dispatcher.Probe(ctx, cred); err != nil {
			w.Log().Warnw("Credential probe failed",
				"credential_id", cred.ID,
				"exchange", cred.Exchange,
				"error", err,
			)
		}
	}

	w.RecordRun(time.Since(start))
	return nil
}
