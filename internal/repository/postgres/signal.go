package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"hermes/internal/domain/signal"
	"hermes/pkg/errors"
)

// Compile-time check
var _ signal.Repository = (*SignalRepository)(nil)

// SignalRepository implements signal.Repository using sqlx
type SignalRepository struct {
	db DBTX
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db DBTX) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create stores an ingested signal
func (r *SignalRepository) Create(ctx context.Context, sig *signal.Signal) error {
	query := `
		INSERT INTO signals (id, symbol, side, price, source, status, reason, received_at, updated_at)
		VALUES (:id, :symbol, :side, :price, :source, :status, :reason, :received_at, NOW())
	`

	if _, err := r.db.NamedExecContext(ctx, query, sig); err != nil {
		return errors.Wrap(err, "create signal")
	}
	return nil
}

// GetByID retrieves a signal by id
func (r *SignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*signal.Signal, error) {
	var sig signal.Signal

	query := `
		SELECT id, symbol, side, price, source, status, reason, received_at, updated_at
		FROM signals
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &sig, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get signal")
	}
	return &sig, nil
}

// SetStatus records a lifecycle transition. The WHERE clause refuses to
// overwrite a status that is already terminal, so a late transition on a
// finished signal is a silent no-op.
func (r *SignalRepository) SetStatus(ctx context.Context, id uuid.UUID, status signal.Status, reason string) error {
	query := `
		UPDATE signals SET
			status = $2,
			reason = $3,
			updated_at = NOW()
		WHERE id = $1
		  AND status NOT IN ($4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, id, status, reason,
		signal.StatusRejected, signal.StatusDispatched, signal.StatusFailed)
	if err != nil {
		return errors.Wrap(err, "set signal status")
	}
	return nil
}
