package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"hermes/internal/domain/operation"
	"hermes/pkg/errors"
)

// Compile-time check
var _ operation.Repository = (*OperationRepository)(nil)

// OperationRepository implements operation.Repository using sqlx
type OperationRepository struct {
	db DBTX
}

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db DBTX) *OperationRepository {
	return &OperationRepository{db: db}
}

const operationColumns = `
	id, user_id, signal_id, symbol, side, quantity, entry_price, exit_price,
	stop_loss, take_profit, leverage, exchange, exchange_order_id,
	status, profit, unrealized_pnl, close_reason,
	opened_at, closed_at, updated_at
`

// Create stores a freshly opened operation
func (r *OperationRepository) Create(ctx context.Context, op *operation.Operation) error {
	query := `
		INSERT INTO operations (` + operationColumns + `)
		VALUES (
			:id, :user_id, :signal_id, :symbol, :side, :quantity, :entry_price, :exit_price,
			:stop_loss, :take_profit, :leverage, :exchange, :exchange_order_id,
			:status, :profit, :unrealized_pnl, :close_reason,
			:opened_at, :closed_at, NOW()
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return errors.Wrap(err, "create operation")
	}
	return nil
}

// GetByID retrieves an operation by id
func (r *OperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*operation.Operation, error) {
	var op operation.Operation

	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = $1`

	err := r.db.GetContext(ctx, &op, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get operation")
	}
	return &op, nil
}

// GetOpenByUser retrieves a user's open operations
func (r *OperationRepository) GetOpenByUser(ctx context.Context, userID uuid.UUID) ([]*operation.Operation, error) {
	var ops []*operation.Operation

	query := `
		SELECT ` + operationColumns + `
		FROM operations
		WHERE user_id = $1 AND status = $2
		ORDER BY opened_at
	`

	if err := r.db.SelectContext(ctx, &ops, query, userID, operation.StatusOpen); err != nil {
		return nil, errors.Wrap(err, "get open operations by user")
	}
	return ops, nil
}

// ListOpen retrieves every open operation, for the reconciliation job
func (r *OperationRepository) ListOpen(ctx context.Context) ([]*operation.Operation, error) {
	var ops []*operation.Operation

	query := `
		SELECT ` + operationColumns + `
		FROM operations
		WHERE status = $1
		ORDER BY opened_at
	`

	if err := r.db.SelectContext(ctx, &ops, query, operation.StatusOpen); err != nil {
		return nil, errors.Wrap(err, "list open operations")
	}
	return ops, nil
}

// ExistsForSignal reports whether the user already has an operation for a signal
func (r *OperationRepository) ExistsForSignal(ctx context.Context, userID, signalID uuid.UUID) (bool, error) {
	var exists bool

	query := `SELECT EXISTS(SELECT 1 FROM operations WHERE user_id = $1 AND signal_id = $2)`

	if err := r.db.GetContext(ctx, &exists, query, userID, signalID); err != nil {
		return false, errors.Wrap(err, "check operation for signal")
	}
	return exists, nil
}

// Update persists ledger mutations
func (r *OperationRepository) Update(ctx context.Context, op *operation.Operation) error {
	query := `
		UPDATE operations SET
			exit_price = :exit_price,
			status = :status,
			profit = :profit,
			unrealized_pnl = :unrealized_pnl,
			close_reason = :close_reason,
			closed_at = :closed_at,
			updated_at = NOW()
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, op)
	if err != nil {
		return errors.Wrap(err, "update operation")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrNotFound
	}
	return nil
}
