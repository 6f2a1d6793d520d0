package operation

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines access to operations
type Repository interface {
	Create(ctx context.Context, op *Operation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Operation, error)
	GetOpenByUser(ctx context.Context, userID uuid.UUID) ([]*Operation, error)
	ListOpen(ctx context.Context) ([]*Operation, error)

	// ExistsForSignal reports whether the user already has an operation for
	// this signal. One signal produces at most one operation per user.
	ExistsForSignal(ctx context.Context, userID, signalID uuid.UUID) (bool, error)

	Update(ctx context.Context, op *Operation) error
}
