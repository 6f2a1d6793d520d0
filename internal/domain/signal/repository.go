package signal

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines access to ingested signals
type Repository interface {
	Create(ctx context.Context, sig *Signal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Signal, error)

	// SetStatus records a lifecycle transition with its human-readable
	// reason. Implementations must refuse to overwrite a terminal status.
	SetStatus(ctx context.Context, id uuid.UUID, status Status, reason string) error
}
