package riskprofile

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines access to per-user risk profiles
type Repository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Create(ctx context.Context, profile *Profile) error
	Update(ctx context.Context, profile *Profile) error
	Deactivate(ctx context.Context, userID uuid.UUID) error
	ListActive(ctx context.Context, limit, offset int) ([]*Profile, error)
}
