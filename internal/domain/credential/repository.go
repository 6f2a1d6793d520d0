package credential

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines access to stored credentials. Reads never mutate;
// validation state is written back separately by the dispatcher's
// connectivity probe.
type Repository interface {
	GetActiveByUserAndExchange(ctx context.Context, userID uuid.UUID, exchange Exchange) (*Credential, error)
	Create(ctx context.Context, cred *Credential) error
	SetValidationStatus(ctx context.Context, id uuid.UUID, status ValidationStatus) error
	ListUnvalidated(ctx context.Context, limit int) ([]*Credential, error)
}
