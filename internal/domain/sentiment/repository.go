package sentiment

import (
	"context"
)

// Repository defines access to the append-only sentiment history. Every
// reading is appended for audit, fallback readings included.
type Repository interface {
	Append(ctx context.Context, reading *Reading) error
	GetLatest(ctx context.Context) (*Reading, error)
	ListSince(ctx context.Context, limit int) ([]*Reading, error)
}
