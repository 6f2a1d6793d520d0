package postgres

import (
	"context"
	"database/sql"

	"hermes/internal/domain/sentiment"
	"hermes/pkg/errors"
)

// Compile-time check
var _ sentiment.Repository = (*SentimentRepository)(nil)

// SentimentRepository implements sentiment.Repository using sqlx.
// The table is append-only: readings are never updated or deleted.
type SentimentRepository struct {
	db DBTX
}

// NewSentimentRepository creates a new sentiment repository
func NewSentimentRepository(db DBTX) *SentimentRepository {
	return &SentimentRepository{db: db}
}

// Append stores a new reading
func (r *SentimentRepository) Append(ctx context.Context, reading *sentiment.Reading) error {
	query := `
		INSERT INTO sentiment_readings (id, value, classification, source, observed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.Value, reading.Classification,
		reading.Source, reading.ObservedAt,
	)
	if err != nil {
		return errors.Wrap(err, "append sentiment reading")
	}
	return nil
}

// GetLatest retrieves the most recently observed reading
func (r *SentimentRepository) GetLatest(ctx context.Context) (*sentiment.Reading, error) {
	var reading sentiment.Reading

	query := `
		SELECT id, value, classification, source, observed_at
		FROM sentiment_readings
		ORDER BY observed_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &reading, query)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get latest sentiment reading")
	}
	return &reading, nil
}

// ListSince retrieves the most recent readings, newest first
func (r *SentimentRepository) ListSince(ctx context.Context, limit int) ([]*sentiment.Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	var readings []*sentiment.Reading

	query := `
		SELECT id, value, classification, source, observed_at
		FROM sentiment_readings
		ORDER BY observed_at DESC
		LIMIT $1
	`

	if err := r.db.SelectContext(ctx, &readings, query, limit); err != nil {
		return nil, errors.Wrap(err, "list sentiment readings")
	}
	return readings, nil
}
