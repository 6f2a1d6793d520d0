package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"hermes/internal/domain/riskprofile"
	"hermes/pkg/errors"
)

// Compile-time check
var _ riskprofile.Repository = (*RiskProfileRepository)(nil)

// RiskProfileRepository implements riskprofile.Repository using sqlx
type RiskProfileRepository struct {
	db DBTX
}

// NewRiskProfileRepository creates a new risk profile repository
func NewRiskProfileRepository(db DBTX) *RiskProfileRepository {
	return &RiskProfileRepository{db: db}
}

const riskProfileColumns = `
	id, user_id, risk_level, max_daily_loss, max_position_size,
	leverage, max_leverage, risk_percentage, risk_score,
	consecutive_losses, total_operations, success_rate,
	privileged, is_active, created_at, updated_at
`

// GetByUser retrieves the profile for a user
func (r *RiskProfileRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*riskprofile.Profile, error) {
	var profile riskprofile.Profile

	query := `SELECT ` + riskProfileColumns + ` FROM risk_profiles WHERE user_id = $1`

	err := r.db.GetContext(ctx, &profile, query, userID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get risk profile")
	}
	return &profile, nil
}

// Create creates a new profile
func (r *RiskProfileRepository) Create(ctx context.Context, profile *riskprofile.Profile) error {
	query := `
		INSERT INTO risk_profiles (` + riskProfileColumns + `)
		VALUES (
			:id, :user_id, :risk_level, :max_daily_loss, :max_position_size,
			:leverage, :max_leverage, :risk_percentage, :risk_score,
			:consecutive_losses, :total_operations, :success_rate,
			:privileged, :is_active, NOW(), NOW()
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return errors.Wrap(err, "create risk profile")
	}
	return nil
}

// Update persists mutated history counters and settings
func (r *RiskProfileRepository) Update(ctx context.Context, profile *riskprofile.Profile) error {
	query := `
		UPDATE risk_profiles SET
			risk_level = :risk_level,
			max_daily_loss = :max_daily_loss,
			max_position_size = :max_position_size,
			leverage = :leverage,
			max_leverage = :max_leverage,
			risk_percentage = :risk_percentage,
			risk_score = :risk_score,
			consecutive_losses = :consecutive_losses,
			total_operations = :total_operations,
			success_rate = :success_rate,
			privileged = :privileged,
			is_active = :is_active,
			updated_at = NOW()
		WHERE user_id = :user_id
	`

	result, err := r.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		return errors.Wrap(err, "update risk profile")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// Deactivate marks a profile inactive. Profiles are never deleted.
func (r *RiskProfileRepository) Deactivate(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE risk_profiles SET is_active = false, updated_at = NOW() WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return errors.Wrap(err, "deactivate risk profile")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ListActive retrieves active profiles. limit <= 0 means no limit.
func (r *RiskProfileRepository) ListActive(ctx context.Context, limit, offset int) ([]*riskprofile.Profile, error) {
	var profiles []*riskprofile.Profile

	query := `
		SELECT ` + riskProfileColumns + `
		FROM risk_profiles
		WHERE is_active = true
		ORDER BY created_at
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, errors.Wrap(err, "list active risk profiles")
	}
	return profiles, nil
}
