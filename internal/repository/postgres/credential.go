package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"hermes/internal/domain/credential"
	"hermes/pkg/errors"
)

// Compile-time check
var _ credential.Repository = (*CredentialRepository)(nil)

// CredentialRepository implements credential.Repository using sqlx. Key
// material is stored as AES-256-GCM ciphertext and never decrypted here.
type CredentialRepository struct {
	db DBTX
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `
	id, user_id, exchange, api_key_encrypted, secret_encrypted,
	scope, is_active, validation_status, last_validated_at,
	created_at, updated_at
`

// GetActiveByUserAndExchange retrieves the user's active credential for an exchange
func (r *CredentialRepository) GetActiveByUserAndExchange(ctx context.Context, userID uuid.UUID, exchange credential.Exchange) (*credential.Credential, error) {
	var cred credential.Credential

	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE user_id = $1 AND exchange = $2 AND is_active = true
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &cred, query, userID, exchange)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get active credential")
	}
	return &cred, nil
}

// Create stores a new credential
func (r *CredentialRepository) Create(ctx context.Context, cred *credential.Credential) error {
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES (
			:id, :user_id, :exchange, :api_key_encrypted, :secret_encrypted,
			:scope, :is_active, :validation_status, :last_validated_at,
			NOW(), NOW()
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, cred); err != nil {
		return errors.Wrap(err, "create credential")
	}
	return nil
}

// SetValidationStatus records the result of a connectivity probe
func (r *CredentialRepository) SetValidationStatus(ctx context.Context, id uuid.UUID, status credential.ValidationStatus) error {
	query := `
		UPDATE credentials SET
			validation_status = $2,
			last_validated_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return errors.Wrap(err, "set validation status")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ListUnvalidated retrieves active credentials awaiting a connectivity probe
func (r *CredentialRepository) ListUnvalidated(ctx context.Context, limit int) ([]*credential.Credential, error) {
	if limit <= 0 {
		limit = 100
	}

	var creds []*credential.Credential

	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE is_active = true AND validation_status = $1
		ORDER BY created_at
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &creds, query, credential.ValidationUnvalidated, limit); err != nil {
		return nil, errors.Wrap(err, "list unvalidated credentials")
	}
	return creds, nil
}
