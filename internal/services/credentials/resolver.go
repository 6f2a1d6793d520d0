package credentials

import (
	"context"

	"github.com/google/uuid"

	"hermes/internal/domain/credential"
	"hermes/pkg/crypto"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// SharedKeys holds the process-wide fallback key pair for one exchange.
// Injected from configuration so tests can substitute fakes.
type SharedKeys struct {
	APIKey    string
	APISecret string
}

// Resolver returns a usable key pair for a user+exchange: the user's active
// individual credential when one exists, otherwise the shared fallback.
// The resolver is the only component that sees secrets in clear text.
type Resolver struct {
	repo      credential.Repository
	encryptor *crypto.Encryptor
	shared    map[credential.Exchange]SharedKeys
	log       *logger.Logger
}

// NewResolver creates a new credential resolver
func NewResolver(
	repo credential.Repository,
	encryptor *crypto.Encryptor,
	shared map[credential.Exchange]SharedKeys,
	log *logger.Logger,
) *Resolver {
	return &Resolver{
		repo:      repo,
		encryptor: encryptor,
		shared:    shared,
		log:       log,
	}
}

// Resolve looks up a key pair. Lookup order: (1) active individual
// credential, (2) shared fallback for the exchange. ErrNoCredentialAvailable
// when neither exists. Resolve never mutates credentials.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, exchange credential.Exchange) (*credential.KeyPair, error) {
	cred, err := r.repo.GetActiveByUserAndExchange(ctx, userID, exchange)
	if err == nil && cred != nil && cred.IsActive {
		pair, err := r.decrypt(cred)
		if err != nil {
			return nil, errors.Wrap(err, "decrypt individual credential")
		}
		return pair, nil
	}
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		// Lookup itself failed; fall through to shared keys but record it.
		r.log.Warnw("Individual credential lookup failed, trying shared fallback",
			"user_id", userID,
			"exchange", exchange,
			"error", err,
		)
	}

	if keys, ok := r.shared[exchange]; ok && keys.APIKey != "" {
		return &credential.KeyPair{
			Exchange:  exchange,
			Scope:     credential.ScopeSharedFallback,
			APIKey:    keys.APIKey,
			APISecret: keys.APISecret,
		}, nil
	}

	return nil, errors.Wrapf(errors.ErrNoCredentialAvailable,
		"user %s exchange %s", userID, exchange)
}

func (r *Resolver) decrypt(cred *credential.Credential) (*credential.KeyPair, error) {
	apiKey, err := r.encryptor.Decrypt(cred.APIKeyEncrypted)
	if err != nil {
		return nil, err
	}
	secret, err := r.encryptor.Decrypt(cred.SecretEncrypted)
	if err != nil {
		return nil, err
	}
	return &credential.KeyPair{
		CredentialID: cred.ID,
		Exchange:     cred.Exchange,
		Scope:        cred.Scope,
		APIKey:       apiKey,
		APISecret:    secret,
	}, nil
}

// Store encrypts and persists a new individual credential.
func (r *Resolver) Store(ctx context.Context, cred *credential.Credential, apiKey, apiSecret string) error {
	keyCT, err := r.encryptor.Encrypt(apiKey)
	if err != nil {
		return errors.Wrap(err, "encrypt api key")
	}
	secretCT, err := r.encryptor.Encrypt(apiSecret)
	if err != nil {
		return errors.Wrap(err, "encrypt api secret")
	}

	cred.APIKeyEncrypted = keyCT
	cred.SecretEncrypted = secretCT
	cred.ValidationStatus = credential.ValidationUnvalidated

	return r.repo.Create(ctx, cred)
}
