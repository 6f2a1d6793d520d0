package credential

import (
	"time"

	"github.com/google/uuid"
)

// Exchange identifies a supported trading venue
type Exchange string

const (
	ExchangeBybit   Exchange = "bybit"
	ExchangeBinance Exchange = "binance"
)

// Valid checks if exchange is supported
func (e Exchange) Valid() bool {
	return e == ExchangeBybit || e == ExchangeBinance
}

// String returns string representation
func (e Exchange) String() string {
	return string(e)
}

// Scope distinguishes user-owned keys from the process-wide shared fallback
type Scope string

const (
	ScopeIndividual     Scope = "individual"
	ScopeSharedFallback Scope = "shared_fallback"
)

// ValidationStatus tracks the async connectivity probe result
type ValidationStatus string

const (
	ValidationUnvalidated ValidationStatus = "unvalidated"
	ValidationValid       ValidationStatus = "valid"
	ValidationError       ValidationStatus = "error"
)

// Credential is an exchange API key pair. Secrets are owned exclusively by
// the credential resolver; no other component may log or persist them in
// clear text. At rest both fields are AES-256-GCM ciphertext.
type Credential struct {
	ID     uuid.UUID `db:"id"`
	UserID uuid.UUID `db:"user_id"` // zero UUID for shared fallback

	Exchange        Exchange `db:"exchange"`
	APIKeyEncrypted []byte   `db:"api_key_encrypted"`
	SecretEncrypted []byte   `db:"secret_encrypted"`

	Scope            Scope            `db:"scope"`
	IsActive         bool             `db:"is_active"`
	ValidationStatus ValidationStatus `db:"validation_status"`
	LastValidatedAt  *time.Time       `db:"last_validated_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// KeyPair is a decrypted credential handed to the dispatcher for signing.
// It is never persisted.
type KeyPair struct {
	CredentialID uuid.UUID
	Exchange     Exchange
	Scope        Scope
	APIKey       string
	APISecret    string
}
