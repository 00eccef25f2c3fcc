package vault

import (
	"context"
	"time"
)

// Record is the persistent layout for one stored bundle, reproduced
// unchanged from the reference application's secure-storage schema.
type Record struct {
	RecordID       string
	User           string
	DataKind       string
	StorageKey     string
	CiphertextB64  string
	NonceB64       string
	Algorithm      string
	KeyID          string
	StoredAt       time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
	AccessCount    int64
	LastAccessedAt *time.Time
}

// StorageKey reproduces the reference application's derivation rule for
// the secure-storage row's lookup key.
func StorageKey(user, dataKind string) string {
	return "secure_" + dataKind + "_" + user
}

// Repository is the secure-storage collaborator: an external store this
// core depends on but does not implement. A production deployment backs
// this with a real database or secrets manager; only a reference
// in-memory adapter ships with this module.
type Repository interface {
	// Store persists a bundle's already-encoded fields and returns a new
	// record ID.
	Store(
		ctx context.Context,
		user, dataKind, ciphertextB64, nonceB64, algorithm, keyID string,
		expiresAt *time.Time,
	) (string, error)

	// Retrieve fetches a record by ID, incrementing its access count and
	// last-accessed timestamp.
	Retrieve(ctx context.Context, recordID string) (*Record, error)

	// Delete removes a record by ID. Deleting an unknown ID is a no-op.
	Delete(ctx context.Context, recordID string) error

	// CleanupExpired removes every record whose ExpiresAt has passed as of
	// now, returning the count removed.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}
