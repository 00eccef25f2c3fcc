package domain

import (
	"time"

	"github.com/google/uuid"
)

// FieldKey is a per-(owner, data kind) Data Encryption Key used directly by
// the vault facade to encrypt application fields. It wraps a Dek with the
// bookkeeping original per-user key management needs: usage counters, the
// rotation deadline, and a state machine (Active -> Retired -> Tombstoned).
//
// A FieldKey is addressable two ways: by its own ID (stable across rotation,
// used to decrypt bundles produced before a rotation) and by the
// (OwnerUser, DataKind) pair (which always resolves to the current Active
// key for new encryptions).
type FieldKey struct {
	Dek

	OwnerUser     string
	DataKind      string
	State         KeyState
	CreatedAt     time.Time
	RotationDueAt time.Time
	ExpiresAt     *time.Time // set on retirement; tombstoning candidate once passed
	UsageCount    uint64
	LastUsedAt    time.Time
}

// Identifier mirrors the original_source convention of an addressable
// "{user}:{data_kind}" or, after rotation, "{user}:{data_kind}:{key_id}"
// label, kept here only for human-readable logging; lookups always use
// FieldKey.ID or the (OwnerUser, DataKind) pair, never this string.
func (f *FieldKey) Identifier() string {
	if f.State == StateActive {
		return f.OwnerUser + ":" + f.DataKind
	}
	return f.OwnerUser + ":" + f.DataKind + ":" + f.ID.String()
}

// IsExpired reports whether a retired key has passed its tombstone deadline.
func (f *FieldKey) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && now.After(*f.ExpiresAt)
}

// NewFieldKeyID generates a UUIDv4 identifier, per the wire format's
// key_id requirement (field keys are addressed externally, unlike the
// internal Kek/Dek chain which favors UUIDv7 ordering).
func NewFieldKeyID() (uuid.UUID, error) {
	return uuid.NewRandom()
}
