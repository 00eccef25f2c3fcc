// Package repository provides a reference implementation of
// vault.Repository, the secure-storage collaborator the crypto core
// depends on but does not itself implement. Swapped from the teacher's
// SQL-backed secret repositories to a sync.Map, since a real persistence
// layer is out of scope here; the method set and error conventions are
// unchanged.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/vaultcore/internal/errors"
	"github.com/allisson/vaultcore/internal/vault"
)

// MemoryRepository implements vault.Repository over an in-process
// sync.Map, suitable for tests and the manual HTTP surface. It is not
// durable: records do not survive a process restart.
type MemoryRepository struct {
	records sync.Map // string recordID -> *vault.Record
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Store persists a new record and returns its generated ID.
func (r *MemoryRepository) Store(
	_ context.Context,
	user, dataKind, ciphertextB64, nonceB64, algorithm, keyID string,
	expiresAt *time.Time,
) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", apperrors.Wrap(err, "failed to allocate record id")
	}

	now := time.Now().UTC()
	record := &vault.Record{
		RecordID:      id.String(),
		User:          user,
		DataKind:      dataKind,
		StorageKey:    vault.StorageKey(user, dataKind),
		CiphertextB64: ciphertextB64,
		NonceB64:      nonceB64,
		Algorithm:     algorithm,
		KeyID:         keyID,
		StoredAt:      now,
		UpdatedAt:     now,
		ExpiresAt:     expiresAt,
	}
	r.records.Store(record.RecordID, record)
	return record.RecordID, nil
}

// Retrieve fetches a record by ID, bumping its access counter and
// last-accessed timestamp on every successful read.
func (r *MemoryRepository) Retrieve(_ context.Context, recordID string) (*vault.Record, error) {
	val, ok := r.records.Load(recordID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	record := val.(*vault.Record)
	record.AccessCount++
	now := time.Now().UTC()
	record.LastAccessedAt = &now

	snapshot := *record
	return &snapshot, nil
}

// Delete removes a record by ID. Deleting an unknown ID is a no-op,
// matching the teacher's idempotent soft-delete semantics without the
// soft-delete bookkeeping, since crypto-shredding a record here means
// discarding it outright rather than marking it deleted.
func (r *MemoryRepository) Delete(_ context.Context, recordID string) error {
	r.records.Delete(recordID)
	return nil
}

// CleanupExpired removes every record whose ExpiresAt has passed as of
// now and returns the count removed.
func (r *MemoryRepository) CleanupExpired(_ context.Context, now time.Time) (int, error) {
	var removed int
	r.records.Range(func(key, value any) bool {
		record := value.(*vault.Record)
		if record.ExpiresAt != nil && now.After(*record.ExpiresAt) {
			r.records.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

var _ vault.Repository = (*MemoryRepository)(nil)
