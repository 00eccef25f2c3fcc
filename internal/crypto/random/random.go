// Package random provides the single secure-random source used across the
// crypto core, so every key, nonce, and salt draws from the same
// crypto/rand-backed generator.
package random

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const maxRequestBytes = 1 << 20 // 1 MiB ceiling against accidental huge allocations

// Bytes returns n cryptographically secure random bytes.
func Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("random: n must be positive, got %d", n)
	}
	if n > maxRequestBytes {
		return nil, fmt.Errorf("random: n=%d exceeds maximum request size %d", n, maxRequestBytes)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random: failed to read entropy: %w", err)
	}
	return b, nil
}

// ID returns a new UUIDv4, the format spec.md requires for externally
// addressable key_id values.
func ID() (uuid.UUID, error) {
	return uuid.NewRandom()
}
