// Package secure provides a zeroizing byte container and constant-time
// comparison helpers for handling cryptographic key material.
package secure

import (
	"crypto/subtle"
	"strconv"
	"sync"
)

// Bytes wraps a byte slice carrying sensitive material (keys, derived
// secrets, plaintext field values). Close zeros the backing array exactly
// once; it is safe to call Close multiple times or via defer on every
// error path, mirroring the zero-on-teardown pattern the domain package
// uses for MasterKeyChain/KekChain.
type Bytes struct {
	mu     sync.Mutex
	buf    []byte
	closed bool
}

// New takes ownership of b and wraps it. Callers must not retain their own
// reference to b after calling New.
func New(b []byte) *Bytes {
	return &Bytes{buf: b}
}

// Reveal returns the underlying slice for a single call-frame read. The
// returned slice aliases internal storage and becomes invalid after Close.
func (b *Bytes) Reveal() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.buf
}

// Len reports the length of the wrapped material without revealing it.
func (b *Bytes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Close zeros the backing array. Idempotent.
func (b *Bytes) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for i := range b.buf {
		b.buf[i] = 0
	}
	b.closed = true
}

// String never prints key material, only its length, to keep accidental
// %v/%s logging of a Bytes value from leaking secrets.
func (b *Bytes) String() string {
	return "secure.Bytes(len=" + strconv.Itoa(b.Len()) + ")"
}

// Equal performs a constant-time comparison of two byte slices, used
// wherever an AEAD tag, signature, or derived-key check must not leak
// timing information about where a mismatch occurs.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
