// Package kdf implements the key-derivation engine: Argon2id, PBKDF2-HMAC-SHA256,
// scrypt, and HKDF-SHA256, each exposed behind the same Deriver interface.
//
// Argon2id, PBKDF2, and scrypt are password-based: they derive a key from a
// low-entropy secret plus a random salt, at a deliberately tunable cost.
// HKDF-SHA256 is not password-based: it expands an existing high-entropy
// key (e.g. a KEK) into a separate derived key for a distinct purpose,
// following the same separation-of-use pattern the audit log signer uses
// to keep encryption keys and signing keys independent.
package kdf

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	"github.com/allisson/vaultcore/internal/crypto/random"
	"github.com/allisson/vaultcore/internal/crypto/secure"
	"github.com/allisson/vaultcore/internal/errors"
)

const derivedKeyLength = 32

// Params carries the tunable cost parameters for a derivation. Not every
// field applies to every algorithm; Deriver implementations validate only
// the fields their algorithm uses.
type Params struct {
	Algorithm cryptoDomain.KDFAlgorithm

	// Argon2id
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8

	// PBKDF2
	PBKDF2Iterations int

	// scrypt
	ScryptLogN int
	ScryptR    int
	ScryptP    int

	// HKDF
	Info []byte
}

// DefaultParams returns the floor/default values spec.md mandates per algorithm.
func DefaultParams(alg cryptoDomain.KDFAlgorithm) Params {
	switch alg {
	case cryptoDomain.KDFArgon2id:
		return Params{Algorithm: alg, MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 1}
	case cryptoDomain.KDFPBKDF2:
		return Params{Algorithm: alg, PBKDF2Iterations: 120_000}
	case cryptoDomain.KDFScrypt:
		return Params{Algorithm: alg, ScryptLogN: 15, ScryptR: 8, ScryptP: 1}
	case cryptoDomain.KDFHKDF:
		return Params{Algorithm: alg, Info: []byte("field-kdf-v1")}
	default:
		return Params{Algorithm: alg}
	}
}

func (p Params) validate() error {
	switch p.Algorithm {
	case cryptoDomain.KDFArgon2id:
		if p.MemoryKiB < 8*1024 {
			return fmt.Errorf("%w: argon2id memory must be >= 8192 KiB, got %d", errors.ErrInvalidInput, p.MemoryKiB)
		}
		if p.Iterations < 1 {
			return fmt.Errorf("%w: argon2id iterations must be >= 1", errors.ErrInvalidInput)
		}
		if p.Parallelism < 1 || p.Parallelism > 16 {
			return fmt.Errorf("%w: argon2id parallelism must be in [1,16], got %d", errors.ErrInvalidInput, p.Parallelism)
		}
	case cryptoDomain.KDFPBKDF2:
		if p.PBKDF2Iterations < 120_000 {
			return fmt.Errorf(
				"%w: pbkdf2 iterations must be >= 120000, got %d", errors.ErrInvalidInput, p.PBKDF2Iterations,
			)
		}
	case cryptoDomain.KDFScrypt:
		if p.ScryptLogN < 14 {
			return fmt.Errorf("%w: scrypt log_n must be >= 14, got %d", errors.ErrInvalidInput, p.ScryptLogN)
		}
		if p.ScryptR < 8 {
			return fmt.Errorf("%w: scrypt r must be >= 8, got %d", errors.ErrInvalidInput, p.ScryptR)
		}
		if p.ScryptP < 1 {
			return fmt.Errorf("%w: scrypt p must be >= 1, got %d", errors.ErrInvalidInput, p.ScryptP)
		}
	case cryptoDomain.KDFHKDF:
		// no hard floors; info may be empty, though callers should version it.
	default:
		return fmt.Errorf("%w: unsupported kdf algorithm %q", errors.ErrInvalidInput, p.Algorithm)
	}
	return nil
}

// Deriver derives a fixed-length key from a secret (password or existing
// key material) and a salt/context.
type Deriver interface {
	// Derive produces a derivedKeyLength-byte key. salt's meaning depends on
	// the algorithm: a random per-secret salt for the password-based KDFs,
	// or the HKDF "salt" (may be nil) for HKDF-SHA256.
	Derive(secretMaterial, salt []byte, params Params) (*secure.Bytes, error)
}

type deriver struct{}

// New returns the single Deriver implementation; Params.Algorithm selects
// which underlying function runs.
func New() Deriver {
	return &deriver{}
}

func (deriver) Derive(secretMaterial, salt []byte, params Params) (*secure.Bytes, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	switch params.Algorithm {
	case cryptoDomain.KDFArgon2id:
		key := argon2.IDKey(secretMaterial, salt, params.Iterations, params.MemoryKiB, params.Parallelism, derivedKeyLength)
		return secure.New(key), nil

	case cryptoDomain.KDFPBKDF2:
		key := pbkdf2.Key(secretMaterial, salt, params.PBKDF2Iterations, derivedKeyLength, sha256.New)
		return secure.New(key), nil

	case cryptoDomain.KDFScrypt:
		n := 1 << params.ScryptLogN
		key, err := scrypt.Key(secretMaterial, salt, n, params.ScryptR, params.ScryptP, derivedKeyLength)
		if err != nil {
			return nil, fmt.Errorf("kdf: scrypt derivation failed: %w", err)
		}
		return secure.New(key), nil

	case cryptoDomain.KDFHKDF:
		h := hkdf.New(sha256.New, secretMaterial, salt, params.Info)
		key := make([]byte, derivedKeyLength)
		if _, err := io.ReadFull(h, key); err != nil {
			return nil, fmt.Errorf("kdf: hkdf expansion failed: %w", err)
		}
		return secure.New(key), nil

	default:
		return nil, fmt.Errorf("%w: unsupported kdf algorithm %q", errors.ErrInvalidInput, params.Algorithm)
	}
}

// Verify re-derives a key from secretMaterial/salt/params and compares it to
// expected in constant time. Used to check a password against a previously
// derived (and separately stored) key without ever branching on where a
// mismatch occurred.
func Verify(d Deriver, secretMaterial, salt []byte, params Params, expected []byte) (bool, error) {
	got, err := d.Derive(secretMaterial, salt, params)
	if err != nil {
		return false, err
	}
	defer got.Close()
	return secure.Equal(got.Reveal(), expected), nil
}

// NewSalt returns a fresh random salt suitable for the password-based KDFs.
func NewSalt(n int) ([]byte, error) {
	if n <= 0 {
		n = 16
	}
	return random.Bytes(n)
}
