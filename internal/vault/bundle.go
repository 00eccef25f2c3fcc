package vault

import (
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	"github.com/allisson/vaultcore/internal/errors"
)

// Bundle is the wire/serialized form of an encrypted field, reproduced
// unchanged from the reference application's envelope: base64 ciphertext
// and nonce (via Go's default []byte JSON encoding), a snake_case algorithm
// tag, the key's UUID, and an RFC3339 UTC timestamp.
type Bundle struct {
	EncryptedData []byte         `json:"encrypted_data"`
	Nonce         []byte         `json:"nonce"`
	Algorithm     string         `json:"algorithm"`
	KeyID         string         `json:"key_id"`
	EncryptedAt   string         `json:"encrypted_at"`
	Metadata      BundleMetadata `json:"metadata"`
}

// BundleMetadata carries the schema version and the additional
// authenticated data used (but not encrypted) during the operation.
type BundleMetadata struct {
	Version int    `json:"version"`
	AAD     []byte `json:"aad,omitempty"`
}

// TransportBundle is the wire form of a RSA-4096-wrapped payload produced
// by EncryptForTransport. It carries no nonce: RSA/PKCS#1 v1.5 wrapping is
// not an AEAD scheme.
type TransportBundle struct {
	EncryptedData []byte `json:"encrypted_data"`
	Algorithm     string `json:"algorithm"`
	EncryptedAt   string `json:"encrypted_at"`
}

const bundleSchemaVersion = 1

// wireAlgorithm maps an internal Algorithm to the spec's closed wire
// vocabulary (aes256_gcm, chacha20_poly1305, rsa4096, ed25519).
func wireAlgorithm(alg cryptoDomain.Algorithm) string {
	switch alg {
	case cryptoDomain.AESGCM:
		return "aes256_gcm"
	case cryptoDomain.ChaCha20:
		return "chacha20_poly1305"
	case cryptoDomain.RSA4096:
		return "rsa4096"
	case cryptoDomain.Ed25519:
		return "ed25519"
	default:
		return string(alg)
	}
}

// domainAlgorithm is wireAlgorithm's inverse, used when validating an
// inbound bundle against the key that is about to decrypt it.
func domainAlgorithm(wire string) (cryptoDomain.Algorithm, error) {
	switch wire {
	case "aes256_gcm":
		return cryptoDomain.AESGCM, nil
	case "chacha20_poly1305":
		return cryptoDomain.ChaCha20, nil
	case "rsa4096":
		return cryptoDomain.RSA4096, nil
	case "ed25519":
		return cryptoDomain.Ed25519, nil
	default:
		return "", fmt.Errorf("%w: unknown algorithm tag %q", errors.ErrInvalidInput, wire)
	}
}

func newBundle(ciphertext, nonce, aad []byte, alg cryptoDomain.Algorithm, keyID string, now time.Time) *Bundle {
	return &Bundle{
		EncryptedData: ciphertext,
		Nonce:         nonce,
		Algorithm:     wireAlgorithm(alg),
		KeyID:         keyID,
		EncryptedAt:   now.UTC().Format(time.RFC3339),
		Metadata:      BundleMetadata{Version: bundleSchemaVersion, AAD: aad},
	}
}
