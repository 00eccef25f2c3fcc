package service

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	"github.com/allisson/vaultcore/internal/errors"
)

const (
	rsaKeyBits = 4096

	// maxWrapPlaintext is the largest payload RSA-4096/PKCS#1 v1.5 can wrap
	// directly: 4096/8 - 11 bytes of padding overhead, floored to 446 to
	// match the reference application's conservative margin.
	maxWrapPlaintext = 446

	pemPrivateKeyType = "PRIVATE KEY"
	pemPublicKeyType  = "PUBLIC KEY"
)

// ErrPlaintextTooLarge indicates a payload exceeds what RSA-4096 can wrap
// directly; large payloads must go through envelope encryption instead
// (wrap a DEK, not the data itself).
var ErrPlaintextTooLarge = errors.Wrap(errors.ErrInvalidInput, "plaintext too large for RSA wrap (max 446 bytes)")

// ErrSignNotImplemented indicates RSA signing is intentionally unimplemented;
// use the Ed25519 Signer for all signing operations.
var ErrSignNotImplemented = errors.Wrap(errors.ErrInvalidInput, "RSA signing is not implemented; use Ed25519")

// Wrapper defines RSA-4096 key-wrapping: encrypting small payloads (typically
// a DEK) under a recipient's public key, and unwrapping them with the
// matching private key. Keys are exchanged as PKCS#8/PKIX PEM, matching the
// reference application's on-disk key format.
type Wrapper interface {
	// GenerateKeypair returns a new RSA-4096 private/public key pair, PEM-encoded.
	GenerateKeypair() (privatePEM, publicPEM []byte, err error)

	// Wrap encrypts plaintext under the PEM-encoded public key. plaintext
	// must be at most 446 bytes.
	Wrap(publicPEM, plaintext []byte) ([]byte, error)

	// Unwrap decrypts ciphertext with the PEM-encoded private key.
	Unwrap(privatePEM, ciphertext []byte) ([]byte, error)

	// Sign and Verify are declared for interface symmetry with Signer but
	// are not implemented; RSA signatures are out of scope, Ed25519 covers
	// all signing needs.
	Sign(privatePEM, msg []byte) ([]byte, error)
	Verify(publicPEM, msg, sig []byte) bool
}

type rsaWrapper struct{}

// NewWrapper returns the RSA-4096 Wrapper implementation.
func NewWrapper() Wrapper {
	return &rsaWrapper{}
}

func (rsaWrapper) GenerateKeypair() ([]byte, []byte, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("rsa: key generation failed: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("rsa: failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("rsa: failed to marshal public key: %w", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: pemPrivateKeyType, Bytes: privDER})
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: pemPublicKeyType, Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

func (rsaWrapper) Wrap(publicPEM, plaintext []byte) ([]byte, error) {
	if len(plaintext) > maxWrapPlaintext {
		return nil, ErrPlaintextTooLarge
	}

	pub, err := parsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	if err != nil {
		return nil, fmt.Errorf("rsa: wrap failed: %w", err)
	}
	return ciphertext, nil
}

func (rsaWrapper) Unwrap(privatePEM, ciphertext []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}

	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

func (rsaWrapper) Sign([]byte, []byte) ([]byte, error) {
	return nil, ErrSignNotImplemented
}

func (rsaWrapper) Verify([]byte, []byte, []byte) bool {
	return false
}

func parsePublicKey(publicPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(publicPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: invalid PEM-encoded RSA public key", errors.ErrInvalidInput)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid RSA public key: %v", errors.ErrInvalidInput, err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: PEM block does not contain an RSA public key", errors.ErrInvalidInput)
	}
	return pub, nil
}

func parsePrivateKey(privatePEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(privatePEM)
	if block == nil {
		return nil, fmt.Errorf("%w: invalid PEM-encoded RSA private key", errors.ErrInvalidInput)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid RSA private key: %v", errors.ErrInvalidInput, err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PEM block does not contain an RSA private key", errors.ErrInvalidInput)
	}
	return priv, nil
}
