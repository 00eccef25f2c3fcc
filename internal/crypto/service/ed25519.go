package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
)

// Signer defines Ed25519 signing and verification, the asymmetric half of
// the crypto core's algorithm set. Unlike the AEAD ciphers, a Signer is
// stateless and needs no key-size validation beyond Go's own ed25519
// constants, since GenerateKeypair is the only path that produces keys.
type Signer interface {
	// GenerateKeypair returns a new Ed25519 private/public key pair.
	GenerateKeypair() (priv ed25519.PrivateKey, pub ed25519.PublicKey, err error)

	// Sign produces a 64-byte Ed25519 signature over msg.
	Sign(priv ed25519.PrivateKey, msg []byte) ([]byte, error)

	// Verify reports whether sig is a valid Ed25519 signature over msg
	// under pub. Returns false (never an error) for any mismatch,
	// including malformed input, so callers cannot distinguish "bad
	// signature" from "bad key" by error type.
	Verify(pub ed25519.PublicKey, msg, sig []byte) bool
}

type ed25519Signer struct{}

// NewSigner returns the Ed25519 Signer implementation.
func NewSigner() Signer {
	return &ed25519Signer{}
}

func (ed25519Signer) GenerateKeypair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("ed25519: key generation failed: %w", err)
	}
	return priv, pub, nil
}

func (ed25519Signer) Sign(priv ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d",
			cryptoDomain.ErrInvalidKeySize, ed25519.PrivateKeySize, len(priv))
	}
	return ed25519.Sign(priv, msg), nil
}

func (ed25519Signer) Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
