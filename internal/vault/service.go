// Package vault provides the single public entry point for the crypto
// core: a facade composing the nonce manager, AEAD engine, key manager,
// asymmetric engine, and security gate with zero cyclic
// references, grounded on the teacher's transit-key use case
// (create/rotate/encrypt/decrypt orchestration) generalized from a
// named-key store to the per-(user, data_kind) field-key model in
// internal/crypto/service.FieldKeyManager.
package vault

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	cryptoService "github.com/allisson/vaultcore/internal/crypto/service"
	"github.com/allisson/vaultcore/internal/crypto/secure"
	"github.com/allisson/vaultcore/internal/errors"
	"github.com/allisson/vaultcore/internal/gate"
)

// Stats is a point-in-time snapshot of the facade's operation counters.
// Reads are snapshots, not transactional, matching spec.md's "atomic
// increments; reads are snapshots" invariant.
type Stats struct {
	EncryptCount      int64
	DecryptCount      int64
	RotationCount     int64
	TransportCount    int64
	ErrorCount        int64
	KeysNeedingRotate int64
}

// Service is the facade: EncryptField, DecryptField, EncryptForTransport,
// RotateUserKeys, Stats.
type Service struct {
	logger *slog.Logger

	fieldKeys   *cryptoService.FieldKeyManager
	keyManager  cryptoService.KeyManager
	aeadManager cryptoService.AEADManager
	wrapper     cryptoService.Wrapper
	gate        *gate.Gate

	// kek is the single active Key Encryption Key used to wrap every new
	// field key. It must already be decrypted (Key populated).
	kek cryptoDomain.Kek

	encryptCount   atomic.Int64
	decryptCount   atomic.Int64
	rotationCount  atomic.Int64
	transportCount atomic.Int64
	errorCount     atomic.Int64
}

// New constructs the facade. kek must be a decrypted KEK (Key populated);
// resolving it from a MasterKeyChain is the caller's responsibility. The
// secure-storage Repository is a collaborator of the caller, not of the
// facade: EncryptField/DecryptField operate purely on Bundle values, and
// persistence is wired by whoever calls the facade (see
// internal/secrets/repository).
func New(
	logger *slog.Logger,
	fieldKeys *cryptoService.FieldKeyManager,
	keyManager cryptoService.KeyManager,
	aeadManager cryptoService.AEADManager,
	wrapper cryptoService.Wrapper,
	g *gate.Gate,
	kek cryptoDomain.Kek,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:      logger,
		fieldKeys:   fieldKeys,
		keyManager:  keyManager,
		aeadManager: aeadManager,
		wrapper:     wrapper,
		gate:        g,
		kek:         kek,
	}
}

// EncryptField encrypts plaintext under the caller's current active key
// for (owner, dataKind), creating that key on first use.
func (s *Service) EncryptField(
	ctx gate.SecurityContext,
	owner, dataKind string,
	plaintext, aad []byte,
) (*Bundle, error) {
	if err := s.gate.Admit(ctx, gate.OpEncryptField, len(plaintext)); err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	fk, err := s.fieldKeys.GetOrCreate(s.kek, owner, dataKind)
	if err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	ciphertext, nonce, err := s.encryptWithKey(fk, plaintext, aad)
	if err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	s.fieldKeys.RecordUsage(fk.ID)
	s.encryptCount.Add(1)

	return newBundle(ciphertext, nonce, aad, fk.Algorithm, fk.ID.String(), time.Now()), nil
}

// DecryptField decrypts a bundle, resolving the key by its stable ID so
// that bundles produced before a rotation still decrypt correctly.
func (s *Service) DecryptField(
	ctx gate.SecurityContext,
	owner, dataKind string,
	bundle *Bundle,
) ([]byte, error) {
	if err := s.gate.Admit(ctx, gate.OpDecryptField, len(bundle.EncryptedData)); err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	keyID, err := uuid.Parse(bundle.KeyID)
	if err != nil {
		s.errorCount.Add(1)
		return nil, fmt.Errorf("%w: invalid key_id %q", errors.ErrInvalidInput, bundle.KeyID)
	}

	if err := s.fieldKeys.ValidateUserAccess(owner, dataKind, keyID); err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	fk, ok := s.fieldKeys.GetByID(keyID)
	if !ok {
		s.errorCount.Add(1)
		return nil, cryptoService.ErrKeyAccessDenied
	}

	alg, err := domainAlgorithm(bundle.Algorithm)
	if err != nil {
		s.errorCount.Add(1)
		return nil, err
	}
	if alg != fk.Algorithm {
		s.errorCount.Add(1)
		return nil, fmt.Errorf("%w: bundle algorithm %q does not match key algorithm %q",
			errors.ErrInvalidInput, bundle.Algorithm, fk.Algorithm)
	}

	plaintext, err := s.decryptWithKey(fk, bundle.EncryptedData, bundle.Nonce, bundle.Metadata.AAD)
	if err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	s.fieldKeys.RecordUsage(fk.ID)
	s.decryptCount.Add(1)
	return plaintext, nil
}

// EncryptForTransport wraps msg under the recipient's RSA-4096 public key
// (PEM-encoded), for out-of-band key exchange rather than at-rest storage.
func (s *Service) EncryptForTransport(
	ctx gate.SecurityContext,
	msg, recipientPublicPEM []byte,
) (*TransportBundle, error) {
	if err := s.gate.Admit(ctx, gate.OpEncryptForTransport, len(msg)); err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	ciphertext, err := s.wrapper.Wrap(recipientPublicPEM, msg)
	if err != nil {
		s.errorCount.Add(1)
		return nil, err
	}

	s.transportCount.Add(1)
	return &TransportBundle{
		EncryptedData: ciphertext,
		Algorithm:     wireAlgorithm(cryptoDomain.RSA4096),
		EncryptedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// RotateUserKeys retires the current active key for (owner, dataKind) and
// issues a fresh one. Bundles encrypted under the retired key remain
// decryptable until the retention window elapses.
func (s *Service) RotateUserKeys(ctx gate.SecurityContext, owner, dataKind string) (cryptoDomain.FieldKey, error) {
	if err := s.gate.Admit(ctx, gate.OpRotateUserKeys, 0); err != nil {
		s.errorCount.Add(1)
		return cryptoDomain.FieldKey{}, err
	}

	fk, err := s.fieldKeys.Rotate(s.kek, owner, dataKind)
	if err != nil {
		s.errorCount.Add(1)
		return cryptoDomain.FieldKey{}, err
	}

	s.rotationCount.Add(1)
	s.logger.Info("rotated field key",
		slog.String("owner_user", owner),
		slog.String("data_kind", dataKind),
		slog.String("key_id", fk.ID.String()),
	)
	return fk, nil
}

// Stats returns a snapshot of the facade's operation counters.
func (s *Service) Stats() Stats {
	return Stats{
		EncryptCount:   s.encryptCount.Load(),
		DecryptCount:   s.decryptCount.Load(),
		RotationCount:  s.rotationCount.Load(),
		TransportCount: s.transportCount.Load(),
		ErrorCount:     s.errorCount.Load(),
	}
}

func (s *Service) encryptWithKey(fk cryptoDomain.FieldKey, plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce, warn, err := s.fieldKeys.IssueNonce(fk.ID)
	if err != nil {
		return nil, nil, err
	}
	if warn {
		s.logger.Warn("field key nonce counter approaching rotation threshold",
			slog.String("key_id", fk.ID.String()),
		)
	}

	dekKey, err := s.keyManager.DecryptDek(fk.Dek, s.kek)
	if err != nil {
		return nil, nil, err
	}
	material := secure.New(dekKey)
	defer material.Close()

	cipher, err := s.aeadManager.CreateCipher(material.Reveal(), fk.Algorithm)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err = cipher.Encrypt(plaintext, nonce, aad)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, nonce, nil
}

func (s *Service) decryptWithKey(fk cryptoDomain.FieldKey, ciphertext, nonce, aad []byte) ([]byte, error) {
	dekKey, err := s.keyManager.DecryptDek(fk.Dek, s.kek)
	if err != nil {
		return nil, err
	}
	material := secure.New(dekKey)
	defer material.Close()

	cipher, err := s.aeadManager.CreateCipher(material.Reveal(), fk.Algorithm)
	if err != nil {
		return nil, err
	}
	return cipher.Decrypt(ciphertext, nonce, aad)
}
