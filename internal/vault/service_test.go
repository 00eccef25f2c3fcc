package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	cryptoService "github.com/allisson/vaultcore/internal/crypto/service"
	"github.com/allisson/vaultcore/internal/crypto/nonce"
	"github.com/allisson/vaultcore/internal/errors"
	"github.com/allisson/vaultcore/internal/gate"
)

func testService(t *testing.T) *Service {
	t.Helper()

	aeadManager := cryptoService.NewAEADManager()
	keyManager := cryptoService.NewKeyManager(aeadManager)
	nonceManager, err := nonce.New(nonce.DefaultConfig())
	require.NoError(t, err)
	fieldKeys := cryptoService.NewFieldKeyManager(aeadManager, keyManager, nonceManager, time.Hour, time.Hour)
	wrapper := cryptoService.NewWrapper()
	g := gate.New(gate.DefaultConfig())

	masterKey := &cryptoDomain.MasterKey{ID: "test-master-key", Key: make([]byte, 32)}
	kek, err := keyManager.CreateKek(masterKey, cryptoDomain.AESGCM)
	require.NoError(t, err)
	kekKey, err := keyManager.DecryptKek(&kek, masterKey)
	require.NoError(t, err)
	kek.Key = kekKey

	return New(nil, fieldKeys, keyManager, aeadManager, wrapper, g, kek)
}

func freshCtx(user string) gate.SecurityContext {
	return gate.SecurityContext{UserID: user, SessionID: "s1", AuthenticatedAt: time.Now()}
}

func TestServiceEncryptDecryptRoundTrip(t *testing.T) {
	svc := testService(t)
	ctx := freshCtx("user-1")

	bundle, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("secret-balance"), []byte("aad-1"))
	require.NoError(t, err)
	assert.Equal(t, "aes256_gcm", bundle.Algorithm)
	assert.NotEmpty(t, bundle.KeyID)

	plaintext, err := svc.DecryptField(ctx, "user-1", "bank_balance", bundle)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret-balance"), plaintext)
}

func TestServiceEncryptProducesDistinctNoncesAndCiphertext(t *testing.T) {
	svc := testService(t)
	ctx := freshCtx("user-1")

	b1, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("same plaintext"), nil)
	require.NoError(t, err)
	b2, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("same plaintext"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, b1.Nonce, b2.Nonce)
	assert.NotEqual(t, b1.EncryptedData, b2.EncryptedData)
	assert.Equal(t, b1.KeyID, b2.KeyID) // same active key, no rotation yet
}

func TestServiceDecryptSurvivesRotation(t *testing.T) {
	svc := testService(t)
	ctx := freshCtx("user-1")

	b1, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("pre-rotation"), nil)
	require.NoError(t, err)

	_, err = svc.RotateUserKeys(ctx, "user-1", "bank_balance")
	require.NoError(t, err)

	b2, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("post-rotation"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, b1.KeyID, b2.KeyID)

	pt1, err := svc.DecryptField(ctx, "user-1", "bank_balance", b1)
	require.NoError(t, err)
	assert.Equal(t, []byte("pre-rotation"), pt1)

	pt2, err := svc.DecryptField(ctx, "user-1", "bank_balance", b2)
	require.NoError(t, err)
	assert.Equal(t, []byte("post-rotation"), pt2)
}

func TestServiceDecryptRejectsWrongUser(t *testing.T) {
	svc := testService(t)

	bundle, err := svc.EncryptField(freshCtx("user-a"), "user-a", "bank_balance", []byte("secret"), nil)
	require.NoError(t, err)

	_, err = svc.DecryptField(freshCtx("user-b"), "user-b", "bank_balance", bundle)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestServiceDecryptRejectsTamperedCiphertext(t *testing.T) {
	svc := testService(t)
	ctx := freshCtx("user-1")

	bundle, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("secret"), nil)
	require.NoError(t, err)

	bundle.EncryptedData[0] ^= 0xFF
	_, err = svc.DecryptField(ctx, "user-1", "bank_balance", bundle)
	assert.Error(t, err)
}

func TestServiceEncryptForTransport(t *testing.T) {
	svc := testService(t)
	ctx := freshCtx("user-1")

	wrapper := cryptoService.NewWrapper()
	priv, pub, err := wrapper.GenerateKeypair()
	require.NoError(t, err)
	_ = priv

	tb, err := svc.EncryptForTransport(ctx, []byte("small payload"), pub)
	require.NoError(t, err)
	assert.Equal(t, "rsa4096", tb.Algorithm)

	plaintext, err := wrapper.Unwrap(priv, tb.EncryptedData)
	require.NoError(t, err)
	assert.Equal(t, []byte("small payload"), plaintext)
}

func TestServiceGateRejectsStaleSession(t *testing.T) {
	svc := testService(t)
	ctx := gate.SecurityContext{UserID: "user-1", AuthenticatedAt: time.Now().Add(-time.Hour)}

	_, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("x"), nil)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestServiceStatsSnapshot(t *testing.T) {
	svc := testService(t)
	ctx := freshCtx("user-1")

	bundle, err := svc.EncryptField(ctx, "user-1", "bank_balance", []byte("x"), nil)
	require.NoError(t, err)
	_, err = svc.DecryptField(ctx, "user-1", "bank_balance", bundle)
	require.NoError(t, err)
	_, err = svc.RotateUserKeys(ctx, "user-1", "bank_balance")
	require.NoError(t, err)

	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.EncryptCount)
	assert.Equal(t, int64(1), stats.DecryptCount)
	assert.Equal(t, int64(1), stats.RotationCount)
}
