package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapperWrapAndUnwrapRoundTrip(t *testing.T) {
	w := NewWrapper()
	privatePEM, publicPEM, err := w.GenerateKeypair()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(privatePEM), "PRIVATE KEY"))
	assert.True(t, strings.Contains(string(publicPEM), "PUBLIC KEY"))

	plaintext := []byte("a 32-byte data-encryption key...")
	ciphertext, err := w.Wrap(publicPEM, plaintext)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(ciphertext, plaintext))

	recovered, err := w.Unwrap(privatePEM, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestWrapperRejectsOversizedPlaintext(t *testing.T) {
	w := NewWrapper()
	_, publicPEM, err := w.GenerateKeypair()
	require.NoError(t, err)

	_, err = w.Wrap(publicPEM, make([]byte, maxWrapPlaintext+1))
	assert.ErrorIs(t, err, ErrPlaintextTooLarge)
}

func TestWrapperUnwrapFailsWithWrongKey(t *testing.T) {
	w := NewWrapper()
	_, publicPEM, err := w.GenerateKeypair()
	require.NoError(t, err)
	otherPrivatePEM, _, err := w.GenerateKeypair()
	require.NoError(t, err)

	ciphertext, err := w.Wrap(publicPEM, []byte("secret"))
	require.NoError(t, err)

	_, err = w.Unwrap(otherPrivatePEM, ciphertext)
	assert.Error(t, err)
}

func TestWrapperSignIsNotImplemented(t *testing.T) {
	w := NewWrapper()
	_, err := w.Sign(nil, nil)
	assert.ErrorIs(t, err, ErrSignNotImplemented)
	assert.False(t, w.Verify(nil, nil, nil))
}
