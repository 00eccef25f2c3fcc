package nonce

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomNoncesAreDistinct(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	keyID := uuid.New()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		n, _, err := m.IssueWithStrategy(keyID, Random)
		require.NoError(t, err)
		require.Len(t, n, 12)
		seen[string(n)] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestCounterBasedNoncesAreUniqueConcurrently(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	keyID := uuid.New()
	const goroutines, perGoroutine = 10, 100

	var mu sync.Mutex
	seen := make(map[string]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				n, _, err := m.IssueWithStrategy(keyID, CounterBased)
				assert.NoError(t, err)
				mu.Lock()
				seen[string(n)] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestCounterBasedRotationThreshold(t *testing.T) {
	m, err := New(Config{
		DefaultStrategy: CounterBased,
		WarnThreshold:   2,
		RotateThreshold: 3,
	})
	require.NoError(t, err)

	keyID := uuid.New()

	_, warn, err := m.Issue(keyID)
	require.NoError(t, err)
	assert.False(t, warn)

	_, warn, err = m.Issue(keyID)
	require.NoError(t, err)
	assert.False(t, warn)

	_, warn, err = m.Issue(keyID)
	require.NoError(t, err)
	assert.True(t, warn) // crossed warn threshold, third issuance still succeeds

	_, _, err = m.Issue(keyID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotation threshold")
}

func TestNewRejectsInvalidThresholds(t *testing.T) {
	_, err := New(Config{WarnThreshold: 10, RotateThreshold: 5})
	assert.Error(t, err)
}

func TestResetStartsCounterOver(t *testing.T) {
	m, err := New(Config{DefaultStrategy: CounterBased, WarnThreshold: 100, RotateThreshold: 200})
	require.NoError(t, err)

	keyID := uuid.New()
	_, _, err = m.Issue(keyID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.CurrentCount(keyID))

	m.Reset(keyID)
	assert.Equal(t, uint64(0), m.CurrentCount(keyID))
}
