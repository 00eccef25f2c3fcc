// Package nonce implements nonce generation and per-key counter tracking
// for AEAD encryption, transliterated from the reference application's
// nonce manager: random, counter-based, and hybrid strategies, with
// warn/rotate thresholds that guard against counter exhaustion.
package nonce

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/vaultcore/internal/crypto/random"
	"github.com/allisson/vaultcore/internal/errors"
)

// Strategy selects how nonces are produced for a key.
type Strategy string

const (
	// Random draws a fresh 12-byte nonce from the secure-random source on
	// every call. Simple, but relies entirely on randomness for uniqueness.
	Random Strategy = "random"

	// CounterBased lays down an 8-byte big-endian monotonic counter
	// followed by 4 random bytes, guaranteeing uniqueness until the
	// counter itself is exhausted.
	CounterBased Strategy = "counter_based"

	// Hybrid behaves like CounterBased; kept as a distinct tag so callers
	// can distinguish "counter with an explicit fallback policy" from
	// plain CounterBased in logs and configuration.
	Hybrid Strategy = "hybrid"
)

const nonceLength = 12

// DefaultRotateThreshold and DefaultWarnThreshold match the reference
// application's defaults: warn well before the counter is exhausted, and
// require rotation once it actually would wrap.
const (
	DefaultRotateThreshold uint64 = 1 << 32
	DefaultWarnThreshold   uint64 = 1 << 30
)

// Config tunes a Manager's behavior.
type Config struct {
	DefaultStrategy Strategy
	RotateThreshold uint64
	WarnThreshold   uint64
	PersistCounters bool // reserved: whether counters should be checkpointed by a caller
}

// DefaultConfig returns the reference thresholds with Random as the default
// strategy (matching the reference application's default).
func DefaultConfig() Config {
	return Config{
		DefaultStrategy: Random,
		RotateThreshold: DefaultRotateThreshold,
		WarnThreshold:   DefaultWarnThreshold,
	}
}

type keyCounter struct {
	value     atomic.Uint64
	createdAt time.Time
}

// Manager issues nonces for keys identified by UUID, tracking one
// monotonic counter per key for counter-based strategies.
type Manager struct {
	cfg      Config
	counters sync.Map // uuid.UUID -> *keyCounter
}

// New validates the config and constructs a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.WarnThreshold >= cfg.RotateThreshold {
		return nil, fmt.Errorf(
			"%w: nonce warn_threshold (%d) must be less than rotate_threshold (%d)",
			errors.ErrInvalidInput, cfg.WarnThreshold, cfg.RotateThreshold,
		)
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = Random
	}
	return &Manager{cfg: cfg}, nil
}

// Issue generates a nonce for keyID using the manager's default strategy.
// warn reports whether the per-key counter has crossed the warn threshold
// (only meaningful for CounterBased/Hybrid); callers should log it and
// continue, since only crossing the rotate threshold is a hard failure.
func (m *Manager) Issue(keyID uuid.UUID) (n []byte, warn bool, err error) {
	return m.IssueWithStrategy(keyID, m.cfg.DefaultStrategy)
}

// IssueWithStrategy generates a nonce for keyID using an explicit strategy,
// overriding the manager's default.
func (m *Manager) IssueWithStrategy(keyID uuid.UUID, strategy Strategy) (n []byte, warn bool, err error) {
	switch strategy {
	case Random:
		b, err := random.Bytes(nonceLength)
		return b, false, err
	case CounterBased, Hybrid:
		return m.issueCounterBased(keyID)
	default:
		return nil, false, fmt.Errorf("%w: unknown nonce strategy %q", errors.ErrInvalidInput, strategy)
	}
}

func (m *Manager) issueCounterBased(keyID uuid.UUID) ([]byte, bool, error) {
	counterAny, _ := m.counters.LoadOrStore(keyID, &keyCounter{createdAt: time.Now().UTC()})
	counter := counterAny.(*keyCounter)

	value := counter.value.Add(1) - 1

	if value >= m.cfg.RotateThreshold {
		return nil, false, fmt.Errorf(
			"%w: nonce counter for key %s has exceeded rotation threshold (%d); key rotation required",
			errors.ErrSecurity, keyID, m.cfg.RotateThreshold,
		)
	}

	warn := value >= m.cfg.WarnThreshold

	suffix, err := random.Bytes(4)
	if err != nil {
		return nil, warn, err
	}

	out := make([]byte, nonceLength)
	binary.BigEndian.PutUint64(out[:8], value)
	copy(out[8:], suffix)

	return out, warn, nil
}

// CurrentCount returns the number of nonces issued so far for keyID under
// a counter-based strategy (0 if the key has never issued one).
func (m *Manager) CurrentCount(keyID uuid.UUID) uint64 {
	counterAny, ok := m.counters.Load(keyID)
	if !ok {
		return 0
	}
	return counterAny.(*keyCounter).value.Load()
}

// NeedsRotation reports whether keyID's counter has crossed the rotate
// threshold. Combined by the key manager with its own time-based check.
func (m *Manager) NeedsRotation(keyID uuid.UUID) bool {
	return m.CurrentCount(keyID) >= m.cfg.RotateThreshold
}

// Reset discards keyID's counter, starting a fresh count at zero on next
// issuance. Called when a key is rotated out so its successor does not
// inherit the retired key's counter state.
func (m *Manager) Reset(keyID uuid.UUID) {
	m.counters.Delete(keyID)
}

// NonceLength returns the fixed nonce size this manager produces (12 bytes,
// matching both AES-256-GCM and ChaCha20-Poly1305).
func (m *Manager) NonceLength() int {
	return nonceLength
}
