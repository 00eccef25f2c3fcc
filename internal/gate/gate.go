// Package gate implements the security gate every crypto-core operation
// passes through before it runs: session freshness, rate limiting,
// permission checks, and payload size ceilings, in that fixed order.
// Grounded on the reference application's SecurityMiddleware.validate_request
// and the teacher's production rate-limiting middleware.
package gate

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/allisson/vaultcore/internal/errors"
)

// Operation identifies which crypto-core verb is being gated. Each has its
// own rate-limit and size-ceiling entry in the reference tables below.
type Operation string

const (
	OpEncryptField          Operation = "encrypt_financial_data"
	OpDecryptField          Operation = "decrypt_financial_data"
	OpGenerateEncryptionKey Operation = "generate_encryption_key"
	OpRotateUserKeys        Operation = "rotate_user_keys"
	OpDeriveKeyFromPassword Operation = "derive_key_from_password"
	OpSignData              Operation = "sign_data"
	OpVerifySignature       Operation = "verify_signature"
	OpEncryptForTransport   Operation = "encrypt_for_transport"
)

// rateLimitRule and sizeCeilingRule reproduce the reference application's
// hardcoded per-operation tables unchanged.
type rateLimitRule struct {
	count  int
	window time.Duration
}

var rateLimitRules = map[Operation]rateLimitRule{
	OpEncryptField:          {count: 100, window: 60 * time.Second},
	OpDecryptField:          {count: 100, window: 60 * time.Second},
	OpGenerateEncryptionKey: {count: 10, window: 300 * time.Second},
	OpRotateUserKeys:        {count: 5, window: 3600 * time.Second},
	OpDeriveKeyFromPassword: {count: 20, window: 300 * time.Second},
}

var defaultRateLimitRule = rateLimitRule{count: 50, window: 60 * time.Second}

var sizeCeilings = map[Operation]int{
	OpEncryptField:    1 << 20, // 1 MiB
	OpDecryptField:    1 << 20,
	OpSignData:        512 << 10, // 512 KiB
	OpVerifySignature: 512 << 10,
}

const defaultSizeCeiling = 64 << 10 // 64 KiB

func rateLimitFor(op Operation) rateLimitRule {
	if rule, ok := rateLimitRules[op]; ok {
		return rule
	}
	return defaultRateLimitRule
}

func sizeCeilingFor(op Operation) int {
	if ceiling, ok := sizeCeilings[op]; ok {
		return ceiling
	}
	return defaultSizeCeiling
}

// SecurityContext carries the caller identity and authorization state a
// Gate needs to evaluate a request. Produced by whatever authenticates the
// caller; the gate trusts AuthenticatedAt and Permissions as given.
type SecurityContext struct {
	UserID          string
	SessionID       string
	AuthenticatedAt time.Time
	Permissions     []string
}

// Config tunes a Gate's behavior.
type Config struct {
	SessionTimeout time.Duration
	// PermissionsEnforced switches permission checks from advisory
	// (log-and-allow, the reference application's default) to blocking.
	// Defaults to false, matching original_source/security/mod.rs's
	// documented "for now, just log the warning but don't block access".
	PermissionsEnforced bool
}

// DefaultConfig returns a 1-hour session timeout with permissions
// advisory-only, matching original_source/security/mod.rs's
// Duration::from_secs(3600).
func DefaultConfig() Config {
	return Config{SessionTimeout: time.Hour}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// Gate runs the four ordered admission checks: session freshness, rate
// limit, permission, and payload size.
type Gate struct {
	cfg      Config
	limiters sync.Map // string "userID\x00operation" -> *limiterEntry
}

// New constructs a Gate and starts its background stale-limiter cleanup.
func New(cfg Config) *Gate {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultConfig().SessionTimeout
	}
	g := &Gate{cfg: cfg}
	go g.cleanupStale(5 * time.Minute)
	return g
}

// Admit runs the four checks in order and returns the first failure.
// PayloadSize is in bytes; pass 0 for operations with no payload.
func (g *Gate) Admit(ctx SecurityContext, op Operation, payloadSize int) error {
	if err := g.checkFreshness(ctx); err != nil {
		return err
	}
	if err := g.checkRateLimit(ctx, op); err != nil {
		return err
	}
	if err := g.checkPermission(ctx, op); err != nil {
		return err
	}
	if err := g.checkSize(op, payloadSize); err != nil {
		return err
	}
	return nil
}

func (g *Gate) checkFreshness(ctx SecurityContext) error {
	if ctx.AuthenticatedAt.IsZero() || time.Since(ctx.AuthenticatedAt) > g.cfg.SessionTimeout {
		return fmt.Errorf("%w: session for user %s is stale or was never established", errors.ErrAuthentication, ctx.UserID)
	}
	return nil
}

func (g *Gate) checkRateLimit(ctx SecurityContext, op Operation) error {
	entry := g.getLimiter(ctx.UserID, op)
	if !entry.limiter.Allow() {
		return fmt.Errorf("%w: rate limit exceeded for operation %q", errors.ErrSecurity, op)
	}
	return nil
}

// checkPermission is advisory by default: the reference application logs a
// warning and allows the request through rather than blocking it. Set
// Config.PermissionsEnforced to make a missing permission a hard failure.
func (g *Gate) checkPermission(ctx SecurityContext, op Operation) error {
	if !g.cfg.PermissionsEnforced {
		return nil
	}
	for _, perm := range ctx.Permissions {
		if perm == string(op) || perm == "*" {
			return nil
		}
	}
	return fmt.Errorf("%w: user %s lacks permission for operation %q", errors.ErrAuthorization, ctx.UserID, op)
}

func (g *Gate) checkSize(op Operation, payloadSize int) error {
	ceiling := sizeCeilingFor(op)
	if payloadSize > ceiling {
		return fmt.Errorf("%w: payload of %d bytes exceeds the %d-byte ceiling for operation %q",
			errors.ErrSecurity, payloadSize, ceiling, op)
	}
	return nil
}

func (g *Gate) getLimiter(userID string, op Operation) *limiterEntry {
	key := userID + "\x00" + string(op)
	if val, ok := g.limiters.Load(key); ok {
		entry := val.(*limiterEntry)
		entry.mu.Lock()
		entry.lastAccess = time.Now()
		entry.mu.Unlock()
		return entry
	}

	rule := rateLimitFor(op)
	limiter := rate.NewLimiter(rate.Limit(float64(rule.count)/rule.window.Seconds()), rule.count)
	entry := &limiterEntry{limiter: limiter, lastAccess: time.Now()}

	actual, _ := g.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry)
}

func (g *Gate) cleanupStale(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		threshold := time.Now().Add(-time.Hour)
		g.limiters.Range(func(key, value any) bool {
			entry := value.(*limiterEntry)
			entry.mu.Lock()
			stale := entry.lastAccess.Before(threshold)
			entry.mu.Unlock()
			if stale {
				g.limiters.Delete(key)
			}
			return true
		})
	}
}
