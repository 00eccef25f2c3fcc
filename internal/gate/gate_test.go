package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/allisson/vaultcore/internal/errors"
)

func freshContext(userID string) SecurityContext {
	return SecurityContext{
		UserID:          userID,
		SessionID:       "session-1",
		AuthenticatedAt: time.Now(),
	}
}

func TestAdmitAllowsFreshSession(t *testing.T) {
	g := New(DefaultConfig())
	err := g.Admit(freshContext("user-1"), OpEncryptField, 1024)
	assert.NoError(t, err)
}

func TestAdmitRejectsStaleSession(t *testing.T) {
	g := New(Config{SessionTimeout: time.Minute})
	ctx := SecurityContext{UserID: "user-1", AuthenticatedAt: time.Now().Add(-time.Hour)}
	err := g.Admit(ctx, OpEncryptField, 0)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestAdmitRejectsZeroAuthenticatedAt(t *testing.T) {
	g := New(DefaultConfig())
	err := g.Admit(SecurityContext{UserID: "user-1"}, OpEncryptField, 0)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestAdmitEnforcesSizeCeiling(t *testing.T) {
	g := New(DefaultConfig())
	err := g.Admit(freshContext("user-1"), OpEncryptField, 2<<20)
	assert.ErrorIs(t, err, errors.ErrSecurity)

	err = g.Admit(freshContext("user-1"), OpSignData, 600<<10)
	assert.ErrorIs(t, err, errors.ErrSecurity)

	// default ceiling applies to operations with no table entry
	err = g.Admit(freshContext("user-1"), OpEncryptForTransport, 128<<10)
	assert.ErrorIs(t, err, errors.ErrSecurity)
}

func TestAdmitEnforcesRateLimit(t *testing.T) {
	g := New(DefaultConfig())
	ctx := freshContext("user-1")

	var lastErr error
	for i := 0; i < rateLimitFor(OpRotateUserKeys).count+1; i++ {
		lastErr = g.Admit(ctx, OpRotateUserKeys, 0)
	}
	assert.ErrorIs(t, lastErr, errors.ErrSecurity)
}

func TestAdmitRateLimitsArePerUser(t *testing.T) {
	g := New(DefaultConfig())

	for i := 0; i < rateLimitFor(OpRotateUserKeys).count; i++ {
		require := g.Admit(freshContext("user-1"), OpRotateUserKeys, 0)
		assert.NoError(t, require)
	}
	assert.ErrorIs(t, g.Admit(freshContext("user-1"), OpRotateUserKeys, 0), errors.ErrSecurity)

	// a different user has an independent bucket
	assert.NoError(t, g.Admit(freshContext("user-2"), OpRotateUserKeys, 0))
}

func TestAdmitPermissionIsAdvisoryByDefault(t *testing.T) {
	g := New(DefaultConfig())
	ctx := freshContext("user-1")
	ctx.Permissions = nil // no permissions granted at all
	assert.NoError(t, g.Admit(ctx, OpEncryptField, 0))
}

func TestAdmitPermissionBlocksWhenEnforced(t *testing.T) {
	g := New(Config{SessionTimeout: time.Hour, PermissionsEnforced: true})
	ctx := freshContext("user-1")

	err := g.Admit(ctx, OpEncryptField, 0)
	assert.ErrorIs(t, err, errors.ErrAuthorization)

	ctx.Permissions = []string{string(OpEncryptField)}
	assert.NoError(t, g.Admit(ctx, OpEncryptField, 0))
}
