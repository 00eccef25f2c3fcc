package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/vaultcore/internal/errors"
	"github.com/allisson/vaultcore/internal/gate"
	"github.com/allisson/vaultcore/internal/httputil"
)

const securityContextKey = "vault_security_context"

// SecurityContextMiddleware builds a gate.SecurityContext from request
// headers and stores it for handlers to retrieve, playing the same role
// the reference application's AuthenticationMiddleware plays for
// token-authenticated clients: populate the identity the downstream gate
// checks trust, without itself authenticating anything. There is no
// client/token store in this service; a reverse proxy or gateway in front
// of it is expected to have already authenticated the caller and to set
// these headers accordingly.
//
// Headers:
//   - X-User-Id (required)
//   - X-Session-Id
//   - X-Authenticated-At (RFC3339; defaults to the zero time, which the
//     gate's freshness check always rejects as stale)
//   - X-Permissions (comma-separated)
func SecurityContextMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		var authenticatedAt time.Time
		if raw := c.GetHeader("X-Authenticated-At"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httputil.HandleBadRequestGin(c, apperrors.Wrap(err, "invalid X-Authenticated-At"), logger)
				c.Abort()
				return
			}
			authenticatedAt = parsed
		}

		var permissions []string
		if raw := c.GetHeader("X-Permissions"); raw != "" {
			for _, p := range strings.Split(raw, ",") {
				if p = strings.TrimSpace(p); p != "" {
					permissions = append(permissions, p)
				}
			}
		}

		c.Set(securityContextKey, gate.SecurityContext{
			UserID:          userID,
			SessionID:       c.GetHeader("X-Session-Id"),
			AuthenticatedAt: authenticatedAt,
			Permissions:     permissions,
		})
		c.Next()
	}
}

// securityContextFromGin retrieves the SecurityContext SecurityContextMiddleware
// stored, or a zero-value context if the middleware was skipped.
func securityContextFromGin(c *gin.Context) gate.SecurityContext {
	v, ok := c.Get(securityContextKey)
	if !ok {
		return gate.SecurityContext{}
	}
	return v.(gate.SecurityContext)
}
