package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stemsi/testhub-backend/internal/response"
)

// RevocationChecker reports whether a token ID has been logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RejectRevokedTokens checks the JWT's JTI against the logout blacklist in Redis.
// A Redis failure lets the request through; the token signature was already verified.
func RejectRevokedTokens(checker RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		revoked, err := checker.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			log.Warn().Err(err).Str("jti", claims.ID).Msg("Revocation check failed")
			c.Next()
			return
		}
		if revoked {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRevoked)
			return
		}

		c.Next()
	}
}
