package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kilnworks/autodev/internal/common/config"
)

const bearerPrefix = "Bearer "

// tokenFromRequest extracts a caller-supplied token from the Authorization
// bearer header, falling back to a "token" query parameter — the same
// either-or the subscribe handshake accepts (spec §4.7/§4.8).
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimPrefix(h, bearerPrefix)
	}
	return c.Query("token")
}

// requireAuth rejects requests that don't carry the configured server
// token. When no token is configured the API is unauthenticated, per
// spec §4.8.
func requireAuth(auth config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.Token == "" {
			c.Next()
			return
		}
		if tokenFromRequest(c) != auth.Token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "missing or invalid server token",
				},
			})
			return
		}
		c.Next()
	}
}
