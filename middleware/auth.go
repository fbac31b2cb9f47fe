package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/videotube/auth-service/internal/token"
)

// AccessTokenCookie is the cookie clients receive on login/refresh.
const AccessTokenCookie = "accessToken"

const identityKey = "authUserID"

// RequireAuth is the access guard: it extracts an access token from the
// request, verifies it, and attaches the authenticated user ID to the
// context. Validation is pure signature+expiry checking — no storage lookup
// on this path.
//
// Every failure collapses to the same 401 response. Distinguishing a bad
// signature from an expired token would hand a probe oracle to anyone
// guessing tokens, so the richer error detail stays inside the core.
func RequireAuth(tokens *token.Maker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := AccessTokenFromRequest(c)
		if raw == "" {
			unauthenticated(c)
			return
		}

		userID, err := tokens.VerifyAccess(raw)
		if err != nil {
			unauthenticated(c)
			return
		}

		c.Set(identityKey, userID)
		c.Next()
	}
}

// AuthenticatedUserID returns the user ID attached by RequireAuth.
func AuthenticatedUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

// AccessTokenFromRequest extracts a bare access token string from the
// accessToken cookie or, failing that, an Authorization: Bearer header.
func AccessTokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimSpace(authHeader[len(bearerPrefix):])
	}

	return ""
}

func unauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
}
