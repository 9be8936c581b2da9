package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ai-evaluator/testtaker/internal/identity"
	"github.com/ai-evaluator/testtaker/internal/response"
)

const (
	// ContextKeyIdentity is the Gin context key for the resolved student.
	ContextKeyIdentity = "identity"
)

// RequireStudentWSAuth resolves the token of a WebSocket upgrade request into
// a student identity. The Authorization bearer header is read first; browsers
// cannot set headers on WebSocket handshakes, so ?token=... is the fallback.
func RequireStudentWSAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		id, err := identity.FromToken(tokenStr, secret)
		switch {
		case errors.Is(err, identity.ErrTokenExpired):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			return
		case err != nil:
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if err := id.RequireStudent(); err != nil {
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
			return
		}

		c.Set(ContextKeyIdentity, id)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}

// GetIdentity retrieves the student identity from the Gin context.
func GetIdentity(c *gin.Context) (identity.Identity, bool) {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return identity.Identity{}, false
	}
	id, ok := val.(identity.Identity)
	return id, ok
}
