package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/accounthub/auth-service/internal/adapters/transport/http/dto"
	"github.com/accounthub/auth-service/internal/domain/auth/model"
)

// UserKey is the gin context key the authenticated user is stored under.
const UserKey = "authUser"

type TokenValidator interface {
	Validate(ctx context.Context, d dto.ValidateDTO) (model.User, error)
}

// RequireAuth rejects requests without a valid bearer access token and
// stores the resolved user in the context for downstream handlers.
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		user, err := v.Validate(c.Request.Context(), dto.ValidateDTO{AccessToken: token})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(UserKey, user)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header,
// or returns "" when the header is missing or malformed.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
