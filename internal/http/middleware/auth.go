package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// AuthMW guards the admin API with JWT authentication and Casbin
// authorization.
type AuthMW struct {
	tokens   domain.TokenService
	policies domain.PolicyService
}

// NewAuthMW creates the middleware.
func NewAuthMW(tokens domain.TokenService, policies domain.PolicyService) *AuthMW {
	return &AuthMW{tokens: tokens, policies: policies}
}

// RequireAuth validates the Bearer token and stores its claims in the
// request context.
func (m *AuthMW) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := m.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("subject", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireAccess enforces the Casbin policy for the authenticated role
// against the request path and method.
func (m *AuthMW) RequireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no role"})
			return
		}
		ok, err := m.policies.CheckPermission(role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization check failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}
