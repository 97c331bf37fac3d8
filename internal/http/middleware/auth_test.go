package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jomaguevco/chatdex-sub001/domain"
	"github.com/jomaguevco/chatdex-sub001/internal/mocks"
	"github.com/jomaguevco/chatdex-sub001/internal/services"
)

func setupRouter(mw *AuthMW) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/ping", mw.RequireAuth(), mw.RequireAccess(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": c.GetString("role")})
	})
	return r
}

func validTokens() domain.TokenService {
	return &mocks.MockTokenService{
		ValidateFunc: func(token string) (*domain.TokenClaims, error) {
			if token == "good" {
				return &domain.TokenClaims{Subject: "operator", Role: "role_admin"}, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	}
}

func allowAdminPolicies() domain.PolicyService {
	return services.NewPolicyServiceWithEnforcer(&mocks.MockCasbinEnforcer{
		EnforceFunc: func(rvals ...interface{}) (bool, error) {
			return rvals[0] == "role_admin", nil
		},
	})
}

func TestRequireAuthMissingToken(t *testing.T) {
	r := setupRouter(NewAuthMW(validTokens(), allowAdminPolicies()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthBadToken(t *testing.T) {
	r := setupRouter(NewAuthMW(validTokens(), allowAdminPolicies()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAccessAllowed(t *testing.T) {
	r := setupRouter(NewAuthMW(validTokens(), allowAdminPolicies()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "role_admin")
}

func TestRequireAccessDenied(t *testing.T) {
	tokens := &mocks.MockTokenService{
		ValidateFunc: func(token string) (*domain.TokenClaims, error) {
			return &domain.TokenClaims{Subject: "viewer", Role: "role_viewer"}, nil
		},
	}
	r := setupRouter(NewAuthMW(tokens, allowAdminPolicies()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
