package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/auth"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/config"
)

func newTestJWTService(t *testing.T, accessTTL time.Duration) *auth.JWTService {
	t.Helper()
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-for-jwt-middleware-tests",
		AccessTokenExpiration:  accessTTL,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "crechebooks-test",
	})
}

func issueTokenPair(t *testing.T, svc *auth.JWTService) (*auth.TokenPair, auth.GenerateTokenInput) {
	t.Helper()
	input := auth.GenerateTokenInput{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Email:    "admin@sunshine-creche.co.za",
		Role:     "admin",
	}
	pair, err := svc.GenerateTokenPair(input)
	require.NoError(t, err)
	return pair, input
}

func newJWTEngine(cfg JWTMiddlewareConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(JWTAuthMiddlewareWithConfig(cfg))
	engine.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   GetJWTUserID(c),
			"tenant_id": GetJWTTenantID(c),
		})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	engine.GET("/api/v1/accounting/callback", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return engine
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService(t, 15*time.Minute)

	t.Run("valid token passes and populates context", func(t *testing.T) {
		engine := newJWTEngine(DefaultJWTConfig(svc))
		pair, input := issueTokenPair(t, svc)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, input.UserID.String(), body["user_id"])
		assert.Equal(t, input.TenantID.String(), body["tenant_id"])
	})

	t.Run("missing authorization header", func(t *testing.T) {
		engine := newJWTEngine(DefaultJWTConfig(svc))

		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("non bearer authorization header", func(t *testing.T) {
		engine := newJWTEngine(DefaultJWTConfig(svc))

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		engine := newJWTEngine(DefaultJWTConfig(svc))

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("expired token rejected", func(t *testing.T) {
		expiredSvc := newTestJWTService(t, -1*time.Minute)
		pair, _ := issueTokenPair(t, expiredSvc)
		engine := newJWTEngine(DefaultJWTConfig(expiredSvc))

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
	})

	t.Run("refresh token rejected as access token", func(t *testing.T) {
		engine := newJWTEngine(DefaultJWTConfig(svc))
		pair, _ := issueTokenPair(t, svc)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN_TYPE")
	})

	t.Run("default skip paths bypass authentication", func(t *testing.T) {
		engine := newJWTEngine(DefaultJWTConfig(svc))

		for _, path := range []string{"/health", "/api/v1/accounting/callback"} {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, "path %s should skip auth", path)
		}
	})

	t.Run("skip path prefixes bypass authentication", func(t *testing.T) {
		cfg := DefaultJWTConfig(svc)
		cfg.SkipPathPrefixes = []string{"/api/v1/accounting"}
		engine := newJWTEngine(cfg)

		req := httptest.NewRequest("GET", "/api/v1/accounting/callback", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetJWTClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("returns claims set by middleware", func(t *testing.T) {
		svc := newTestJWTService(t, 15*time.Minute)
		pair, input := issueTokenPair(t, svc)

		engine := gin.New()
		engine.Use(JWTAuthMiddleware(svc))
		var claims *auth.Claims
		engine.GET("/claims", func(c *gin.Context) {
			claims = GetJWTClaims(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/claims", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, claims)
		assert.Equal(t, input.Email, claims.Email)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, auth.TokenTypeAccess, claims.TokenType)
	})

	t.Run("returns nil without middleware", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Nil(t, GetJWTClaims(c))
		assert.Empty(t, GetJWTUserID(c))
		assert.Empty(t, GetJWTTenantID(c))
	})
}
