package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/auth"
)

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", ExtractToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", ExtractToken(req))

	// Cookie wins over the header.
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
	assert.Equal(t, "cookie-token", ExtractToken(req))
}

func TestRequireAdmin(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret-key-for-unit-tests-only", time.Hour)

	var gotClaims *auth.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdmin(jwtService)(next)

	do := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("").Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("garbage").Code)
	})

	t.Run("non-admin role", func(t *testing.T) {
		token, _, err := jwtService.GenerateToken("bob", "viewer")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, do(token).Code)
	})

	t.Run("admin role", func(t *testing.T) {
		token, _, err := jwtService.GenerateToken("admin", "admin")
		require.NoError(t, err)
		rec := do(token)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "admin", gotClaims.Username)
	})
}
