package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	assert.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret-key")

	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, _ := r.Context().Value("ownerID").(string)
		ownerKind, _ := r.Context().Value("ownerKind").(string)
		role, _ := r.Context().Value("role").(string)
		w.Header().Set("X-Owner-ID", ownerID)
		w.Header().Set("X-Owner-Kind", ownerKind)
		w.Header().Set("X-Role", role)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing authorization header", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet/balance", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
		r.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
		r.Header.Set("Authorization", "Bearer not.a.token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token propagates owner identity", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{
			"user_id":    1,
			"owner_id":   "owner-1",
			"owner_kind": "sole_tutor",
			"role":       "tutor",
			"exp":        time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "owner-1", w.Header().Get("X-Owner-ID"))
		assert.Equal(t, "sole_tutor", w.Header().Get("X-Owner-Kind"))
		assert.Equal(t, "tutor", w.Header().Get("X-Role"))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{
			"user_id":    1,
			"owner_id":   "owner-1",
			"owner_kind": "sole_tutor",
			"role":       "tutor",
			"exp":        time.Now().Add(-time.Hour).Unix(),
		})

		r := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminOnly(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret-key")

	handler := AuthMiddleware(AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("tutor role is rejected", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{
			"user_id":    1,
			"owner_id":   "owner-1",
			"owner_kind": "sole_tutor",
			"role":       "tutor",
			"exp":        time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest(http.MethodPost, "/admin/transfers", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin role passes", func(t *testing.T) {
		token := signTestToken(t, jwt.MapClaims{
			"user_id":    2,
			"owner_id":   "admin-owner",
			"owner_kind": "platform",
			"role":       "admin",
			"exp":        time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest(http.MethodPost, "/admin/transfers", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
