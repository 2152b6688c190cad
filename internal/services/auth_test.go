package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setupAuthTestConfig() {
	viper.Set("jwt.secret_key", "test-secret-key")
	viper.Set("jwt.expiry_hours", 24)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

func TestAuthService_Register(t *testing.T) {
	setupAuthTestConfig()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	t.Run("successful registration", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		body, _ := json.Marshal(RegisterRequest{
			Email:     "Ada.Obi@Example.com",
			Password:  "password123",
			FirstName: "Ada",
			LastName:  "Obi",
			OwnerKind: "sole_tutor",
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "ada.obi@example.com", resp.User.Email)
		assert.Equal(t, "tutor", resp.User.Role)
		assert.NotEmpty(t, resp.User.OwnerID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email returns conflict", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(errors.New("pq: duplicate key value violates unique constraint"))

		body, _ := json.Marshal(RegisterRequest{
			Email:     "ada.obi@example.com",
			Password:  "password123",
			FirstName: "Ada",
			LastName:  "Obi",
			OwnerKind: "sole_tutor",
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid owner kind", func(t *testing.T) {
		body, _ := json.Marshal(RegisterRequest{
			Email:     "ada.obi@example.com",
			Password:  "password123",
			FirstName: "Ada",
			LastName:  "Obi",
			OwnerKind: "platform", // not registrable
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/register",
			bytes.NewReader([]byte(`{"email":"a@b.com","password":"password123","isAdmin":true}`)))
		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	setupAuthTestConfig()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	userColumns := []string{"id", "email", "first_name", "last_name", "password", "owner_id", "owner_kind", "role"}

	t.Run("successful login", func(t *testing.T) {
		hashed, err := hashPassword("password123")
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, email, first_name, last_name, password").
			WithArgs("ada.obi@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(1, "ada.obi@example.com", "Ada", "Obi", hashed, "owner-1", "sole_tutor", "tutor"))

		body, _ := json.Marshal(LoginRequest{Email: "ada.obi@example.com", Password: "password123"})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)

		// Token must carry the owner identity for the middleware
		token, err := jwt.Parse(resp.Token, func(token *jwt.Token) (interface{}, error) {
			return []byte("test-secret-key"), nil
		})
		assert.NoError(t, err)
		claims := token.Claims.(jwt.MapClaims)
		assert.Equal(t, "owner-1", claims["owner_id"])
		assert.Equal(t, "sole_tutor", claims["owner_kind"])
		assert.Equal(t, "tutor", claims["role"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		hashed, err := hashPassword("password123")
		assert.NoError(t, err)

		mock.ExpectQuery("SELECT id, email, first_name, last_name, password").
			WithArgs("ada.obi@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(1, "ada.obi@example.com", "Ada", "Obi", hashed, "owner-1", "sole_tutor", "tutor"))

		body, _ := json.Marshal(LoginRequest{Email: "ada.obi@example.com", Password: "wrong-password"})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown email", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, password").
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns))

		body, _ := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "password123"})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPasswordHashing(t *testing.T) {
	setupAuthTestConfig()

	t.Run("hash and verify roundtrip", func(t *testing.T) {
		hashed, err := hashPassword("s3cret-pass")
		assert.NoError(t, err)
		assert.NotEqual(t, "s3cret-pass", hashed)

		assert.True(t, verifyPassword("s3cret-pass", hashed))
		assert.False(t, verifyPassword("wrong-pass", hashed))
	})

	t.Run("same password hashes differently per salt", func(t *testing.T) {
		h1, err := hashPassword("s3cret-pass")
		assert.NoError(t, err)
		h2, err := hashPassword("s3cret-pass")
		assert.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("malformed hash never verifies", func(t *testing.T) {
		assert.False(t, verifyPassword("anything", "not-a-valid-hash"))
		assert.False(t, verifyPassword("anything", "a$b$c"))
	})
}
