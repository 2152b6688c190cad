package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/learnpay/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

type TestStruct struct {
	Name  string `validate:"required,min=2"`
	Email string `validate:"required,email"`
	Age   int    `validate:"required,gte=18"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := TestStruct{
			Name:  "John Doe",
			Email: "john@example.com",
			Age:   25,
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("invalid struct - missing required fields", func(t *testing.T) {
		invalid := TestStruct{
			Name: "J", // Too short
			// Email missing
			Age: 16, // Too young
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3) // Name, Email, Age errors
	})

	t.Run("invalid email format", func(t *testing.T) {
		invalid := TestStruct{
			Name:  "John Doe",
			Email: "invalid-email",
			Age:   25,
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Email", validationErrors[0].Field())
		assert.Equal(t, "email", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		
		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		invalid := TestStruct{
			Name:  "J",
			Email: "invalid-email",
			Age:   16,
		}

		validationErr := vh.ValidateStruct(&invalid)
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.NotNil(t, response.Details)
		assert.Contains(t, response.Details, "Name")
		assert.Contains(t, response.Details, "Email")
		assert.Contains(t, response.Details, "Age")
	})

	t.Run("bad request error", func(t *testing.T) {
		w := httptest.NewRecorder()
		
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		
		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Invalid request", response.Error)
	})

	t.Run("unauthorized error", func(t *testing.T) {
		w := httptest.NewRecorder()
		
		SendErrorResponse(w, "Unauthorized access", http.StatusUnauthorized, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		
		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Unauthorized access", response.Error)
	})
}

func TestNewValidationHelper(t *testing.T) {
	vh := NewValidationHelper()
	assert.NotNil(t, vh)
	assert.NotNil(t, vh.validator)
}

func TestErrorResponse_Structure(t *testing.T) {
	t.Run("error response structure", func(t *testing.T) {
		errorResp := ErrorResponse{
			Error: "Test error",
			Details: map[string]string{
				"field1": "validation error 1",
				"field2": "validation error 2",
			},
		}

		jsonData, err := json.Marshal(errorResp)
		assert.NoError(t, err)

		var unmarshaled ErrorResponse
		err = json.Unmarshal(jsonData, &unmarshaled)
		assert.NoError(t, err)
		assert.Equal(t, "Test error", unmarshaled.Error)
		assert.Equal(t, "validation error 1", unmarshaled.Details["field1"])
		assert.Equal(t, "validation error 2", unmarshaled.Details["field2"])
	})

	t.Run("error response without details", func(t *testing.T) {
		errorResp := ErrorResponse{
			Error: "Simple error",
		}

		jsonData, err := json.Marshal(errorResp)
		assert.NoError(t, err)

		var unmarshaled ErrorResponse
		err = json.Unmarshal(jsonData, &unmarshaled)
		assert.NoError(t, err)
		assert.Equal(t, "Simple error", unmarshaled.Error)
		assert.Nil(t, unmarshaled.Details)
	})
}

func TestOwnerFromRequest(t *testing.T) {
	t.Run("resolves owner from context", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
		ctx := context.WithValue(r.Context(), "ownerID", "tutor-1")
		ctx = context.WithValue(ctx, "ownerKind", "sole_tutor")

		owner, err := OwnerFromRequest(r.WithContext(ctx))
		assert.NoError(t, err)
		assert.Equal(t, models.OwnerRef{Kind: models.OwnerSoleTutor, ID: "tutor-1"}, owner)
	})

	t.Run("admin may target another owner via query params", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance?owner_id=org-9&owner_kind=organization", nil)
		ctx := context.WithValue(r.Context(), "ownerID", "admin-1")
		ctx = context.WithValue(ctx, "ownerKind", "sole_tutor")
		ctx = context.WithValue(ctx, "role", "admin")

		owner, err := OwnerFromRequest(r.WithContext(ctx))
		assert.NoError(t, err)
		assert.Equal(t, models.OwnerRef{Kind: models.OwnerOrganization, ID: "org-9"}, owner)
	})

	t.Run("non-admin override is ignored", func(t *testing.T) {
		// A tutor pointing the query params at another owner still gets
		// their own wallet, never the victim's.
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance?owner_id=victim&owner_kind=sole_tutor", nil)
		ctx := context.WithValue(r.Context(), "ownerID", "tutor-1")
		ctx = context.WithValue(ctx, "ownerKind", "sole_tutor")
		ctx = context.WithValue(ctx, "role", "tutor")

		owner, err := OwnerFromRequest(r.WithContext(ctx))
		assert.NoError(t, err)
		assert.Equal(t, models.OwnerRef{Kind: models.OwnerSoleTutor, ID: "tutor-1"}, owner)
	})

	t.Run("missing role is treated as non-admin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance?owner_id=victim&owner_kind=sole_tutor", nil)
		ctx := context.WithValue(r.Context(), "ownerID", "tutor-1")
		ctx = context.WithValue(ctx, "ownerKind", "sole_tutor")

		owner, err := OwnerFromRequest(r.WithContext(ctx))
		assert.NoError(t, err)
		assert.Equal(t, models.OwnerRef{Kind: models.OwnerSoleTutor, ID: "tutor-1"}, owner)
	})

	t.Run("rejects invalid owner kind in admin override", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance?owner_id=x&owner_kind=bogus", nil)
		ctx := context.WithValue(r.Context(), "role", "admin")

		_, err := OwnerFromRequest(r.WithContext(ctx))
		assert.Error(t, err)
	})

	t.Run("fails when no owner is resolvable", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)

		_, err := OwnerFromRequest(r)
		assert.Error(t, err)
	})
}