package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/learnpay/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBeneficiaryService_IsVerified(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBeneficiaryService(db)
	owner := models.OwnerRef{Kind: models.OwnerSoleTutor, ID: "tutor-1"}

	t.Run("verified record exists", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM next_of_kin").
			WithArgs("tutor-1", "sole_tutor").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("kin-1"))

		verified, err := service.IsVerified(owner)
		assert.NoError(t, err)
		assert.True(t, verified)
	})

	t.Run("no verified record", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM next_of_kin").
			WithArgs("tutor-1", "sole_tutor").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		verified, err := service.IsVerified(owner)
		assert.NoError(t, err)
		assert.False(t, verified)
	})
}

func TestBeneficiaryService_SubmitBeneficiary(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBeneficiaryService(db)

	ownerCtx := func(r *http.Request) *http.Request {
		ctx := context.WithValue(r.Context(), "ownerID", "tutor-1")
		ctx = context.WithValue(ctx, "ownerKind", "sole_tutor")
		return r.WithContext(ctx)
	}

	t.Run("submits pending record with masked account number", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO next_of_kin").
			WillReturnResult(sqlmock.NewResult(1, 1))

		body, _ := json.Marshal(SubmitBeneficiaryRequest{
			FullName:      "Chiamaka Obi",
			Relationship:  "sister",
			PhoneNumber:   "+2348012345678",
			BankName:      "Access Bank",
			BankCode:      "044",
			AccountNumber: "0123456789",
		})

		r := ownerCtx(httptest.NewRequest(http.MethodPost, "/beneficiaries", bytes.NewReader(body)))
		w := httptest.NewRecorder()
		service.SubmitBeneficiary(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)

		var kin models.NextOfKin
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &kin))
		assert.Equal(t, models.KinStatusPendingVerification, kin.Status)
		assert.Equal(t, "******6789", kin.AccountNumberMasked)
		assert.False(t, kin.IsVerified)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		body, _ := json.Marshal(SubmitBeneficiaryRequest{
			FullName: "X", // too short, everything else missing
		})

		r := ownerCtx(httptest.NewRequest(http.MethodPost, "/beneficiaries", bytes.NewReader(body)))
		w := httptest.NewRecorder()
		service.SubmitBeneficiary(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBeneficiaryService_VerifyBeneficiary(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBeneficiaryService(db)

	adminRequest := func(beneficiaryID string) *http.Request {
		r := httptest.NewRequest(http.MethodPut, "/admin/beneficiaries/"+beneficiaryID+"/verify", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("beneficiaryId", beneficiaryID)
		ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
		ctx = context.WithValue(ctx, "userID", "admin-1")
		return r.WithContext(ctx)
	}

	t.Run("verifies and deactivates any other verified record", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT owner_id, owner_kind FROM next_of_kin").
			WithArgs("kin-2").
			WillReturnRows(sqlmock.NewRows([]string{"owner_id", "owner_kind"}).
				AddRow("tutor-1", "sole_tutor"))

		mock.ExpectExec("UPDATE next_of_kin SET is_verified = false").
			WithArgs(sqlmock.AnyArg(), "tutor-1", "sole_tutor", "kin-2").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE next_of_kin").
			WithArgs(models.KinStatusVerified, "admin-1", sqlmock.AnyArg(), "kin-2").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		w := httptest.NewRecorder()
		service.VerifyBeneficiary(w, adminRequest("kin-2"))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.KinStatusVerified, resp["status"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown beneficiary returns 404", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT owner_id, owner_kind FROM next_of_kin").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"owner_id", "owner_kind"}))

		mock.ExpectRollback()

		w := httptest.NewRecorder()
		service.VerifyBeneficiary(w, adminRequest("missing"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMaskAccountNumber(t *testing.T) {
	assert.Equal(t, "******6789", maskAccountNumber("0123456789"))
	assert.Equal(t, "1234", maskAccountNumber("1234"))
	assert.Equal(t, "12", maskAccountNumber("12"))
}
