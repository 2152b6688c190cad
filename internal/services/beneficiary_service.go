package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/learnpay/backend/internal/models"
)

// BeneficiaryService manages next-of-kin records. A fund transfer can
// only reference a record an admin has verified, and each owner has at
// most one verified record at a time.
type BeneficiaryService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewBeneficiaryService(db *sql.DB) *BeneficiaryService {
	return &BeneficiaryService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// IsVerified reports whether an owner has a verified next of kin.
func (s *BeneficiaryService) IsVerified(owner models.OwnerRef) (bool, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT id FROM next_of_kin
		WHERE owner_id = $1 AND owner_kind = $2 AND is_verified = true
		LIMIT 1`, owner.ID, string(owner.Kind)).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SubmitBeneficiaryRequest is the payload to register a next of kin
type SubmitBeneficiaryRequest struct {
	FullName      string `json:"fullName" validate:"required,min=2,max=140"`
	Relationship  string `json:"relationship" validate:"required,max=50"`
	PhoneNumber   string `json:"phoneNumber" validate:"required,max=20"`
	Email         string `json:"email" validate:"omitempty,email"`
	BankName      string `json:"bankName" validate:"required,max=100"`
	BankCode      string `json:"bankCode" validate:"required,max=10"`
	AccountNumber string `json:"accountNumber" validate:"required,min=10,max=10"`
}

// SubmitBeneficiary registers a next of kin pending admin verification
// @Summary Submit next of kin
// @Description Registers the caller's next of kin; an admin must verify it before any fund transfer
// @Tags beneficiaries
// @Accept json
// @Produce json
// @Param request body SubmitBeneficiaryRequest true "Beneficiary data"
// @Success 201 {object} models.NextOfKin
// @Failure 400 {object} ErrorResponse
// @Router /beneficiaries [post]
func (s *BeneficiaryService) SubmitBeneficiary(w http.ResponseWriter, r *http.Request) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req SubmitBeneficiaryRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	kin := models.NextOfKin{
		ID:                  uuid.New().String(),
		OwnerID:             owner.ID,
		OwnerKind:           owner.Kind,
		FullName:            req.FullName,
		Relationship:        req.Relationship,
		PhoneNumber:         req.PhoneNumber,
		Email:               req.Email,
		BankName:            req.BankName,
		BankCode:            req.BankCode,
		AccountNumberMasked: maskAccountNumber(req.AccountNumber),
		Status:              models.KinStatusPendingVerification,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO next_of_kin (id, owner_id, owner_kind, full_name, relationship,
			phone_number, email, bank_name, bank_code, account_number_masked,
			status, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12, $12)`,
		kin.ID, kin.OwnerID, string(kin.OwnerKind), kin.FullName, kin.Relationship,
		kin.PhoneNumber, kin.Email, kin.BankName, kin.BankCode, kin.AccountNumberMasked,
		kin.Status, kin.CreatedAt)
	if err != nil {
		log.Printf("[BENEFICIARY] Submit failed for %s: %v", owner, err)
		SendErrorResponse(w, "Failed to register beneficiary", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(kin)
}

// VerifyBeneficiary marks a next of kin verified (admin only). Any other
// verified record for the same owner is deactivated in the same
// transaction so one owner never holds two verified beneficiaries.
// @Summary Verify next of kin
// @Tags beneficiaries
// @Produce json
// @Param beneficiaryId path string true "Beneficiary ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /admin/beneficiaries/{beneficiaryId}/verify [put]
func (s *BeneficiaryService) VerifyBeneficiary(w http.ResponseWriter, r *http.Request) {
	beneficiaryID := chi.URLParam(r, "beneficiaryId")
	adminID, _ := r.Context().Value("userID").(string)

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to verify beneficiary", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var ownerID, ownerKind string
	err = tx.QueryRow(`
		SELECT owner_id, owner_kind FROM next_of_kin WHERE id = $1
		FOR UPDATE`, beneficiaryID).Scan(&ownerID, &ownerKind)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Beneficiary not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[BENEFICIARY] Verify lookup failed for %s: %v", beneficiaryID, err)
		SendErrorResponse(w, "Failed to verify beneficiary", http.StatusInternalServerError, nil)
		return
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE next_of_kin SET is_verified = false, updated_at = $1
		WHERE owner_id = $2 AND owner_kind = $3 AND id <> $4 AND is_verified = true`,
		now, ownerID, ownerKind, beneficiaryID); err != nil {
		SendErrorResponse(w, "Failed to verify beneficiary", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.Exec(`
		UPDATE next_of_kin
		SET is_verified = true, status = $1, verified_by = $2, verified_at = $3, updated_at = $3
		WHERE id = $4`,
		models.KinStatusVerified, adminID, now, beneficiaryID); err != nil {
		SendErrorResponse(w, "Failed to verify beneficiary", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to verify beneficiary", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BENEFICIARY] %s verified by admin %s", beneficiaryID, adminID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"id":     beneficiaryID,
		"status": models.KinStatusVerified,
	})
}

func maskAccountNumber(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	masked := make([]byte, len(accountNumber))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(masked)-4:], accountNumber[len(accountNumber)-4:])
	return string(masked)
}
