package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/learnpay/backend/internal/audit"
	"github.com/learnpay/backend/internal/models"
	"github.com/learnpay/backend/internal/notify"
)

// TransferService runs the fund-transfer state machine:
// pending -> processing -> completed | failed | cancelled.
// Initiation only snapshots balances; the wallet is debited at
// completion, inside one transaction with the status transition.
type TransferService struct {
	db        *sql.DB
	wallet    *WalletService
	payout    *PayoutMessageService
	notifier  notify.Notifier
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewTransferService(db *sql.DB, wallet *WalletService, payout *PayoutMessageService, notifier notify.Notifier) *TransferService {
	return &TransferService{
		db:        db,
		wallet:    wallet,
		payout:    payout,
		notifier:  notifier,
		audit:     audit.NewLogger(),
		validator: NewValidationHelper(),
	}
}

// Initiate validates preconditions and snapshots the owner's balances.
// It takes no wallet lock and performs no balance mutation.
func (s *TransferService) Initiate(owner models.OwnerRef, reason, method, adminID string) (*models.FundTransfer, error) {
	var beneficiaryID string
	err := s.db.QueryRow(`
		SELECT id FROM next_of_kin
		WHERE owner_id = $1 AND owner_kind = $2 AND is_verified = true
		LIMIT 1`, owner.ID, string(owner.Kind)).Scan(&beneficiaryID)
	if err == sql.ErrNoRows {
		return nil, ErrNoVerifiedBeneficiary
	}
	if err != nil {
		return nil, err
	}

	balances, err := s.wallet.Balances(owner)
	if err != nil {
		return nil, err
	}

	snapshot := models.BalanceSnapshot{}
	var total int64
	for _, b := range balances {
		if b.Amount > 0 {
			snapshot[b.Currency] = b.Amount
			total += b.Amount
		}
	}
	if total <= 0 {
		return nil, ErrNoFundsToTransfer
	}

	transfer := &models.FundTransfer{
		ID:             uuid.New().String(),
		OwnerID:        owner.ID,
		OwnerKind:      owner.Kind,
		BeneficiaryID:  beneficiaryID,
		Snapshot:       snapshot,
		TransferMethod: method,
		Reason:         reason,
		Status:         models.TransferStatusPending,
		InitiatedBy:    adminID,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO fund_transfers (id, owner_id, owner_kind, beneficiary_id, snapshot,
			transfer_method, reason, status, initiated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		transfer.ID, transfer.OwnerID, string(transfer.OwnerKind), transfer.BeneficiaryID,
		transfer.Snapshot, transfer.TransferMethod, transfer.Reason, transfer.Status,
		transfer.InitiatedBy, transfer.CreatedAt, transfer.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.audit.LogTransfer(transfer.ID, owner.String(), transfer.Status, snapshot)
	return transfer, nil
}

// Complete debits every snapshotted currency and marks the transfer
// completed, all in one transaction. Each debit uses the transfer id as
// its reference, so a retry after a crash replays instead of
// double-debiting. Already-terminal transfers are rejected.
func (s *TransferService) Complete(transferID, transferRef string) (*models.FundTransfer, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	transfer, err := s.lockTransfer(tx, transferID)
	if err != nil {
		return nil, err
	}

	if transfer.Status != models.TransferStatusPending && transfer.Status != models.TransferStatusProcessing {
		return nil, fmt.Errorf("%w: cannot complete transfer in status %q", ErrInvalidStateTransition, transfer.Status)
	}

	owner := models.OwnerRef{Kind: transfer.OwnerKind, ID: transfer.OwnerID}
	for currency, amount := range transfer.Snapshot {
		if amount <= 0 {
			continue
		}
		if _, err := s.wallet.DebitTx(tx, DebitParams{
			Owner:     owner,
			Amount:    amount,
			Currency:  currency,
			Reference: transfer.ID,
			Metadata:  models.Metadata{"fund_transfer": transfer.ID, "transfer_ref": transferRef},
		}); err != nil {
			s.audit.LogError(transfer.ID, owner.String(), err)
			return nil, err
		}
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE fund_transfers
		SET status = $1, transfer_ref = $2, completed_at = $3, updated_at = $3
		WHERE id = $4`,
		models.TransferStatusCompleted, transferRef, now, transfer.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	transfer.Status = models.TransferStatusCompleted
	transfer.TransferRef = transferRef
	transfer.CompletedAt = &now
	transfer.UpdatedAt = now

	s.audit.LogTransfer(transfer.ID, owner.String(), transfer.Status, transfer.Snapshot)

	// Payout messaging and notification happen after commit and never
	// affect the financial outcome.
	if s.payout != nil {
		if _, err := s.payout.SendPayoutInstruction(transfer); err != nil {
			log.Printf("[TRANSFER] Payout instruction failed for %s: %v", transfer.ID, err)
		}
	}
	if s.notifier != nil {
		go func() {
			if err := s.notifier.Notify(transfer.OwnerID, notify.TemplateTransferCompleted, map[string]any{
				"transfer_id": transfer.ID,
				"snapshot":    transfer.Snapshot,
			}); err != nil {
				log.Printf("[TRANSFER] Notification failed for %s: %v", transfer.ID, err)
			}
		}()
	}

	return transfer, nil
}

// Cancel moves a pending/processing transfer to cancelled. The wallet is
// never touched.
func (s *TransferService) Cancel(transferID, reason string) (*models.FundTransfer, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	transfer, err := s.lockTransfer(tx, transferID)
	if err != nil {
		return nil, err
	}

	if transfer.Status != models.TransferStatusPending && transfer.Status != models.TransferStatusProcessing {
		return nil, fmt.Errorf("%w: cannot cancel transfer in status %q", ErrInvalidStateTransition, transfer.Status)
	}

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE fund_transfers
		SET status = $1, failure_reason = $2, updated_at = $3
		WHERE id = $4`,
		models.TransferStatusCancelled, reason, now, transfer.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	transfer.Status = models.TransferStatusCancelled
	transfer.FailureReason = reason
	transfer.UpdatedAt = now

	s.audit.LogTransfer(transfer.ID, models.OwnerRef{Kind: transfer.OwnerKind, ID: transfer.OwnerID}.String(),
		transfer.Status, map[string]string{"reason": reason})
	return transfer, nil
}

// Get loads one transfer by id.
func (s *TransferService) Get(transferID string) (*models.FundTransfer, error) {
	return s.scanTransfer(s.db.QueryRow(`
		SELECT id, owner_id, owner_kind, beneficiary_id, snapshot, transfer_method,
			reason, status, initiated_by, transfer_ref, failure_reason, completed_at,
			created_at, updated_at
		FROM fund_transfers WHERE id = $1`, transferID))
}

func (s *TransferService) lockTransfer(tx *sql.Tx, transferID string) (*models.FundTransfer, error) {
	return s.scanTransfer(tx.QueryRow(`
		SELECT id, owner_id, owner_kind, beneficiary_id, snapshot, transfer_method,
			reason, status, initiated_by, transfer_ref, failure_reason, completed_at,
			created_at, updated_at
		FROM fund_transfers WHERE id = $1
		FOR UPDATE`, transferID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TransferService) scanTransfer(row rowScanner) (*models.FundTransfer, error) {
	var t models.FundTransfer
	var transferRef, failureReason sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.OwnerID, &t.OwnerKind, &t.BeneficiaryID, &t.Snapshot,
		&t.TransferMethod, &t.Reason, &t.Status, &t.InitiatedBy, &transferRef,
		&failureReason, &completedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	t.TransferRef = transferRef.String
	t.FailureReason = failureReason.String
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// InitiateTransferRequest is the admin payload to open a fund transfer
type InitiateTransferRequest struct {
	Owner  models.OwnerRef `json:"owner" validate:"required"`
	Reason string          `json:"reason" validate:"required,max=200"`
	Method string          `json:"method" validate:"required,oneof=bank_transfer mobile_money"`
}

// InitiateTransfer opens a fund transfer for an owner
// @Summary Initiate a fund transfer
// @Description Snapshots the owner's balances for payout to their verified next of kin
// @Tags transfers
// @Accept json
// @Produce json
// @Param request body InitiateTransferRequest true "Transfer request"
// @Success 201 {object} models.FundTransfer
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/transfers [post]
func (s *TransferService) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req InitiateTransferRequest
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
	if !req.Owner.Valid() || req.Owner.Kind == models.OwnerPlatform {
		SendErrorResponse(w, "Invalid transfer owner", http.StatusBadRequest, nil)
		return
	}

	transfer, err := s.Initiate(req.Owner, req.Reason, req.Method, adminID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoVerifiedBeneficiary), errors.Is(err, ErrNoFundsToTransfer):
			SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
		default:
			log.Printf("[TRANSFER] Initiate failed for %s: %v", req.Owner, err)
			SendErrorResponse(w, "Failed to initiate transfer", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(transfer)
}

// CompleteTransferRequest carries the external payout reference
type CompleteTransferRequest struct {
	TransferReference string `json:"transferReference" validate:"required,max=128"`
}

// CompleteTransfer executes the payout debits for a transfer
// @Summary Complete a fund transfer
// @Description Debits the snapshotted balances and marks the transfer completed; safe to retry
// @Tags transfers
// @Accept json
// @Produce json
// @Param transferId path string true "Transfer ID"
// @Param request body CompleteTransferRequest true "Completion data"
// @Success 200 {object} models.FundTransfer
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/transfers/{transferId}/complete [put]
func (s *TransferService) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "transferId")

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CompleteTransferRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transfer, err := s.Complete(transferID, req.TransferReference)
	if err != nil {
		s.writeTransferError(w, transferID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transfer)
}

// CancelTransferRequest carries the cancellation reason
type CancelTransferRequest struct {
	Reason string `json:"reason" validate:"required,max=200"`
}

// CancelTransfer cancels a pending or processing transfer
// @Summary Cancel a fund transfer
// @Description Moves a pending/processing transfer to cancelled without touching the wallet
// @Tags transfers
// @Accept json
// @Produce json
// @Param transferId path string true "Transfer ID"
// @Param request body CancelTransferRequest true "Cancellation data"
// @Success 200 {object} models.FundTransfer
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/transfers/{transferId}/cancel [put]
func (s *TransferService) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "transferId")

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CancelTransferRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transfer, err := s.Cancel(transferID, req.Reason)
	if err != nil {
		s.writeTransferError(w, transferID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transfer)
}

// GetTransfer returns one transfer
// @Summary Get a fund transfer
// @Tags transfers
// @Produce json
// @Param transferId path string true "Transfer ID"
// @Success 200 {object} models.FundTransfer
// @Failure 404 {object} ErrorResponse
// @Router /admin/transfers/{transferId} [get]
func (s *TransferService) GetTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := s.Get(chi.URLParam(r, "transferId"))
	if err != nil {
		s.writeTransferError(w, chi.URLParam(r, "transferId"), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transfer)
}

func (s *TransferService) writeTransferError(w http.ResponseWriter, transferID string, err error) {
	switch {
	case errors.Is(err, ErrTransferNotFound):
		SendErrorResponse(w, "Fund transfer not found", http.StatusNotFound, nil)
	case errors.Is(err, ErrInvalidStateTransition):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, ErrInsufficientFunds):
		SendErrorResponse(w, "Wallet balance no longer covers the snapshot", http.StatusConflict, nil)
	default:
		log.Printf("[TRANSFER] Operation failed for %s: %v", transferID, err)
		SendErrorResponse(w, "Transfer operation failed", http.StatusInternalServerError, nil)
	}
}
