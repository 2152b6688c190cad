package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/learnpay/backend/internal/audit"
	"github.com/learnpay/backend/internal/gateway"
	"github.com/learnpay/backend/internal/models"
	"github.com/learnpay/backend/internal/notify"
)

// amountTolerance is how far a caller-claimed amount may differ from the
// gateway-confirmed amount, in minor units (0.01 of a major unit).
const amountTolerance = 1

// FundingService reconciles wallet funding against the payment gateway.
// The gateway call always happens before any wallet transaction is
// opened, so a hanging gateway can never block other wallet operations.
type FundingService struct {
	db        *sql.DB
	redis     *redis.Client
	wallet    *WalletService
	verifier  gateway.Verifier
	notifier  notify.Notifier
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewFundingService(db *sql.DB, redisClient *redis.Client, wallet *WalletService, verifier gateway.Verifier, notifier notify.Notifier) *FundingService {
	return &FundingService{
		db:        db,
		redis:     redisClient,
		wallet:    wallet,
		verifier:  verifier,
		notifier:  notifier,
		audit:     audit.NewLogger(),
		validator: NewValidationHelper(),
	}
}

// WalletFundingResult is what a successful reconciliation returns
type WalletFundingResult struct {
	Entry      *models.LedgerEntry `json:"entry"`
	NewBalance int64               `json:"newBalance"`
}

// ReconcileFunding verifies a gateway transaction and credits the wallet
// exactly once. Duplicate callbacks, retries and double-clicks all
// collapse onto the original entry via the gateway transaction id.
func (s *FundingService) ReconcileFunding(ctx context.Context, owner models.OwnerRef, gatewayRef string, claimedAmount *int64) (*WalletFundingResult, error) {
	result, err := s.verifiedResult(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}

	if claimedAmount != nil {
		diff := *claimedAmount - result.Amount
		if diff < -amountTolerance || diff > amountTolerance {
			return nil, &AmountMismatchError{
				Reference: gatewayRef,
				Claimed:   *claimedAmount,
				Confirmed: result.Amount,
			}
		}
	}

	// The idempotency key comes from the gateway's own transaction id;
	// caller-supplied references are not trusted to be unique.
	entry, err := s.wallet.Credit(CreditParams{
		Owner:          owner,
		Amount:         result.Amount,
		Currency:       result.Currency,
		Reference:      gatewayRef,
		IdempotencyKey: fmt.Sprintf("gw:%s", result.GatewayTransactionID),
		Metadata:       models.Metadata{"gateway_response": json.RawMessage(result.RawPayload)},
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go func() {
			if err := s.notifier.Notify(owner.String(), notify.TemplateWalletFunded, map[string]any{
				"amount":    entry.Amount,
				"currency":  entry.Currency,
				"reference": gatewayRef,
			}); err != nil {
				log.Printf("[FUNDING] Failed to notify %s of wallet funding: %v", owner, err)
			}
		}()
	}

	return &WalletFundingResult{Entry: entry, NewBalance: entry.BalanceAfter}, nil
}

// verifiedResult returns the gateway confirmation for a reference,
// consulting a short-lived redis cache first so a duplicate webhook does
// not hit the gateway again. Correctness never depends on the cache; the
// ledger's idempotency key is the real guard.
func (s *FundingService) verifiedResult(ctx context.Context, gatewayRef string) (*gateway.VerificationResult, error) {
	cacheKey := fmt.Sprintf("funding:verified:%s", gatewayRef)

	if s.redis != nil {
		if data, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached gateway.VerificationResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	result, err := s.verifier.Verify(ctx, gatewayRef)
	if err != nil {
		return nil, &VerificationFailedError{Reference: gatewayRef, Reason: err.Error()}
	}
	if !result.Success {
		return nil, &VerificationFailedError{Reference: gatewayRef, Reason: "transaction not successful"}
	}
	if result.Amount <= 0 {
		return nil, &VerificationFailedError{Reference: gatewayRef, Reason: "gateway confirmed a non-positive amount"}
	}

	if s.redis != nil {
		if data, err := json.Marshal(result); err == nil {
			s.redis.Set(ctx, cacheKey, data, 15*time.Minute)
		}
	}

	return result, nil
}

// FundWalletRequest is the payload for the wallet funding endpoint
type FundWalletRequest struct {
	GatewayReference string `json:"gatewayReference" validate:"required,max=128"`
	ClaimedAmount    *int64 `json:"claimedAmount,omitempty" validate:"omitempty,gt=0"` // minor units
}

// FundWallet reconciles a gateway payment into the caller's wallet
// @Summary Fund wallet
// @Description Verifies a payment gateway transaction and credits the wallet once
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body FundWalletRequest true "Funding request"
// @Success 200 {object} WalletFundingResult
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /wallet/fund [post]
func (s *FundingService) FundWallet(w http.ResponseWriter, r *http.Request) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req FundWalletRequest
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

	result, err := s.ReconcileFunding(r.Context(), owner, req.GatewayReference, req.ClaimedAmount)
	if err != nil {
		var verifyErr *VerificationFailedError
		var mismatchErr *AmountMismatchError
		switch {
		case errors.As(err, &verifyErr):
			log.Printf("[FUNDING] Verification failed for %s: %v", req.GatewayReference, err)
			SendErrorResponse(w, verifyErr.Error(), http.StatusPaymentRequired, nil)
		case errors.As(err, &mismatchErr):
			log.Printf("[FUNDING] Amount mismatch for %s: %v", req.GatewayReference, err)
			SendErrorResponse(w, mismatchErr.Error(), http.StatusBadRequest, nil)
		default:
			log.Printf("[FUNDING] Reconcile failed for %s: %v", req.GatewayReference, err)
			s.audit.LogError(req.GatewayReference, owner.String(), err)
			SendErrorResponse(w, "Failed to fund wallet", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
