package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/learnpay/backend/internal/audit"
	"github.com/learnpay/backend/internal/models"
)

// WalletService owns the wallet accounts and the append-only ledger.
// Every balance mutation goes through Credit/Debit, which lock the wallet
// row and write the ledger entry in the same transaction.
type WalletService struct {
	db              *sql.DB
	audit           *audit.Logger
	validator       *ValidationHelper
	platformAccount string
}

func NewWalletService(db *sql.DB) *WalletService {
	platformAccount := "platform-revenue"
	if envAccount := os.Getenv("PLATFORM_REVENUE_ACCOUNT"); envAccount != "" {
		platformAccount = envAccount
	}
	return &WalletService{
		db:              db,
		audit:           audit.NewLogger(),
		validator:       NewValidationHelper(),
		platformAccount: platformAccount,
	}
}

// PlatformOwner is the wallet that receives commission postings.
func (s *WalletService) PlatformOwner() models.OwnerRef {
	return models.OwnerRef{Kind: models.OwnerPlatform, ID: s.platformAccount}
}

// CreditParams describes one wallet credit
type CreditParams struct {
	Owner          models.OwnerRef
	Amount         int64 // minor units, must be positive
	Currency       string
	Reference      string
	IdempotencyKey string
	Metadata       models.Metadata
}

// DebitParams describes one wallet debit. The debit is idempotent per
// (owner, reference, currency).
type DebitParams struct {
	Owner     models.OwnerRef
	Amount    int64
	Currency  string
	Reference string
	Metadata  models.Metadata
}

// Credit credits a wallet. If a successful entry already exists for
// (owner, idempotency key) the existing entry is returned unchanged;
// external payment callbacks are not exactly-once and must collapse here.
func (s *WalletService) Credit(p CreditParams) (*models.LedgerEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.CreditTx(tx, p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audit.LogCredit(entry.Reference, p.Owner.String(), entry.Amount, entry.Currency, entry.Status)
	return entry, nil
}

// CreditTx is Credit inside a caller-owned transaction.
func (s *WalletService) CreditTx(tx *sql.Tx, p CreditParams) (*models.LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", p.Amount)
	}
	if p.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	wallet, err := s.lockWallet(tx, p.Owner, p.Currency, true)
	if err != nil {
		return nil, err
	}

	// The replay check runs under the wallet row lock: a concurrent
	// credit with the same key blocks on the lock above and sees the
	// committed entry here instead of inserting a second one.
	if existing, err := s.findSuccessfulEntry(tx, p.Owner, p.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		log.Printf("[WALLET] Idempotent replay for %s key %s", p.Owner, p.IdempotencyKey)
		return existing, nil
	}

	entry := &models.LedgerEntry{
		ID:             uuid.New().String(),
		OwnerID:        p.Owner.ID,
		OwnerKind:      p.Owner.Kind,
		EntryType:      models.EntryCredit,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Reference:      p.Reference,
		IdempotencyKey: p.IdempotencyKey,
		BalanceBefore:  wallet.Balance,
		BalanceAfter:   wallet.Balance + p.Amount,
		Status:         models.EntryStatusSuccessful,
		Metadata:       p.Metadata,
		CreatedAt:      time.Now(),
	}

	if err := s.insertLedgerEntry(tx, entry); err != nil {
		return nil, err
	}

	if err := s.updateWalletBalance(tx, wallet.ID, entry.BalanceAfter, wallet.Version); err != nil {
		return nil, err
	}

	return entry, nil
}

// Debit debits a wallet, failing with ErrInsufficientFunds and no
// mutation if the balance does not cover the amount.
func (s *WalletService) Debit(p DebitParams) (*models.LedgerEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.DebitTx(tx, p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audit.LogDebit(entry.Reference, p.Owner.String(), entry.Amount, entry.Currency, entry.Status)
	return entry, nil
}

// DebitTx is Debit inside a caller-owned transaction. Re-running with
// the same (owner, reference, currency) replays the original entry, so a
// crashed caller can safely retry.
func (s *WalletService) DebitTx(tx *sql.Tx, p DebitParams) (*models.LedgerEntry, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", p.Amount)
	}
	if p.Reference == "" {
		return nil, fmt.Errorf("debit reference is required")
	}

	idempotencyKey := fmt.Sprintf("%s:%s", p.Reference, p.Currency)

	wallet, err := s.lockWallet(tx, p.Owner, p.Currency, false)
	if err != nil {
		return nil, err
	}

	// Replay check under the wallet row lock, and before the balance
	// check: an already-applied debit must replay even when the reduced
	// balance no longer covers the amount.
	if existing, err := s.findSuccessfulEntry(tx, p.Owner, idempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		log.Printf("[WALLET] Idempotent debit replay for %s key %s", p.Owner, idempotencyKey)
		return existing, nil
	}

	if wallet.Balance < p.Amount {
		return nil, ErrInsufficientFunds
	}

	entry := &models.LedgerEntry{
		ID:             uuid.New().String(),
		OwnerID:        p.Owner.ID,
		OwnerKind:      p.Owner.Kind,
		EntryType:      models.EntryDebit,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Reference:      p.Reference,
		IdempotencyKey: idempotencyKey,
		BalanceBefore:  wallet.Balance,
		BalanceAfter:   wallet.Balance - p.Amount,
		Status:         models.EntryStatusSuccessful,
		Metadata:       p.Metadata,
		CreatedAt:      time.Now(),
	}

	if err := s.insertLedgerEntry(tx, entry); err != nil {
		return nil, err
	}

	if err := s.updateWalletBalance(tx, wallet.ID, entry.BalanceAfter, wallet.Version); err != nil {
		return nil, err
	}

	return entry, nil
}

// Balances returns the per-currency balances for an owner.
func (s *WalletService) Balances(owner models.OwnerRef) ([]models.Balance, error) {
	rows, err := s.db.Query(`
		SELECT currency, balance FROM wallet_accounts
		WHERE owner_id = $1 AND owner_kind = $2
		ORDER BY currency`, owner.ID, string(owner.Kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.Currency, &b.Amount); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *WalletService) findSuccessfulEntry(tx *sql.Tx, owner models.OwnerRef, idempotencyKey string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := tx.QueryRow(`
		SELECT id, owner_id, owner_kind, entry_type, amount, currency, reference,
			idempotency_key, balance_before, balance_after, status, metadata, created_at
		FROM ledger_entries
		WHERE owner_id = $1 AND owner_kind = $2 AND idempotency_key = $3 AND status = $4`,
		owner.ID, string(owner.Kind), idempotencyKey, models.EntryStatusSuccessful).
		Scan(&entry.ID, &entry.OwnerID, &entry.OwnerKind, &entry.EntryType, &entry.Amount,
			&entry.Currency, &entry.Reference, &entry.IdempotencyKey, &entry.BalanceBefore,
			&entry.BalanceAfter, &entry.Status, &entry.Metadata, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// lockWallet takes the row lock serializing mutations for one
// (owner, currency). Wallets are created lazily on first credit.
func (s *WalletService) lockWallet(tx *sql.Tx, owner models.OwnerRef, currency string, createIfMissing bool) (*models.WalletAccount, error) {
	wallet, err := s.selectWalletForUpdate(tx, owner, currency)
	if err == nil {
		return wallet, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	if !createIfMissing {
		return nil, ErrWalletNotFound
	}

	_, err = tx.Exec(`
		INSERT INTO wallet_accounts (owner_id, owner_kind, currency, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 1, $4, $4)
		ON CONFLICT (owner_id, owner_kind, currency) DO NOTHING`,
		owner.ID, string(owner.Kind), currency, time.Now())
	if err != nil {
		return nil, err
	}

	return s.selectWalletForUpdate(tx, owner, currency)
}

func (s *WalletService) selectWalletForUpdate(tx *sql.Tx, owner models.OwnerRef, currency string) (*models.WalletAccount, error) {
	var wallet models.WalletAccount
	err := tx.QueryRow(`
		SELECT id, owner_id, owner_kind, currency, balance, version, updated_at
		FROM wallet_accounts
		WHERE owner_id = $1 AND owner_kind = $2 AND currency = $3
		FOR UPDATE`, owner.ID, string(owner.Kind), currency).
		Scan(&wallet.ID, &wallet.OwnerID, &wallet.OwnerKind, &wallet.Currency,
			&wallet.Balance, &wallet.Version, &wallet.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *WalletService) insertLedgerEntry(tx *sql.Tx, entry *models.LedgerEntry) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (id, owner_id, owner_kind, entry_type, amount, currency,
			reference, idempotency_key, balance_before, balance_after, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID, entry.OwnerID, string(entry.OwnerKind), entry.EntryType, entry.Amount,
		entry.Currency, entry.Reference, entry.IdempotencyKey, entry.BalanceBefore,
		entry.BalanceAfter, entry.Status, entry.Metadata, entry.CreatedAt)
	return err
}

func (s *WalletService) updateWalletBalance(tx *sql.Tx, walletID int, newBalance int64, version int) error {
	result, err := tx.Exec(`
		UPDATE wallet_accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), walletID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for wallet %d", walletID)
	}
	return nil
}

// BalanceEnquiry returns the caller's per-currency balances
// @Summary Wallet balance enquiry
// @Description Returns the current balance per currency for the authenticated owner
// @Tags wallet
// @Produce json
// @Success 200 {object} object{owner=models.OwnerRef,balances=[]models.Balance}
// @Failure 400 {object} ErrorResponse
// @Router /wallet/balance [get]
func (s *WalletService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	balances, err := s.Balances(owner)
	if err != nil {
		log.Printf("[WALLET] Balance enquiry failed for %s: %v", owner, err)
		SendErrorResponse(w, "Failed to fetch balances", http.StatusInternalServerError, nil)
		return
	}
	if balances == nil {
		balances = []models.Balance{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"owner":    owner,
		"balances": balances,
	})
}

// LedgerHistory returns the caller's paginated ledger entries
// @Summary Ledger history
// @Description Paginated ledger entries, filterable by currency, type and date range
// @Tags wallet
// @Produce json
// @Param currency query string false "Currency filter"
// @Param type query string false "Entry type filter (CREDIT or DEBIT)"
// @Param from query string false "Start date (RFC 3339)"
// @Param to query string false "End date (RFC 3339)"
// @Param page query int false "Page number (1-based)"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} object{entries=[]models.LedgerEntry,page=int,limit=int}
// @Failure 400 {object} ErrorResponse
// @Router /wallet/ledger [get]
func (s *WalletService) LedgerHistory(w http.ResponseWriter, r *http.Request) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	query := `
		SELECT id, owner_id, owner_kind, entry_type, amount, currency, reference,
			idempotency_key, balance_before, balance_after, status, metadata, created_at
		FROM ledger_entries
		WHERE owner_id = $1 AND owner_kind = $2`
	args := []any{owner.ID, string(owner.Kind)}

	if currency := r.URL.Query().Get("currency"); currency != "" {
		args = append(args, currency)
		query += fmt.Sprintf(" AND currency = $%d", len(args))
	}
	if entryType := r.URL.Query().Get("type"); entryType != "" {
		args = append(args, entryType)
		query += fmt.Sprintf(" AND entry_type = $%d", len(args))
	}
	if from := r.URL.Query().Get("from"); from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			SendErrorResponse(w, "Invalid 'from' date", http.StatusBadRequest, nil)
			return
		}
		args = append(args, ts)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to := r.URL.Query().Get("to"); to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			SendErrorResponse(w, "Invalid 'to' date", http.StatusBadRequest, nil)
			return
		}
		args = append(args, ts)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	args = append(args, limit, (page-1)*limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[WALLET] Ledger history query failed for %s: %v", owner, err)
		SendErrorResponse(w, "Failed to fetch ledger entries", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.OwnerKind, &e.EntryType, &e.Amount,
			&e.Currency, &e.Reference, &e.IdempotencyKey, &e.BalanceBefore, &e.BalanceAfter,
			&e.Status, &e.Metadata, &e.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to read ledger entries", http.StatusInternalServerError, nil)
			return
		}
		entries = append(entries, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"entries": entries,
		"page":    page,
		"limit":   limit,
	})
}

// SaleRequest is the payload for recording a marketplace sale
type SaleRequest struct {
	SaleReference  string          `json:"saleReference" validate:"required,max=64"`
	Owner          models.OwnerRef `json:"owner" validate:"required"`
	CourseID       string          `json:"courseId" validate:"required"`
	GrossAmount    int64           `json:"grossAmount" validate:"required,gt=0"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	CommissionRate float64         `json:"commissionRate" validate:"gte=0,lte=100"`
}

// RecordSale splits a sale between platform commission and tutor
// earnings and posts both ledger credits in one transaction
// @Summary Record a marketplace sale
// @Description Computes the commission split for a sale and credits tutor earnings and platform commission. Admin credential required.
// @Tags sales
// @Accept json
// @Produce json
// @Param sale body SaleRequest true "Sale data"
// @Success 201 {object} object{sale=models.MarketplaceSale,earningsEntry=models.LedgerEntry,commissionEntry=models.LedgerEntry}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sales [post]
func (s *WalletService) RecordSale(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req SaleRequest
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
		SendErrorResponse(w, "Invalid sale owner", http.StatusBadRequest, nil)
		return
	}

	split, err := SplitCommission(req.GrossAmount, req.CommissionRate)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	sale := models.MarketplaceSale{
		SaleReference:    req.SaleReference,
		OwnerID:          req.Owner.ID,
		OwnerKind:        req.Owner.Kind,
		CourseID:         req.CourseID,
		GrossAmount:      req.GrossAmount,
		Currency:         req.Currency,
		CommissionRate:   req.CommissionRate,
		CommissionAmount: split.Commission,
		TutorEarnings:    split.Earnings,
		CreatedAt:        time.Now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[SALE] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to record sale", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO marketplace_sales (sale_reference, owner_id, owner_kind, course_id,
			gross_amount, currency, commission_rate, commission_amount, tutor_earnings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sale_reference) DO NOTHING`,
		sale.SaleReference, sale.OwnerID, string(sale.OwnerKind), sale.CourseID,
		sale.GrossAmount, sale.Currency, sale.CommissionRate, sale.CommissionAmount,
		sale.TutorEarnings, sale.CreatedAt)
	if err != nil {
		log.Printf("[SALE] Failed to insert sale %s: %v", req.SaleReference, err)
		SendErrorResponse(w, "Failed to record sale", http.StatusInternalServerError, nil)
		return
	}

	earningsEntry, err := s.CreditTx(tx, CreditParams{
		Owner:          req.Owner,
		Amount:         split.Earnings,
		Currency:       req.Currency,
		Reference:      req.SaleReference,
		IdempotencyKey: fmt.Sprintf("sale:%s:earnings", req.SaleReference),
		Metadata:       models.Metadata{"course_id": req.CourseID, "gross_amount": req.GrossAmount},
	})
	if err != nil {
		s.audit.LogError(req.SaleReference, req.Owner.String(), err)
		SendErrorResponse(w, "Failed to post earnings", http.StatusInternalServerError, nil)
		return
	}

	var commissionEntry *models.LedgerEntry
	if split.Commission > 0 {
		commissionEntry, err = s.CreditTx(tx, CreditParams{
			Owner:          s.PlatformOwner(),
			Amount:         split.Commission,
			Currency:       req.Currency,
			Reference:      req.SaleReference,
			IdempotencyKey: fmt.Sprintf("sale:%s:commission", req.SaleReference),
			Metadata:       models.Metadata{"course_id": req.CourseID, "commission_rate": req.CommissionRate},
		})
		if err != nil {
			s.audit.LogError(req.SaleReference, s.PlatformOwner().String(), err)
			SendErrorResponse(w, "Failed to post commission", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[SALE] Failed to commit sale %s: %v", req.SaleReference, err)
		SendErrorResponse(w, "Failed to record sale", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogCredit(req.SaleReference, req.Owner.String(), split.Earnings, req.Currency, models.EntryStatusSuccessful)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"sale":            sale,
		"earningsEntry":   earningsEntry,
		"commissionEntry": commissionEntry,
	})
}
