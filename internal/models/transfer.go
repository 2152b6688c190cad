package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Fund transfer statuses
const (
	TransferStatusPending    = "pending"
	TransferStatusProcessing = "processing"
	TransferStatusCompleted  = "completed"
	TransferStatusFailed     = "failed"
	TransferStatusCancelled  = "cancelled"
)

// Next-of-kin verification statuses
const (
	KinStatusSubmitted           = "submitted"
	KinStatusPendingVerification = "pending_verification"
	KinStatusVerified            = "verified"
)

// NextOfKin is the verified beneficiary for a fund transfer. At most one
// active verified record per owner.
type NextOfKin struct {
	ID                  string     `json:"id" db:"id"`
	OwnerID             string     `json:"owner_id" db:"owner_id"`
	OwnerKind           OwnerKind  `json:"owner_kind" db:"owner_kind"`
	FullName            string     `json:"full_name" db:"full_name"`
	Relationship        string     `json:"relationship" db:"relationship"`
	PhoneNumber         string     `json:"phone_number" db:"phone_number"`
	Email               string     `json:"email" db:"email"`
	BankName            string     `json:"bank_name" db:"bank_name"`
	BankCode            string     `json:"bank_code" db:"bank_code"`
	AccountNumberMasked string     `json:"account_number_masked" db:"account_number_masked"`
	Status              string     `json:"status" db:"status"`
	IsVerified          bool       `json:"is_verified" db:"is_verified"`
	VerifiedBy          string     `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// BalanceSnapshot maps currency code to the minor-unit amount captured
// when a fund transfer was initiated.
type BalanceSnapshot map[string]int64

// Value implements driver.Valuer for BalanceSnapshot
func (b BalanceSnapshot) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner for BalanceSnapshot
func (b *BalanceSnapshot) Scan(value any) error {
	if value == nil {
		*b = nil
		return nil
	}

	raw, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(raw, b)
}

// FundTransfer tracks one payout of an owner's entire wallet balance to
// their verified next of kin. The snapshot freezes the balances read at
// initiation; the wallet is only debited at completion, once.
type FundTransfer struct {
	ID             string          `json:"id" db:"id"`
	OwnerID        string          `json:"owner_id" db:"owner_id"`
	OwnerKind      OwnerKind       `json:"owner_kind" db:"owner_kind"`
	BeneficiaryID  string          `json:"beneficiary_id" db:"beneficiary_id"`
	Snapshot       BalanceSnapshot `json:"snapshot" db:"snapshot"`
	TransferMethod string          `json:"transfer_method" db:"transfer_method"`
	Reason         string          `json:"reason" db:"reason"`
	Status         string          `json:"status" db:"status"`
	InitiatedBy    string          `json:"initiated_by" db:"initiated_by"`
	TransferRef    string          `json:"transfer_ref,omitempty" db:"transfer_ref"`
	FailureReason  string          `json:"failure_reason,omitempty" db:"failure_reason"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
