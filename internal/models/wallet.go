package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OwnerKind identifies the kind of wallet owner
type OwnerKind string

const (
	OwnerSoleTutor    OwnerKind = "sole_tutor"
	OwnerOrganization OwnerKind = "organization"
	OwnerPlatform     OwnerKind = "platform"
)

// OwnerRef identifies a wallet owner as (kind, id)
type OwnerRef struct {
	Kind OwnerKind `json:"kind" validate:"required,oneof=sole_tutor organization platform"`
	ID   string    `json:"id" validate:"required"`
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}

func (o OwnerRef) Valid() bool {
	switch o.Kind {
	case OwnerSoleTutor, OwnerOrganization, OwnerPlatform:
		return o.ID != ""
	}
	return false
}

// Supported wallet currencies (ISO 4217)
const (
	CurrencyNGN = "NGN"
	CurrencyUSD = "USD"
	CurrencyGBP = "GBP"
)

// WalletAccount holds the current balance for one (owner, currency) pair.
// Balance is in minor units (kobo, cents, pence) and is mutated only
// together with a ledger entry inside one transaction.
type WalletAccount struct {
	ID        int       `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	OwnerKind OwnerKind `json:"owner_kind" db:"owner_kind"`
	Currency  string    `json:"currency" db:"currency"`
	Balance   int64     `json:"balance" db:"balance"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ledger entry types
const (
	EntryCredit = "CREDIT"
	EntryDebit  = "DEBIT"
)

// Ledger entry statuses
const (
	EntryStatusPending    = "PENDING"
	EntryStatusSuccessful = "SUCCESSFUL"
	EntryStatusFailed     = "FAILED"
)

// LedgerEntry is an immutable record of one balance-affecting event.
// Once status is SUCCESSFUL the row is never updated or deleted;
// corrections are made with a compensating entry.
type LedgerEntry struct {
	ID             string    `json:"id" db:"id"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	OwnerKind      OwnerKind `json:"owner_kind" db:"owner_kind"`
	EntryType      string    `json:"entry_type" db:"entry_type"`
	Amount         int64     `json:"amount" db:"amount"` // minor units, always positive
	Currency       string    `json:"currency" db:"currency"`
	Reference      string    `json:"reference" db:"reference"`
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	BalanceBefore  int64     `json:"balance_before" db:"balance_before"`
	BalanceAfter   int64     `json:"balance_after" db:"balance_after"`
	Status         string    `json:"status" db:"status"`
	Metadata       Metadata  `json:"metadata" db:"metadata"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Balance is one currency's balance as returned by the balance enquiry
type Balance struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
