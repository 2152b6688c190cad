package models

import "time"

// Subscription statuses
const (
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
)

// Subscription is a tutor's recurring plan. Renewal debits the owner's
// wallet; on insufficient funds the subscription expires and auto-renew
// is switched off. It is never partially charged.
type Subscription struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	OwnerKind OwnerKind `json:"owner_kind" db:"owner_kind"`
	Tier      string    `json:"tier" db:"tier"`
	Price     int64     `json:"price" db:"price"` // minor units per period
	Currency  string    `json:"currency" db:"currency"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	AutoRenew bool      `json:"auto_renew" db:"auto_renew"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
