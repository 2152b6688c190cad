package models

import "time"

// MarketplaceSale records one course purchase and the commission split
// computed for it. CommissionRate is a snapshot of the platform rate at
// purchase time; later rate edits never change historical splits.
type MarketplaceSale struct {
	ID               int       `json:"id" db:"id"`
	SaleReference    string    `json:"sale_reference" db:"sale_reference"`
	OwnerID          string    `json:"owner_id" db:"owner_id"`
	OwnerKind        OwnerKind `json:"owner_kind" db:"owner_kind"`
	CourseID         string    `json:"course_id" db:"course_id"`
	GrossAmount      int64     `json:"gross_amount" db:"gross_amount"` // minor units
	Currency         string    `json:"currency" db:"currency"`
	CommissionRate   float64   `json:"commission_rate" db:"commission_rate"` // percent
	CommissionAmount int64     `json:"commission_amount" db:"commission_amount"`
	TutorEarnings    int64     `json:"tutor_earnings" db:"tutor_earnings"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
