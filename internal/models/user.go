package models

import "time"

type User struct {
	ID        int        `json:"id" example:"1"`                    // User ID
	Email     string     `json:"email" example:"tutor@example.com"` // User email
	FirstName string     `json:"firstName" example:"Ada"`           // User first name
	LastName  string     `json:"lastName" example:"Obi"`            // User last name
	OwnerID   string     `json:"ownerId"`                           // Wallet owner ID
	OwnerKind OwnerKind  `json:"ownerKind" example:"sole_tutor"`    // Wallet owner kind
	OrgName   string     `json:"orgName,omitempty"`                 // Organization name (organizations only)
	Role      string     `json:"role" example:"tutor"`              // tutor or admin
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
