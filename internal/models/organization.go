package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Organization is the tenant boundary. Reference-code uniqueness for guest
// assignments is scoped to it.
type Organization struct {
	bun.BaseModel `bun:"table:organizations"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Slug      string    `bun:"slug,notnull,unique" json:"slug"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// OrganizationAdmin marks a user as an admin of one organization. Super
// admins are flagged on the user row instead.
type OrganizationAdmin struct {
	bun.BaseModel `bun:"table:organization_admins"`

	OrganizationID string    `bun:"organization_id,pk" json:"organization_id"`
	UserID         string    `bun:"user_id,pk" json:"user_id"`
	GrantedAt      time.Time `bun:"granted_at,notnull" json:"granted_at"`
}
