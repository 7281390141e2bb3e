package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TablePrepaid     = "PREPAID"
	TableCaptainPAYG = "CAPTAIN_PAYG"
)

const (
	TableStatusActive   = "ACTIVE"
	TableStatusInactive = "INACTIVE"
	TableStatusArchived = "ARCHIVED"
)

type Table struct {
	bun.BaseModel `bun:"table:tables"`

	ID             string    `bun:"id,pk" json:"id"`
	OrganizationID string    `bun:"organization_id,notnull" json:"organization_id"`
	EventID        string    `bun:"event_id,notnull,unique:table_event_ref" json:"event_id"`
	PrimaryOwnerID string    `bun:"primary_owner_id,notnull" json:"primary_owner_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Slug           string    `bun:"slug,notnull" json:"slug"`
	Type           string    `bun:"type,notnull" json:"type"`
	Capacity       int       `bun:"capacity,notnull" json:"capacity"`
	Status         string    `bun:"status,notnull" json:"status"`
	ReferenceCode  string    `bun:"reference_code,notnull,unique:table_event_ref" json:"reference_code"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

const (
	RoleOwner   = "OWNER"
	RoleCoOwner = "CO_OWNER"
	RoleCaptain = "CAPTAIN"
	RoleManager = "MANAGER"
	RoleStaff   = "STAFF"

	// RoleAdmin is never stored; it is the resolver's answer for org admins
	// and super admins.
	RoleAdmin = "ADMIN"
)

// TableUserRole joins a user to a table with one role. A user may hold
// several roles on the same table; the table's primary owner is an implicit
// OWNER without a row.
type TableUserRole struct {
	bun.BaseModel `bun:"table:table_user_roles"`

	TableID   string    `bun:"table_id,pk" json:"table_id"`
	UserID    string    `bun:"user_id,pk" json:"user_id"`
	Role      string    `bun:"role,pk" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
