package models

import (
	"time"

	"github.com/uptrace/bun"
)

// GuestAssignment binds a purchased seat (via OrderID) to a named guest at a
// table. Tier is snapshotted from the product at creation time and does not
// follow later product edits.
type GuestAssignment struct {
	bun.BaseModel `bun:"table:guest_assignments"`

	ID                  string     `bun:"id,pk" json:"id"`
	OrganizationID      string     `bun:"organization_id,notnull,unique:guest_org_ref" json:"organization_id"`
	EventID             string     `bun:"event_id,notnull" json:"event_id"`
	TableID             string     `bun:"table_id,notnull,unique:guest_table_user" json:"table_id"`
	UserID              string     `bun:"user_id,notnull,unique:guest_table_user" json:"user_id"`
	OrderID             string     `bun:"order_id,notnull" json:"order_id"`
	DisplayName         string     `bun:"display_name" json:"display_name"`
	Tier                string     `bun:"tier,notnull" json:"tier"`
	ReferenceCode       string     `bun:"reference_code,notnull,unique:guest_org_ref" json:"reference_code"`
	DietaryRestrictions string     `bun:"dietary_restrictions" json:"dietary_restrictions"`
	BidderNumber        string     `bun:"bidder_number" json:"bidder_number"`
	AuctionRegistered   bool       `bun:"auction_registered" json:"auction_registered"`
	CheckedInAt         *time.Time `bun:"checked_in_at" json:"checked_in_at,omitempty"`
	CreatedAt           time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
}
