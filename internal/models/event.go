package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string    `bun:"id,pk" json:"id"`
	OrganizationID string    `bun:"organization_id,notnull" json:"organization_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Date           time.Time `bun:"date" json:"date"`
	IsActive       bool      `bun:"is_active" json:"is_active"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

const (
	ProductIndividualTicket  = "INDIVIDUAL_TICKET"
	ProductFullTable         = "FULL_TABLE"
	ProductCaptainCommitment = "CAPTAIN_COMMITMENT"
)

const (
	TierStandard = "STANDARD"
	TierVIP      = "VIP"
	TierVVIP     = "VVIP"
)

// Product price semantics depend on Kind: PriceCents is per seat for
// INDIVIDUAL_TICKET and CAPTAIN_COMMITMENT, and the table total for
// FULL_TABLE.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID            string    `bun:"id,pk" json:"id"`
	EventID       string    `bun:"event_id,notnull" json:"event_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Kind          string    `bun:"kind,notnull" json:"kind"`
	Tier          string    `bun:"tier,notnull" json:"tier"`
	PriceCents    int64     `bun:"price_cents,notnull" json:"price_cents"`
	TableCapacity int       `bun:"table_capacity" json:"table_capacity"`
	IsActive      bool      `bun:"is_active" json:"is_active"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}
