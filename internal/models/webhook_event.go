package models

import (
	"time"

	"github.com/uptrace/bun"
)

// StripeEventLog is the idempotency ledger for provider webhook deliveries.
// A row distinguishes "logged but errored" (Processed=false, Error set) from
// "never arrived" (no row), which operators need for triage.
type StripeEventLog struct {
	bun.BaseModel `bun:"table:stripe_event_logs"`

	ID          string     `bun:"id,pk" json:"id"`
	EventID     string     `bun:"event_id,notnull,unique" json:"event_id"`
	EventType   string     `bun:"event_type,notnull" json:"event_type"`
	Payload     string     `bun:"payload" json:"payload"`
	Processed   bool       `bun:"processed" json:"processed"`
	ProcessedAt *time.Time `bun:"processed_at" json:"processed_at,omitempty"`
	Error       string     `bun:"error,nullzero" json:"error,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
}
