package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Activity log action enum. Append-only: rows are never mutated.
const (
	ActionOrderCompleted    = "ORDER_COMPLETED"
	ActionTableCreated      = "TABLE_CREATED"
	ActionGuestAdded        = "GUEST_ADDED"
	ActionGuestRemoved      = "GUEST_REMOVED"
	ActionGuestEdited       = "GUEST_EDITED"
	ActionTicketTransferred = "TICKET_TRANSFERRED"
	ActionGuestCheckedIn    = "GUEST_CHECKED_IN"
)

type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs"`

	ID             string                 `bun:"id,pk" json:"id"`
	OrganizationID string                 `bun:"organization_id,notnull" json:"organization_id"`
	EventID        string                 `bun:"event_id,nullzero" json:"event_id,omitempty"`
	ActorID        string                 `bun:"actor_id,notnull" json:"actor_id"`
	Action         string                 `bun:"action,notnull" json:"action"`
	EntityType     string                 `bun:"entity_type,notnull" json:"entity_type"`
	EntityID       string                 `bun:"entity_id,notnull" json:"entity_id"`
	Metadata       map[string]interface{} `bun:"metadata,type:jsonb" json:"metadata"`
	CreatedAt      time.Time              `bun:"created_at,notnull" json:"created_at"`
}
