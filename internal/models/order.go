package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderPending         = "PENDING"
	OrderAwaitingPayment = "AWAITING_PAYMENT"
	OrderCompleted       = "COMPLETED"
	OrderRefunded        = "REFUNDED"
	OrderCancelled       = "CANCELLED"
	OrderExpired         = "EXPIRED"
)

// Order represents a seat purchase. A COMPLETED order holds Quantity seats
// at its table; seats not yet realized as guest assignments are implicit
// placeholders, always derived and never stored.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string    `bun:"id,pk" json:"id"`
	OrganizationID   string    `bun:"organization_id,notnull" json:"organization_id"`
	EventID          string    `bun:"event_id,notnull" json:"event_id"`
	UserID           string    `bun:"user_id,notnull" json:"user_id"`
	ProductID        string    `bun:"product_id,notnull" json:"product_id"`
	TableID          string    `bun:"table_id,nullzero" json:"table_id,omitempty"`
	PromoCodeID      string    `bun:"promo_code_id,nullzero" json:"promo_code_id,omitempty"`
	Status           string    `bun:"status,notnull" json:"status"`
	Quantity         int       `bun:"quantity,notnull" json:"quantity"`
	AmountCents      int64     `bun:"amount_cents,notnull" json:"amount_cents"`
	DiscountCents    int64     `bun:"discount_cents" json:"discount_cents"`
	PaymentIntentID  string    `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	ChargeID         string    `bun:"charge_id,nullzero" json:"charge_id,omitempty"`
	LastPaymentError string    `bun:"last_payment_error,nullzero" json:"last_payment_error,omitempty"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
