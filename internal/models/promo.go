package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	DiscountPercentage  = "PERCENTAGE"
	DiscountFixedAmount = "FIXED_AMOUNT"
)

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	ID           string `bun:"id,pk" json:"id"`
	EventID      string `bun:"event_id,notnull,unique:promo_event_code" json:"event_id"`
	Code         string `bun:"code,notnull,unique:promo_event_code" json:"code"`
	DiscountType string `bun:"discount_type,notnull" json:"discount_type"`
	// Value is a percentage (0-100) for PERCENTAGE and an amount in cents
	// for FIXED_AMOUNT.
	Value       int64      `bun:"value,notnull" json:"value"`
	MaxUses     int        `bun:"max_uses" json:"max_uses"`
	CurrentUses int        `bun:"current_uses" json:"current_uses"`
	ValidFrom   time.Time  `bun:"valid_from,nullzero" json:"valid_from"`
	ValidUntil  *time.Time `bun:"valid_until" json:"valid_until,omitempty"`
	IsActive    bool       `bun:"is_active" json:"is_active"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
}
