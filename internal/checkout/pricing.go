package checkout

import (
	"time"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

// Subtotal is THE pricing function. FULL_TABLE price is the order total and
// is never multiplied by quantity; every other kind is price-per-seat times
// quantity. Promo validation and the final charge must both go through here,
// never recompute the subtotal at a call site.
func Subtotal(kind string, priceCents int64, quantity int) int64 {
	if kind == models.ProductFullTable {
		return priceCents
	}
	return priceCents * int64(quantity)
}

// Discount computes the promo deduction against a subtotal. PERCENTAGE
// rounds to the nearest cent; FIXED_AMOUNT is capped at the subtotal so the
// total can never go negative.
func Discount(promo *models.PromoCode, subtotalCents int64) int64 {
	if promo == nil {
		return 0
	}
	switch promo.DiscountType {
	case models.DiscountPercentage:
		return (subtotalCents*promo.Value + 50) / 100
	case models.DiscountFixedAmount:
		if promo.Value > subtotalCents {
			return subtotalCents
		}
		return promo.Value
	default:
		return 0
	}
}

// ValidatePromo checks activation, validity window and usage cap. A nil
// ValidUntil means the code never expires.
func ValidatePromo(promo *models.PromoCode, now time.Time) error {
	if !promo.IsActive {
		return errs.Newf(errs.ValidationFailed, "promo code %q is not active", promo.Code)
	}
	if !promo.ValidFrom.IsZero() && now.Before(promo.ValidFrom) {
		return errs.Newf(errs.ValidationFailed, "promo code %q is not yet valid", promo.Code)
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return errs.Newf(errs.ValidationFailed, "promo code %q has expired", promo.Code)
	}
	if promo.MaxUses > 0 && promo.CurrentUses >= promo.MaxUses {
		return errs.Newf(errs.ValidationFailed, "promo code %q has reached its usage limit", promo.Code)
	}
	return nil
}
