package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

func TestSubtotal(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		price    int64
		quantity int
		want     int64
	}{
		{"full table price is the total regardless of quantity", models.ProductFullTable, 500000, 10, 500000},
		{"individual tickets multiply by quantity", models.ProductIndividualTicket, 50000, 3, 150000},
		{"captain commitment multiplies by quantity", models.ProductCaptainCommitment, 20000, 2, 40000},
		{"single individual ticket", models.ProductIndividualTicket, 50000, 1, 50000},
		{"free product", models.ProductCaptainCommitment, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subtotal(tt.kind, tt.price, tt.quantity))
		})
	}
}

func TestDiscount(t *testing.T) {
	percent := func(v int64) *models.PromoCode {
		return &models.PromoCode{DiscountType: models.DiscountPercentage, Value: v}
	}
	fixed := func(v int64) *models.PromoCode {
		return &models.PromoCode{DiscountType: models.DiscountFixedAmount, Value: v}
	}

	assert.Equal(t, int64(0), Discount(nil, 100000))
	assert.Equal(t, int64(50000), Discount(percent(10), 500000))
	assert.Equal(t, int64(33), Discount(percent(33), 100), "percentage rounds to nearest cent")
	assert.Equal(t, int64(1), Discount(percent(25), 3), "0.75 cents rounds up to 1")
	assert.Equal(t, int64(2500), Discount(fixed(2500), 100000))
	assert.Equal(t, int64(100), Discount(fixed(2500), 100), "fixed discount is capped at the subtotal")
}

func TestValidatePromo(t *testing.T) {
	now := time.Now()
	later := now.Add(24 * time.Hour)
	earlier := now.Add(-24 * time.Hour)

	base := func() *models.PromoCode {
		return &models.PromoCode{
			Code:         "GALA10",
			DiscountType: models.DiscountPercentage,
			Value:        10,
			IsActive:     true,
			ValidFrom:    earlier,
		}
	}

	assert.NoError(t, ValidatePromo(base(), now))

	inactive := base()
	inactive.IsActive = false
	assert.True(t, errs.Is(ValidatePromo(inactive, now), errs.ValidationFailed))

	notYet := base()
	notYet.ValidFrom = later
	assert.True(t, errs.Is(ValidatePromo(notYet, now), errs.ValidationFailed))

	expired := base()
	expired.ValidUntil = &earlier
	assert.True(t, errs.Is(ValidatePromo(expired, now), errs.ValidationFailed))

	noExpiry := base()
	noExpiry.ValidUntil = nil
	assert.NoError(t, ValidatePromo(noExpiry, now), "nil valid_until means no expiry")

	usedUp := base()
	usedUp.MaxUses = 3
	usedUp.CurrentUses = 3
	assert.True(t, errs.Is(ValidatePromo(usedUp, now), errs.ValidationFailed))

	unlimited := base()
	unlimited.MaxUses = 0
	unlimited.CurrentUses = 999
	assert.NoError(t, ValidatePromo(unlimited, now), "max_uses 0 means unlimited")
}
