package store

import (
	"context"
	"time"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	return err
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("payment_intent_id = ?", intentID).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "order for payment intent %s not found", intentID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) UpdateOrder(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(order).
		Column("status", "table_id", "payment_intent_id", "charge_id",
			"last_payment_error", "amount_cents", "discount_cents", "updated_at").
		Where("id = ?", order.ID).
		Exec(ctx)
	return err
}

// CompletedOrdersByTable returns COMPLETED orders oldest-first. The seat
// calculator claims placeholder seats first-come-first-served against this
// ordering, which keeps seat attribution deterministic and auditable.
func (d *DB) CompletedOrdersByTable(ctx context.Context, tableID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("table_id = ?", tableID).
		Where("status = ?", models.OrderCompleted).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CompletedSeatCount sums quantity over COMPLETED orders at a table. This is
// the authoritative purchased-seat count; it is never cached.
func (d *DB) CompletedSeatCount(ctx context.Context, tableID string) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("COALESCE(SUM(quantity), 0)").
		Where("table_id = ?", tableID).
		Where("status = ?", models.OrderCompleted).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ---------------- PROMO CODES ----------------

func (d *DB) GetPromoCodeByID(ctx context.Context, id string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "promo code %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (d *DB) GetPromoCode(ctx context.Context, eventID, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("event_id = ?", eventID).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "promo code %q not found for event", code)
	}
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// IncrementPromoUsage bumps current_uses atomically in SQL, so concurrent
// completions never lose an increment.
func (d *DB) IncrementPromoUsage(ctx context.Context, promoID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("current_uses = current_uses + 1").
		Where("id = ?", promoID).
		Exec(ctx)
	return err
}
