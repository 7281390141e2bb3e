package seats

import (
	"context"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

// Calculator derives placeholder-seat counts and gates claims against table
// capacity. Placeholder counts are always recomputed from the two
// authoritative sets (COMPLETED orders, assignment rows). Checkout, the
// webhook, admin edits and transfers all mutate them independently, so a
// stored counter would drift.
type Calculator struct {
	DB *store.DB
}

func NewCalculator(db *store.DB) *Calculator {
	return &Calculator{DB: db}
}

// Summary is the per-table seat picture the dashboard shows.
type Summary struct {
	TableID          string `json:"table_id"`
	Capacity         int    `json:"capacity"`
	PurchasedSeats   int    `json:"purchased_seats"`
	AssignedSeats    int    `json:"assigned_seats"`
	PlaceholderSeats int    `json:"placeholder_seats"`
}

// PlaceholderSeats is sum(quantity over COMPLETED orders) minus the count of
// assignment rows at the table.
func (c *Calculator) PlaceholderSeats(ctx context.Context, tableID string) (int, error) {
	purchased, err := c.DB.CompletedSeatCount(ctx, tableID)
	if err != nil {
		return 0, err
	}
	assigned, err := c.DB.CountAssignmentsByTable(ctx, tableID)
	if err != nil {
		return 0, err
	}
	return purchased - assigned, nil
}

func (c *Calculator) TableSummary(ctx context.Context, tableID string) (*Summary, error) {
	table, err := c.DB.GetTableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	purchased, err := c.DB.CompletedSeatCount(ctx, tableID)
	if err != nil {
		return nil, err
	}
	assigned, err := c.DB.CountAssignmentsByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		TableID:          table.ID,
		Capacity:         table.Capacity,
		PurchasedSeats:   purchased,
		AssignedSeats:    assigned,
		PlaceholderSeats: purchased - assigned,
	}, nil
}

// CanClaimSeat reports whether the order still has purchased seats not yet
// realized as assignments.
func (c *Calculator) CanClaimSeat(ctx context.Context, orderID string) (bool, error) {
	order, err := c.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != models.OrderCompleted {
		return false, nil
	}
	used, err := c.DB.CountAssignmentsByOrder(ctx, order.ID)
	if err != nil {
		return false, err
	}
	return used < order.Quantity, nil
}

// SelectClaimableOrder picks the oldest COMPLETED order at the table with a
// placeholder seat left. First-created-order-first, not capacity-balanced:
// changing this tie-break silently changes audit-trail semantics.
func (c *Calculator) SelectClaimableOrder(ctx context.Context, tableID string) (*models.Order, error) {
	orders, err := c.DB.CompletedOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		used, err := c.DB.CountAssignmentsByOrder(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		if used < orders[i].Quantity {
			return &orders[i], nil
		}
	}
	return nil, errs.New(errs.Conflict, "no purchased seats remain unassigned at this table")
}

// CheckPurchaseCapacity rejects a purchase that would push the table's
// COMPLETED seat total past its capacity.
func (c *Calculator) CheckPurchaseCapacity(ctx context.Context, table *models.Table, requested int) error {
	purchased, err := c.DB.CompletedSeatCount(ctx, table.ID)
	if err != nil {
		return err
	}
	if purchased+requested > table.Capacity {
		return errs.Newf(errs.Conflict,
			"table %q has %d of %d seats sold; cannot add %d more",
			table.Name, purchased, table.Capacity, requested)
	}
	return nil
}
