package checkout

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

type stubIntents struct {
	lastParams IntentParams
	err        error
}

func (s *stubIntents) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &Intent{ID: "pi_test_1", ClientSecret: "secret_test_1"}, nil
}

func setupCheckout(t *testing.T) (*Service, *store.DB, *stubIntents) {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	for _, model := range []interface{}{
		(*models.Organization)(nil),
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.Product)(nil),
		(*models.Table)(nil),
		(*models.TableUserRole)(nil),
		(*models.PromoCode)(nil),
		(*models.Order)(nil),
		(*models.GuestAssignment)(nil),
		(*models.ActivityLog)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(model).Exec(context.Background())
		require.NoError(t, err)
	}

	db := &store.DB{Bun: bunDB}
	intents := &stubIntents{}
	svc := NewService(db, intents, nil, nil, logger.NewLogger(), "usd")
	return svc, db, intents
}

func seedEvent(t *testing.T, db *store.DB) {
	t.Helper()
	ctx := context.Background()

	org := &models.Organization{ID: "org1", Name: "Hope Foundation", Slug: "hope", CreatedAt: time.Now()}
	_, err := db.Bun.NewInsert().Model(org).Exec(ctx)
	require.NoError(t, err)

	event := &models.Event{ID: "e1", OrganizationID: "org1", Name: "Spring Gala", IsActive: true, CreatedAt: time.Now()}
	_, err = db.Bun.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	products := []models.Product{
		{ID: "p-ind", EventID: "e1", Name: "Individual Ticket", Kind: models.ProductIndividualTicket,
			Tier: models.TierStandard, PriceCents: 50000, IsActive: true, CreatedAt: time.Now()},
		{ID: "p-table", EventID: "e1", Name: "Full Table", Kind: models.ProductFullTable,
			Tier: models.TierVIP, PriceCents: 500000, TableCapacity: 10, IsActive: true, CreatedAt: time.Now()},
		{ID: "p-captain", EventID: "e1", Name: "Captain Commitment", Kind: models.ProductCaptainCommitment,
			Tier: models.TierStandard, PriceCents: 0, TableCapacity: 8, IsActive: true, CreatedAt: time.Now()},
	}
	for i := range products {
		_, err := db.Bun.NewInsert().Model(&products[i]).Exec(ctx)
		require.NoError(t, err)
	}
}

func TestCheckoutZeroCostCaptainCommitment(t *testing.T) {
	svc, db, _ := setupCheckout(t)
	seedEvent(t, db)
	ctx := context.Background()

	resp, err := svc.Checkout(ctx, models.CheckoutRequest{
		ProductID:  "p-captain",
		Quantity:   1,
		BuyerEmail: "captain@example.com",
		BuyerName:  "Casey Captain",
		TableName:  "Casey's Crew",
	})
	require.NoError(t, err)
	assert.False(t, resp.RequiresPayment)
	require.NotEmpty(t, resp.OrderID)

	order, err := db.GetOrderByID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)
	assert.Equal(t, int64(0), order.AmountCents)
	require.NotEmpty(t, order.TableID)

	table, err := db.GetTableByID(ctx, order.TableID)
	require.NoError(t, err)
	assert.Equal(t, models.TableCaptainPAYG, table.Type)
	assert.Equal(t, 8, table.Capacity)
	assert.Equal(t, "Casey's Crew", table.Name)
	assert.Len(t, table.ReferenceCode, 8)

	roles, err := db.GetRolesForUser(ctx, table.ID, order.UserID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.RoleOwner, models.RoleCaptain}, roles)

	guests, err := db.ListGuestAssignmentsByTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, guests, 1, "exactly one assignment for the buyer")
	assert.Equal(t, order.UserID, guests[0].UserID)
	assert.Equal(t, models.TierStandard, guests[0].Tier)
}

func TestCheckoutPaidPathCreatesPendingOrderWithIntent(t *testing.T) {
	svc, db, intents := setupCheckout(t)
	seedEvent(t, db)
	ctx := context.Background()

	resp, err := svc.Checkout(ctx, models.CheckoutRequest{
		ProductID:  "p-ind",
		Quantity:   2,
		BuyerEmail: "buyer@example.com",
	})
	require.NoError(t, err)
	assert.True(t, resp.RequiresPayment)
	assert.Equal(t, "secret_test_1", resp.ClientSecret)

	order, err := db.GetOrderByID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "pi_test_1", order.PaymentIntentID)
	assert.Equal(t, int64(100000), order.AmountCents)

	assert.Equal(t, int64(100000), intents.lastParams.AmountCents)
	assert.Equal(t, "usd", intents.lastParams.Currency)
	assert.Equal(t, "buyer@example.com", intents.lastParams.ReceiptEmail)
	assert.Equal(t, order.ID, intents.lastParams.Metadata["order_id"])
	assert.Equal(t, "2", intents.lastParams.Metadata["quantity"])
	assert.Equal(t, models.FlowIndividual, intents.lastParams.Metadata["order_flow"])
}

func TestCheckoutFullTableWithPromo(t *testing.T) {
	svc, db, intents := setupCheckout(t)
	seedEvent(t, db)
	ctx := context.Background()

	promo := &models.PromoCode{
		ID: "promo1", EventID: "e1", Code: "GALA10",
		DiscountType: models.DiscountPercentage, Value: 10,
		IsActive: true, CreatedAt: time.Now(),
	}
	_, err := db.Bun.NewInsert().Model(promo).Exec(ctx)
	require.NoError(t, err)

	resp, err := svc.Checkout(ctx, models.CheckoutRequest{
		ProductID:  "p-table",
		Quantity:   1,
		BuyerEmail: "host@example.com",
		PromoCode:  "GALA10",
		TableName:  "Front Row",
	})
	require.NoError(t, err)
	assert.True(t, resp.RequiresPayment)

	order, err := db.GetOrderByID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(450000), order.AmountCents, "500000 minus 10 percent")
	assert.Equal(t, int64(50000), order.DiscountCents)
	assert.Equal(t, 10, order.Quantity, "a full-table order holds one seat per chair")
	assert.Equal(t, int64(450000), intents.lastParams.AmountCents)
	assert.Equal(t, models.FlowFullTable, intents.lastParams.Metadata["order_flow"])
	assert.Equal(t, "Front Row", intents.lastParams.Metadata["table_name"])
}

func TestCheckoutQuantityValidation(t *testing.T) {
	svc, db, _ := setupCheckout(t)
	seedEvent(t, db)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, models.CheckoutRequest{
		ProductID: "p-table", Quantity: 2, BuyerEmail: "a@example.com",
	})
	assert.True(t, errs.Is(err, errs.ValidationFailed), "full table must be quantity 1")

	_, err = svc.Checkout(ctx, models.CheckoutRequest{
		ProductID: "p-ind", Quantity: 11, BuyerEmail: "a@example.com",
	})
	assert.True(t, errs.Is(err, errs.ValidationFailed), "individual tickets cap at 10")

	_, err = svc.Checkout(ctx, models.CheckoutRequest{
		ProductID: "p-ind", Quantity: 0, BuyerEmail: "a@example.com",
	})
	assert.True(t, errs.Is(err, errs.ValidationFailed))
}

func TestCheckoutRejectsWhenTableFull(t *testing.T) {
	svc, db, _ := setupCheckout(t)
	seedEvent(t, db)
	ctx := context.Background()

	table := &models.Table{
		ID: "t1", OrganizationID: "org1", EventID: "e1", PrimaryOwnerID: "u-owner",
		Name: "Tight Table", Slug: "tight-table", Type: models.TableCaptainPAYG,
		Capacity: 2, Status: models.TableStatusActive, ReferenceCode: "TBL00001",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.CreateTable(ctx, table))

	sold := &models.Order{
		ID: "o-sold", OrganizationID: "org1", EventID: "e1", UserID: "u-owner",
		ProductID: "p-ind", TableID: "t1", Status: models.OrderCompleted,
		Quantity: 2, AmountCents: 100000, CreatedAt: time.Now(),
	}
	require.NoError(t, db.CreateOrder(ctx, sold))

	_, err := svc.Checkout(ctx, models.CheckoutRequest{
		ProductID: "p-ind", Quantity: 1, BuyerEmail: "late@example.com", TableID: "t1",
	})
	assert.True(t, errs.Is(err, errs.Conflict), "capacity is exhausted")
}

func TestFulfillPaidOrderRejectsSoldOutTable(t *testing.T) {
	svc, db, _ := setupCheckout(t)
	seedEvent(t, db)
	ctx := context.Background()

	buyer, err := db.FindOrCreateUserByEmail(ctx, "slow@example.com", "Sloane Slow")
	require.NoError(t, err)

	table := &models.Table{
		ID: "t1", OrganizationID: "org1", EventID: "e1", PrimaryOwnerID: "u-owner",
		Name: "Last Seats", Slug: "last-seats", Type: models.TableCaptainPAYG,
		Capacity: 2, Status: models.TableStatusActive, ReferenceCode: "TBL00001",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.CreateTable(ctx, table))

	// The buyer passed the checkout-time check, then someone else completed
	// an order for both remaining seats while the payment was in flight.
	pending := &models.Order{
		ID: "o-slow", OrganizationID: "org1", EventID: "e1", UserID: buyer.ID,
		ProductID: "p-ind", TableID: "t1", Status: models.OrderPending,
		Quantity: 1, AmountCents: 50000, PaymentIntentID: "pi_slow", CreatedAt: time.Now(),
	}
	require.NoError(t, db.CreateOrder(ctx, pending))
	require.NoError(t, db.CreateOrder(ctx, &models.Order{
		ID: "o-fast", OrganizationID: "org1", EventID: "e1", UserID: "u-owner",
		ProductID: "p-ind", TableID: "t1", Status: models.OrderCompleted,
		Quantity: 2, AmountCents: 100000, CreatedAt: time.Now(),
	}))

	meta := models.PaymentMetadata{
		OrderID: pending.ID, EventID: "e1", UserID: buyer.ID, ProductID: "p-ind",
		Quantity: 1, TableID: "t1", OrderFlow: models.FlowIndividualAtTable,
	}
	err = svc.FulfillPaidOrder(ctx, pending, meta, "ch_slow")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Conflict), "fulfillment rechecks capacity")

	reloaded, err := db.GetOrderByID(ctx, "o-slow")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, reloaded.Status, "the order stays pending for an operator")
	assert.Empty(t, reloaded.ChargeID)
}

func TestFulfillPaidOrderFullTableIsIdempotent(t *testing.T) {
	svc, db, _ := setupCheckout(t)
	seedEvent(t, db)
	ctx := context.Background()

	buyer, err := db.FindOrCreateUserByEmail(ctx, "host@example.com", "Harper Host")
	require.NoError(t, err)

	order := &models.Order{
		ID: "o-paid", OrganizationID: "org1", EventID: "e1", UserID: buyer.ID,
		ProductID: "p-table", Status: models.OrderPending, Quantity: 10,
		AmountCents: 500000, PaymentIntentID: "pi_live_1", CreatedAt: time.Now(),
	}
	require.NoError(t, db.CreateOrder(ctx, order))

	meta := models.PaymentMetadata{
		OrderID: order.ID, EventID: "e1", UserID: buyer.ID, ProductID: "p-table",
		Quantity: 10, OrderFlow: models.FlowFullTable, TableName: "Harper's Table",
	}
	require.NoError(t, svc.FulfillPaidOrder(ctx, order, meta, "ch_1"))

	completed, err := db.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, completed.Status)
	assert.Equal(t, "ch_1", completed.ChargeID)
	require.NotEmpty(t, completed.TableID)

	table, err := db.GetTableByID(ctx, completed.TableID)
	require.NoError(t, err)
	assert.Equal(t, models.TablePrepaid, table.Type)
	assert.Equal(t, "Harper's Table", table.Name)
	assert.Equal(t, buyer.ID, table.PrimaryOwnerID)

	guests, err := db.ListGuestAssignmentsByTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, guests, 1)
	assert.Equal(t, models.TierVIP, guests[0].Tier, "tier snapshot comes from the product")

	// Redelivery: already COMPLETED, nothing changes.
	require.NoError(t, svc.FulfillPaidOrder(ctx, completed, meta, "ch_1"))
	count, err := db.Bun.NewSelect().Model((*models.Table)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "no second table on redelivery")
}
