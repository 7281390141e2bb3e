package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	tables := []interface{}{
		(*models.Organization)(nil),
		(*models.OrganizationAdmin)(nil),
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.Product)(nil),
		(*models.Table)(nil),
		(*models.TableUserRole)(nil),
		(*models.PromoCode)(nil),
		(*models.Order)(nil),
		(*models.GuestAssignment)(nil),
		(*models.ActivityLog)(nil),
		(*models.StripeEventLog)(nil),
	}
	for _, model := range tables {
		_, err := bunDB.NewCreateTable().Model(model).Exec(context.Background())
		require.NoError(t, err)
	}
	return &store.DB{Bun: bunDB}
}

func TestFindOrCreateUserByEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created, err := db.FindOrCreateUserByEmail(ctx, "Alice@Example.com", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, "Alice", created.Name)

	again, err := db.FindOrCreateUserByEmail(ctx, "alice@example.com", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Alice", again.Name)
}

func TestGuestAssignmentUniquePerTableAndUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &models.GuestAssignment{
		ID:             uuid.NewString(),
		OrganizationID: "org1",
		EventID:        "event1",
		TableID:        "table1",
		UserID:         "user1",
		OrderID:        "order1",
		Tier:           models.TierStandard,
		ReferenceCode:  "AAAA0001",
		CreatedAt:      time.Now(),
	}
	require.NoError(t, db.CreateGuestAssignment(ctx, first))

	duplicate := &models.GuestAssignment{
		ID:             uuid.NewString(),
		OrganizationID: "org1",
		EventID:        "event1",
		TableID:        "table1",
		UserID:         "user1",
		OrderID:        "order2",
		Tier:           models.TierStandard,
		ReferenceCode:  "AAAA0002",
		CreatedAt:      time.Now(),
	}
	err := db.CreateGuestAssignment(ctx, duplicate)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Conflict))

	// Same user at a different table is fine.
	other := &models.GuestAssignment{
		ID:             uuid.NewString(),
		OrganizationID: "org1",
		EventID:        "event1",
		TableID:        "table2",
		UserID:         "user1",
		OrderID:        "order3",
		Tier:           models.TierStandard,
		ReferenceCode:  "AAAA0003",
		CreatedAt:      time.Now(),
	}
	assert.NoError(t, db.CreateGuestAssignment(ctx, other))
}

func TestGetTableByIDForUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	table := &models.Table{
		ID: "t1", OrganizationID: "org1", EventID: "e1", Name: "Table One",
		Capacity: 10, CreatedAt: time.Now(),
	}
	_, err := db.Bun.NewInsert().Model(table).Exec(ctx)
	require.NoError(t, err)

	err = db.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		locked, err := tx.GetTableByIDForUpdate(ctx, "t1")
		if err != nil {
			return err
		}
		assert.Equal(t, "Table One", locked.Name)
		return nil
	})
	require.NoError(t, err)

	_, err = db.GetTableByIDForUpdate(ctx, "missing")
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestCompletedSeatCountAndOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	orders := []models.Order{
		{ID: "o1", OrganizationID: "org1", EventID: "e1", UserID: "u1", ProductID: "p1",
			TableID: "t1", Status: models.OrderCompleted, Quantity: 3, AmountCents: 300, CreatedAt: base},
		{ID: "o2", OrganizationID: "org1", EventID: "e1", UserID: "u2", ProductID: "p1",
			TableID: "t1", Status: models.OrderCompleted, Quantity: 2, AmountCents: 200, CreatedAt: base.Add(time.Minute)},
		{ID: "o3", OrganizationID: "org1", EventID: "e1", UserID: "u3", ProductID: "p1",
			TableID: "t1", Status: models.OrderPending, Quantity: 5, AmountCents: 500, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range orders {
		require.NoError(t, db.CreateOrder(ctx, &orders[i]))
	}

	total, err := db.CompletedSeatCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 5, total, "pending orders must not count as purchased seats")

	completed, err := db.CompletedOrdersByTable(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, "o1", completed[0].ID, "oldest completed order must come first")
}

func TestIncrementPromoUsage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	promo := &models.PromoCode{
		ID:           "promo1",
		EventID:      "e1",
		Code:         "GALA10",
		DiscountType: models.DiscountPercentage,
		Value:        10,
		MaxUses:      5,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	_, err := db.Bun.NewInsert().Model(promo).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, db.IncrementPromoUsage(ctx, "promo1"))
	require.NoError(t, db.IncrementPromoUsage(ctx, "promo1"))

	reloaded, err := db.GetPromoCodeByID(ctx, "promo1")
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.CurrentUses)
}

func TestUpsertEventLogCollapsesDuplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, created, err := db.UpsertEventLog(ctx, "evt_1", "payment_intent.succeeded", `{"id":"pi_1"}`)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, first.Processed)

	require.NoError(t, db.MarkEventProcessed(ctx, "evt_1"))

	// A redelivery of the same provider event id lands on the winner's row.
	second, created, err := db.UpsertEventLog(ctx, "evt_1", "payment_intent.succeeded", `{"id":"pi_1"}`)
	require.NoError(t, err)
	assert.False(t, created, "redelivery must not insert a second row")
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Processed)
}

func TestSetEventErrorKeepsRowUnprocessed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, _, err := db.UpsertEventLog(ctx, "evt_2", "payment_intent.succeeded", "{}")
	require.NoError(t, err)

	require.NoError(t, db.SetEventError(ctx, "evt_2", "metadata missing required key"))

	entry, err := db.GetEventLogByEventID(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, entry.Processed)
	assert.Equal(t, "metadata missing required key", entry.Error)

	pending, err := db.ListUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt_2", pending[0].EventID)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		order := &models.Order{
			ID: "o1", OrganizationID: "org1", EventID: "e1", UserID: "u1", ProductID: "p1",
			Status: models.OrderCompleted, Quantity: 1, AmountCents: 0, CreatedAt: time.Now(),
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	_, err = db.GetOrderByID(ctx, "o1")
	assert.True(t, errs.Is(err, errs.NotFound), "rolled-back order must not be visible")
}

func TestCreateTableUserRoleIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	role := &models.TableUserRole{TableID: "t1", UserID: "u1", Role: models.RoleCaptain, CreatedAt: time.Now()}
	require.NoError(t, db.CreateTableUserRole(ctx, role))
	assert.NoError(t, db.CreateTableUserRole(ctx, role), "granting an already held role must be a no-op")
}
