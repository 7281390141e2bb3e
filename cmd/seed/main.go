// Dev seeding tool: drops and recreates the schema from the bun models, then
// loads a sample organization with an event, products and a promo code so the
// checkout flows can be exercised locally. Never point this at production.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/config"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()
	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Dropping tables...")
	dropTables(ctx, db)

	log.Println("Creating tables...")
	createTables(ctx, db)

	log.Println("Seeding sample data...")
	seedData(ctx, db)

	log.Println("Done.")
}

// allModels in dependency order; drops run over it in reverse.
var allModels = []interface{}{
	(*models.Organization)(nil),
	(*models.User)(nil),
	(*models.OrganizationAdmin)(nil),
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

func dropTables(ctx context.Context, db *bun.DB) {
	for i := len(allModels) - 1; i >= 0; i-- {
		_, _ = db.NewDropTable().Model(allModels[i]).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	for _, m := range allModels {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	now := time.Now()

	org := models.Organization{
		ID: "org001", Name: "Harbor Light Foundation", Slug: "harbor-light", CreatedAt: now,
	}
	mustInsert(ctx, db, &org)

	users := []models.User{
		{ID: "user001", Email: "alice@example.com", Name: "Alice Moreau", IsSuperAdmin: true, CreatedAt: now},
		{ID: "user002", Email: "bob@example.com", Name: "Bob Keller", CreatedAt: now},
	}
	mustInsert(ctx, db, &users)

	event := models.Event{
		ID: "event001", OrganizationID: "org001", Name: "Harbor Light Spring Gala",
		Date: now.AddDate(0, 2, 0), IsActive: true, CreatedAt: now,
	}
	mustInsert(ctx, db, &event)

	products := []models.Product{
		{ID: "prod-ind", EventID: "event001", Name: "Individual Seat", Kind: models.ProductIndividualTicket,
			Tier: models.TierStandard, PriceCents: 50000, IsActive: true, CreatedAt: now},
		{ID: "prod-vip-table", EventID: "event001", Name: "VIP Table of Ten", Kind: models.ProductFullTable,
			Tier: models.TierVIP, PriceCents: 500000, TableCapacity: 10, IsActive: true, CreatedAt: now},
		{ID: "prod-captain", EventID: "event001", Name: "Host a Table", Kind: models.ProductCaptainCommitment,
			Tier: models.TierStandard, PriceCents: 0, TableCapacity: 8, IsActive: true, CreatedAt: now},
	}
	mustInsert(ctx, db, &products)

	promo := models.PromoCode{
		ID: "promo001", EventID: "event001", Code: "SPRING10",
		DiscountType: models.DiscountPercentage, Value: 10,
		IsActive: true, ValidFrom: now, MaxUses: 50, CreatedAt: now,
	}
	mustInsert(ctx, db, &promo)
}

func mustInsert(ctx context.Context, db *bun.DB, model interface{}) {
	if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed %T: %v", model, err)
	}
}
