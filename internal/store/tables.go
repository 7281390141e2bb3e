package store

import (
	"context"
	"time"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

func (d *DB) CreateTable(ctx context.Context, table *models.Table) error {
	_, err := d.Bun.NewInsert().Model(table).Exec(ctx)
	return err
}

func (d *DB) GetTableByID(ctx context.Context, id string) (*models.Table, error) {
	var table models.Table
	err := d.Bun.NewSelect().
		Model(&table).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "table %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// GetTableByIDForUpdate row-locks the table for the rest of the transaction.
// Seat claims and completion-time capacity checks take this lock before
// counting, so two concurrent claimants of the last seat serialize instead of
// both passing the count.
func (d *DB) GetTableByIDForUpdate(ctx context.Context, id string) (*models.Table, error) {
	var table models.Table
	err := d.lockForUpdate(d.Bun.NewSelect().
		Model(&table).
		Where("id = ?", id)).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "table %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (d *DB) UpdateTable(ctx context.Context, table *models.Table) error {
	table.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(table).
		Column("name", "capacity", "status", "updated_at").
		Where("id = ?", table.ID).
		Exec(ctx)
	return err
}

func (d *DB) TableReferenceCodeExists(ctx context.Context, eventID, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Table)(nil)).
		Where("event_id = ?", eventID).
		Where("reference_code = ?", code).
		Exists(ctx)
}

// ---------------- TABLE ROLES ----------------

func (d *DB) CreateTableUserRole(ctx context.Context, role *models.TableUserRole) error {
	_, err := d.Bun.NewInsert().Model(role).Exec(ctx)
	if IsUniqueViolation(err) {
		// Role already granted; granting is idempotent.
		return nil
	}
	return err
}

// GetRolesForUser returns the explicit role rows a user holds on a table.
// The primary owner's implicit OWNER role is the resolver's business, not
// the store's.
func (d *DB) GetRolesForUser(ctx context.Context, tableID, userID string) ([]string, error) {
	var roles []string
	err := d.Bun.NewSelect().
		Model((*models.TableUserRole)(nil)).
		Column("role").
		Where("table_id = ?", tableID).
		Where("user_id = ?", userID).
		Scan(ctx, &roles)
	if err != nil {
		return nil, err
	}
	return roles, nil
}
