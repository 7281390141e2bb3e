package store

import (
	"context"
	"time"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

// CreateGuestAssignment inserts an assignment row. The (table_id, user_id)
// uniqueness constraint is the final arbiter for concurrent claims of the
// same seat by the same user; the loser gets Conflict.
func (d *DB) CreateGuestAssignment(ctx context.Context, guest *models.GuestAssignment) error {
	_, err := d.Bun.NewInsert().Model(guest).Exec(ctx)
	if IsUniqueViolation(err) {
		return errs.New(errs.Conflict, "guest is already assigned to this table")
	}
	return err
}

func (d *DB) GetGuestAssignmentByID(ctx context.Context, id string) (*models.GuestAssignment, error) {
	var guest models.GuestAssignment
	err := d.Bun.NewSelect().
		Model(&guest).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "guest assignment %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

func (d *DB) GetGuestAssignmentByTableAndUser(ctx context.Context, tableID, userID string) (*models.GuestAssignment, error) {
	var guest models.GuestAssignment
	err := d.Bun.NewSelect().
		Model(&guest).
		Where("table_id = ?", tableID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "no assignment for user %s at table %s", userID, tableID)
	}
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

// GetGuestAssignmentByReferenceCode looks a guest up by code alone. Check-in
// scans carry no organization context, so the lookup is global.
func (d *DB) GetGuestAssignmentByReferenceCode(ctx context.Context, code string) (*models.GuestAssignment, error) {
	var guest models.GuestAssignment
	err := d.Bun.NewSelect().
		Model(&guest).
		Where("reference_code = ?", code).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "no guest assignment with reference code %s", code)
	}
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

func (d *DB) CountAssignmentsByTable(ctx context.Context, tableID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.GuestAssignment)(nil)).
		Where("table_id = ?", tableID).
		Count(ctx)
}

func (d *DB) CountAssignmentsByOrder(ctx context.Context, orderID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.GuestAssignment)(nil)).
		Where("order_id = ?", orderID).
		Count(ctx)
}

func (d *DB) ListGuestAssignmentsByTable(ctx context.Context, tableID string) ([]models.GuestAssignment, error) {
	var guests []models.GuestAssignment
	err := d.Bun.NewSelect().
		Model(&guests).
		Where("table_id = ?", tableID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return guests, nil
}

func (d *DB) UpdateGuestAssignment(ctx context.Context, guest *models.GuestAssignment) error {
	guest.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(guest).
		Column("user_id", "display_name", "dietary_restrictions", "bidder_number",
			"auction_registered", "checked_in_at", "updated_at").
		Where("id = ?", guest.ID).
		Exec(ctx)
	if IsUniqueViolation(err) {
		return errs.New(errs.Conflict, "recipient is already assigned to this table")
	}
	return err
}

func (d *DB) DeleteGuestAssignment(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.GuestAssignment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) GuestReferenceCodeExists(ctx context.Context, orgID, code string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.GuestAssignment)(nil)).
		Where("organization_id = ?", orgID).
		Where("reference_code = ?", code).
		Exists(ctx)
}
