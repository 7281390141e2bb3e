package store

import (
	"context"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "event %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := d.Bun.NewSelect().
		Model(&product).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "product %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (d *DB) IsOrganizationAdmin(ctx context.Context, orgID, userID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.OrganizationAdmin)(nil)).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
		Exists(ctx)
}

func (d *DB) GetOrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := d.Bun.NewSelect().
		Model(&org).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "organization %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}
