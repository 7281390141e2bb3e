package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("lower(email) = ?", strings.ToLower(email)).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "user with email %s not found", email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateUserByEmail resolves guest-checkout buyers and guest-addition
// recipients. A concurrent insert of the same email loses the race on the
// email uniqueness constraint, in which case the winner's row is returned.
func (d *DB) FindOrCreateUserByEmail(ctx context.Context, email, name string) (*models.User, error) {
	user, err := d.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errs.Is(err, errs.NotFound) {
		return nil, err
	}

	created := &models.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(email),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if _, err := d.Bun.NewInsert().Model(created).Exec(ctx); err != nil {
		if IsUniqueViolation(err) {
			return d.GetUserByEmail(ctx, email)
		}
		return nil, err
	}
	return created, nil
}
