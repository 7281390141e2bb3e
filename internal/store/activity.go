package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

// InsertActivity appends one audit row. Every state-changing core operation
// writes exactly one of these inside its transaction.
func (d *DB) InsertActivity(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (d *DB) ListActivityByEvent(ctx context.Context, eventID string, limit int) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
