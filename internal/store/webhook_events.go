package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
)

// UpsertEventLog records a webhook delivery before dispatch, so a crash
// mid-processing leaves a retriable unprocessed row. Concurrent deliveries
// of the same provider event id collapse onto one row via the event_id
// uniqueness constraint; the loser reads back the winner's row. The returned
// bool reports whether this call inserted the row: callers use it to tell a
// first delivery from one that landed on an existing entry.
func (d *DB) UpsertEventLog(ctx context.Context, eventID, eventType, payload string) (*models.StripeEventLog, bool, error) {
	entry := &models.StripeEventLog{
		ID:        uuid.NewString(),
		EventID:   eventID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			existing, err := d.GetEventLogByEventID(ctx, eventID)
			return existing, false, err
		}
		return nil, false, err
	}
	return entry, true, nil
}

func (d *DB) GetEventLogByEventID(ctx context.Context, eventID string) (*models.StripeEventLog, error) {
	var entry models.StripeEventLog
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, errs.Newf(errs.NotFound, "webhook event %s not logged", eventID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (d *DB) MarkEventProcessed(ctx context.Context, eventID string) error {
	now := time.Now()
	_, err := d.Bun.NewUpdate().
		Model((*models.StripeEventLog)(nil)).
		Set("processed = ?", true).
		Set("processed_at = ?", now).
		Set("error = NULL").
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

// SetEventError persists the handler failure on the ledger row while leaving
// processed=false, keeping the failure observable to operators.
func (d *DB) SetEventError(ctx context.Context, eventID, message string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.StripeEventLog)(nil)).
		Set("error = ?", message).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

func (d *DB) ListUnprocessedEvents(ctx context.Context, limit int) ([]models.StripeEventLog, error) {
	var entries []models.StripeEventLog
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("processed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
