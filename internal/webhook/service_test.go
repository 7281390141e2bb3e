package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

type stubFulfiller struct {
	calls []string
	err   error
}

func (s *stubFulfiller) FulfillPaidOrder(ctx context.Context, order *models.Order, meta models.PaymentMetadata, chargeID string) error {
	s.calls = append(s.calls, order.ID)
	if s.err != nil {
		return s.err
	}
	order.Status = models.OrderCompleted
	return nil
}

func setupWebhook(t *testing.T) (*Service, *store.DB, *stubFulfiller) {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	for _, model := range []interface{}{
		(*models.Order)(nil),
		(*models.StripeEventLog)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(model).Exec(context.Background())
		require.NoError(t, err)
	}

	db := &store.DB{Bun: bunDB}
	fulfiller := &stubFulfiller{}
	svc := NewService(db, fulfiller, logger.NewLogger(), "whsec_test")
	return svc, db, fulfiller
}

func seedPendingOrder(t *testing.T, db *store.DB, orderID, intentID string) {
	t.Helper()
	require.NoError(t, db.CreateOrder(context.Background(), &models.Order{
		ID: orderID, OrganizationID: "org1", EventID: "e1", UserID: "u1",
		ProductID: "p1", Status: models.OrderPending, Quantity: 2,
		AmountCents: 100000, PaymentIntentID: intentID, CreatedAt: time.Now(),
	}))
}

func intentEvent(t *testing.T, eventID, eventType, intentID string, metadata map[string]string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":       intentID,
		"metadata": metadata,
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   eventID,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func validMetadata(orderID string) map[string]string {
	return map[string]string{
		"order_id":   orderID,
		"event_id":   "e1",
		"user_id":    "u1",
		"product_id": "p1",
		"quantity":   "2",
		"order_flow": models.FlowIndividual,
	}
}

func TestHandleEventSucceededMarksProcessed(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()
	seedPendingOrder(t, db, "o1", "pi_1")

	event := intentEvent(t, "evt_1", "payment_intent.succeeded", "pi_1", validMetadata("o1"))
	require.NoError(t, svc.HandleEvent(ctx, event))

	assert.Equal(t, []string{"o1"}, fulfiller.calls)

	entry, err := db.GetEventLogByEventID(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, entry.Processed)
	assert.Empty(t, entry.Error)
}

func TestHandleEventReplayIsNoOp(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()
	seedPendingOrder(t, db, "o1", "pi_1")

	event := intentEvent(t, "evt_1", "payment_intent.succeeded", "pi_1", validMetadata("o1"))
	require.NoError(t, svc.HandleEvent(ctx, event))
	require.NoError(t, svc.HandleEvent(ctx, event))

	assert.Len(t, fulfiller.calls, 1, "replayed event id must not re-dispatch")
}

func TestHandleEventInFlightDuplicateDoesNotDispatch(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()
	seedPendingOrder(t, db, "o1", "pi_1")

	// Another delivery of the same event id has ledgered the row and is
	// still dispatching: unprocessed, no recorded outcome.
	_, created, err := db.UpsertEventLog(ctx, "evt_1", "payment_intent.succeeded", "{}")
	require.NoError(t, err)
	require.True(t, created)

	event := intentEvent(t, "evt_1", "payment_intent.succeeded", "pi_1", validMetadata("o1"))
	require.NoError(t, svc.HandleEvent(ctx, event))

	assert.Empty(t, fulfiller.calls, "the concurrent delivery owns the dispatch")

	entry, err := db.GetEventLogByEventID(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, entry.Processed)
	assert.Empty(t, entry.Error)
}

func TestHandleEventRedeliveryRetriesAfterFailure(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()
	seedPendingOrder(t, db, "o1", "pi_1")
	fulfiller.err = assert.AnError

	event := intentEvent(t, "evt_1", "payment_intent.succeeded", "pi_1", validMetadata("o1"))
	require.NoError(t, svc.HandleEvent(ctx, event))
	require.Len(t, fulfiller.calls, 1)

	entry, err := db.GetEventLogByEventID(ctx, "evt_1")
	require.NoError(t, err)
	require.NotEmpty(t, entry.Error)

	// The failure is fixed; the provider redelivers the same event id.
	fulfiller.err = nil
	require.NoError(t, svc.HandleEvent(ctx, event))

	assert.Len(t, fulfiller.calls, 2, "a ledgered failure is retried on redelivery")

	entry, err = db.GetEventLogByEventID(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, entry.Processed)
	assert.Empty(t, entry.Error)
}

func TestHandleEventMissingMetadataRecordsError(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()
	seedPendingOrder(t, db, "o1", "pi_1")

	meta := validMetadata("o1")
	delete(meta, "user_id")
	event := intentEvent(t, "evt_bad", "payment_intent.succeeded", "pi_1", meta)

	// The delivery is still acknowledged; the failure lives on the ledger.
	require.NoError(t, svc.HandleEvent(ctx, event))
	assert.Empty(t, fulfiller.calls)

	entry, err := db.GetEventLogByEventID(ctx, "evt_bad")
	require.NoError(t, err)
	assert.False(t, entry.Processed)
	assert.Contains(t, entry.Error, "user_id")
}

func TestHandleEventFulfillerFailureRecordsError(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()
	seedPendingOrder(t, db, "o1", "pi_1")
	fulfiller.err = assert.AnError

	event := intentEvent(t, "evt_1", "payment_intent.succeeded", "pi_1", validMetadata("o1"))
	require.NoError(t, svc.HandleEvent(ctx, event))

	entry, err := db.GetEventLogByEventID(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, entry.Processed)
	assert.NotEmpty(t, entry.Error)

	// The event stays visible for operators to retry after a fix.
	pending, err := db.ListUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestHandleEventUnknownOrderRecordsError(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()

	event := intentEvent(t, "evt_orphan", "payment_intent.succeeded", "pi_missing", validMetadata("o-missing"))
	require.NoError(t, svc.HandleEvent(ctx, event))
	assert.Empty(t, fulfiller.calls)

	entry, err := db.GetEventLogByEventID(ctx, "evt_orphan")
	require.NoError(t, err)
	assert.False(t, entry.Processed)
	assert.NotEmpty(t, entry.Error)
}

func TestHandleEventPaymentFailedAnnotatesOrder(t *testing.T) {
	svc, db, _ := setupWebhook(t)
	ctx := context.Background()
	seedPendingOrder(t, db, "o1", "pi_1")

	raw, err := json.Marshal(map[string]interface{}{
		"id":                 "pi_1",
		"metadata":           map[string]string{"order_id": "o1"},
		"last_payment_error": map[string]interface{}{"message": "card was declined"},
	})
	require.NoError(t, err)
	event := stripe.Event{
		ID:   "evt_fail",
		Type: "payment_intent.payment_failed",
		Data: &stripe.EventData{Raw: raw},
	}
	require.NoError(t, svc.HandleEvent(ctx, event))

	order, err := db.GetOrderByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status, "a failed payment keeps the order pending for retry")
	assert.Equal(t, "card was declined", order.LastPaymentError)

	entry, err := db.GetEventLogByEventID(ctx, "evt_fail")
	require.NoError(t, err)
	assert.True(t, entry.Processed)
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()

	event := stripe.Event{
		ID:   "evt_other",
		Type: "charge.refunded",
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	require.NoError(t, svc.HandleEvent(ctx, event))
	assert.Empty(t, fulfiller.calls)

	entry, err := db.GetEventLogByEventID(ctx, "evt_other")
	require.NoError(t, err)
	assert.True(t, entry.Processed, "unhandled event types are acknowledged and closed out")
}

func TestFindOrderFallsBackToMetadata(t *testing.T) {
	svc, db, fulfiller := setupWebhook(t)
	ctx := context.Background()

	// Order exists but the intent id was never written back (crash between
	// intent creation and the update).
	require.NoError(t, db.CreateOrder(ctx, &models.Order{
		ID: "o-naked", OrganizationID: "org1", EventID: "e1", UserID: "u1",
		ProductID: "p1", Status: models.OrderPending, Quantity: 1,
		AmountCents: 50000, CreatedAt: time.Now(),
	}))

	event := intentEvent(t, "evt_fb", "payment_intent.succeeded", "pi_unknown", validMetadata("o-naked"))
	require.NoError(t, svc.HandleEvent(ctx, event))
	assert.Equal(t, []string{"o-naked"}, fulfiller.calls)
}
