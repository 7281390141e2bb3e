package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

// OrderFulfiller finishes a paid order once the provider confirms the
// charge. Implemented by the checkout service.
type OrderFulfiller interface {
	FulfillPaidOrder(ctx context.Context, order *models.Order, meta models.PaymentMetadata, chargeID string) error
}

// Service verifies, ledgers and dispatches Stripe webhook deliveries. Every
// delivery is acknowledged with 200 once its signature verifies; handler
// failures land on the ledger row instead of bouncing the delivery, because
// Stripe retries verbatim and a poison event would block the endpoint.
type Service struct {
	DB            *store.DB
	Fulfiller     OrderFulfiller
	Log           *logger.Logger
	WebhookSecret string
}

func NewService(db *store.DB, fulfiller OrderFulfiller, log *logger.Logger, webhookSecret string) *Service {
	return &Service{
		DB:            db,
		Fulfiller:     fulfiller,
		Log:           log,
		WebhookSecret: webhookSecret,
	}
}

// VerifyAndHandle checks the delivery signature and processes the event.
// A signature failure is the only error that should produce a non-2xx
// response.
func (s *Service) VerifyAndHandle(ctx context.Context, payload []byte, signature string) error {
	event, err := stripewebhook.ConstructEventWithOptions(payload, signature, s.WebhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return errs.Wrap(errs.Unauthorized, "webhook signature verification failed", err)
	}
	return s.HandleEvent(ctx, event)
}

// HandleEvent runs one delivery through the idempotency ledger. A replay of
// an already processed event id is acknowledged without re-dispatching. The
// returned error is always nil once the event is ledgered; dispatch failures
// are recorded on the row and acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	payload := ""
	if event.Data != nil {
		payload = string(event.Data.Raw)
	}
	entry, created, err := s.DB.UpsertEventLog(ctx, event.ID, string(event.Type), payload)
	if err != nil {
		return fmt.Errorf("failed to ledger webhook event %s: %w", event.ID, err)
	}
	if entry.Processed {
		s.Log.Info("WEBHOOK", fmt.Sprintf("Replay of already processed event %s, acknowledging", event.ID))
		return nil
	}
	if !created && entry.Error == "" {
		// The row exists, is unprocessed, and has no recorded outcome: a
		// concurrent delivery of the same event id is mid-dispatch. Ack and
		// let it finish; dispatching here would run the handler twice. A row
		// with an error recorded is a finished failed attempt and falls
		// through to redispatch.
		s.Log.Info("WEBHOOK", fmt.Sprintf("Event %s already in flight, acknowledging", event.ID))
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		s.Log.Error("WEBHOOK", fmt.Sprintf("Event %s (%s) failed: %v", event.ID, event.Type, err))
		if dbErr := s.DB.SetEventError(ctx, event.ID, err.Error()); dbErr != nil {
			s.Log.Error("WEBHOOK", fmt.Sprintf("Failed to record error for event %s: %v", event.ID, dbErr))
		}
		return nil
	}

	if err := s.DB.MarkEventProcessed(ctx, event.ID); err != nil {
		s.Log.Error("WEBHOOK", fmt.Sprintf("Failed to mark event %s processed: %v", event.ID, err))
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("failed to parse payment intent from event %s: %w", event.ID, err)
		}
		return s.handleIntentSucceeded(ctx, &intent)
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("failed to parse payment intent from event %s: %w", event.ID, err)
		}
		return s.handleIntentFailed(ctx, &intent)
	default:
		s.Log.Debug("WEBHOOK", fmt.Sprintf("Ignoring event type %s (%s)", event.Type, event.ID))
		return nil
	}
}

// handleIntentSucceeded reconstructs the purchase from intent metadata and
// hands it to the fulfiller. Metadata is untrusted on the way back in even
// though this server wrote it.
func (s *Service) handleIntentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	meta, err := models.ParsePaymentMetadata(intent.Metadata)
	if err != nil {
		return fmt.Errorf("intent %s: %w", intent.ID, err)
	}

	order, err := s.findOrder(ctx, intent.ID, meta.OrderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderCompleted {
		s.Log.Info("WEBHOOK", fmt.Sprintf("Order %s already completed, skipping intent %s", order.ID, intent.ID))
		return nil
	}

	chargeID := ""
	if intent.LatestCharge != nil {
		chargeID = intent.LatestCharge.ID
	}
	if err := s.Fulfiller.FulfillPaidOrder(ctx, order, meta, chargeID); err != nil {
		return fmt.Errorf("fulfillment of order %s failed: %w", order.ID, err)
	}
	return nil
}

// handleIntentFailed annotates the order with the decline and leaves it
// PENDING. The customer can retry on the same intent; a later success
// supersedes the annotation.
func (s *Service) handleIntentFailed(ctx context.Context, intent *stripe.PaymentIntent) error {
	order, err := s.findOrder(ctx, intent.ID, intent.Metadata["order_id"])
	if err != nil {
		return err
	}
	if order.Status == models.OrderCompleted {
		s.Log.Warn("WEBHOOK", fmt.Sprintf("Failure event for completed order %s (intent %s), ignoring", order.ID, intent.ID))
		return nil
	}

	message := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		message = intent.LastPaymentError.Msg
	}
	order.LastPaymentError = message
	order.UpdatedAt = time.Now()
	if err := s.DB.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to annotate order %s: %w", order.ID, err)
	}
	s.Log.Warn("WEBHOOK", fmt.Sprintf("Payment failed for order %s: %s", order.ID, message))
	return nil
}

// findOrder locates the order by intent id, falling back to the metadata
// order id for intents created before the id was written back.
func (s *Service) findOrder(ctx context.Context, intentID, metaOrderID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByPaymentIntentID(ctx, intentID)
	if err == nil {
		return order, nil
	}
	if !errs.Is(err, errs.NotFound) {
		return nil, err
	}
	if metaOrderID == "" {
		return nil, fmt.Errorf("no order found for intent %s", intentID)
	}
	order, err = s.DB.GetOrderByID(ctx, metaOrderID)
	if err != nil {
		return nil, fmt.Errorf("no order found for intent %s (metadata order %s): %w", intentID, metaOrderID, err)
	}
	return order, nil
}
