package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/refcode"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/seats"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

// EventPublisher streams completed-order events to downstream consumers
// (dashboards, sheet sync trigger). Publishing is best effort and never
// blocks or fails a checkout.
type EventPublisher interface {
	PublishOrderCompleted(order models.Order) error
}

// Service validates a purchase request, prices it, and either completes a
// zero-cost order synchronously or parks a pending order behind a payment
// intent for the webhook to finish.
type Service struct {
	DB       *store.DB
	Seats    *seats.Calculator
	Intents  IntentCreator
	Events   EventPublisher
	Locker   TableLocker
	Log      *logger.Logger
	Currency string
}

func NewService(db *store.DB, intents IntentCreator, events EventPublisher, locker TableLocker, log *logger.Logger, currency string) *Service {
	if locker == nil {
		locker = NoopTableLock()
	}
	return &Service{
		DB:       db,
		Seats:    seats.NewCalculator(db),
		Intents:  intents,
		Events:   events,
		Locker:   locker,
		Log:      log,
		Currency: currency,
	}
}

const maxSeatQuantity = 10

func (s *Service) Checkout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	buyer, err := s.resolveBuyer(ctx, req)
	if err != nil {
		return nil, err
	}

	product, err := s.DB.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, errs.Newf(errs.ValidationFailed, "product %q is no longer available", product.Name)
	}
	if req.EventID != "" && req.EventID != product.EventID {
		return nil, errs.New(errs.ValidationFailed, "product does not belong to the requested event")
	}
	event, err := s.DB.GetEventByID(ctx, product.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive {
		return nil, errs.Newf(errs.ValidationFailed, "event %q is not open for checkout", event.Name)
	}

	if err := validateQuantity(product.Kind, req.Quantity); err != nil {
		return nil, err
	}

	flow := orderFlow(product.Kind, req.TableID)

	var table *models.Table
	if flow == models.FlowIndividualAtTable {
		table, err = s.DB.GetTableByID(ctx, req.TableID)
		if err != nil {
			return nil, err
		}
		if table.EventID != event.ID {
			return nil, errs.New(errs.ValidationFailed, "table does not belong to this event")
		}
		if table.Status != models.TableStatusActive {
			return nil, errs.Newf(errs.ValidationFailed, "table %q is not accepting guests", table.Name)
		}

		// The capacity check and the order insert are not one atomic step;
		// the per-table lock keeps two concurrent buyers of the last seats
		// from both passing the check.
		lockToken := uuid.NewString()
		locked, err := s.Locker.LockTable(ctx, table.ID, lockToken)
		if err != nil {
			return nil, fmt.Errorf("failed to lock table %s: %w", table.ID, err)
		}
		if !locked {
			return nil, errs.Newf(errs.Conflict, "table %q has a purchase in progress, try again shortly", table.Name)
		}
		defer func() {
			if err := s.Locker.UnlockTable(ctx, table.ID, lockToken); err != nil {
				s.Log.Warn("CHECKOUT", fmt.Sprintf("Failed to release lock on table %s: %v", table.ID, err))
			}
		}()

		if err := s.Seats.CheckPurchaseCapacity(ctx, table, req.Quantity); err != nil {
			return nil, err
		}
	}

	// A full-table order is requested with quantity 1 but holds one seat per
	// chair: the buyer takes the first, the rest stay placeholders.
	seatQuantity := req.Quantity
	if product.Kind == models.ProductFullTable {
		seatQuantity = product.TableCapacity
		if seatQuantity <= 0 {
			seatQuantity = 10
		}
	}

	subtotal := Subtotal(product.Kind, product.PriceCents, req.Quantity)

	var promo *models.PromoCode
	var discount int64
	if req.PromoCode != "" {
		promo, err = s.DB.GetPromoCode(ctx, event.ID, req.PromoCode)
		if err != nil {
			return nil, err
		}
		if err := ValidatePromo(promo, time.Now()); err != nil {
			return nil, err
		}
		discount = Discount(promo, subtotal)
	}

	total := subtotal - discount
	if total < 0 {
		total = 0
	}

	order := &models.Order{
		ID:             uuid.NewString(),
		OrganizationID: event.OrganizationID,
		EventID:        event.ID,
		UserID:         buyer.ID,
		ProductID:      product.ID,
		TableID:        req.TableID,
		Quantity:       seatQuantity,
		AmountCents:    total,
		DiscountCents:  discount,
		CreatedAt:      time.Now(),
	}
	if promo != nil {
		order.PromoCodeID = promo.ID
	}

	if total == 0 {
		if err := s.completeZeroCost(ctx, order, product, event, buyer, promo, flow, req.TableName); err != nil {
			return nil, err
		}
		s.Log.Info("CHECKOUT", fmt.Sprintf("Order %s completed synchronously (amount 0)", order.ID))
		if s.Events != nil {
			if err := s.Events.PublishOrderCompleted(*order); err != nil {
				s.Log.Warn("KAFKA", fmt.Sprintf("Failed to publish completed order %s: %v", order.ID, err))
			}
		}
		return &models.CheckoutResponse{RequiresPayment: false, OrderID: order.ID}, nil
	}

	// Paid path. The pending order and the provider round-trip are two
	// separately committed steps: a transaction must never be held open
	// across the intent call. A pending order with no intent id can exist
	// transiently and is safe to retry or sweep.
	order.Status = models.OrderPending
	if err := s.DB.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create pending order: %w", err)
	}

	meta := models.PaymentMetadata{
		OrderID:   order.ID,
		EventID:   event.ID,
		UserID:    buyer.ID,
		ProductID: product.ID,
		Quantity:  seatQuantity,
		TableID:   req.TableID,
		OrderFlow: flow,
		TableName: req.TableName,
	}
	if promo != nil {
		meta.PromoCodeID = promo.ID
	}

	intent, err := s.Intents.CreateIntent(ctx, IntentParams{
		AmountCents:  total,
		Currency:     s.Currency,
		Metadata:     meta.ToMap(),
		ReceiptEmail: buyer.Email,
	})
	if err != nil {
		s.Log.Error("CHECKOUT", fmt.Sprintf("Payment intent creation failed for order %s: %v", order.ID, err))
		return nil, errs.Wrap(errs.External, "payment provider rejected the charge", err)
	}

	order.PaymentIntentID = intent.ID
	if err := s.DB.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to attach payment intent to order %s: %w", order.ID, err)
	}

	s.Log.Info("CHECKOUT", fmt.Sprintf("Order %s pending payment via intent %s (%d %s)",
		order.ID, intent.ID, total, s.Currency))
	return &models.CheckoutResponse{
		RequiresPayment: true,
		OrderID:         order.ID,
		ClientSecret:    intent.ClientSecret,
	}, nil
}

// FulfillPaidOrder completes an order after the payment provider confirms
// the charge. The webhook calls this with the metadata it pulled off the
// intent; the table creation, status flip, buyer seat, promo bump and audit
// entry commit atomically. Calling it again for an already COMPLETED order is
// a no-op, which makes provider redeliveries safe.
func (s *Service) FulfillPaidOrder(ctx context.Context, order *models.Order, meta models.PaymentMetadata, chargeID string) error {
	if order.Status == models.OrderCompleted {
		return nil
	}

	product, err := s.DB.GetProductByID(ctx, order.ProductID)
	if err != nil {
		return err
	}
	event, err := s.DB.GetEventByID(ctx, order.EventID)
	if err != nil {
		return err
	}
	buyer, err := s.DB.GetUserByID(ctx, order.UserID)
	if err != nil {
		return err
	}

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		switch meta.OrderFlow {
		case models.FlowFullTable:
			table, err := s.createPrepaidTable(ctx, tx, event, buyer, product, meta.TableName)
			if err != nil {
				return err
			}
			order.TableID = table.ID
		case models.FlowCaptainCommitment:
			table, err := s.createCaptainTable(ctx, tx, event, buyer, product, meta.TableName)
			if err != nil {
				return err
			}
			order.TableID = table.ID
		case models.FlowIndividualAtTable:
			// The checkout-time capacity check only gated the pending order;
			// the table may have sold out while payment was in flight. The
			// row lock plus recheck here is what actually holds the capacity
			// invariant. Failing leaves the order PENDING and the webhook
			// event errored on the ledger for an operator to resolve.
			table, err := tx.GetTableByIDForUpdate(ctx, order.TableID)
			if err != nil {
				return err
			}
			if err := seats.NewCalculator(tx).CheckPurchaseCapacity(ctx, table, order.Quantity); err != nil {
				return err
			}
		}

		order.Status = models.OrderCompleted
		order.ChargeID = chargeID
		order.LastPaymentError = ""
		order.UpdatedAt = time.Now()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to complete order %s: %w", order.ID, err)
		}

		if order.TableID != "" {
			if err := s.assignBuyerSeat(ctx, tx, order, product, buyer); err != nil {
				return err
			}
		}

		if order.PromoCodeID != "" {
			if err := tx.IncrementPromoUsage(ctx, order.PromoCodeID); err != nil {
				return fmt.Errorf("failed to increment promo usage: %w", err)
			}
		}

		return tx.InsertActivity(ctx, &models.ActivityLog{
			OrganizationID: order.OrganizationID,
			EventID:        order.EventID,
			ActorID:        buyer.ID,
			Action:         models.ActionOrderCompleted,
			EntityType:     "order",
			EntityID:       order.ID,
			Metadata: map[string]interface{}{
				"quantity":     order.Quantity,
				"amount_cents": order.AmountCents,
				"order_flow":   meta.OrderFlow,
				"charge_id":    chargeID,
			},
		})
	})
	if err != nil {
		return err
	}

	s.Log.Info("CHECKOUT", fmt.Sprintf("Order %s completed via payment (%d %s)", order.ID, order.AmountCents, s.Currency))
	if s.Events != nil {
		if err := s.Events.PublishOrderCompleted(*order); err != nil {
			s.Log.Warn("KAFKA", fmt.Sprintf("Failed to publish completed order %s: %v", order.ID, err))
		}
	}
	return nil
}

// createPrepaidTable builds the table a full-table purchase pays for up
// front. The buyer becomes primary owner with no captain role: prepaid
// guests do not pay their own way.
func (s *Service) createPrepaidTable(ctx context.Context, tx *store.DB, event *models.Event,
	buyer *models.User, product *models.Product, tableName string) (*models.Table, error) {

	code, err := refcode.NewGenerator(tx).TableCode(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	capacity := product.TableCapacity
	if capacity <= 0 {
		capacity = 10
	}
	if tableName == "" {
		tableName = fmt.Sprintf("%s's Table", buyer.Name)
	}

	table := &models.Table{
		ID:             uuid.NewString(),
		OrganizationID: event.OrganizationID,
		EventID:        event.ID,
		PrimaryOwnerID: buyer.ID,
		Name:           tableName,
		Slug:           slugify(tableName),
		Type:           models.TablePrepaid,
		Capacity:       capacity,
		Status:         models.TableStatusActive,
		ReferenceCode:  code,
		CreatedAt:      time.Now(),
	}
	if err := tx.CreateTable(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to create prepaid table: %w", err)
	}

	if err := tx.CreateTableUserRole(ctx, &models.TableUserRole{
		TableID:   table.ID,
		UserID:    buyer.ID,
		Role:      models.RoleOwner,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to grant OWNER role: %w", err)
	}

	if err := tx.InsertActivity(ctx, &models.ActivityLog{
		OrganizationID: event.OrganizationID,
		EventID:        event.ID,
		ActorID:        buyer.ID,
		Action:         models.ActionTableCreated,
		EntityType:     "table",
		EntityID:       table.ID,
		Metadata: map[string]interface{}{
			"name":     table.Name,
			"type":     table.Type,
			"capacity": table.Capacity,
		},
	}); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *Service) resolveBuyer(ctx context.Context, req models.CheckoutRequest) (*models.User, error) {
	if req.UserID != "" {
		return s.DB.GetUserByID(ctx, req.UserID)
	}
	if req.BuyerEmail != "" {
		return s.DB.FindOrCreateUserByEmail(ctx, req.BuyerEmail, req.BuyerName)
	}
	return nil, errs.New(errs.ValidationFailed, "buyer identity is required: sign in or supply buyer_email")
}

func validateQuantity(kind string, quantity int) error {
	if kind == models.ProductFullTable {
		if quantity != 1 {
			return errs.New(errs.ValidationFailed, "full-table purchases must have quantity 1")
		}
		return nil
	}
	if quantity < 1 || quantity > maxSeatQuantity {
		return errs.Newf(errs.ValidationFailed, "quantity must be between 1 and %d", maxSeatQuantity)
	}
	return nil
}

func orderFlow(kind, tableID string) string {
	switch {
	case kind == models.ProductFullTable:
		return models.FlowFullTable
	case kind == models.ProductCaptainCommitment:
		return models.FlowCaptainCommitment
	case tableID != "":
		return models.FlowIndividualAtTable
	default:
		return models.FlowIndividual
	}
}

// completeZeroCost finishes a $0 order in one transaction: the order row,
// the captain's table and roles when committing to one, the buyer's own
// assignment, the promo bump and the audit entries all land together or not
// at all.
func (s *Service) completeZeroCost(ctx context.Context, order *models.Order, product *models.Product,
	event *models.Event, buyer *models.User, promo *models.PromoCode, flow, tableName string) error {

	return s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		switch flow {
		case models.FlowCaptainCommitment:
			table, err := s.createCaptainTable(ctx, tx, event, buyer, product, tableName)
			if err != nil {
				return err
			}
			order.TableID = table.ID
		case models.FlowFullTable:
			// A fully discounted table purchase still creates its table.
			table, err := s.createPrepaidTable(ctx, tx, event, buyer, product, tableName)
			if err != nil {
				return err
			}
			order.TableID = table.ID
		case models.FlowIndividualAtTable:
			// Recheck under a row lock; the pre-transaction check ran without
			// one and a concurrent completion may have taken the last seats.
			table, err := tx.GetTableByIDForUpdate(ctx, order.TableID)
			if err != nil {
				return err
			}
			if err := seats.NewCalculator(tx).CheckPurchaseCapacity(ctx, table, order.Quantity); err != nil {
				return err
			}
		}

		order.Status = models.OrderCompleted
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create completed order: %w", err)
		}

		if order.TableID != "" {
			if err := s.assignBuyerSeat(ctx, tx, order, product, buyer); err != nil {
				return err
			}
		}

		if promo != nil {
			if err := tx.IncrementPromoUsage(ctx, promo.ID); err != nil {
				return fmt.Errorf("failed to increment promo usage: %w", err)
			}
		}

		return tx.InsertActivity(ctx, &models.ActivityLog{
			OrganizationID: order.OrganizationID,
			EventID:        order.EventID,
			ActorID:        buyer.ID,
			Action:         models.ActionOrderCompleted,
			EntityType:     "order",
			EntityID:       order.ID,
			Metadata: map[string]interface{}{
				"quantity":     order.Quantity,
				"amount_cents": order.AmountCents,
				"order_flow":   flow,
			},
		})
	})
}

func (s *Service) createCaptainTable(ctx context.Context, tx *store.DB, event *models.Event,
	buyer *models.User, product *models.Product, tableName string) (*models.Table, error) {

	code, err := refcode.NewGenerator(tx).TableCode(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	capacity := product.TableCapacity
	if capacity <= 0 {
		capacity = 10
	}
	if tableName == "" {
		tableName = fmt.Sprintf("%s's Table", buyer.Name)
	}

	table := &models.Table{
		ID:             uuid.NewString(),
		OrganizationID: event.OrganizationID,
		EventID:        event.ID,
		PrimaryOwnerID: buyer.ID,
		Name:           tableName,
		Slug:           slugify(tableName),
		Type:           models.TableCaptainPAYG,
		Capacity:       capacity,
		Status:         models.TableStatusActive,
		ReferenceCode:  code,
		CreatedAt:      time.Now(),
	}
	if err := tx.CreateTable(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to create captain table: %w", err)
	}

	for _, role := range []string{models.RoleOwner, models.RoleCaptain} {
		if err := tx.CreateTableUserRole(ctx, &models.TableUserRole{
			TableID:   table.ID,
			UserID:    buyer.ID,
			Role:      role,
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("failed to grant %s role: %w", role, err)
		}
	}

	if err := tx.InsertActivity(ctx, &models.ActivityLog{
		OrganizationID: event.OrganizationID,
		EventID:        event.ID,
		ActorID:        buyer.ID,
		Action:         models.ActionTableCreated,
		EntityType:     "table",
		EntityID:       table.ID,
		Metadata: map[string]interface{}{
			"name":     table.Name,
			"type":     table.Type,
			"capacity": table.Capacity,
		},
	}); err != nil {
		return nil, err
	}
	return table, nil
}

// assignBuyerSeat creates the buyer's own assignment for the first seat of
// the order, skipping quietly when one already exists at the table.
func (s *Service) assignBuyerSeat(ctx context.Context, tx *store.DB, order *models.Order,
	product *models.Product, buyer *models.User) error {

	_, err := tx.GetGuestAssignmentByTableAndUser(ctx, order.TableID, buyer.ID)
	if err == nil {
		return nil
	}
	if !errs.Is(err, errs.NotFound) {
		return err
	}

	code, err := refcode.NewGenerator(tx).GuestCode(ctx, order.OrganizationID)
	if err != nil {
		return err
	}
	guest := &models.GuestAssignment{
		ID:             uuid.NewString(),
		OrganizationID: order.OrganizationID,
		EventID:        order.EventID,
		TableID:        order.TableID,
		UserID:         buyer.ID,
		OrderID:        order.ID,
		DisplayName:    buyer.Name,
		Tier:           product.Tier,
		ReferenceCode:  code,
		CreatedAt:      time.Now(),
	}
	if err := tx.CreateGuestAssignment(ctx, guest); err != nil {
		return err
	}
	return tx.InsertActivity(ctx, &models.ActivityLog{
		OrganizationID: order.OrganizationID,
		EventID:        order.EventID,
		ActorID:        buyer.ID,
		Action:         models.ActionGuestAdded,
		EntityType:     "guest_assignment",
		EntityID:       guest.ID,
		Metadata: map[string]interface{}{
			"table_id": order.TableID,
			"user_id":  buyer.ID,
			"tier":     guest.Tier,
		},
	})
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	// Short random suffix keeps slugs unique per event without a lookup.
	return fmt.Sprintf("%s-%s", slug, uuid.NewString()[:8])
}
