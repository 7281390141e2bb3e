package guests

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/permission"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/refcode"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/seats"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

// Change kinds published to the guest-change stream.
const (
	ChangeAdded       = "added"
	ChangeRemoved     = "removed"
	ChangeEdited      = "edited"
	ChangeTransferred = "transferred"
	ChangeCheckedIn   = "checked_in"
)

// ChangePublisher streams guest mutations for dashboards and the seating
// sheet sync. Best effort; failures are logged, never surfaced.
type ChangePublisher interface {
	PublishGuestChanged(guest models.GuestAssignment, change string) error
}

type Service struct {
	DB        *store.DB
	Resolver  *permission.Resolver
	Publisher ChangePublisher
	Log       *logger.Logger
}

func NewService(db *store.DB, resolver *permission.Resolver, publisher ChangePublisher, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Resolver:  resolver,
		Publisher: publisher,
		Log:       log,
	}
}

type AddGuestRequest struct {
	// Either an existing user id or an email to find-or-create against.
	UserID              string `json:"user_id,omitempty"`
	Email               string `json:"email,omitempty"`
	DisplayName         string `json:"display_name,omitempty"`
	DietaryRestrictions string `json:"dietary_restrictions,omitempty"`
	// OrderID pins the seat to a specific order; when empty the oldest
	// order with a free seat is claimed.
	OrderID string `json:"order_id,omitempty"`
}

type EditGuestRequest struct {
	DisplayName         *string `json:"display_name,omitempty"`
	DietaryRestrictions *string `json:"dietary_restrictions,omitempty"`
	BidderNumber        *string `json:"bidder_number,omitempty"`
	AuctionRegistered   *bool   `json:"auction_registered,omitempty"`
}

type TransferRequest struct {
	// Recipient: an existing user id or an email to find-or-create against.
	ToUserID string `json:"to_user_id,omitempty"`
	ToEmail  string `json:"to_email,omitempty"`
	ToName   string `json:"to_name,omitempty"`
	// CarryDetails keeps dietary restrictions, bidder number, auction
	// registration and check-in state on the seat; by default they are
	// reset for the new holder.
	CarryDetails bool `json:"carry_details,omitempty"`
}

// AddGuest seats a person at a table against the oldest completed order that
// still has an unassigned seat. The claim, the assignment row and the audit
// entry commit together so two concurrent adds can never oversell an order.
func (s *Service) AddGuest(ctx context.Context, actorID, tableID string, req AddGuestRequest) (*models.GuestAssignment, error) {
	decision, err := s.Resolver.ResolveTable(ctx, actorID, tableID, permission.ActionAddGuest)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errs.New(errs.Forbidden, decision.Reason)
	}

	table, err := s.DB.GetTableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}

	guestUser, err := s.resolveGuestUser(ctx, req)
	if err != nil {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = guestUser.Name
	}

	var guest *models.GuestAssignment
	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		// Row-lock the table before counting. The claim is count-then-insert;
		// without the lock two claimants of the order's last seat both see it
		// free under read committed. The (table,user) constraint only catches
		// the same user twice, not two different users.
		if _, err := tx.GetTableByIDForUpdate(ctx, tableID); err != nil {
			return err
		}

		calc := seats.NewCalculator(tx)
		var order *models.Order
		if req.OrderID != "" {
			claimable, err := calc.CanClaimSeat(ctx, req.OrderID)
			if err != nil {
				return err
			}
			if !claimable {
				return errs.Newf(errs.Conflict, "order %s has no unassigned seats left", req.OrderID)
			}
			order, err = tx.GetOrderByID(ctx, req.OrderID)
			if err != nil {
				return err
			}
			if order.TableID != tableID {
				return errs.New(errs.ValidationFailed, "order does not belong to this table")
			}
		} else {
			var err error
			order, err = calc.SelectClaimableOrder(ctx, tableID)
			if err != nil {
				return err
			}
		}
		product, err := tx.GetProductByID(ctx, order.ProductID)
		if err != nil {
			return err
		}
		code, err := refcode.NewGenerator(tx).GuestCode(ctx, table.OrganizationID)
		if err != nil {
			return err
		}

		guest = &models.GuestAssignment{
			ID:                  uuid.NewString(),
			OrganizationID:      table.OrganizationID,
			EventID:             table.EventID,
			TableID:             tableID,
			UserID:              guestUser.ID,
			OrderID:             order.ID,
			DisplayName:         displayName,
			Tier:                product.Tier,
			ReferenceCode:       code,
			DietaryRestrictions: req.DietaryRestrictions,
			CreatedAt:           time.Now(),
		}
		if err := tx.CreateGuestAssignment(ctx, guest); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, &models.ActivityLog{
			OrganizationID: table.OrganizationID,
			EventID:        table.EventID,
			ActorID:        actorID,
			Action:         models.ActionGuestAdded,
			EntityType:     "guest_assignment",
			EntityID:       guest.ID,
			Metadata: map[string]interface{}{
				"table_id": tableID,
				"user_id":  guestUser.ID,
				"order_id": order.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(*guest, ChangeAdded)
	return guest, nil
}

// RemoveGuest deletes an assignment, freeing its seat back into the order's
// placeholder pool. On pay-your-own-way tables the self-paying rule in the
// resolver governs who may do this.
func (s *Service) RemoveGuest(ctx context.Context, actorID, guestID string) error {
	guest, err := s.DB.GetGuestAssignmentByID(ctx, guestID)
	if err != nil {
		return err
	}
	decision, err := s.Resolver.CheckRemoveGuest(ctx, actorID, guest)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return errs.New(errs.Forbidden, decision.Reason)
	}

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		if err := tx.DeleteGuestAssignment(ctx, guest.ID); err != nil {
			return err
		}
		// Identity snapshot: the row is gone after this, the audit trail is
		// the only place the removed guest remains visible.
		return tx.InsertActivity(ctx, &models.ActivityLog{
			OrganizationID: guest.OrganizationID,
			EventID:        guest.EventID,
			ActorID:        actorID,
			Action:         models.ActionGuestRemoved,
			EntityType:     "guest_assignment",
			EntityID:       guest.ID,
			Metadata: map[string]interface{}{
				"table_id":       guest.TableID,
				"user_id":        guest.UserID,
				"display_name":   guest.DisplayName,
				"reference_code": guest.ReferenceCode,
			},
		})
	})
	if err != nil {
		return err
	}

	s.publish(*guest, ChangeRemoved)
	return nil
}

// EditGuest updates the mutable guest fields. Nil fields are untouched.
func (s *Service) EditGuest(ctx context.Context, actorID, guestID string, req EditGuestRequest) (*models.GuestAssignment, error) {
	guest, err := s.DB.GetGuestAssignmentByID(ctx, guestID)
	if err != nil {
		return nil, err
	}
	decision, err := s.Resolver.CheckEditGuest(ctx, actorID, guest)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errs.New(errs.Forbidden, decision.Reason)
	}

	changed := map[string]interface{}{}
	if req.DisplayName != nil {
		guest.DisplayName = *req.DisplayName
		changed["display_name"] = *req.DisplayName
	}
	if req.DietaryRestrictions != nil {
		guest.DietaryRestrictions = *req.DietaryRestrictions
		changed["dietary_restrictions"] = *req.DietaryRestrictions
	}
	if req.BidderNumber != nil {
		guest.BidderNumber = *req.BidderNumber
		changed["bidder_number"] = *req.BidderNumber
	}
	if req.AuctionRegistered != nil {
		guest.AuctionRegistered = *req.AuctionRegistered
		changed["auction_registered"] = *req.AuctionRegistered
	}
	if len(changed) == 0 {
		return guest, nil
	}
	guest.UpdatedAt = time.Now()

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		if err := tx.UpdateGuestAssignment(ctx, guest); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, &models.ActivityLog{
			OrganizationID: guest.OrganizationID,
			EventID:        guest.EventID,
			ActorID:        actorID,
			Action:         models.ActionGuestEdited,
			EntityType:     "guest_assignment",
			EntityID:       guest.ID,
			Metadata:       changed,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(*guest, ChangeEdited)
	return guest, nil
}

// TransferTicket reassigns a seat to another person. Per-person state does
// not travel with the seat by default: dietary restrictions, bidder number,
// auction registration and check-in are cleared for the new holder unless
// the caller asks to carry them forward.
func (s *Service) TransferTicket(ctx context.Context, actorID, guestID string, req TransferRequest) (*models.GuestAssignment, error) {
	guest, err := s.DB.GetGuestAssignmentByID(ctx, guestID)
	if err != nil {
		return nil, err
	}
	decision, err := s.Resolver.CheckTransfer(ctx, actorID, guest)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errs.New(errs.Forbidden, decision.Reason)
	}

	target, err := s.resolveGuestUser(ctx, AddGuestRequest{UserID: req.ToUserID, Email: req.ToEmail, DisplayName: req.ToName})
	if err != nil {
		return nil, err
	}
	if target.ID == guest.UserID {
		return nil, errs.New(errs.ValidationFailed, "ticket is already held by this user")
	}

	fromUserID := guest.UserID
	guest.UserID = target.ID
	guest.DisplayName = firstNonEmpty(req.ToName, target.Name)
	if !req.CarryDetails {
		guest.DietaryRestrictions = ""
		guest.BidderNumber = ""
		guest.AuctionRegistered = false
		guest.CheckedInAt = nil
	}
	guest.UpdatedAt = time.Now()

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		if err := tx.UpdateGuestAssignment(ctx, guest); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, &models.ActivityLog{
			OrganizationID: guest.OrganizationID,
			EventID:        guest.EventID,
			ActorID:        actorID,
			Action:         models.ActionTicketTransferred,
			EntityType:     "guest_assignment",
			EntityID:       guest.ID,
			Metadata: map[string]interface{}{
				"table_id":        guest.TableID,
				"from_user_id":    fromUserID,
				"to_user_id":      target.ID,
				"carried_details": req.CarryDetails,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("GUESTS", fmt.Sprintf("Ticket %s transferred from %s to %s", guest.ID, fromUserID, target.ID))
	s.publish(*guest, ChangeTransferred)
	return guest, nil
}

// CheckIn marks a guest as arrived by their reference code. A second scan of
// the same code is rejected so door staff see the duplicate instead of
// silently re-admitting.
func (s *Service) CheckIn(ctx context.Context, actorID, referenceCode string) (*models.GuestAssignment, error) {
	guest, err := s.DB.GetGuestAssignmentByReferenceCode(ctx, referenceCode)
	if err != nil {
		return nil, err
	}
	if guest.CheckedInAt != nil {
		return nil, errs.Newf(errs.Conflict, "guest %s already checked in at %s",
			guest.DisplayName, guest.CheckedInAt.Format(time.RFC3339))
	}

	now := time.Now()
	guest.CheckedInAt = &now
	guest.UpdatedAt = now

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		if err := tx.UpdateGuestAssignment(ctx, guest); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, &models.ActivityLog{
			OrganizationID: guest.OrganizationID,
			EventID:        guest.EventID,
			ActorID:        actorID,
			Action:         models.ActionGuestCheckedIn,
			EntityType:     "guest_assignment",
			EntityID:       guest.ID,
			Metadata: map[string]interface{}{
				"table_id":       guest.TableID,
				"reference_code": guest.ReferenceCode,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(*guest, ChangeCheckedIn)
	return guest, nil
}

// ListTableGuests returns the table roster for anyone allowed to view it.
func (s *Service) ListTableGuests(ctx context.Context, actorID, tableID string) ([]models.GuestAssignment, error) {
	decision, err := s.Resolver.ResolveTable(ctx, actorID, tableID, permission.ActionView)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, errs.New(errs.Forbidden, decision.Reason)
	}
	return s.DB.ListGuestAssignmentsByTable(ctx, tableID)
}

func (s *Service) resolveGuestUser(ctx context.Context, req AddGuestRequest) (*models.User, error) {
	if req.UserID != "" {
		return s.DB.GetUserByID(ctx, req.UserID)
	}
	if req.Email != "" {
		return s.DB.FindOrCreateUserByEmail(ctx, req.Email, req.DisplayName)
	}
	return nil, errs.New(errs.ValidationFailed, "guest identity is required: supply user_id or email")
}

func (s *Service) publish(guest models.GuestAssignment, change string) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishGuestChanged(guest, change); err != nil {
		s.Log.Warn("KAFKA", fmt.Sprintf("Failed to publish guest change %s for %s: %v", change, guest.ID, err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
