package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
)

type Action string

const (
	ActionView        Action = "view"
	ActionEdit        Action = "edit"
	ActionAddGuest    Action = "add_guest"
	ActionRemoveGuest Action = "remove_guest"
	ActionEditGuest   Action = "edit_guest"
	ActionManageRoles Action = "manage_roles"
	ActionDelete      Action = "delete"
	ActionTransfer    Action = "transfer"
)

// Decision is the resolver's answer. Denials always carry a human-readable
// reason; the API layer surfaces it verbatim to admins.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Role    string `json:"role,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func allow(role string) Decision {
	return Decision{Allowed: true, Role: role}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// AdminSource answers the admin short-circuit: super admins and organization
// admins pass every check unconditionally.
type AdminSource interface {
	IsAdmin(ctx context.Context, orgID, userID string) (bool, error)
}

// StoreAdminSource resolves admin status straight from the store. The auth
// package wraps it with a Redis cache for request paths.
type StoreAdminSource struct {
	DB *store.DB
}

func (s *StoreAdminSource) IsAdmin(ctx context.Context, orgID, userID string) (bool, error) {
	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return false, nil
		}
		return false, err
	}
	if user.IsSuperAdmin {
		return true, nil
	}
	return s.DB.IsOrganizationAdmin(ctx, orgID, userID)
}

// staticMatrix is the role→action permission table. remove_guest on
// CAPTAIN_PAYG tables is NOT fully governed by it; CheckRemoveGuest layers
// the self-paying rule on top. Never fold that rule back in here: it depends
// on order-buyer vs. assignee data the matrix cannot express.
var staticMatrix = map[string]map[Action]bool{
	models.RoleOwner: {
		ActionView: true, ActionEdit: true, ActionAddGuest: true, ActionRemoveGuest: true,
		ActionEditGuest: true, ActionManageRoles: true, ActionDelete: true,
	},
	models.RoleCoOwner: {
		ActionView: true, ActionEdit: true, ActionAddGuest: true, ActionRemoveGuest: true,
		ActionEditGuest: true,
	},
	models.RoleCaptain: {
		ActionView: true, ActionEdit: true, ActionAddGuest: true, ActionRemoveGuest: true,
		ActionEditGuest: true,
	},
	models.RoleManager: {
		ActionView: true, ActionEdit: true, ActionAddGuest: true, ActionRemoveGuest: true,
		ActionEditGuest: true,
	},
	models.RoleStaff: {
		ActionView: true, ActionEditGuest: true,
	},
}

// rolePrecedence orders roles from most to least privileged; when a user
// holds several roles on one table, the first applicable one governs.
var rolePrecedence = []string{
	models.RoleOwner,
	models.RoleCoOwner,
	models.RoleManager,
	models.RoleCaptain,
	models.RoleStaff,
}

type Resolver struct {
	DB     *store.DB
	Admins AdminSource
}

func NewResolver(db *store.DB, admins AdminSource) *Resolver {
	if admins == nil {
		admins = &StoreAdminSource{DB: db}
	}
	return &Resolver{DB: db, Admins: admins}
}

// ResolveTable answers whether userID may perform action on the table. For
// remove_guest on a CAPTAIN_PAYG table this is only the static-matrix
// capability; actual removals must go through CheckRemoveGuest.
func (r *Resolver) ResolveTable(ctx context.Context, userID, tableID string, action Action) (Decision, error) {
	table, err := r.DB.GetTableByID(ctx, tableID)
	if err != nil {
		return Decision{}, err
	}
	return r.resolveOnTable(ctx, userID, table, action)
}

func (r *Resolver) resolveOnTable(ctx context.Context, userID string, table *models.Table, action Action) (Decision, error) {
	isAdmin, err := r.Admins.IsAdmin(ctx, table.OrganizationID, userID)
	if err != nil {
		return Decision{}, err
	}
	if isAdmin {
		return allow(models.RoleAdmin), nil
	}

	role, err := r.roleOnTable(ctx, userID, table)
	if err != nil {
		return Decision{}, err
	}
	if role != "" {
		if staticMatrix[role][action] {
			return allow(role), nil
		}
		return deny(fmt.Sprintf("%s role does not permit %s on this table", role, action)), nil
	}

	// A user with no role who is themselves a guest at the table may still
	// view it.
	if action == ActionView {
		if _, err := r.DB.GetGuestAssignmentByTableAndUser(ctx, table.ID, userID); err == nil {
			return allow(""), nil
		} else if !errs.Is(err, errs.NotFound) {
			return Decision{}, err
		}
	}
	return deny(fmt.Sprintf("user has no role on table %q", table.Name)), nil
}

// roleOnTable resolves the governing role: primary ownership implies OWNER,
// otherwise the highest-privilege explicit role row.
func (r *Resolver) roleOnTable(ctx context.Context, userID string, table *models.Table) (string, error) {
	if table.PrimaryOwnerID == userID {
		return models.RoleOwner, nil
	}
	roles, err := r.DB.GetRolesForUser(ctx, table.ID, userID)
	if err != nil {
		return "", err
	}
	held := make(map[string]bool, len(roles))
	for _, role := range roles {
		held[strings.ToUpper(role)] = true
	}
	for _, role := range rolePrecedence {
		if held[role] {
			return role, nil
		}
	}
	return "", nil
}

// CheckRemoveGuest applies the static remove_guest column plus the pay-your-
// own-way overlay: on a CAPTAIN_PAYG table a self-paying guest (assignment's
// order bought by the assignee) may be removed only by themselves or an
// admin. The captain coordinates seating but cannot eject someone who paid
// for their own seat.
func (r *Resolver) CheckRemoveGuest(ctx context.Context, actorID string, guest *models.GuestAssignment) (Decision, error) {
	table, err := r.DB.GetTableByID(ctx, guest.TableID)
	if err != nil {
		return Decision{}, err
	}
	isAdmin, err := r.Admins.IsAdmin(ctx, table.OrganizationID, actorID)
	if err != nil {
		return Decision{}, err
	}
	if isAdmin {
		return allow(models.RoleAdmin), nil
	}

	if table.Type == models.TableCaptainPAYG {
		order, err := r.DB.GetOrderByID(ctx, guest.OrderID)
		if err != nil {
			return Decision{}, err
		}
		if order.UserID == guest.UserID {
			if actorID == guest.UserID {
				return allow("SELF"), nil
			}
			return deny("a self-paying guest on a pay-your-own-way table can only be removed by themselves or an admin"), nil
		}
	}
	return r.resolveOnTable(ctx, actorID, table, ActionRemoveGuest)
}

// CheckEditGuest allows the assignee to edit their own details, otherwise
// defers to the edit_guest matrix column.
func (r *Resolver) CheckEditGuest(ctx context.Context, actorID string, guest *models.GuestAssignment) (Decision, error) {
	if actorID == guest.UserID {
		return allow("SELF"), nil
	}
	table, err := r.DB.GetTableByID(ctx, guest.TableID)
	if err != nil {
		return Decision{}, err
	}
	return r.resolveOnTable(ctx, actorID, table, ActionEditGuest)
}

// CheckTransfer gates ticket transfers: the assigned guest, the order's
// buyer, OWNER/CO_OWNER on a PREPAID table, or an admin.
func (r *Resolver) CheckTransfer(ctx context.Context, actorID string, guest *models.GuestAssignment) (Decision, error) {
	if actorID == guest.UserID {
		return allow("SELF"), nil
	}
	order, err := r.DB.GetOrderByID(ctx, guest.OrderID)
	if err != nil {
		return Decision{}, err
	}
	if order.UserID == actorID {
		return allow("BUYER"), nil
	}
	table, err := r.DB.GetTableByID(ctx, guest.TableID)
	if err != nil {
		return Decision{}, err
	}
	isAdmin, err := r.Admins.IsAdmin(ctx, table.OrganizationID, actorID)
	if err != nil {
		return Decision{}, err
	}
	if isAdmin {
		return allow(models.RoleAdmin), nil
	}
	if table.Type == models.TablePrepaid {
		role, err := r.roleOnTable(ctx, actorID, table)
		if err != nil {
			return Decision{}, err
		}
		if role == models.RoleOwner || role == models.RoleCoOwner {
			return allow(role), nil
		}
	}
	return deny("only the guest, the seat's buyer, a prepaid-table owner or an admin may transfer this ticket"), nil
}
