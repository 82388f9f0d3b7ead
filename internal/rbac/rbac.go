package rbac

import (
	"context"

	"github.com/google/uuid"
)

// Role constants
const (
	RoleAdmin = "admin"
	RoleParty = "party"
)

// Permission constants
const (
	PermViewEscrow         = "view_escrow"
	PermUpdateEscrowStatus = "update_escrow_status"
	PermGenerateInvoice    = "generate_invoice"
	PermManageChecklist    = "manage_checklist"
	PermConfirmTask        = "confirm_task"
	PermMarkFeeTransferred = "mark_fee_transferred"
	PermReadWebhookSecret  = "read_webhook_secret"
)

// RolePermissions defines what each role can do. A party is the buyer or the
// seller of the escrow in question; the service checks that separately.
var RolePermissions = map[string][]string{
	RoleParty: {
		PermViewEscrow, PermUpdateEscrowStatus, PermGenerateInvoice,
		PermManageChecklist, PermConfirmTask,
	},
	RoleAdmin: {
		PermMarkFeeTransferred,
		PermReadWebhookSecret,
		// Admin is NOT a party: viewing or moving someone else's escrow stays forbidden.
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation checks if permission moves or records platform money (admin-only).
func IsFinancialOperation(permission string) bool {
	return permission == PermMarkFeeTransferred
}

// Authorize reports whether a caller may perform permission on one escrow.
// isParty is whether the caller is its buyer or seller. Financial operations
// stay admin-only even for a party.
func Authorize(permission string, isParty, isAdmin bool) bool {
	if isAdmin && HasPermission(RoleAdmin, permission) {
		return true
	}
	if IsFinancialOperation(permission) {
		return false
	}
	return isParty && HasPermission(RoleParty, permission)
}

type RoleStore interface {
	HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error)
}

type Bootstrap interface {
	IsBootstrapAdmin(userID uuid.UUID) bool
}

// AdminChecker answers IsAdmin from the configured allow-list first and the
// user_roles table second.
type AdminChecker struct {
	bootstrap Bootstrap
	roles     RoleStore
}

func NewAdminChecker(bootstrap Bootstrap, roles RoleStore) *AdminChecker {
	return &AdminChecker{bootstrap: bootstrap, roles: roles}
}

func (a *AdminChecker) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	if a.bootstrap != nil && a.bootstrap.IsBootstrapAdmin(userID) {
		return true, nil
	}
	if a.roles == nil {
		return false, nil
	}
	return a.roles.HasRole(ctx, userID, RoleAdmin)
}
