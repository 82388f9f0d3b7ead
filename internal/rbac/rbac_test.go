package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		perm string
		want bool
	}{
		{RoleParty, PermConfirmTask, true},
		{RoleParty, PermMarkFeeTransferred, false},
		{RoleAdmin, PermMarkFeeTransferred, true},
		{RoleAdmin, PermViewEscrow, false},
		{"unknown", PermViewEscrow, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestIsFinancialOperation(t *testing.T) {
	if !IsFinancialOperation(PermMarkFeeTransferred) {
		t.Error("fee transfer should be financial")
	}
	if IsFinancialOperation(PermGenerateInvoice) {
		t.Error("invoice generation should not be financial")
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		perm    string
		party   bool
		admin   bool
		allowed bool
	}{
		{"party views escrow", PermViewEscrow, true, false, true},
		{"stranger views escrow", PermViewEscrow, false, false, false},
		{"admin alone views escrow", PermViewEscrow, false, true, false},
		{"party confirms task", PermConfirmTask, true, false, true},
		{"party marks fee transferred", PermMarkFeeTransferred, true, false, false},
		{"admin marks fee transferred", PermMarkFeeTransferred, false, true, true},
		{"admin party updates status", PermUpdateEscrowStatus, true, true, true},
		{"party reads webhook secret", PermReadWebhookSecret, true, false, false},
		{"admin reads webhook secret", PermReadWebhookSecret, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.perm, tt.party, tt.admin); got != tt.allowed {
				t.Errorf("Authorize(%q, %v, %v) = %v, want %v", tt.perm, tt.party, tt.admin, got, tt.allowed)
			}
		})
	}
}

type allowList map[uuid.UUID]bool

func (a allowList) IsBootstrapAdmin(id uuid.UUID) bool { return a[id] }

type roleStore struct {
	admins map[uuid.UUID]bool
	err    error
}

func (r roleStore) HasRole(_ context.Context, id uuid.UUID, role string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return role == RoleAdmin && r.admins[id], nil
}

func TestAdminChecker(t *testing.T) {
	boot, fromTable, nobody := uuid.New(), uuid.New(), uuid.New()
	checker := NewAdminChecker(allowList{boot: true}, roleStore{admins: map[uuid.UUID]bool{fromTable: true}})
	ctx := context.Background()

	tests := []struct {
		name string
		id   uuid.UUID
		want bool
	}{
		{"bootstrap list", boot, true},
		{"role row", fromTable, true},
		{"no role", nobody, false},
		{"nil id", uuid.Nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.IsAdmin(ctx, tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAdmin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdminChecker_StoreError(t *testing.T) {
	boom := errors.New("boom")
	checker := NewAdminChecker(allowList{}, roleStore{err: boom})
	if _, err := checker.IsAdmin(context.Background(), uuid.New()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}
