package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	ChecklistStatusInProgress = "in_progress"
	ChecklistStatusComplete   = "complete"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusComplete   = "complete"
)

// Task categories
const (
	TaskCategoryDomain    = "domain"
	TaskCategoryHosting   = "hosting"
	TaskCategoryCode      = "code"
	TaskCategoryPayments  = "payments"
	TaskCategoryAds       = "ads"
	TaskCategoryInventory = "inventory"
	TaskCategoryOther     = "other"
)

var TaskCategories = []string{
	TaskCategoryDomain,
	TaskCategoryHosting,
	TaskCategoryCode,
	TaskCategoryPayments,
	TaskCategoryAds,
	TaskCategoryInventory,
	TaskCategoryOther,
}

func IsValidTaskCategory(category string) bool {
	for _, c := range TaskCategories {
		if c == category {
			return true
		}
	}
	return false
}

type MigrationChecklist struct {
	ID          uuid.UUID  `json:"id"`
	EscrowID    uuid.UUID  `json:"escrow_id"`
	ListingID   uuid.UUID  `json:"listing_id"`
	BuyerID     uuid.UUID  `json:"buyer_id"`
	SellerID    uuid.UUID  `json:"seller_id"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PartyRoles reports which side of the deal userID is on. Both can be true.
func (c *MigrationChecklist) PartyRoles(userID uuid.UUID) (isBuyer, isSeller bool) {
	if userID == uuid.Nil {
		return false, false
	}
	return c.BuyerID == userID, c.SellerID == userID
}

func (c *MigrationChecklist) IsParty(userID uuid.UUID) bool {
	b, s := c.PartyRoles(userID)
	return b || s
}

type MigrationChecklistTask struct {
	ID                uuid.UUID  `json:"id"`
	ChecklistID       uuid.UUID  `json:"checklist_id"`
	TaskName          string     `json:"task_name"`
	TaskCategory      string     `json:"task_category"`
	TaskDescription   *string    `json:"task_description,omitempty"`
	Status            string     `json:"status"`
	BuyerConfirmed    bool       `json:"buyer_confirmed"`
	BuyerConfirmedAt  *time.Time `json:"buyer_confirmed_at,omitempty"`
	SellerConfirmed   bool       `json:"seller_confirmed"`
	SellerConfirmedAt *time.Time `json:"seller_confirmed_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Confirm records the caller's acknowledgement for each role it holds and
// derives the status from the resulting flags. Flags never go back to false
// and complete is terminal. It returns true if anything changed.
func (t *MigrationChecklistTask) Confirm(asBuyer, asSeller bool, now time.Time) bool {
	changed := false
	if asBuyer && !t.BuyerConfirmed {
		at := now
		t.BuyerConfirmed = true
		t.BuyerConfirmedAt = &at
		changed = true
	}
	if asSeller && !t.SellerConfirmed {
		at := now
		t.SellerConfirmed = true
		t.SellerConfirmedAt = &at
		changed = true
	}

	switch {
	case t.BuyerConfirmed && t.SellerConfirmed:
		if t.Status != TaskStatusComplete {
			at := now
			t.Status = TaskStatusComplete
			t.CompletedAt = &at
			changed = true
		}
	case t.BuyerConfirmed || t.SellerConfirmed:
		if t.Status == TaskStatusPending {
			t.Status = TaskStatusInProgress
			changed = true
		}
	}
	return changed
}

// ChecklistWithTasks is a checklist plus its tasks ordered by category, then creation time.
type ChecklistWithTasks struct {
	MigrationChecklist
	Tasks []MigrationChecklistTask `json:"tasks"`
}

// SortTasks orders tasks by category, then creation time, then id.
func SortTasks(tasks []MigrationChecklistTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.TaskCategory != b.TaskCategory {
			return a.TaskCategory < b.TaskCategory
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

type TaskTemplate struct {
	Name        string
	Category    string
	Description string
}

// DefaultTaskTemplates seed a new checklist when the caller asks for defaults.
var DefaultTaskTemplates = []TaskTemplate{
	{"Transfer domain registration", TaskCategoryDomain, "Move the domain to the buyer's registrar account and update DNS."},
	{"Migrate hosting", TaskCategoryHosting, "Hand over or move the hosting account, servers and backups."},
	{"Hand over source code", TaskCategoryCode, "Transfer repositories, deploy keys and build pipelines."},
	{"Transfer payment accounts", TaskCategoryPayments, "Move payment processor and payout accounts to the buyer."},
	{"Transfer ad accounts", TaskCategoryAds, "Grant the buyer ownership of advertising and analytics accounts."},
	{"Hand over inventory", TaskCategoryInventory, "Transfer stock, supplier contacts and fulfilment access."},
}
