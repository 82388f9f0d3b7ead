package services

import (
	"context"

	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/repositories"
	"github.com/google/uuid"
)

// Store interfaces are satisfied by the pgx repositories and by the
// in-memory stores in internal/testutil.

type EscrowStore interface {
	Create(ctx context.Context, e *models.EscrowTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	GetByReferenceID(ctx context.Context, referenceID string) (*models.EscrowTransaction, error)
	List(ctx context.Context, f repositories.EscrowFilter) ([]models.EscrowTransaction, error)
	Update(ctx context.Context, id uuid.UUID, fn func(e *models.EscrowTransaction) error) (*models.EscrowTransaction, error)
}

type ChecklistStore interface {
	Create(ctx context.Context, c *models.MigrationChecklist, tasks []models.MigrationChecklistTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MigrationChecklist, error)
	GetByEscrowID(ctx context.Context, escrowID uuid.UUID) (*models.MigrationChecklist, error)
	ListTasks(ctx context.Context, checklistID uuid.UUID) ([]models.MigrationChecklistTask, error)
	CreateTask(ctx context.Context, t *models.MigrationChecklistTask) error
	UpdateTask(ctx context.Context, taskID uuid.UUID,
		fn func(t *models.MigrationChecklistTask, c *models.MigrationChecklist) error,
	) (*models.MigrationChecklistTask, *models.MigrationChecklist, error)
	CompleteIfDone(ctx context.Context, checklistID uuid.UUID) (*models.MigrationChecklist, error)
}

type ListingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

type LOIStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.LOI, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastActive(ctx context.Context, id uuid.UUID) error
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// EscrowAdvancer moves an escrow forward on behalf of the system, but only
// when it currently sits in one of the from statuses.
type EscrowAdvancer interface {
	AdvanceFrom(ctx context.Context, escrowID uuid.UUID, from []string, to string, actorID *uuid.UUID) (*models.EscrowTransaction, bool, error)
}
