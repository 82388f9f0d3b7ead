package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checklistColumns = `id, escrow_id, listing_id, buyer_id, seller_id, status, completed_at, created_at, updated_at`

const taskColumns = `
	id, checklist_id, task_name, task_category, task_description, status,
	buyer_confirmed, buyer_confirmed_at, seller_confirmed, seller_confirmed_at,
	completed_at, created_at, updated_at`

type ChecklistRepo struct {
	pool *pgxpool.Pool
}

func NewChecklistRepo(pool *pgxpool.Pool) *ChecklistRepo {
	return &ChecklistRepo{pool: pool}
}

func scanChecklist(row pgx.Row) (*models.MigrationChecklist, error) {
	var c models.MigrationChecklist
	err := row.Scan(&c.ID, &c.EscrowID, &c.ListingID, &c.BuyerID, &c.SellerID,
		&c.Status, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanTask(row pgx.Row) (*models.MigrationChecklistTask, error) {
	var t models.MigrationChecklistTask
	err := row.Scan(&t.ID, &t.ChecklistID, &t.TaskName, &t.TaskCategory, &t.TaskDescription, &t.Status,
		&t.BuyerConfirmed, &t.BuyerConfirmedAt, &t.SellerConfirmed, &t.SellerConfirmedAt,
		&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts the checklist and its initial tasks in one transaction.
func (r *ChecklistRepo) Create(ctx context.Context, c *models.MigrationChecklist, tasks []models.MigrationChecklistTask) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO migration_checklists (escrow_id, listing_id, buyer_id, seller_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, c.EscrowID, c.ListingID, c.BuyerID, c.SellerID, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapErr(err, "migration checklist")
	}

	for i := range tasks {
		tasks[i].ChecklistID = c.ID
		if err := insertTask(ctx, tx, &tasks[i]); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertTask(ctx context.Context, q pgx.Tx, t *models.MigrationChecklistTask) error {
	return q.QueryRow(ctx, `
		INSERT INTO migration_checklist_tasks (checklist_id, task_name, task_category, task_description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, t.ChecklistID, t.TaskName, t.TaskCategory, t.TaskDescription, t.Status).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *ChecklistRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MigrationChecklist, error) {
	c, err := scanChecklist(r.pool.QueryRow(ctx,
		`SELECT `+checklistColumns+` FROM migration_checklists WHERE id = $1`, id))
	return c, mapErr(err, "migration checklist")
}

func (r *ChecklistRepo) GetByEscrowID(ctx context.Context, escrowID uuid.UUID) (*models.MigrationChecklist, error) {
	c, err := scanChecklist(r.pool.QueryRow(ctx,
		`SELECT `+checklistColumns+` FROM migration_checklists WHERE escrow_id = $1`, escrowID))
	return c, mapErr(err, "migration checklist")
}

func (r *ChecklistRepo) ListTasks(ctx context.Context, checklistID uuid.UUID) ([]models.MigrationChecklistTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM migration_checklist_tasks
		WHERE checklist_id = $1
		ORDER BY task_category, created_at, id
	`, checklistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.MigrationChecklistTask, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CreateTask appends a task. The checklist row is locked so a task cannot
// slip in while the checklist is being completed.
func (r *ChecklistRepo) CreateTask(ctx context.Context, t *models.MigrationChecklistTask) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM migration_checklists WHERE id = $1 FOR UPDATE`, t.ChecklistID).Scan(&status)
	if err != nil {
		return mapErr(err, "migration checklist")
	}
	if status == models.ChecklistStatusComplete {
		return fmt.Errorf("checklist is already complete: %w", apperr.ErrInvalidTransition)
	}

	if err := insertTask(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateTask locks the task row and hands it to fn together with its
// checklist. Changes made by fn to the task are persisted.
func (r *ChecklistRepo) UpdateTask(
	ctx context.Context,
	taskID uuid.UUID,
	fn func(t *models.MigrationChecklistTask, c *models.MigrationChecklist) error,
) (*models.MigrationChecklistTask, *models.MigrationChecklist, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTask(tx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM migration_checklist_tasks WHERE id = $1 FOR UPDATE`, taskID))
	if err != nil {
		return nil, nil, mapErr(err, "migration task")
	}
	c, err := scanChecklist(tx.QueryRow(ctx,
		`SELECT `+checklistColumns+` FROM migration_checklists WHERE id = $1`, t.ChecklistID))
	if err != nil {
		return nil, nil, mapErr(err, "migration checklist")
	}

	if err := fn(t, c); err != nil {
		return nil, nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE migration_checklist_tasks SET
			status = $2, buyer_confirmed = $3, buyer_confirmed_at = $4,
			seller_confirmed = $5, seller_confirmed_at = $6, completed_at = $7, updated_at = $8
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Status, t.BuyerConfirmed, t.BuyerConfirmedAt,
		t.SellerConfirmed, t.SellerConfirmedAt, t.CompletedAt, time.Now(),
	).Scan(&t.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return t, c, nil
}

// CompleteIfDone flips the checklist to complete when it has at least one
// task and every task is complete. It returns nil when nothing changed, which
// is also what a concurrent caller that lost the race sees.
//
// The checklist row is locked first, the same lock CreateTask takes, and the
// tasks are counted in a later statement so a task inserted by a CreateTask
// that held the lock is visible.
func (r *ChecklistRepo) CompleteIfDone(ctx context.Context, checklistID uuid.UUID) (*models.MigrationChecklist, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM migration_checklists WHERE id = $1 FOR UPDATE`, checklistID).Scan(&status)
	if err != nil {
		return nil, mapErr(err, "migration checklist")
	}
	if status != models.ChecklistStatusInProgress {
		return nil, nil
	}

	var total, unfinished int
	err = tx.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE status <> 'complete')
		FROM migration_checklist_tasks
		WHERE checklist_id = $1
	`, checklistID).Scan(&total, &unfinished)
	if err != nil {
		return nil, err
	}
	if total == 0 || unfinished > 0 {
		return nil, nil
	}

	c, err := scanChecklist(tx.QueryRow(ctx, `
		UPDATE migration_checklists SET status = 'complete', completed_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+checklistColumns, checklistID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
