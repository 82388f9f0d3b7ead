//go:build integration

package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/db"
	"github.com/bizmarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("bizmarket"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.NewPostgresPool(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.RunMigrations(ctx, pool, zap.NewNop()))
	return pool
}

type fixture struct {
	buyer, seller, listing uuid.UUID
}

func seed(t *testing.T, pool *pgxpool.Pool) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email) VALUES ($1) RETURNING id`, uuid.NewString()+"@buyer.test").Scan(&f.buyer))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email) VALUES ($1) RETURNING id`, uuid.NewString()+"@seller.test").Scan(&f.seller))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO listings (seller_id, title) VALUES ($1, 'Coffee shop storefront') RETURNING id`, f.seller).Scan(&f.listing))
	return f
}

func newEscrow(f fixture, ref string) *models.EscrowTransaction {
	provider := "escrow.com"
	return &models.EscrowTransaction{
		ListingID:          f.listing,
		BuyerID:            f.buyer,
		SellerID:           f.seller,
		EscrowAmount:       920000,
		PlatformFeePercent: decimal.NewFromInt(5),
		Status:             models.EscrowStatusInitiated,
		EscrowProvider:     &provider,
		EscrowReferenceID:  &ref,
		WebhookSecret:      "secret",
	}
}

func TestEscrowRepo_CreateGetUpdate(t *testing.T) {
	pool := setupPool(t)
	f := seed(t, pool)
	repo := NewEscrowRepo(pool)
	ctx := context.Background()

	e := newEscrow(f, "ref-1")
	require.NoError(t, repo.Create(ctx, e))
	require.NotEqual(t, uuid.Nil, e.ID)

	got, err := repo.GetByReferenceID(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.True(t, got.PlatformFeePercent.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "secret", got.WebhookSecret)

	err = repo.Create(ctx, newEscrow(f, "ref-1"))
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	updated, err := repo.Update(ctx, e.ID, func(e *models.EscrowTransaction) error {
		e.Status = models.EscrowStatusFunded
		e.StampStatus(models.EscrowStatusFunded, time.Now())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusFunded, updated.Status)
	assert.NotNil(t, updated.FundedAt)

	_, err = repo.Update(ctx, e.ID, func(e *models.EscrowTransaction) error {
		e.Status = models.EscrowStatusReleased
		return apperr.ErrInvalidTransition
	})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	got, err = repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusFunded, got.Status)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	list, err := repo.List(ctx, EscrowFilter{PartyID: &f.seller, Status: models.EscrowStatusFunded})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e.ID, list[0].ID)
}

func TestChecklistRepo_ConfirmAndComplete(t *testing.T) {
	pool := setupPool(t)
	f := seed(t, pool)
	escrows := NewEscrowRepo(pool)
	repo := NewChecklistRepo(pool)
	ctx := context.Background()

	e := newEscrow(f, "ref-2")
	require.NoError(t, escrows.Create(ctx, e))

	c := &models.MigrationChecklist{
		EscrowID: e.ID, ListingID: f.listing, BuyerID: f.buyer, SellerID: f.seller,
		Status: models.ChecklistStatusInProgress,
	}
	tasks := []models.MigrationChecklistTask{
		{TaskName: "Move domain", TaskCategory: models.TaskCategoryDomain, Status: models.TaskStatusPending},
		{TaskName: "Move code", TaskCategory: models.TaskCategoryCode, Status: models.TaskStatusPending},
	}
	require.NoError(t, repo.Create(ctx, c, tasks))

	err := repo.Create(ctx, &models.MigrationChecklist{
		EscrowID: e.ID, ListingID: f.listing, BuyerID: f.buyer, SellerID: f.seller,
		Status: models.ChecklistStatusInProgress,
	}, nil)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	listed, err := repo.ListTasks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, models.TaskCategoryCode, listed[0].TaskCategory)

	done, err := repo.CompleteIfDone(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, done)

	now := time.Now()
	for _, task := range listed {
		_, _, err := repo.UpdateTask(ctx, task.ID, func(t *models.MigrationChecklistTask, _ *models.MigrationChecklist) error {
			t.Confirm(true, true, now)
			return nil
		})
		require.NoError(t, err)
	}

	// Concurrent completion attempts must produce exactly one winner.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := repo.CompleteIfDone(ctx, c.ID)
			assert.NoError(t, err)
			if got != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	err = repo.CreateTask(ctx, &models.MigrationChecklistTask{
		ChecklistID: c.ID, TaskName: "Late", TaskCategory: models.TaskCategoryOther, Status: models.TaskStatusPending,
	})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestChecklistRepo_ConcurrentConfirmations(t *testing.T) {
	pool := setupPool(t)
	f := seed(t, pool)
	escrows := NewEscrowRepo(pool)
	repo := NewChecklistRepo(pool)
	ctx := context.Background()

	e := newEscrow(f, "ref-3")
	require.NoError(t, escrows.Create(ctx, e))
	c := &models.MigrationChecklist{
		EscrowID: e.ID, ListingID: f.listing, BuyerID: f.buyer, SellerID: f.seller,
		Status: models.ChecklistStatusInProgress,
	}
	tasks := []models.MigrationChecklistTask{
		{TaskName: "Move hosting", TaskCategory: models.TaskCategoryHosting, Status: models.TaskStatusPending},
	}
	require.NoError(t, repo.Create(ctx, c, tasks))

	var wg sync.WaitGroup
	for _, role := range []bool{true, false} {
		wg.Add(1)
		go func(asBuyer bool) {
			defer wg.Done()
			_, _, err := repo.UpdateTask(ctx, tasks[0].ID, func(t *models.MigrationChecklistTask, _ *models.MigrationChecklist) error {
				t.Confirm(asBuyer, !asBuyer, time.Now())
				return nil
			})
			assert.NoError(t, err)
		}(role)
	}
	wg.Wait()

	listed, err := repo.ListTasks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].BuyerConfirmed)
	assert.True(t, listed[0].SellerConfirmed)
	assert.Equal(t, models.TaskStatusComplete, listed[0].Status)
}

// A task added while the last task is being confirmed must either be rejected
// or keep the checklist open. It can never be left pending on a complete checklist.
func TestChecklistRepo_AddTaskRacesCompletion(t *testing.T) {
	pool := setupPool(t)
	f := seed(t, pool)
	escrows := NewEscrowRepo(pool)
	repo := NewChecklistRepo(pool)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		e := newEscrow(f, uuid.NewString())
		require.NoError(t, escrows.Create(ctx, e))
		c := &models.MigrationChecklist{
			EscrowID: e.ID, ListingID: f.listing, BuyerID: f.buyer, SellerID: f.seller,
			Status: models.ChecklistStatusInProgress,
		}
		tasks := []models.MigrationChecklistTask{
			{TaskName: "Move domain", TaskCategory: models.TaskCategoryDomain, Status: models.TaskStatusPending},
		}
		require.NoError(t, repo.Create(ctx, c, tasks))
		_, _, err := repo.UpdateTask(ctx, tasks[0].ID, func(t *models.MigrationChecklistTask, _ *models.MigrationChecklist) error {
			t.Confirm(true, true, time.Now())
			return nil
		})
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			addErr    error
			completed *models.MigrationChecklist
			doneErr   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			addErr = repo.CreateTask(ctx, &models.MigrationChecklistTask{
				ChecklistID: c.ID, TaskName: "Hand over ads", TaskCategory: models.TaskCategoryAds, Status: models.TaskStatusPending,
			})
		}()
		go func() {
			defer wg.Done()
			completed, doneErr = repo.CompleteIfDone(ctx, c.ID)
		}()
		wg.Wait()
		require.NoError(t, doneErr)

		got, err := repo.GetByID(ctx, c.ID)
		require.NoError(t, err)
		listed, err := repo.ListTasks(ctx, c.ID)
		require.NoError(t, err)

		if addErr == nil {
			require.Len(t, listed, 2)
			assert.Nil(t, completed, "round %d", i)
			assert.Equal(t, models.ChecklistStatusInProgress, got.Status, "round %d", i)
		} else {
			assert.True(t, errors.Is(addErr, apperr.ErrInvalidTransition), "round %d: %v", i, addErr)
			require.Len(t, listed, 1)
			assert.Equal(t, models.ChecklistStatusComplete, got.Status, "round %d", i)
		}
	}
}
