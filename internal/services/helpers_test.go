package services

import (
	"context"
	"testing"

	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/bizmarket/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	mem       *testutil.Memory
	publisher *testutil.Publisher
	cfg       *config.Config

	escrow    *EscrowService
	fees      *FeeService
	webhooks  *WebhookService
	migration *MigrationService

	buyer, seller, stranger *models.User
	listing                 *models.Listing
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := testutil.NewMemory()
	pub := &testutil.Publisher{}
	cfg := &config.Config{
		PlatformFeePercent: decimal.NewFromInt(5),
		PlatformAccountID:  "platform-main",
		InvoiceBaseURL:     "https://billing.test",
	}
	log := zap.NewNop()

	admins := rbac.NewAdminChecker(cfg, mem.Users())
	escrowSvc := NewEscrowService(mem.Escrows(), mem.Listings(), mem.LOIs(), mem.Users(), mem.Audit(), pub, cfg, log)
	env := &testEnv{
		mem:       mem,
		publisher: pub,
		cfg:       cfg,
		escrow:    escrowSvc,
		fees:      NewFeeService(mem.Escrows(), admins, mem.Audit(), pub, cfg, log),
		webhooks:  NewWebhookService(mem.Escrows(), admins, mem.Audit(), pub, log),
		migration: NewMigrationService(mem.Escrows(), mem.Checklists(), escrowSvc, mem.Audit(), pub, log),
		buyer:     mem.AddUser("buyer@example.com"),
		seller:    mem.AddUser("seller@example.com"),
		stranger:  mem.AddUser("stranger@example.com"),
	}
	env.listing = mem.AddListing(env.seller.ID, "Handmade candles store")
	return env
}

func strPtr(s string) *string { return &s }

// createEscrow opens an escrow between the fixture buyer and seller.
func (e *testEnv) createEscrow(t *testing.T, ref string) *models.EscrowTransaction {
	t.Helper()
	in := CreateEscrowInput{
		ListingID:      e.listing.ID,
		SellerID:       e.seller.ID,
		EscrowAmount:   920000,
		EscrowProvider: strPtr("escrow.com"),
	}
	if ref != "" {
		in.EscrowReferenceID = strPtr(ref)
	}
	tx, err := e.escrow.Create(context.Background(), e.buyer.ID, in)
	require.NoError(t, err)
	return tx
}

// forceStatus sets the stored status directly, bypassing every rule.
func (e *testEnv) forceStatus(t *testing.T, id uuid.UUID, status string) {
	t.Helper()
	_, err := e.mem.Escrows().Update(context.Background(), id, func(tx *models.EscrowTransaction) error {
		tx.Status = status
		return nil
	})
	require.NoError(t, err)
}

// fundedChecklist returns a checklist with the given number of tasks on a funded escrow.
func (e *testEnv) fundedChecklist(t *testing.T, tasks int) (*models.EscrowTransaction, *models.ChecklistWithTasks) {
	t.Helper()
	ctx := context.Background()
	tx := e.createEscrow(t, "")
	e.forceStatus(t, tx.ID, models.EscrowStatusFunded)

	cl, err := e.migration.CreateChecklist(ctx, tx.ID, e.buyer.ID, false)
	require.NoError(t, err)
	categories := []string{models.TaskCategoryDomain, models.TaskCategoryHosting, models.TaskCategoryCode}
	for i := 0; i < tasks; i++ {
		_, err := e.migration.AddTask(ctx, cl.ID, e.seller.ID, AddTaskInput{
			TaskName:     "task " + categories[i%len(categories)],
			TaskCategory: categories[i%len(categories)],
		})
		require.NoError(t, err)
	}
	cl, err = e.migration.GetByEscrow(ctx, tx.ID, e.buyer.ID)
	require.NoError(t, err)
	return tx, cl
}
