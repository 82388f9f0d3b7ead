package services

import (
	"context"
	"errors"
	"testing"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInvoice_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := env.createEscrow(t, "")

	first, err := env.fees.GenerateInvoice(ctx, tx.ID, env.buyer.ID)
	require.NoError(t, err)
	second, err := env.fees.GenerateInvoice(ctx, tx.ID, env.seller.ID)
	require.NoError(t, err)

	assert.Equal(t, *first.PlatformFeeAmount, *second.PlatformFeeAmount)
	assert.Equal(t, *first.BuyerTotalAmount, *second.BuyerTotalAmount)
	assert.Equal(t, *first.SellerNetAmount, *second.SellerNetAmount)
	assert.Equal(t, int64(46000), *second.PlatformFeeAmount)

	require.NotNil(t, second.FeeInvoiceURL)
	assert.Contains(t, *second.FeeInvoiceURL, "https://billing.test/invoices/"+tx.ID.String()+"?issued=")
}

func TestGenerateInvoice_MaterializesMissingFees(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := env.createEscrow(t, "")
	_, err := env.mem.Escrows().Update(ctx, tx.ID, func(e *models.EscrowTransaction) error {
		e.PlatformFeeAmount, e.BuyerTotalAmount, e.SellerNetAmount = nil, nil, nil
		e.PlatformFeePercent = decimal.Zero
		return nil
	})
	require.NoError(t, err)
	env.cfg.PlatformFeePercent = decimal.RequireFromString("2.5")

	got, err := env.fees.GenerateInvoice(ctx, tx.ID, env.buyer.ID)
	require.NoError(t, err)
	require.True(t, got.HasFees())
	assert.Equal(t, int64(23000), *got.PlatformFeeAmount)
	assert.Equal(t, "2.5", got.PlatformFeePercent.String())

	// the rate change does not touch a breakdown that already exists
	env.cfg.PlatformFeePercent = decimal.NewFromInt(10)
	again, err := env.fees.GenerateInvoice(ctx, tx.ID, env.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(23000), *again.PlatformFeeAmount)
}

func TestGenerateInvoice_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	tx := env.createEscrow(t, "")

	_, err := env.fees.GenerateInvoice(context.Background(), tx.ID, env.stranger.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.Nil(t, env.mem.Escrow(tx.ID).FeeInvoiceURL)
}

func TestMarkTransferred(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := env.createEscrow(t, "")
	admin := env.mem.AddUser("ops@example.com")
	require.NoError(t, env.mem.Users().GrantRole(ctx, admin.ID, rbac.RoleAdmin))

	_, err := env.fees.MarkTransferred(ctx, tx.ID, env.buyer.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	got, err := env.fees.MarkTransferred(ctx, tx.ID, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FeeTransferredAt)
	require.NotNil(t, got.PlatformAccountID)
	assert.Equal(t, "platform-main", *got.PlatformAccountID)

	_, err = env.fees.MarkTransferred(ctx, tx.ID, admin.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = env.fees.MarkTransferred(ctx, uuid.New(), admin.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMarkTransferred_RequiresFees(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tx := env.createEscrow(t, "")
	bootstrap := uuid.New()
	env.cfg.AdminUserIDs = []uuid.UUID{bootstrap}
	_, err := env.mem.Escrows().Update(ctx, tx.ID, func(e *models.EscrowTransaction) error {
		e.PlatformFeeAmount, e.BuyerTotalAmount, e.SellerNetAmount = nil, nil, nil
		return nil
	})
	require.NoError(t, err)

	_, err = env.fees.MarkTransferred(ctx, tx.ID, bootstrap)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Nil(t, env.mem.Escrow(tx.ID).FeeTransferredAt)
}
