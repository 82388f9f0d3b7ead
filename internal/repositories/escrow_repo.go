package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bizmarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const escrowColumns = `
	id, listing_id, loi_id, buyer_id, seller_id, escrow_amount, platform_fee_percent,
	platform_fee_amount, buyer_total_amount, seller_net_amount, status,
	escrow_provider, escrow_reference_id, webhook_secret, fee_invoice_url,
	fee_transferred_at, platform_account_id, initiated_at, funded_at,
	migration_started_at, completed_at, released_at, notes, created_at, updated_at`

type EscrowFilter struct {
	PartyID  *uuid.UUID
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   string
	Limit    int
	Offset   int
}

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func scanEscrow(row pgx.Row) (*models.EscrowTransaction, error) {
	var e models.EscrowTransaction
	err := row.Scan(
		&e.ID, &e.ListingID, &e.LOIID, &e.BuyerID, &e.SellerID, &e.EscrowAmount, &e.PlatformFeePercent,
		&e.PlatformFeeAmount, &e.BuyerTotalAmount, &e.SellerNetAmount, &e.Status,
		&e.EscrowProvider, &e.EscrowReferenceID, &e.WebhookSecret, &e.FeeInvoiceURL,
		&e.FeeTransferredAt, &e.PlatformAccountID, &e.InitiatedAt, &e.FundedAt,
		&e.MigrationStartedAt, &e.CompletedAt, &e.ReleasedAt, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EscrowRepo) Create(ctx context.Context, e *models.EscrowTransaction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO escrow_transactions (
			listing_id, loi_id, buyer_id, seller_id, escrow_amount, platform_fee_percent,
			platform_fee_amount, buyer_total_amount, seller_net_amount, status,
			escrow_provider, escrow_reference_id, webhook_secret, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, initiated_at, created_at, updated_at
	`, e.ListingID, e.LOIID, e.BuyerID, e.SellerID, e.EscrowAmount, e.PlatformFeePercent,
		e.PlatformFeeAmount, e.BuyerTotalAmount, e.SellerNetAmount, e.Status,
		e.EscrowProvider, e.EscrowReferenceID, e.WebhookSecret, e.Notes,
	).Scan(&e.ID, &e.InitiatedAt, &e.CreatedAt, &e.UpdatedAt)
	return mapErr(err, "escrow transaction")
}

func (r *EscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	e, err := scanEscrow(r.pool.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE id = $1`, id))
	return e, mapErr(err, "escrow transaction")
}

func (r *EscrowRepo) GetByReferenceID(ctx context.Context, referenceID string) (*models.EscrowTransaction, error) {
	e, err := scanEscrow(r.pool.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE escrow_reference_id = $1`, referenceID))
	return e, mapErr(err, "escrow transaction")
}

func (r *EscrowRepo) List(ctx context.Context, f EscrowFilter) ([]models.EscrowTransaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PartyID != nil {
		args = append(args, *f.PartyID)
		where = append(where, fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", len(args), len(args)))
	}
	if f.BuyerID != nil {
		add("buyer_id = $%d", *f.BuyerID)
	}
	if f.SellerID != nil {
		add("seller_id = $%d", *f.SellerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.EscrowTransaction, 0)
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

// Update locks the row, lets fn mutate it and writes back every mutable
// column in the same transaction. Returning an error from fn rolls back.
func (r *EscrowRepo) Update(ctx context.Context, id uuid.UUID, fn func(e *models.EscrowTransaction) error) (*models.EscrowTransaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEscrow(tx.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "escrow transaction")
	}

	if err := fn(e); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE escrow_transactions SET
			platform_fee_percent = $2, platform_fee_amount = $3, buyer_total_amount = $4,
			seller_net_amount = $5, status = $6, fee_invoice_url = $7, fee_transferred_at = $8,
			platform_account_id = $9, funded_at = $10, migration_started_at = $11,
			completed_at = $12, released_at = $13, notes = $14, updated_at = $15
		WHERE id = $1
		RETURNING updated_at
	`, e.ID, e.PlatformFeePercent, e.PlatformFeeAmount, e.BuyerTotalAmount,
		e.SellerNetAmount, e.Status, e.FeeInvoiceURL, e.FeeTransferredAt,
		e.PlatformAccountID, e.FundedAt, e.MigrationStartedAt,
		e.CompletedAt, e.ReleasedAt, e.Notes, time.Now(),
	).Scan(&e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}
