package repositories

import (
	"context"

	"github.com/bizmarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := r.pool.QueryRow(ctx, `
		SELECT id, seller_id, title, status, asking_price, created_at
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.SellerID, &l.Title, &l.Status, &l.AskingPrice, &l.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "listing")
	}
	return &l, nil
}

type LOIRepo struct {
	pool *pgxpool.Pool
}

func NewLOIRepo(pool *pgxpool.Pool) *LOIRepo {
	return &LOIRepo{pool: pool}
}

func (r *LOIRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.LOI, error) {
	var l models.LOI
	err := r.pool.QueryRow(ctx, `
		SELECT id, listing_id, buyer_id, seller_id, status, offer_amount, created_at
		FROM lois WHERE id = $1
	`, id).Scan(&l.ID, &l.ListingID, &l.BuyerID, &l.SellerID, &l.Status, &l.OfferAmount, &l.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "letter of intent")
	}
	return &l, nil
}
