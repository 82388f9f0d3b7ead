package models

import (
	"time"

	"github.com/google/uuid"
)

// Listings and LOIs are owned by other parts of the marketplace; escrow only
// reads them.

const (
	LOIStatusPending  = "pending"
	LOIStatusAccepted = "accepted"
	LOIStatusRejected = "rejected"
)

type Listing struct {
	ID          uuid.UUID `json:"id"`
	SellerID    uuid.UUID `json:"seller_id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	AskingPrice *int64    `json:"asking_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l *Listing) Summary() *ListingSummary {
	return &ListingSummary{ID: l.ID, Title: l.Title, Status: l.Status}
}

type ListingSummary struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Status string    `json:"status"`
}

type LOI struct {
	ID          uuid.UUID `json:"id"`
	ListingID   uuid.UUID `json:"listing_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	Status      string    `json:"status"`
	OfferAmount int64     `json:"offer_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// Matches reports whether the LOI links exactly this buyer, seller and listing.
func (l *LOI) Matches(buyerID, sellerID, listingID uuid.UUID) bool {
	return l.BuyerID == buyerID && l.SellerID == sellerID && l.ListingID == listingID
}

func (l *LOI) Summary() *LOISummary {
	return &LOISummary{ID: l.ID, Status: l.Status, OfferAmount: l.OfferAmount}
}

type LOISummary struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	OfferAmount int64     `json:"offer_amount"`
}
