package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow statuses. The first five are ordered; cancelled and disputed are
// terminal side statuses only the provider webhook can set.
const (
	EscrowStatusInitiated   = "initiated"
	EscrowStatusFunded      = "funded"
	EscrowStatusInMigration = "in_migration"
	EscrowStatusComplete    = "complete"
	EscrowStatusReleased    = "released"
	EscrowStatusCancelled   = "cancelled"
	EscrowStatusDisputed    = "disputed"

	// Spellings the provider mapping writes for the migration and completion
	// steps. They rank the same as in_migration and complete.
	EscrowStatusMigrationInProgress = "migration_in_progress"
	EscrowStatusCompleted           = "completed"
)

var escrowStatusOrdinal = map[string]int{
	EscrowStatusInitiated:           0,
	EscrowStatusFunded:              1,
	EscrowStatusInMigration:         2,
	EscrowStatusMigrationInProgress: 2,
	EscrowStatusComplete:            3,
	EscrowStatusCompleted:           3,
	EscrowStatusReleased:            4,
}

// ForwardStatuses are the statuses a buyer or seller may request.
var ForwardStatuses = []string{
	EscrowStatusInitiated,
	EscrowStatusFunded,
	EscrowStatusInMigration,
	EscrowStatusComplete,
	EscrowStatusReleased,
}

// ProviderStatusMap translates the escrow provider's vocabulary.
var ProviderStatusMap = map[string]string{
	"initiated":         EscrowStatusInitiated,
	"funded":            EscrowStatusFunded,
	"migration_started": EscrowStatusMigrationInProgress,
	"completed":         EscrowStatusCompleted,
	"released":          EscrowStatusReleased,
	"cancelled":         EscrowStatusCancelled,
	"disputed":          EscrowStatusDisputed,
}

// MapProviderStatus returns the internal status for a provider status.
// Unknown values pass through unchanged.
func MapProviderStatus(status string) string {
	if mapped, ok := ProviderStatusMap[status]; ok {
		return mapped
	}
	return status
}

func IsForwardStatus(status string) bool {
	for _, s := range ForwardStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsSideStatus(status string) bool {
	return status == EscrowStatusCancelled || status == EscrowStatusDisputed
}

// StatusOrdinal returns the rank of status in the forward ordering.
func StatusOrdinal(status string) (int, bool) {
	o, ok := escrowStatusOrdinal[status]
	return o, ok
}

// CanAdvance reports whether the party update path may move from -> to.
// Only forward statuses are accepted as targets, side statuses are final, and
// a status the provider passed through verbatim has no rank so anything goes.
func CanAdvance(from, to string) bool {
	if !IsForwardStatus(to) {
		return false
	}
	if IsSideStatus(from) {
		return false
	}
	fromOrd, ok := StatusOrdinal(from)
	if !ok {
		return true
	}
	toOrd, _ := StatusOrdinal(to)
	return toOrd >= fromOrd
}

type EscrowTransaction struct {
	ID                 uuid.UUID       `json:"id"`
	ListingID          uuid.UUID       `json:"listing_id"`
	LOIID              *uuid.UUID      `json:"loi_id,omitempty"`
	BuyerID            uuid.UUID       `json:"buyer_id"`
	SellerID           uuid.UUID       `json:"seller_id"`
	EscrowAmount       int64           `json:"escrow_amount"`
	PlatformFeePercent decimal.Decimal `json:"platform_fee_percent"`
	PlatformFeeAmount  *int64          `json:"platform_fee_amount,omitempty"`
	BuyerTotalAmount   *int64          `json:"buyer_total_amount,omitempty"`
	SellerNetAmount    *int64          `json:"seller_net_amount,omitempty"`
	Status             string          `json:"status"`
	EscrowProvider     *string         `json:"escrow_provider,omitempty"`
	EscrowReferenceID  *string         `json:"escrow_reference_id,omitempty"`
	WebhookSecret      string          `json:"-"`
	FeeInvoiceURL      *string         `json:"fee_invoice_url,omitempty"`
	FeeTransferredAt   *time.Time      `json:"fee_transferred_at,omitempty"`
	PlatformAccountID  *string         `json:"platform_account_id,omitempty"`
	InitiatedAt        time.Time       `json:"initiated_at"`
	FundedAt           *time.Time      `json:"funded_at,omitempty"`
	MigrationStartedAt *time.Time      `json:"migration_started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	ReleasedAt         *time.Time      `json:"released_at,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsParty reports whether userID is the buyer or the seller.
func (e *EscrowTransaction) IsParty(userID uuid.UUID) bool {
	return userID != uuid.Nil && (e.BuyerID == userID || e.SellerID == userID)
}

func (e *EscrowTransaction) HasFees() bool {
	return e.PlatformFeeAmount != nil && e.BuyerTotalAmount != nil && e.SellerNetAmount != nil
}

// SetFees materializes the fee breakdown. It never overwrites one already set.
func (e *EscrowTransaction) SetFees(percent decimal.Decimal, fee, buyerTotal, sellerNet int64) bool {
	if e.HasFees() {
		return false
	}
	e.PlatformFeePercent = percent
	e.PlatformFeeAmount = &fee
	e.BuyerTotalAmount = &buyerTotal
	e.SellerNetAmount = &sellerNet
	return true
}

// StampStatus sets the timestamp belonging to status unless it is already set.
func (e *EscrowTransaction) StampStatus(status string, now time.Time) {
	var field **time.Time
	switch status {
	case EscrowStatusFunded:
		field = &e.FundedAt
	case EscrowStatusInMigration, EscrowStatusMigrationInProgress:
		field = &e.MigrationStartedAt
	case EscrowStatusComplete, EscrowStatusCompleted:
		field = &e.CompletedAt
	case EscrowStatusReleased:
		field = &e.ReleasedAt
	default:
		return
	}
	if *field == nil {
		t := now
		*field = &t
	}
}

// AppendNote adds a line to the notes log.
func (e *EscrowTransaction) AppendNote(line string) {
	if line == "" {
		return
	}
	if e.Notes == nil || *e.Notes == "" {
		e.Notes = &line
		return
	}
	merged := *e.Notes + "\n" + line
	e.Notes = &merged
}

// EscrowDetails embeds the transaction with summaries of what it links to.
type EscrowDetails struct {
	EscrowTransaction
	Listing *ListingSummary `json:"listing,omitempty"`
	LOI     *LOISummary     `json:"loi,omitempty"`
	Buyer   *UserSummary    `json:"buyer,omitempty"`
	Seller  *UserSummary    `json:"seller,omitempty"`
}
