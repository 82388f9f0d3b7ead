package dto

import "encoding/json"

// CreateEscrowRequest never carries a buyer: the buyer is the caller.
type CreateEscrowRequest struct {
	ListingID         string  `json:"listing_id"`
	SellerID          string  `json:"seller_id"`
	EscrowAmount      int64   `json:"escrow_amount"`
	LOIID             *string `json:"loi_id,omitempty"`
	EscrowProvider    *string `json:"escrow_provider,omitempty"`
	EscrowReferenceID *string `json:"escrow_reference_id,omitempty"`
	Notes             *string `json:"notes,omitempty"`
}

// BuyerIdentityKeys are body fields rejected on escrow creation.
var BuyerIdentityKeys = []string{"buyer_id", "buyerId", "buyer"}

type UpdateEscrowStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

type EscrowWebhookRequest struct {
	EscrowReferenceID string          `json:"escrow_reference_id"`
	Status            string          `json:"status"`
	WebhookSecret     string          `json:"webhook_secret"`
	EventType         *string         `json:"event_type,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

type EscrowIDRequest struct {
	EscrowID string `json:"escrow_id"`
}

type CreateChecklistRequest struct {
	WithDefaults bool `json:"with_defaults"`
}

type AddTaskRequest struct {
	TaskName        string  `json:"task_name"`
	TaskCategory    string  `json:"task_category"`
	TaskDescription *string `json:"task_description,omitempty"`
}
