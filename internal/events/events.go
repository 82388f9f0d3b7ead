package events

import "context"

// ChannelEscrow carries every escrow and migration event.
const ChannelEscrow = "events:escrow"

// Event types
const (
	EventEscrowStatusChanged  = "escrow_status_changed"
	EventEscrowFeeInvoiced    = "escrow_fee_invoiced"
	EventEscrowFeeTransferred = "escrow_fee_transferred"
	EventTaskConfirmed        = "task_confirmed"
	EventChecklistCompleted   = "checklist_completed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// Recipients returns the buyer and seller ids carried in an event payload.
func (e Event) Recipients() []string {
	var ids []string
	for _, key := range []string{"buyer_id", "seller_id"} {
		if v, ok := e.Payload[key].(string); ok && v != "" {
			if len(ids) == 1 && ids[0] == v {
				continue
			}
			ids = append(ids, v)
		}
	}
	return ids
}
