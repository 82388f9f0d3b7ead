package services

import (
	"context"
	"fmt"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/events"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recorder writes the audit trail and fans events out. Neither failure is
// returned to the caller: the state change has already been committed.
type recorder struct {
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func (r recorder) record(ctx context.Context, entry models.AuditLog) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Log(ctx, entry); err != nil {
		r.log.Warn("failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.Error(err))
	}
}

func (r recorder) publish(ctx context.Context, event events.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, events.ChannelEscrow, event); err != nil {
		r.log.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
	}
}

func actorType(actorID *uuid.UUID) string {
	if actorID == nil {
		return models.ActorTypeSystem
	}
	return models.ActorTypeUser
}

func escrowPayload(e *models.EscrowTransaction) map[string]any {
	return map[string]any{
		"escrow_id":  e.ID.String(),
		"listing_id": e.ListingID.String(),
		"buyer_id":   e.BuyerID.String(),
		"seller_id":  e.SellerID.String(),
		"status":     e.Status,
	}
}

func checklistPayload(c *models.MigrationChecklist) map[string]any {
	return map[string]any{
		"checklist_id": c.ID.String(),
		"escrow_id":    c.EscrowID.String(),
		"buyer_id":     c.BuyerID.String(),
		"seller_id":    c.SellerID.String(),
		"status":       c.Status,
	}
}

// requireParty turns a failed party permission check into a Forbidden error.
func requireParty(permission string, isParty bool, what string) error {
	if !rbac.Authorize(permission, isParty, false) {
		return fmt.Errorf("%w: not a party to this %s", apperr.ErrForbidden, what)
	}
	return nil
}
