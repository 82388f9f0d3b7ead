package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/events"
	"github.com/bizmarket/backend/internal/metrics"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WebhookService struct {
	escrows EscrowStore
	admins  AdminChecker
	recorder
	log *zap.Logger
}

func NewWebhookService(escrows EscrowStore, admins AdminChecker, audit AuditStore, publisher events.Publisher, log *zap.Logger) *WebhookService {
	return &WebhookService{
		escrows:  escrows,
		admins:   admins,
		recorder: recorder{audit: audit, publisher: publisher, log: log},
		log:      log,
	}
}

type WebhookInput struct {
	EscrowReferenceID string
	Status            string
	WebhookSecret     string
	EventType         *string
	Payload           json.RawMessage
}

type WebhookResult struct {
	EscrowID       uuid.UUID `json:"escrow_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
}

// Handle applies a provider status report. The provider is authoritative, so
// no ordering check is made; the per-escrow secret is the only credential.
func (s *WebhookService) Handle(ctx context.Context, in WebhookInput) (*WebhookResult, error) {
	res, err := s.handle(ctx, in)
	metrics.WebhookResultsTotal.WithLabelValues(webhookResult(err)).Inc()
	return res, err
}

func (s *WebhookService) handle(ctx context.Context, in WebhookInput) (*WebhookResult, error) {
	in.EscrowReferenceID = strings.TrimSpace(in.EscrowReferenceID)
	in.Status = strings.TrimSpace(in.Status)
	if in.EscrowReferenceID == "" || in.Status == "" || in.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: escrow_reference_id, status and webhook_secret are required", apperr.ErrInvalidInput)
	}

	found, err := s.escrows.GetByReferenceID(ctx, in.EscrowReferenceID)
	if err != nil {
		return nil, err
	}

	mapped := models.MapProviderStatus(in.Status)
	var previous string
	e, err := s.escrows.Update(ctx, found.ID, func(e *models.EscrowTransaction) error {
		if subtle.ConstantTimeCompare([]byte(in.WebhookSecret), []byte(e.WebhookSecret)) != 1 {
			return apperr.ErrUnauthorized
		}
		now := time.Now()
		previous = e.Status
		e.Status = mapped
		e.StampStatus(mapped, now)
		e.AppendNote(webhookNote(now, in, mapped))
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			s.log.Warn("webhook secret mismatch", zap.String("escrow_id", found.ID.String()))
		}
		return nil, err
	}

	meta := map[string]any{
		"provider_status": in.Status,
		"old_status":      previous,
		"new_status":      e.Status,
	}
	if in.EventType != nil {
		meta["event_type"] = *in.EventType
	}
	if len(in.Payload) > 0 && json.Valid(in.Payload) {
		meta["payload"] = in.Payload
	}
	s.record(ctx, models.AuditLog{
		ActorType:  models.ActorTypeProvider,
		Action:     "escrow_webhook_applied",
		EntityType: models.EntityTypeEscrow,
		EntityID:   &e.ID,
		Meta:       meta,
	})

	if previous != e.Status {
		metrics.EscrowTransitionsTotal.WithLabelValues(sourceWebhook, e.Status).Inc()
		payload := escrowPayload(e)
		payload["old_status"] = previous
		s.publish(ctx, events.Event{Type: events.EventEscrowStatusChanged, Payload: payload})
	}

	s.log.Info("webhook applied",
		zap.String("escrow_id", e.ID.String()),
		zap.String("from", previous),
		zap.String("to", e.Status))
	return &WebhookResult{EscrowID: e.ID, PreviousStatus: previous, NewStatus: e.Status}, nil
}

func webhookNote(at time.Time, in WebhookInput, mapped string) string {
	line := fmt.Sprintf("[%s] provider webhook: %s", at.UTC().Format(time.RFC3339), in.Status)
	if mapped != in.Status {
		line += " (" + mapped + ")"
	}
	if in.EventType != nil && *in.EventType != "" {
		line += ", event " + *in.EventType
	}
	return line
}

func webhookResult(err error) string {
	if err == nil {
		return "applied"
	}
	return apperr.Code(err)
}

// ProviderCredentials is what the platform hands the escrow provider when it
// registers an escrow. Neither party ever sees the secret.
type ProviderCredentials struct {
	EscrowID          uuid.UUID `json:"escrow_id"`
	EscrowProvider    *string   `json:"escrow_provider,omitempty"`
	EscrowReferenceID *string   `json:"escrow_reference_id,omitempty"`
	WebhookSecret     string    `json:"webhook_secret"`
}

// ProviderCredentials returns the webhook secret of an escrow. Admin only.
func (s *WebhookService) ProviderCredentials(ctx context.Context, escrowID, userID uuid.UUID) (*ProviderCredentials, error) {
	ok, err := s.admins.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rbac.Authorize(rbac.PermReadWebhookSecret, false, ok) {
		return nil, fmt.Errorf("%w: admin only", apperr.ErrForbidden)
	}

	e, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorTypeAdmin,
		Action:      "webhook_secret_issued",
		EntityType:  models.EntityTypeEscrow,
		EntityID:    &e.ID,
	})
	return &ProviderCredentials{
		EscrowID:          e.ID,
		EscrowProvider:    e.EscrowProvider,
		EscrowReferenceID: e.EscrowReferenceID,
		WebhookSecret:     e.WebhookSecret,
	}, nil
}
