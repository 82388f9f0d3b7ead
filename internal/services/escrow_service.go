package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/events"
	"github.com/bizmarket/backend/internal/fees"
	"github.com/bizmarket/backend/internal/metrics"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/bizmarket/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const webhookSecretBytes = 32

// Transition sources, used as the metrics label.
const (
	sourceParty   = "party"
	sourceWebhook = "webhook"
	sourceSystem  = "system"
)

type EscrowService struct {
	escrows  EscrowStore
	listings ListingStore
	lois     LOIStore
	users    UserStore
	recorder
	cfg *config.Config
	log *zap.Logger
}

func NewEscrowService(
	escrows EscrowStore,
	listings ListingStore,
	lois LOIStore,
	users UserStore,
	audit AuditStore,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		escrows:  escrows,
		listings: listings,
		lois:     lois,
		users:    users,
		recorder: recorder{audit: audit, publisher: publisher, log: log},
		cfg:      cfg,
		log:      log,
	}
}

type CreateEscrowInput struct {
	ListingID         uuid.UUID
	SellerID          uuid.UUID
	EscrowAmount      int64
	LOIID             *uuid.UUID
	EscrowProvider    *string
	EscrowReferenceID *string
	Notes             *string
}

// Create opens an escrow for buyerID. The buyer is always the caller.
func (s *EscrowService) Create(ctx context.Context, buyerID uuid.UUID, in CreateEscrowInput) (*models.EscrowTransaction, error) {
	if buyerID == uuid.Nil {
		return nil, apperr.ErrUnauthenticated
	}
	if in.EscrowAmount <= 0 {
		return nil, fmt.Errorf("%w: escrow_amount must be positive", apperr.ErrInvalidInput)
	}
	if in.ListingID == uuid.Nil || in.SellerID == uuid.Nil {
		return nil, fmt.Errorf("%w: listing_id and seller_id are required", apperr.ErrInvalidInput)
	}
	if in.SellerID == buyerID {
		return nil, fmt.Errorf("%w: buyer and seller must differ", apperr.ErrInvalidInput)
	}

	listing, err := s.listings.GetByID(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != in.SellerID {
		return nil, fmt.Errorf("%w: seller_id does not own this listing", apperr.ErrInvalidInput)
	}

	if in.LOIID != nil {
		loi, err := s.lois.GetByID(ctx, *in.LOIID)
		if err != nil {
			return nil, err
		}
		if loi.Status != models.LOIStatusAccepted {
			return nil, fmt.Errorf("%w: letter of intent is not accepted", apperr.ErrInvalidInput)
		}
		if !loi.Matches(buyerID, in.SellerID, in.ListingID) {
			return nil, fmt.Errorf("%w: letter of intent belongs to a different deal", apperr.ErrForbidden)
		}
	}

	breakdown, err := fees.Calculate(in.EscrowAmount, s.cfg.PlatformFeePercent)
	if err != nil {
		return nil, err
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return nil, err
	}

	e := &models.EscrowTransaction{
		ListingID:         in.ListingID,
		LOIID:             in.LOIID,
		BuyerID:           buyerID,
		SellerID:          in.SellerID,
		EscrowAmount:      in.EscrowAmount,
		Status:            models.EscrowStatusInitiated,
		EscrowProvider:    nonEmpty(in.EscrowProvider),
		EscrowReferenceID: nonEmpty(in.EscrowReferenceID),
		WebhookSecret:     secret,
		Notes:             nonEmpty(in.Notes),
	}
	e.SetFees(breakdown.FeePercent, breakdown.PlatformFeeAmount, breakdown.BuyerTotalAmount, breakdown.SellerNetAmount)

	if err := s.escrows.Create(ctx, e); err != nil {
		return nil, err
	}

	metrics.EscrowCreatedTotal.Inc()
	s.record(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   models.ActorTypeUser,
		Action:      "escrow_created",
		EntityType:  models.EntityTypeEscrow,
		EntityID:    &e.ID,
		Meta: map[string]any{
			"escrow_amount":       e.EscrowAmount,
			"platform_fee_amount": breakdown.PlatformFeeAmount,
			"fee_percent":         breakdown.FeePercent.String(),
		},
	})
	s.publish(ctx, events.Event{Type: events.EventEscrowStatusChanged, Payload: escrowPayload(e)})

	s.log.Info("escrow created",
		zap.String("escrow_id", e.ID.String()),
		zap.String("listing_id", e.ListingID.String()),
		zap.Int64("amount", e.EscrowAmount))
	return e, nil
}

// Get returns the escrow with listing, LOI and party summaries.
func (s *EscrowService) Get(ctx context.Context, id, userID uuid.UUID) (*models.EscrowDetails, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireParty(rbac.PermViewEscrow, e.IsParty(userID), "escrow"); err != nil {
		return nil, err
	}

	details := &models.EscrowDetails{EscrowTransaction: *e}

	listing, err := s.listings.GetByID(ctx, e.ListingID)
	if err := skipNotFound(err); err != nil {
		return nil, err
	}
	if listing != nil {
		details.Listing = listing.Summary()
	}

	if e.LOIID != nil {
		loi, err := s.lois.GetByID(ctx, *e.LOIID)
		if err := skipNotFound(err); err != nil {
			return nil, err
		}
		if loi != nil {
			details.LOI = loi.Summary()
		}
	}

	buyer, err := s.users.GetByID(ctx, e.BuyerID)
	if err := skipNotFound(err); err != nil {
		return nil, err
	}
	if buyer != nil {
		details.Buyer = buyer.Summary()
	}
	seller, err := s.users.GetByID(ctx, e.SellerID)
	if err := skipNotFound(err); err != nil {
		return nil, err
	}
	if seller != nil {
		details.Seller = seller.Summary()
	}

	return details, nil
}

// List returns the caller's escrows. role narrows to one side of the deal.
func (s *EscrowService) List(ctx context.Context, userID uuid.UUID, role, status string, limit, offset int) ([]models.EscrowTransaction, error) {
	f := repositories.EscrowFilter{Status: status, Limit: limit, Offset: offset}
	switch role {
	case "":
		f.PartyID = &userID
	case "buyer":
		f.BuyerID = &userID
	case "seller":
		f.SellerID = &userID
	default:
		return nil, fmt.Errorf("%w: role must be buyer or seller", apperr.ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", apperr.ErrInvalidInput)
	}
	return s.escrows.List(ctx, f)
}

type UpdateStatusInput struct {
	Status string
	Notes  *string
}

// UpdateStatus is the party path: forward-only over the five ordered statuses.
func (s *EscrowService) UpdateStatus(ctx context.Context, id, userID uuid.UUID, in UpdateStatusInput) (*models.EscrowTransaction, error) {
	if !models.IsForwardStatus(in.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, in.Status)
	}

	var previous string
	e, err := s.escrows.Update(ctx, id, func(e *models.EscrowTransaction) error {
		if err := requireParty(rbac.PermUpdateEscrowStatus, e.IsParty(userID), "escrow"); err != nil {
			return err
		}
		if !models.CanAdvance(e.Status, in.Status) {
			return fmt.Errorf("%w: cannot move from %s to %s", apperr.ErrInvalidTransition, e.Status, in.Status)
		}
		previous = e.Status
		e.Status = in.Status
		e.StampStatus(in.Status, time.Now())
		if in.Notes != nil {
			e.AppendNote(strings.TrimSpace(*in.Notes))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, e, previous, &userID, sourceParty)
	return e, nil
}

// AdvanceFrom moves the escrow to `to` when its current status is one of
// from. It reports whether anything changed.
func (s *EscrowService) AdvanceFrom(ctx context.Context, id uuid.UUID, from []string, to string, actorID *uuid.UUID) (*models.EscrowTransaction, bool, error) {
	var previous string
	changed := false
	e, err := s.escrows.Update(ctx, id, func(e *models.EscrowTransaction) error {
		if !containsStatus(from, e.Status) || !models.CanAdvance(e.Status, to) {
			return nil
		}
		previous = e.Status
		e.Status = to
		e.StampStatus(to, time.Now())
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.recordTransition(ctx, e, previous, actorID, sourceSystem)
	}
	return e, changed, nil
}

// GetEvents returns the audit trail of an escrow, newest first.
func (s *EscrowService) GetEvents(ctx context.Context, id, userID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireParty(rbac.PermViewEscrow, e.IsParty(userID), "escrow"); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []models.AuditLog{}, nil
	}
	return s.audit.GetByEntity(ctx, models.EntityTypeEscrow, id, limit, offset)
}

func (s *EscrowService) recordTransition(ctx context.Context, e *models.EscrowTransaction, previous string, actorID *uuid.UUID, source string) {
	action := "escrow_status_update"
	if previous != e.Status {
		action = fmt.Sprintf("escrow_status_%s_to_%s", previous, e.Status)
		metrics.EscrowTransitionsTotal.WithLabelValues(source, e.Status).Inc()
	}

	s.record(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType(actorID),
		Action:      action,
		EntityType:  models.EntityTypeEscrow,
		EntityID:    &e.ID,
		Meta:        map[string]any{"old_status": previous, "new_status": e.Status, "source": source},
	})

	if previous != e.Status {
		payload := escrowPayload(e)
		payload["old_status"] = previous
		s.publish(ctx, events.Event{Type: events.EventEscrowStatusChanged, Payload: payload})
		s.log.Info("escrow status changed",
			zap.String("escrow_id", e.ID.String()),
			zap.String("from", previous),
			zap.String("to", e.Status),
			zap.String("source", source))
	}
}

func newWebhookSecret() (string, error) {
	b := make([]byte, webhookSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func containsStatus(list []string, status string) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func skipNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}
