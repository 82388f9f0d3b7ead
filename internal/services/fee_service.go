package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/events"
	"github.com/bizmarket/backend/internal/fees"
	"github.com/bizmarket/backend/internal/metrics"
	"github.com/bizmarket/backend/internal/models"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FeeService struct {
	escrows EscrowStore
	admins  AdminChecker
	recorder
	cfg *config.Config
	log *zap.Logger
}

func NewFeeService(
	escrows EscrowStore,
	admins AdminChecker,
	audit AuditStore,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *FeeService {
	return &FeeService{
		escrows:  escrows,
		admins:   admins,
		recorder: recorder{audit: audit, publisher: publisher, log: log},
		cfg:      cfg,
		log:      log,
	}
}

// GenerateInvoice materializes the fee breakdown if it is still missing and
// issues a fresh invoice URL. An existing breakdown is never recomputed, so
// the call is safe to retry.
func (s *FeeService) GenerateInvoice(ctx context.Context, escrowID, userID uuid.UUID) (*models.EscrowTransaction, error) {
	now := time.Now()
	materialized := false

	e, err := s.escrows.Update(ctx, escrowID, func(e *models.EscrowTransaction) error {
		if err := requireParty(rbac.PermGenerateInvoice, e.IsParty(userID), "escrow"); err != nil {
			return err
		}
		if !e.HasFees() {
			percent := e.PlatformFeePercent
			if percent.IsZero() {
				percent = s.cfg.PlatformFeePercent
			}
			b, err := fees.Calculate(e.EscrowAmount, percent)
			if err != nil {
				return err
			}
			materialized = e.SetFees(b.FeePercent, b.PlatformFeeAmount, b.BuyerTotalAmount, b.SellerNetAmount)
		}
		url := s.invoiceURL(e.ID, now)
		e.FeeInvoiceURL = &url
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.FeeOperationsTotal.WithLabelValues("invoice").Inc()
	s.record(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorTypeUser,
		Action:      "fee_invoice_generated",
		EntityType:  models.EntityTypeEscrow,
		EntityID:    &e.ID,
		Meta: map[string]any{
			"invoice_url":         *e.FeeInvoiceURL,
			"fees_materialized":   materialized,
			"platform_fee_amount": *e.PlatformFeeAmount,
		},
	})
	payload := escrowPayload(e)
	payload["invoice_url"] = *e.FeeInvoiceURL
	s.publish(ctx, events.Event{Type: events.EventEscrowFeeInvoiced, Payload: payload})

	return e, nil
}

// MarkTransferred records that the fee reached the platform account. Admin only.
func (s *FeeService) MarkTransferred(ctx context.Context, escrowID, userID uuid.UUID) (*models.EscrowTransaction, error) {
	ok, err := s.admins.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !rbac.Authorize(rbac.PermMarkFeeTransferred, false, ok) {
		return nil, fmt.Errorf("%w: admin only", apperr.ErrForbidden)
	}

	e, err := s.escrows.Update(ctx, escrowID, func(e *models.EscrowTransaction) error {
		if !e.HasFees() {
			return fmt.Errorf("%w: platform fee has not been calculated", apperr.ErrInvalidTransition)
		}
		if e.FeeTransferredAt != nil {
			return fmt.Errorf("%w: fee already transferred", apperr.ErrInvalidTransition)
		}
		now := time.Now()
		e.FeeTransferredAt = &now
		if s.cfg.PlatformAccountID != "" {
			account := s.cfg.PlatformAccountID
			e.PlatformAccountID = &account
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.FeeOperationsTotal.WithLabelValues("transfer").Inc()
	s.record(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   models.ActorTypeAdmin,
		Action:      "fee_transferred",
		EntityType:  models.EntityTypeEscrow,
		EntityID:    &e.ID,
		Meta: map[string]any{
			"platform_fee_amount": *e.PlatformFeeAmount,
			"platform_account_id": s.cfg.PlatformAccountID,
		},
	})
	s.publish(ctx, events.Event{Type: events.EventEscrowFeeTransferred, Payload: escrowPayload(e)})

	s.log.Info("platform fee transferred",
		zap.String("escrow_id", e.ID.String()),
		zap.Int64("fee", *e.PlatformFeeAmount),
		zap.String("admin_id", userID.String()))
	return e, nil
}

func (s *FeeService) invoiceURL(escrowID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s/invoices/%s?issued=%d", s.cfg.InvoiceBaseURL, escrowID, at.Unix())
}
