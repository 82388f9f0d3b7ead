package handlers

import (
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/middleware"
	"github.com/bizmarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	webhookService *services.WebhookService
	log            *zap.Logger
}

func NewWebhookHandler(webhookService *services.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, log: log}
}

// EscrowWebhook is called by the escrow provider. It carries no session; the
// per-escrow secret in the body authenticates it.
func (h *WebhookHandler) EscrowWebhook(c *fiber.Ctx) error {
	var req dto.EscrowWebhookRequest
	if err := dto.DecodeJSON(c.Body(), &req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.webhookService.Handle(c.UserContext(), services.WebhookInput{
		EscrowReferenceID: req.EscrowReferenceID,
		Status:            req.Status,
		WebhookSecret:     req.WebhookSecret,
		EventType:         req.EventType,
		Payload:           req.Payload,
	})
	if err != nil {
		return writeError(c, h.log, "escrow_webhook", err, zap.String("escrow_reference_id", req.EscrowReferenceID))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

// ProviderCredentials lets an operator fetch the webhook secret to register
// the escrow with the provider.
func (h *WebhookHandler) ProviderCredentials(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "invalid escrow id")
	}

	creds, err := h.webhookService.ProviderCredentials(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, "provider_credentials", err, zap.String("escrow_id", id.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: creds})
}
