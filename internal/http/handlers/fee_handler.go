package handlers

import (
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/middleware"
	"github.com/bizmarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FeeHandler struct {
	feeService *services.FeeService
	log        *zap.Logger
}

func NewFeeHandler(feeService *services.FeeService, log *zap.Logger) *FeeHandler {
	return &FeeHandler{feeService: feeService, log: log}
}

func parseEscrowIDBody(c *fiber.Ctx) (uuid.UUID, error) {
	var req dto.EscrowIDRequest
	if err := dto.DecodeJSON(c.Body(), &req); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(req.EscrowID)
}

func (h *FeeHandler) GenerateInvoice(c *fiber.Ctx) error {
	escrowID, err := parseEscrowIDBody(c)
	if err != nil {
		return badRequest(c, "invalid escrow_id")
	}

	tx, err := h.feeService.GenerateInvoice(c.UserContext(), escrowID, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, "generate_fee_invoice", err, zap.String("escrow_id", escrowID.String()))
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.FeeInvoiceResponse{
		EscrowID:           tx.ID.String(),
		InvoiceURL:         *tx.FeeInvoiceURL,
		PlatformFeePercent: tx.PlatformFeePercent.String(),
		PlatformFeeAmount:  *tx.PlatformFeeAmount,
		BuyerTotalAmount:   *tx.BuyerTotalAmount,
		SellerNetAmount:    *tx.SellerNetAmount,
	}})
}

func (h *FeeHandler) MarkTransferred(c *fiber.Ctx) error {
	escrowID, err := parseEscrowIDBody(c)
	if err != nil {
		return badRequest(c, "invalid escrow_id")
	}

	tx, err := h.feeService.MarkTransferred(c.UserContext(), escrowID, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, "mark_fee_transferred", err, zap.String("escrow_id", escrowID.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}
