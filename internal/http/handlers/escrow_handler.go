package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/middleware"
	"github.com/bizmarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return badRequest(c, "invalid request body")
	}
	for _, key := range dto.BuyerIdentityKeys {
		if _, ok := raw[key]; ok {
			return badRequest(c, "buyer is taken from the session and must not be supplied")
		}
	}

	var req dto.CreateEscrowRequest
	if err := dto.DecodeJSON(c.Body(), &req); err != nil {
		return badRequest(c, "invalid request body")
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return badRequest(c, "invalid listing_id")
	}
	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		return badRequest(c, "invalid seller_id")
	}
	loiID, err := parseOptionalID(req.LOIID)
	if err != nil {
		return badRequest(c, "invalid loi_id")
	}

	buyerID := middleware.GetUserID(c)
	tx, err := h.escrowService.Create(c.UserContext(), buyerID, services.CreateEscrowInput{
		ListingID:         listingID,
		SellerID:          sellerID,
		EscrowAmount:      req.EscrowAmount,
		LOIID:             loiID,
		EscrowProvider:    req.EscrowProvider,
		EscrowReferenceID: req.EscrowReferenceID,
		Notes:             req.Notes,
	})
	if err != nil {
		return writeError(c, h.log, "create_escrow", err, zap.String("listing_id", listingID.String()))
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "invalid escrow id")
	}

	details, err := h.escrowService.Get(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, "get_escrow", err, zap.String("escrow_id", id.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: details})
}

func (h *EscrowHandler) ListEscrows(c *fiber.Ctx) error {
	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	items, err := h.escrowService.List(c.UserContext(), middleware.GetUserID(c), c.Query("role"), c.Query("status"), limit, offset)
	if err != nil {
		return writeError(c, h.log, "list_escrows", err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: items})
}

func (h *EscrowHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "invalid escrow id")
	}

	var req dto.UpdateEscrowStatusRequest
	if err := dto.DecodeJSON(c.Body(), &req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Status == "" {
		return badRequest(c, "status is required")
	}

	tx, err := h.escrowService.UpdateStatus(c.UserContext(), id, middleware.GetUserID(c), services.UpdateStatusInput{
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		return writeError(c, h.log, "update_escrow_status", err, zap.String("escrow_id", id.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: tx})
}

func (h *EscrowHandler) GetEvents(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, "invalid escrow id")
	}
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	logs, err := h.escrowService.GetEvents(c.UserContext(), id, middleware.GetUserID(c), limit, offset)
	if err != nil {
		return writeError(c, h.log, "get_escrow_events", err, zap.String("escrow_id", id.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
