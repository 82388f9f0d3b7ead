package handlers

import (
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/middleware"
	"github.com/bizmarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	users services.UserStore
	log   *zap.Logger
}

func NewUserHandler(users services.UserStore, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	user, err := h.users.GetByID(c.UserContext(), userID)
	if err != nil {
		return writeError(c, h.log, "get_me", err, zap.String("user_id", userID.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if err := h.users.UpdateLastActive(c.UserContext(), userID); err != nil {
		h.log.Error("failed to update last_active", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
