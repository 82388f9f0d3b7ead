package middleware

import (
	"context"
	"strings"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/auth"
	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxUserID    = "user_id"
	CtxUserEmail = "user_email"
)

func unauthenticated(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:     msg,
		Code:      apperr.Code(apperr.ErrUnauthenticated),
		RequestID: GetRequestID(c),
	})
}

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthenticated(c, "missing authorization header")
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return unauthenticated(c, "invalid authorization format")
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return unauthenticated(c, "invalid or expired token")
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxUserEmail, claims.Email)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

func GetUserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(CtxUserEmail).(string)
	return email
}

type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AdminMiddleware requires an admin caller. Must run after AuthMiddleware.
func AdminMiddleware(admins AdminChecker, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := admins.IsAdmin(c.UserContext(), GetUserID(c))
		if err != nil {
			log.Error("admin check failed", zap.String("request_id", GetRequestID(c)), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error:     apperr.Message(apperr.ErrInternal),
				Code:      apperr.Code(apperr.ErrInternal),
				RequestID: GetRequestID(c),
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error:     "admin access required",
				Code:      apperr.Code(apperr.ErrForbidden),
				RequestID: GetRequestID(c),
			})
		}
		return c.Next()
	}
}
