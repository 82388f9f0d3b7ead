package handlers

import (
	"fmt"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// writeError maps err onto the error taxonomy. Errors outside it are logged
// with the operation name and surfaced as a bare internal error.
func writeError(c *fiber.Ctx, log *zap.Logger, op string, err error, fields ...zap.Field) error {
	reqID := middleware.GetRequestID(c)
	if apperr.IsInternal(err) {
		fields = append(fields,
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Error(err))
		log.Error("request failed", fields...)
	}
	return c.Status(apperr.HTTPStatus(err)).JSON(dto.ErrorResponse{
		Error:     apperr.Message(err),
		Code:      apperr.Code(err),
		RequestID: reqID,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:     msg,
		Code:      apperr.Code(apperr.ErrInvalidInput),
		RequestID: middleware.GetRequestID(c),
	})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", param)
	}
	return id, nil
}

func parseOptionalID(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
