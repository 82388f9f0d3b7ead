package handlers

import (
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/middleware"
	"github.com/bizmarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type MigrationHandler struct {
	migrationService *services.MigrationService
	log              *zap.Logger
}

func NewMigrationHandler(migrationService *services.MigrationService, log *zap.Logger) *MigrationHandler {
	return &MigrationHandler{migrationService: migrationService, log: log}
}

func (h *MigrationHandler) GetChecklist(c *fiber.Ctx) error {
	escrowID, err := parseID(c, "escrowId")
	if err != nil {
		return badRequest(c, "invalid escrow id")
	}

	cl, err := h.migrationService.GetByEscrow(c.UserContext(), escrowID, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, "get_checklist", err, zap.String("escrow_id", escrowID.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: cl})
}

func (h *MigrationHandler) CreateChecklist(c *fiber.Ctx) error {
	escrowID, err := parseID(c, "escrowId")
	if err != nil {
		return badRequest(c, "invalid escrow id")
	}

	var req dto.CreateChecklistRequest
	if len(c.Body()) > 0 {
		if err := dto.DecodeJSON(c.Body(), &req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	cl, err := h.migrationService.CreateChecklist(c.UserContext(), escrowID, middleware.GetUserID(c), req.WithDefaults)
	if err != nil {
		return writeError(c, h.log, "create_checklist", err, zap.String("escrow_id", escrowID.String()))
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: cl})
}

func (h *MigrationHandler) AddTask(c *fiber.Ctx) error {
	checklistID, err := parseID(c, "checklistId")
	if err != nil {
		return badRequest(c, "invalid checklist id")
	}

	var req dto.AddTaskRequest
	if err := dto.DecodeJSON(c.Body(), &req); err != nil {
		return badRequest(c, "invalid request body")
	}

	task, err := h.migrationService.AddTask(c.UserContext(), checklistID, middleware.GetUserID(c), services.AddTaskInput{
		TaskName:        req.TaskName,
		TaskCategory:    req.TaskCategory,
		TaskDescription: req.TaskDescription,
	})
	if err != nil {
		return writeError(c, h.log, "add_task", err, zap.String("checklist_id", checklistID.String()))
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: task})
}

func (h *MigrationHandler) ConfirmTask(c *fiber.Ctx) error {
	taskID, err := parseID(c, "taskId")
	if err != nil {
		return badRequest(c, "invalid task id")
	}

	task, err := h.migrationService.ConfirmTask(c.UserContext(), taskID, middleware.GetUserID(c))
	if err != nil {
		return writeError(c, h.log, "confirm_task", err, zap.String("task_id", taskID.String()))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: task})
}
