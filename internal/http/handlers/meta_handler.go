package handlers

import (
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

var taskCategoryLabels = map[string]string{
	models.TaskCategoryDomain:    "Domain & DNS",
	models.TaskCategoryHosting:   "Hosting & Servers",
	models.TaskCategoryCode:      "Source Code",
	models.TaskCategoryPayments:  "Payments & Payouts",
	models.TaskCategoryAds:       "Ads & Analytics",
	models.TaskCategoryInventory: "Inventory & Suppliers",
	models.TaskCategoryOther:     "Other",
}

func (h *MetaHandler) GetTaskCategories(c *fiber.Ctx) error {
	out := make([]dto.TaskCategory, 0, len(models.TaskCategories))
	for _, id := range models.TaskCategories {
		out = append(out, dto.TaskCategory{ID: id, Label: taskCategoryLabels[id]})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *MetaHandler) GetEscrowStatuses(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: models.ForwardStatuses})
}
