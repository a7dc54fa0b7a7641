package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/storage/models"
	"github.com/xforce-bot/backend/internal/storage/sqlite"
	"github.com/xforce-bot/backend/pkg/logger"
)

type EmployeeHandler struct {
	db *sqlite.Client
}

func NewEmployeeHandler(db *sqlite.Client) *EmployeeHandler {
	return &EmployeeHandler{db: db}
}

func (h *EmployeeHandler) Upsert(c *fiber.Ctx) error {
	var req struct {
		EmployeeNumber int64  `json:"employee_number"`
		CompanyID      string `json:"company_id"`
		Name           string `json:"name"`
		ShiftStart     string `json:"shift_start"`
		Timezone       string `json:"timezone"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.EmployeeNumber == 0 || req.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "employee_number and company_id are required",
		})
	}

	emp := models.Employee{
		EmployeeNumber: req.EmployeeNumber,
		CompanyID:      req.CompanyID,
		Name:           req.Name,
		ShiftStart:     req.ShiftStart,
		Timezone:       req.Timezone,
	}

	if err := h.db.UpsertEmployee(c.Context(), &emp); err != nil {
		logger.Error("Failed to upsert employee", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save employee",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":              emp.ID,
		"employee_number": emp.EmployeeNumber,
		"company_id":      emp.CompanyID,
	})
}

func (h *EmployeeHandler) Deactivate(c *fiber.Ctx) error {
	employeeNumber, err := c.ParamsInt("number")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid employee number",
		})
	}

	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	if err := h.db.DeactivateEmployee(c.Context(), int64(employeeNumber), companyID); err != nil {
		logger.Error("Failed to deactivate employee", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to deactivate employee",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
