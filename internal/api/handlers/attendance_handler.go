package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/storage/models"
	"github.com/xforce-bot/backend/internal/storage/sqlite"
	"github.com/xforce-bot/backend/pkg/logger"
)

type AttendanceHandler struct {
	db  *sqlite.Client
	loc *time.Location
}

func NewAttendanceHandler(db *sqlite.Client, loc *time.Location) *AttendanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceHandler{db: db, loc: loc}
}

func (h *AttendanceHandler) SetStatus(c *fiber.Ctx) error {
	var req struct {
		EmployeeID string `json:"employee_id"`
		CompanyID  string `json:"company_id"`
		Status     string `json:"status"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.EmployeeID == "" || req.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "employee_id and company_id are required",
		})
	}

	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid attendance status",
		})
	}

	record, err := h.db.SetStatus(c.Context(), req.EmployeeID, req.CompanyID, time.Now().In(h.loc), status)
	if err != nil {
		logger.Error("Failed to set attendance status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update attendance",
		})
	}

	return c.JSON(recordToJSON(record))
}

func (h *AttendanceHandler) GetHistory(c *fiber.Ctx) error {
	employeeID := c.Query("employee_id")
	companyID := c.Query("company_id")
	if employeeID == "" || companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "employee_id and company_id are required",
		})
	}

	limit := c.QueryInt("limit", 5)

	records, err := h.db.GetAttendanceHistory(c.Context(), employeeID, companyID, limit)
	if err != nil {
		logger.Error("Failed to get attendance history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get attendance history",
		})
	}

	out := make([]fiber.Map, 0, len(records))
	for i := range records {
		out = append(out, recordToJSON(&records[i]))
	}

	return c.JSON(fiber.Map{"records": out})
}

func (h *AttendanceHandler) GetRange(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from must be YYYY-MM-DD",
		})
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "to must be YYYY-MM-DD",
		})
	}

	records, err := h.db.FindAttendanceByRange(c.Context(), companyID, from, to)
	if err != nil {
		logger.Error("Failed to query attendance range", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query attendance",
		})
	}

	out := make([]fiber.Map, 0, len(records))
	for i := range records {
		out = append(out, recordToJSON(&records[i]))
	}

	return c.JSON(fiber.Map{"records": out})
}

func recordToJSON(rec *models.AttendanceRecord) fiber.Map {
	logs := make([]fiber.Map, 0, len(rec.Logs))
	for _, entry := range rec.Logs {
		logs = append(logs, fiber.Map{
			"time":    entry.Time.Format(time.RFC3339),
			"kind":    entry.Kind,
			"content": entry.Content,
		})
	}

	return fiber.Map{
		"id":          rec.ID,
		"employee_id": rec.EmployeeID,
		"company_id":  rec.CompanyID,
		"day":         rec.Day.Format("2006-01-02"),
		"status":      rec.Status,
		"logs":        logs,
	}
}
