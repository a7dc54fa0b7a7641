package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/storage/models"
	"github.com/xforce-bot/backend/internal/storage/sqlite"
	"github.com/xforce-bot/backend/pkg/logger"
)

type TicketHandler struct {
	db *sqlite.Client
}

func NewTicketHandler(db *sqlite.Client) *TicketHandler {
	return &TicketHandler{db: db}
}

// ListActive returns the company's open and on-hold tickets.
func (h *TicketHandler) ListActive(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	tickets, err := h.db.ListActiveTickets(c.Context(), companyID)
	if err != nil {
		logger.Error("Failed to list tickets", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list tickets",
		})
	}

	out := make([]fiber.Map, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, fiber.Map{
			"ticket_number": t.TicketNumber,
			"employee_id":   t.EmployeeID,
			"company_id":    t.CompanyID,
			"issue_type":    t.IssueType,
			"remark":        t.Remark,
			"status":        t.Status,
			"opened_at":     t.OpenedAt.Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{"tickets": out})
}

func (h *TicketHandler) UpdateStatus(c *fiber.Ctx) error {
	ticketNumber, err := c.ParamsInt("number")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket number",
		})
	}

	var req struct {
		EmployeeID string `json:"employee_id"`
		Status     string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	status := models.TicketStatus(req.Status)
	if !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket status",
		})
	}

	if err := h.db.UpdateTicketStatus(c.Context(), ticketNumber, req.EmployeeID, status); err != nil {
		logger.Error("Failed to update ticket status",
			zap.Int("ticket_number", ticketNumber),
			zap.Error(err),
		)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ticket not found",
		})
	}

	return c.JSON(fiber.Map{
		"ticket_number": ticketNumber,
		"status":        status,
	})
}
