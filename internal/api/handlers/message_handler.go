package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/engine"
	"github.com/xforce-bot/backend/internal/metrics"
	"github.com/xforce-bot/backend/pkg/logger"
)

// genericAck is returned whenever a decision fails downstream. The sender
// sees a normal acknowledgement; the real error only goes to the logs.
const genericAck = "Thank you. Your message has been noted."

type MessageHandler struct {
	engine *engine.Engine
	loc    *time.Location
}

func NewMessageHandler(eng *engine.Engine, loc *time.Location) *MessageHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &MessageHandler{engine: eng, loc: loc}
}

func (h *MessageHandler) HandleMessage(c *fiber.Ctx) error {
	var req struct {
		Message        string `json:"message"`
		EmployeeNumber int64  `json:"employee_number"`
		CompanyID      string `json:"company_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}
	if req.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	resp, err := h.engine.Decide(c.Context(), engine.Request{
		Message:        req.Message,
		EmployeeNumber: req.EmployeeNumber,
		CompanyID:      req.CompanyID,
		Day:            time.Now().In(h.loc),
	})
	if err != nil {
		if errors.Is(err, engine.ErrEmployeeNotFound) {
			metrics.MessagesTotal.WithLabelValues("employee_not_found").Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"action":   "error",
				"response": "Employee record not found.",
			})
		}

		metrics.MessagesTotal.WithLabelValues("error").Inc()
		logger.Error("Decision failed",
			zap.Int64("employee_number", req.EmployeeNumber),
			zap.String("company_id", req.CompanyID),
			zap.Error(err),
		)

		return c.JSON(fiber.Map{
			"action":   "reply",
			"response": genericAck,
		})
	}

	metrics.MessagesTotal.WithLabelValues("ok").Inc()

	body := fiber.Map{
		"action":        resp.Action,
		"response":      resp.ResponseText,
		"tier":          resp.Tier,
		"similar_count": resp.SimilarCount,
	}
	if resp.TicketNumber != 0 {
		body["ticket_number"] = resp.TicketNumber
	}

	return c.JSON(body)
}
