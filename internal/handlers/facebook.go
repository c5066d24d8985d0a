package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/facebook"
	"github.com/oarthurdev/utm-n8n-facebook/internal/middleware"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/pipeline"
)

// FacebookHandler serves the ad-platform-facing routes: direct event
// sends, the retry sweep trigger and token diagnostics.
type FacebookHandler struct {
	Facebook *facebook.Client
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
}

// NewFacebookHandler creates a Facebook handler with dependencies.
func NewFacebookHandler(client *facebook.Client, pipe *pipeline.Pipeline, logger *zap.Logger) *FacebookHandler {
	return &FacebookHandler{Facebook: client, Pipeline: pipe, Logger: logger}
}

type sendEventRequest struct {
	LeadID    string            `json:"leadId"`
	EventName string            `json:"eventName"`
	UserData  facebook.UserData `json:"userData"`
}

// SendEvent handles POST /api/facebook/send-event: it bypasses capture and
// invokes delivery directly. Configuration and provider errors surface as
// 500 to the caller; they are not retried here.
func (h *FacebookHandler) SendEvent(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	var req sendEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if req.LeadID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "leadId is required",
		})
	}
	if req.EventName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "eventName is required",
		})
	}
	// Canonicalize tracked event names; free-form names pass through.
	if eventType, err := models.ParseLeadEventType(req.EventName); err == nil {
		req.EventName = string(eventType)
	}

	result, err := h.Pipeline.SendDirect(c.Context(), company.ID, req.LeadID, req.EventName, req.UserData)
	if err != nil {
		h.Logger.Error("Failed to send Facebook event",
			zap.String("lead_id", req.LeadID),
			zap.String("event_name", req.EventName),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error sending Facebook event",
		})
	}

	return c.JSON(result)
}

// ProcessUnsent handles POST /api/facebook/process-unsent: one sweep pass
// over all undelivered events. Cron hits this endpoint in production.
func (h *FacebookHandler) ProcessUnsent(c *fiber.Ctx) error {
	result, err := h.Pipeline.SweepUnsent(c.Context())
	if err != nil {
		h.Logger.Error("Sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error processing unsent events",
		})
	}
	return c.JSON(result)
}

// TokenStatus handles GET /api/facebook/token-status.
func (h *FacebookHandler) TokenStatus(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	status, err := h.Facebook.CheckToken(c.Context(), company.ID)
	if err != nil {
		h.Logger.Error("Token status check failed",
			zap.String("company_id", company.ID.String()),
			zap.Error(err),
		)
		return c.JSON(facebook.TokenStatus{
			Valid:   false,
			Message: "Error checking token: " + err.Error(),
		})
	}
	return c.JSON(status)
}
