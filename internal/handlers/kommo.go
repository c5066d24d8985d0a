package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/kommo"
	"github.com/oarthurdev/utm-n8n-facebook/internal/middleware"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/pipeline"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

// KommoHandler serves the CRM-facing routes: the stage-change webhook and
// the UTM capture endpoint.
type KommoHandler struct {
	Store    storage.Store
	Kommo    *kommo.Client
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
}

// NewKommoHandler creates a Kommo handler with dependencies.
func NewKommoHandler(store storage.Store, client *kommo.Client, pipe *pipeline.Pipeline, logger *zap.Logger) *KommoHandler {
	return &KommoHandler{Store: store, Kommo: client, Pipeline: pipe, Logger: logger}
}

// Webhook handles POST /api/kommo/webhook: classifies each lead's stage
// change against the tenant's stage mapping and captures a lead event for
// every tracked stage.
func (h *KommoHandler) Webhook(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	var payload kommo.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid webhook body",
		})
	}

	cfg, err := h.Kommo.GetConfig(c.Context(), company.ID)
	if err != nil {
		h.auditWebhookFailure(c, company, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error handling Kommo webhook",
		})
	}
	if len(cfg.StageIDs) == 0 {
		h.Logger.Warn("Kommo stage IDs not configured",
			zap.String("company_id", company.ID.String()),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Kommo stage IDs not configured",
		})
	}

	if len(payload.Leads) == 0 || len(payload.LeadsStatus) == 0 {
		return c.JSON(fiber.Map{
			"success": false,
			"message": "No lead information in webhook data",
		})
	}

	changes := kommo.ClassifyWebhook(&payload, cfg.StageIDs)
	for _, change := range changes {
		if _, err := h.Pipeline.Capture(c.Context(), company.ID, change.LeadID, change.EventType); err != nil {
			h.Logger.Error("Failed to capture lead event",
				zap.String("lead_id", change.LeadID),
				zap.Error(err),
			)
			h.auditWebhookFailure(c, company, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Error handling Kommo webhook",
			})
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Webhook processed successfully",
		"data": fiber.Map{
			"processedLeads": len(payload.Leads),
		},
	})
}

type captureUtmRequest struct {
	LeadID      string `json:"leadId"`
	UtmSource   string `json:"utm_source"`
	UtmMedium   string `json:"utm_medium"`
	UtmCampaign string `json:"utm_campaign"`
	UtmContent  string `json:"utm_content"`
	UtmTerm     string `json:"utm_term"`
}

// CaptureUTM handles POST /api/kommo/capture-utm.
func (h *KommoHandler) CaptureUTM(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	var req captureUtmRequest
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

	result, err := h.Kommo.SaveUTM(c.Context(), company.ID, req.LeadID, kommo.UtmParams{
		Source:   req.UtmSource,
		Medium:   req.UtmMedium,
		Campaign: req.UtmCampaign,
		Content:  req.UtmContent,
		Term:     req.UtmTerm,
	})
	if err != nil {
		h.Logger.Error("Failed to capture UTM parameters",
			zap.String("lead_id", req.LeadID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error capturing UTM parameters",
		})
	}

	return c.JSON(result)
}

func (h *KommoHandler) auditWebhookFailure(c *fiber.Ctx, company *models.Company, cause error) {
	err := h.Store.CreateEvent(c.Context(), &models.Event{
		Type:        models.EventTypeError,
		Title:       "Webhook Processing Failed",
		Description: "Failed to process Kommo webhook: " + cause.Error(),
		Source:      models.SourceKommo,
		Metadata:    map[string]interface{}{"error": cause.Error()},
		CompanyID:   company.ID,
	})
	if err != nil {
		h.Logger.Error("Failed to write audit event", zap.Error(err))
	}
}
