package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/middleware"
	"github.com/oarthurdev/utm-n8n-facebook/internal/n8n"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

// N8NHandler serves the workflow registry routes.
type N8NHandler struct {
	Registry *n8n.Registry
	Logger   *zap.Logger
}

// NewN8NHandler creates an N8N handler with dependencies.
func NewN8NHandler(registry *n8n.Registry, logger *zap.Logger) *N8NHandler {
	return &N8NHandler{Registry: registry, Logger: logger}
}

// ListWorkflows handles GET /api/n8n/workflows.
func (h *N8NHandler) ListWorkflows(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	workflows, err := h.Registry.GetWorkflows(c.Context(), company.ID)
	if err != nil {
		h.Logger.Error("Failed to list workflows", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching N8N workflows",
		})
	}
	return c.JSON(workflows)
}

// GetWorkflow handles GET /api/n8n/workflows/:id, returning the raw
// definition file.
func (h *N8NHandler) GetWorkflow(c *fiber.Ctx) error {
	workflowID := c.Params("id")

	def, err := h.Registry.LoadDefinition(workflowID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Workflow not found",
			})
		}
		h.Logger.Error("Failed to load workflow",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching N8N workflow",
		})
	}
	return c.JSON(def)
}

// TriggerWorkflow handles POST /api/n8n/workflows/:id/trigger.
func (h *N8NHandler) TriggerWorkflow(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)
	workflowID := c.Params("id")

	var body map[string]interface{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
			})
		}
	}

	result, err := h.Registry.Trigger(c.Context(), company.ID, workflowID, body)
	if err != nil {
		h.Logger.Error("Failed to trigger workflow",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error triggering N8N workflow",
		})
	}

	c.Set("Content-Type", "application/json")
	return c.Send(result)
}

// LatestExecution handles GET /api/n8n/workflows/:id/executions/latest.
func (h *N8NHandler) LatestExecution(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)
	workflowID := c.Params("id")

	execution, err := h.Registry.LatestExecution(c.Context(), company.ID, workflowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Workflow not found",
			})
		}
		h.Logger.Error("Failed to fetch latest execution",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching workflow execution",
		})
	}
	return c.JSON(execution)
}
