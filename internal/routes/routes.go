package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oarthurdev/utm-n8n-facebook/internal/handlers"
)

// Handlers bundles the route handlers wired in main.
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Kommo     *handlers.KommoHandler
	Facebook  *handlers.FacebookHandler
	N8N       *handlers.N8NHandler
	Dashboard *handlers.DashboardHandler
}

// SetupRoutes configures all application routes with dependencies. The
// tenant middleware runs on every /api route except auth; login resolves
// its own tenant from the request.
func SetupRoutes(app *fiber.App, h *Handlers, tenant fiber.Handler) {
	// Health check endpoint
	app.Get("/health", h.Health.HealthCheck)

	api := app.Group("/api")

	auth := api.Group("/auth")
	{
		auth.Post("/login", h.Auth.Login)
		auth.Get("/validate", h.Auth.Validate)
	}

	api.Use(tenant)

	kommo := api.Group("/kommo")
	{
		kommo.Post("/webhook", h.Kommo.Webhook)
		kommo.Post("/capture-utm", h.Kommo.CaptureUTM)
	}

	facebook := api.Group("/facebook")
	{
		facebook.Post("/send-event", h.Facebook.SendEvent)
		facebook.Post("/process-unsent", h.Facebook.ProcessUnsent)
		facebook.Get("/token-status", h.Facebook.TokenStatus)
	}

	n8n := api.Group("/n8n")
	{
		n8n.Get("/workflows", h.N8N.ListWorkflows)
		n8n.Get("/workflows/:id", h.N8N.GetWorkflow)
		n8n.Post("/workflows/:id/trigger", h.N8N.TriggerWorkflow)
		n8n.Get("/workflows/:id/executions/latest", h.N8N.LatestExecution)
	}

	api.Get("/dashboard/stats", h.Dashboard.Stats)
	api.Get("/events", h.Dashboard.Events)
	api.Get("/integrations", h.Dashboard.Integrations)
	api.Get("/settings", h.Dashboard.Settings)
	api.Put("/settings", h.Dashboard.UpdateSettings)
	api.Get("/companies", h.Dashboard.ListCompanies)
	api.Post("/companies", h.Dashboard.CreateCompany)
	api.Get("/companies/:companyId/config", h.Dashboard.CompanyConfig)
	api.Post("/companies/:companyId/config/:service", h.Dashboard.SaveCompanyConfig)
}
