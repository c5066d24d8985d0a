package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/facebook"
	"github.com/oarthurdev/utm-n8n-facebook/internal/integration"
	"github.com/oarthurdev/utm-n8n-facebook/internal/kommo"
	"github.com/oarthurdev/utm-n8n-facebook/internal/middleware"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/n8n"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

const defaultEventLimit = 20

// DashboardHandler serves the read-mostly routes behind the dashboard UI:
// stats, audit events, integrations, settings and per-company configuration.
type DashboardHandler struct {
	Store    storage.Store
	Kommo    *kommo.Client
	Facebook *facebook.Client
	N8N      *n8n.Registry
	Logger   *zap.Logger
}

// NewDashboardHandler creates a dashboard handler with dependencies.
func NewDashboardHandler(store storage.Store, kommoClient *kommo.Client, facebookClient *facebook.Client, registry *n8n.Registry, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		Store:    store,
		Kommo:    kommoClient,
		Facebook: facebookClient,
		N8N:      registry,
		Logger:   logger,
	}
}

// Stats handles GET /api/dashboard/stats.
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	utmStats, err := h.Store.GetUtmStats(c.Context(), company.ID)
	if err != nil {
		h.Logger.Error("Failed to compute UTM stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching dashboard stats",
		})
	}

	events, err := h.Store.GetLeadEvents(c.Context(), company.ID, 0)
	if err != nil {
		h.Logger.Error("Failed to fetch lead events", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching dashboard stats",
		})
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var total, success, failed int
	leads := make(map[string]struct{})
	for i := range events {
		event := &events[i]
		if event.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(today) {
			total++
			leads[event.LeadID] = struct{}{}
			if event.Delivered() {
				success++
			} else {
				failed++
			}
		}
	}

	return c.JSON(fiber.Map{
		"integrationStatus": fiber.Map{
			"status":      "Active",
			"lastChecked": time.Now().UTC().Format(time.RFC3339),
		},
		"leadsToday": fiber.Map{
			"count": len(leads),
		},
		"eventsToday": fiber.Map{
			"total":   total,
			"success": success,
			"failed":  failed,
		},
		"utmData": fiber.Map{
			"percentage": utmStats.Percentage,
			"raw":        fmt.Sprintf("%d of %d", utmStats.WithUtm, utmStats.Total),
		},
	})
}

// Events handles GET /api/events, the recent audit log.
func (h *DashboardHandler) Events(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	events, err := h.Store.GetEvents(c.Context(), company.ID, limit)
	if err != nil {
		h.Logger.Error("Failed to fetch audit events", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching events",
		})
	}
	return c.JSON(events)
}

// integrationCredential reports whether one credential key has a value,
// without revealing it.
type integrationCredential struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}

// Integrations handles GET /api/integrations.
func (h *DashboardHandler) Integrations(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	rows, err := h.Store.GetIntegrations(c.Context(), company.ID)
	if err != nil {
		h.Logger.Error("Failed to fetch integrations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching integrations",
		})
	}

	settings, err := h.Store.GetSettings(c.Context(), company.ID)
	if err != nil {
		h.Logger.Error("Failed to fetch settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching integrations",
		})
	}
	byKey := make(map[string]string, len(settings))
	for _, setting := range settings {
		byKey[setting.Key] = setting.Value
	}

	credentialKeys := map[string][]string{
		models.IntegrationKommo:    {"KOMMO_API_TOKEN", "KOMMO_ACCOUNT_ID", "KOMMO_PIPELINE_ID"},
		models.IntegrationFacebook: {"FACEBOOK_ACCESS_TOKEN", "FACEBOOK_PIXEL_ID", "FACEBOOK_APP_ID", "FACEBOOK_APP_SECRET"},
		models.IntegrationN8N:      {"N8N_WEBHOOK_SECRET"},
	}
	descriptions := map[string]string{
		models.IntegrationKommo:    "Connect with Kommo CRM to capture and update lead data",
		models.IntegrationFacebook: "Send offline conversion events to Facebook Ads",
		models.IntegrationN8N:      "Integration with workflow automation engine",
	}

	result := make([]fiber.Map, 0, len(rows))
	for _, row := range rows {
		credentials := make([]integrationCredential, 0, len(credentialKeys[row.Type]))
		for _, key := range credentialKeys[row.Type] {
			status := "missing"
			if strings.TrimSpace(byKey[key]) != "" {
				status = "set"
			}
			credentials = append(credentials, integrationCredential{Key: key, Status: status})
		}

		result = append(result, fiber.Map{
			"id":          strconv.FormatInt(row.ID, 10),
			"name":        row.Name,
			"description": descriptions[row.Type],
			"credentials": credentials,
			"status":      row.Status,
			"connected":   row.Status == models.IntegrationConnected,
		})
	}
	return c.JSON(result)
}

// Settings handles GET /api/settings: the flat credential keys for the
// settings form.
func (h *DashboardHandler) Settings(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	settings, err := h.Store.GetSettings(c.Context(), company.ID)
	if err != nil {
		h.Logger.Error("Failed to fetch settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching settings",
		})
	}
	byKey := make(map[string]string, len(settings))
	for _, setting := range settings {
		byKey[setting.Key] = setting.Value
	}

	return c.JSON(fiber.Map{
		"kommoApiToken":       byKey["KOMMO_API_TOKEN"],
		"kommoAccountId":      byKey["KOMMO_ACCOUNT_ID"],
		"kommoPipelineId":     byKey["KOMMO_PIPELINE_ID"],
		"facebookAccessToken": byKey["FACEBOOK_ACCESS_TOKEN"],
		"facebookPixelId":     byKey["FACEBOOK_PIXEL_ID"],
		"facebookAppId":       byKey["FACEBOOK_APP_ID"],
		"facebookAppSecret":   byKey["FACEBOOK_APP_SECRET"],
		"n8nWebhookSecret":    byKey["N8N_WEBHOOK_SECRET"],
	})
}

type updateSettingsRequest struct {
	KommoApiToken       string `json:"kommoApiToken"`
	KommoAccountId      string `json:"kommoAccountId"`
	KommoPipelineId     string `json:"kommoPipelineId"`
	FacebookAccessToken string `json:"facebookAccessToken"`
	FacebookPixelId     string `json:"facebookPixelId"`
	FacebookAppId       string `json:"facebookAppId"`
	FacebookAppSecret   string `json:"facebookAppSecret"`
	N8NWebhookSecret    string `json:"n8nWebhookSecret"`
}

// UpdateSettings handles PUT /api/settings: upserts the flat credential keys
// and records an audit event.
func (h *DashboardHandler) UpdateSettings(c *fiber.Ctx) error {
	company := middleware.CompanyFromContext(c)

	var req updateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	updates := []struct {
		key    string
		value  string
		secret bool
	}{
		{"KOMMO_API_TOKEN", req.KommoApiToken, true},
		{"KOMMO_ACCOUNT_ID", req.KommoAccountId, false},
		{"KOMMO_PIPELINE_ID", req.KommoPipelineId, false},
		{"FACEBOOK_ACCESS_TOKEN", req.FacebookAccessToken, true},
		{"FACEBOOK_PIXEL_ID", req.FacebookPixelId, false},
		{"FACEBOOK_APP_ID", req.FacebookAppId, false},
		{"FACEBOOK_APP_SECRET", req.FacebookAppSecret, true},
		{"N8N_WEBHOOK_SECRET", req.N8NWebhookSecret, true},
	}
	for _, update := range updates {
		if err := h.Store.UpsertSetting(c.Context(), company.ID, update.key, update.value, update.secret); err != nil {
			h.Logger.Error("Failed to update setting",
				zap.String("key", update.key),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Error updating settings",
			})
		}
	}

	h.audit(c, company.ID, models.EventTypeSuccess, "Settings Updated",
		"API credentials and settings updated successfully", nil)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Settings updated successfully",
	})
}

// ListCompanies handles GET /api/companies: every tenant with a flag per
// service showing whether its configuration document exists.
func (h *DashboardHandler) ListCompanies(c *fiber.Ctx) error {
	companies, err := h.Store.ListCompanies(c.Context())
	if err != nil {
		h.Logger.Error("Failed to list companies", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching companies",
		})
	}

	configKeys := map[string]string{
		models.IntegrationKommo:    models.SettingKommoConfig,
		models.IntegrationFacebook: models.SettingFacebookConfig,
		models.IntegrationN8N:      models.SettingN8NConfig,
	}

	result := make([]fiber.Map, 0, len(companies))
	for _, company := range companies {
		integrations := fiber.Map{}
		for service, key := range configKeys {
			status := "missing"
			if _, err := h.Store.GetCompanyConfig(c.Context(), company.ID, key); err == nil {
				status = "configured"
			} else if !errors.Is(err, storage.ErrNotFound) {
				h.Logger.Error("Failed to read company config", zap.Error(err))
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Error fetching companies",
				})
			}
			integrations[service] = status
		}
		result = append(result, fiber.Map{
			"id":           company.ID,
			"name":         company.Name,
			"subdomain":    company.Subdomain,
			"integrations": integrations,
		})
	}
	return c.JSON(result)
}

type createCompanyRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

// CreateCompany handles POST /api/companies: provisions a new tenant.
func (h *DashboardHandler) CreateCompany(c *fiber.Ctx) error {
	var req createCompanyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	req.Subdomain = strings.ToLower(strings.TrimSpace(req.Subdomain))
	if req.Name == "" || req.Subdomain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Name and subdomain are required",
		})
	}

	if _, err := h.Store.GetCompanyBySubdomain(c.Context(), req.Subdomain); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Subdomain already in use",
		})
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.Logger.Error("Failed to check subdomain", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error creating company",
		})
	}

	company := &models.Company{Name: req.Name, Subdomain: req.Subdomain}
	if err := h.Store.CreateCompany(c.Context(), company); err != nil {
		h.Logger.Error("Failed to create company", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error creating company",
		})
	}

	h.audit(c, company.ID, models.EventTypeSuccess, "Company Created",
		"Company "+company.Name+" provisioned with subdomain "+company.Subdomain, nil)

	return c.Status(fiber.StatusCreated).JSON(company)
}

// CompanyConfig handles GET /api/companies/:companyId/config. It reports
// which credentials are present per service, never the values themselves.
func (h *DashboardHandler) CompanyConfig(c *fiber.Ctx) error {
	companyID, err := uuid.Parse(c.Params("companyId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid company id",
		})
	}
	if _, err := h.Store.GetCompany(c.Context(), companyID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Company not found",
			})
		}
		h.Logger.Error("Failed to fetch company", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching company configuration",
		})
	}

	response := fiber.Map{}

	kommoCfg, err := h.Kommo.GetConfig(c.Context(), companyID)
	switch {
	case err == nil:
		response["kommo"] = fiber.Map{
			"configured": true,
			"apiToken":   presence(kommoCfg.APIToken),
			"accountId":  presence(kommoCfg.AccountID),
			"pipelineId": presence(kommoCfg.PipelineID),
			"stageIds":   len(kommoCfg.StageIDs),
		}
	case integration.IsConfigMissing(err):
		response["kommo"] = fiber.Map{"configured": false}
	default:
		h.Logger.Error("Failed to load Kommo config", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching company configuration",
		})
	}

	facebookCfg, err := h.Facebook.GetConfig(c.Context(), companyID)
	switch {
	case err == nil:
		response["facebook"] = fiber.Map{
			"configured":  true,
			"accessToken": presence(facebookCfg.AccessToken),
			"pixelId":     presence(facebookCfg.PixelID),
			"appId":       presence(facebookCfg.AppID),
			"appSecret":   presence(facebookCfg.AppSecret),
		}
	case integration.IsConfigMissing(err):
		response["facebook"] = fiber.Map{"configured": false}
	default:
		h.Logger.Error("Failed to load Facebook config", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching company configuration",
		})
	}

	n8nCfg, err := h.N8N.GetConfig(c.Context(), companyID)
	switch {
	case err == nil:
		response["n8n"] = fiber.Map{
			"configured":    true,
			"baseUrl":       n8nCfg.BaseURL,
			"webhookSecret": presence(n8nCfg.WebhookSecret),
		}
	case integration.IsConfigMissing(err):
		response["n8n"] = fiber.Map{"configured": false}
	default:
		h.Logger.Error("Failed to load N8N config", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching company configuration",
		})
	}

	return c.JSON(response)
}

// SaveCompanyConfig handles POST /api/companies/:companyId/config/:service.
// The body is stored wholesale as the service's config document.
func (h *DashboardHandler) SaveCompanyConfig(c *fiber.Ctx) error {
	companyID, err := uuid.Parse(c.Params("companyId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid company id",
		})
	}

	service := strings.ToLower(c.Params("service"))
	var configKey string
	switch service {
	case models.IntegrationKommo:
		configKey = models.SettingKommoConfig
	case models.IntegrationFacebook:
		configKey = models.SettingFacebookConfig
	case models.IntegrationN8N:
		configKey = models.SettingN8NConfig
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid service specified",
		})
	}

	var configData map[string]interface{}
	if err := c.BodyParser(&configData); err != nil || len(configData) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing config data",
		})
	}

	value, err := json.Marshal(configData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing config data",
		})
	}

	if err := h.Store.UpsertSetting(c.Context(), companyID, configKey, string(value), true); err != nil {
		h.Logger.Error("Failed to save company config",
			zap.String("company_id", companyID.String()),
			zap.String("service", service),
			zap.Error(err),
		)
		h.audit(c, companyID, models.EventTypeError, "Configuration Save Failed",
			"Failed to save "+service+" configuration: "+err.Error(),
			map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error saving company configuration",
		})
	}

	h.audit(c, companyID, models.EventTypeSuccess, "Configuration Updated",
		service+" configuration updated",
		map[string]interface{}{"companyId": companyID.String(), "service": service})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Configuration saved successfully",
	})
}

func (h *DashboardHandler) audit(c *fiber.Ctx, companyID uuid.UUID, eventType, title, description string, metadata map[string]interface{}) {
	err := h.Store.CreateEvent(c.Context(), &models.Event{
		Type:        eventType,
		Title:       title,
		Description: description,
		Source:      models.SourceSystem,
		Metadata:    metadata,
		CompanyID:   companyID,
	})
	if err != nil {
		h.Logger.Error("Failed to write audit event", zap.Error(err))
	}
}

func presence(value string) string {
	if strings.TrimSpace(value) == "" {
		return "missing"
	}
	return "set"
}
