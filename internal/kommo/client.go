package kommo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/integration"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

const defaultBaseURL = "https://api.kommo.com"

// Custom field ids for the UTM parameters, as created in the Kommo account.
var utmFieldIDs = map[string]int{
	"source":   100001,
	"medium":   100002,
	"campaign": 100003,
	"content":  100004,
	"term":     100005,
}

// Config is a tenant's CRM configuration from the KOMMO_CONFIG settings
// document, with a fallback to the legacy flat KOMMO_* keys. StageIDs maps
// a stage key ("atendido", "visita_feita", "ganho") to the Kommo pipeline
// status id it corresponds to.
type Config struct {
	BaseURL    string            `json:"baseUrl"`
	APIToken   string            `json:"apiToken"`
	AccountID  string            `json:"accountId"`
	PipelineID string            `json:"pipelineId"`
	StageIDs   map[string]string `json:"stageIds"`
}

// Lead is the subset of a Kommo lead used to build conversion events.
type Lead struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// UtmParams are the attribution parameters captured at lead intake.
type UtmParams struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
	Term     string
}

// UtmResult reports the outcome of a capture attempt.
type UtmResult struct {
	LeadID  string          `json:"leadId"`
	Created bool            `json:"created"`
	Message string          `json:"message"`
	UtmData *models.UtmData `json:"utmData"`
}

// Client is a stateless per-tenant wrapper over the Kommo API.
type Client struct {
	store   storage.Store
	http    *resty.Client
	logger  *zap.Logger
	baseURL string
}

// NewClient creates a Kommo client reading tenant credentials from store.
func NewClient(store storage.Store, logger *zap.Logger) *Client {
	return NewClientWithBaseURL(store, logger, defaultBaseURL)
}

// NewClientWithBaseURL allows tests to point the client at a local server.
func NewClientWithBaseURL(store storage.Store, logger *zap.Logger, baseURL string) *Client {
	httpClient := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		store:   store,
		http:    httpClient,
		logger:  logger,
		baseURL: baseURL,
	}
}

// GetConfig loads the tenant's CRM credentials and stage mapping.
func (c *Client) GetConfig(ctx context.Context, companyID uuid.UUID) (*Config, error) {
	cfg := &Config{BaseURL: c.baseURL}

	raw, err := c.store.GetCompanyConfig(ctx, companyID, models.SettingKommoConfig)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), cfg); err != nil {
			return nil, fmt.Errorf("invalid %s for company %s: %w", models.SettingKommoConfig, companyID, err)
		}
	case err == storage.ErrNotFound:
		settings, err := c.store.GetSettings(ctx, companyID)
		if err != nil {
			return nil, err
		}
		for _, s := range settings {
			switch s.Key {
			case "KOMMO_API_TOKEN":
				cfg.APIToken = s.Value
			case "KOMMO_ACCOUNT_ID":
				cfg.AccountID = s.Value
			case "KOMMO_PIPELINE_ID":
				cfg.PipelineID = s.Value
			case "KOMMO_STAGE_IDS":
				if s.Value != "" {
					if err := json.Unmarshal([]byte(s.Value), &cfg.StageIDs); err != nil {
						c.logger.Warn("Invalid KOMMO_STAGE_IDS value",
							zap.String("company_id", companyID.String()),
							zap.Error(err),
						)
					}
				}
			}
		}
	default:
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = c.baseURL
	}
	if cfg.APIToken == "" {
		return nil, integration.NewConfigMissing(models.SourceKommo, companyID.String())
	}
	return cfg, nil
}

// request performs one authenticated call against the Kommo API and decodes
// the response into out (when non-nil).
func (c *Client) request(ctx context.Context, cfg *Config, method, endpoint string, body, out interface{}) error {
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(cfg.APIToken)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, cfg.BaseURL+"/"+endpoint)
	if err != nil {
		return &integration.TransportError{Service: models.SourceKommo, Err: err}
	}
	if resp.IsError() {
		return &integration.RemoteRejectedError{
			Service:    models.SourceKommo,
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &integration.MalformedResponseError{Service: models.SourceKommo, Err: err}
		}
	}
	return nil
}

// GetLead fetches a lead's contact details.
func (c *Client) GetLead(ctx context.Context, cfg *Config, leadID string) (*Lead, error) {
	var lead Lead
	if err := c.request(ctx, cfg, "GET", "leads/"+leadID, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

type customFieldValue struct {
	Value string `json:"value"`
}

type customField struct {
	FieldID int                `json:"field_id"`
	Values  []customFieldValue `json:"values"`
}

// UpdateLeadFields patches custom field values on a lead.
func (c *Client) UpdateLeadFields(ctx context.Context, cfg *Config, leadID string, fields []customField) error {
	body := map[string]interface{}{"custom_fields_values": fields}
	return c.request(ctx, cfg, "PATCH", "leads/"+leadID, body, nil)
}

// SaveUTM captures UTM attribution for a lead. The first write wins: when a
// row already exists the stored record is returned untouched and nothing is
// pushed to Kommo. On a fresh capture the parameters are also written to
// the lead's custom fields and an audit event is appended.
func (c *Client) SaveUTM(ctx context.Context, companyID uuid.UUID, leadID string, params UtmParams) (*UtmResult, error) {
	data := &models.UtmData{
		LeadID:    leadID,
		Source:    params.Source,
		Medium:    params.Medium,
		Campaign:  params.Campaign,
		Content:   params.Content,
		Term:      params.Term,
		CompanyID: companyID,
	}

	created, err := c.store.CreateUtmData(ctx, data)
	if err != nil {
		return nil, err
	}
	if !created {
		return &UtmResult{
			LeadID:  leadID,
			Created: false,
			Message: "UTM parameters already exist for this lead",
			UtmData: data,
		}, nil
	}

	if err := c.store.CreateEvent(ctx, &models.Event{
		Type:        models.EventTypeSuccess,
		Title:       "UTM Parameters Captured",
		Description: fmt.Sprintf("UTM parameters saved for lead %s", leadID),
		Source:      models.SourceKommo,
		Metadata:    map[string]interface{}{"leadId": leadID},
		CompanyID:   companyID,
	}); err != nil {
		c.logger.Warn("Failed to write audit event for UTM capture",
			zap.String("lead_id", leadID),
			zap.Error(err),
		)
	}

	// Mirror the attribution into Kommo custom fields; a push failure does
	// not undo the local capture.
	fields := make([]customField, 0, len(utmFieldIDs))
	for name, value := range map[string]string{
		"source":   params.Source,
		"medium":   params.Medium,
		"campaign": params.Campaign,
		"content":  params.Content,
		"term":     params.Term,
	} {
		if value == "" {
			continue
		}
		fields = append(fields, customField{
			FieldID: utmFieldIDs[name],
			Values:  []customFieldValue{{Value: value}},
		})
	}

	if len(fields) > 0 {
		cfg, err := c.GetConfig(ctx, companyID)
		if err != nil {
			c.logger.Warn("Skipping Kommo custom-field update",
				zap.String("lead_id", leadID),
				zap.Error(err),
			)
		} else if err := c.UpdateLeadFields(ctx, cfg, leadID, fields); err != nil {
			c.logger.Warn("Failed to push UTM custom fields to Kommo",
				zap.String("lead_id", leadID),
				zap.Error(err),
			)
		}
	}

	return &UtmResult{
		LeadID:  leadID,
		Created: true,
		Message: "UTM parameters captured and saved successfully",
		UtmData: data,
	}, nil
}
