package facebook

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

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v18.0"
)

// Config is a tenant's Conversions API configuration, read from the
// FACEBOOK_CONFIG settings document with a fallback to the legacy flat
// FACEBOOK_* keys.
type Config struct {
	AccessToken string `json:"accessToken"`
	PixelID     string `json:"pixelId"`
	AppID       string `json:"appId"`
	AppSecret   string `json:"appSecret"`
	APIVersion  string `json:"apiVersion"`
}

// EventResult summarizes a successful conversion event submission.
type EventResult struct {
	EventsReceived int
	FBTraceID      string
}

// TokenStatus is the outcome of a debug_token check.
type TokenStatus struct {
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message"`
}

// Client is a stateless per-tenant wrapper over the Conversions API. It
// performs exactly one outbound request per call and never retries
// internally; retry is the delivery pipeline's job.
type Client struct {
	store   storage.Store
	http    *resty.Client
	logger  *zap.Logger
	baseURL string
}

// NewClient creates a Facebook client reading tenant credentials from store.
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

// GetConfig loads the tenant's ad-platform credentials. It returns a
// ConfigMissingError when neither the JSON document nor the legacy flat
// keys yield an access token and pixel id.
func (c *Client) GetConfig(ctx context.Context, companyID uuid.UUID) (*Config, error) {
	cfg := &Config{APIVersion: defaultAPIVersion}

	raw, err := c.store.GetCompanyConfig(ctx, companyID, models.SettingFacebookConfig)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), cfg); err != nil {
			return nil, fmt.Errorf("invalid %s for company %s: %w", models.SettingFacebookConfig, companyID, err)
		}
	case err == storage.ErrNotFound:
		// Legacy flat settings shape
		settings, err := c.store.GetSettings(ctx, companyID)
		if err != nil {
			return nil, err
		}
		for _, s := range settings {
			switch s.Key {
			case "FACEBOOK_ACCESS_TOKEN":
				cfg.AccessToken = s.Value
			case "FACEBOOK_PIXEL_ID":
				cfg.PixelID = s.Value
			case "FACEBOOK_APP_ID":
				cfg.AppID = s.Value
			case "FACEBOOK_APP_SECRET":
				cfg.AppSecret = s.Value
			}
		}
	default:
		return nil, err
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.AccessToken == "" || cfg.PixelID == "" {
		return nil, integration.NewConfigMissing(models.SourceFacebook, companyID.String())
	}
	return cfg, nil
}

type conversionPayload struct {
	Data        []conversionEvent `json:"data"`
	PixelID     string            `json:"pixel_id"`
	AccessToken string            `json:"access_token"`
}

type conversionEvent struct {
	EventName    string            `json:"event_name"`
	EventTime    int64             `json:"event_time"`
	ActionSource string            `json:"action_source"`
	UserData     map[string]string `json:"user_data"`
	CustomData   customData        `json:"custom_data"`
}

type customData struct {
	LeadID      string `json:"lead_id"`
	UtmSource   string `json:"utm_source"`
	UtmMedium   string `json:"utm_medium"`
	UtmCampaign string `json:"utm_campaign"`
	UtmContent  string `json:"utm_content"`
	UtmTerm     string `json:"utm_term"`
}

type conversionResponse struct {
	EventsReceived int    `json:"events_received"`
	FBTraceID      string `json:"fbtrace_id"`
}

// SendEvent posts one offline conversion event to the tenant's pixel.
// PII fields are hashed before transmission; UTM attribution defaults to
// empty strings when absent. The error taxonomy is the integration
// package's: transport, remote-rejected or malformed-response.
func (c *Client) SendEvent(
	ctx context.Context,
	cfg *Config,
	leadID, eventName string,
	user UserData,
	utm *models.UtmData,
) (*EventResult, error) {
	custom := customData{LeadID: leadID}
	if utm != nil {
		custom.UtmSource = utm.Source
		custom.UtmMedium = utm.Medium
		custom.UtmCampaign = utm.Campaign
		custom.UtmContent = utm.Content
		custom.UtmTerm = utm.Term
	}

	payload := conversionPayload{
		Data: []conversionEvent{{
			EventName:    eventName,
			EventTime:    time.Now().Unix(),
			ActionSource: "crm",
			UserData:     formatUserData(user),
			CustomData:   custom,
		}},
		PixelID:     cfg.PixelID,
		AccessToken: cfg.AccessToken,
	}

	url := fmt.Sprintf("%s/%s/%s/events", c.baseURL, cfg.APIVersion, cfg.PixelID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, &integration.TransportError{Service: models.SourceFacebook, Err: err}
	}

	if resp.IsError() {
		return nil, &integration.RemoteRejectedError{
			Service:    models.SourceFacebook,
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}

	var result conversionResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &integration.MalformedResponseError{Service: models.SourceFacebook, Err: err}
	}

	c.logger.Debug("Conversion event accepted",
		zap.String("lead_id", leadID),
		zap.String("event_name", eventName),
		zap.Int("events_received", result.EventsReceived),
	)

	return &EventResult{
		EventsReceived: result.EventsReceived,
		FBTraceID:      result.FBTraceID,
	}, nil
}

type debugTokenResponse struct {
	Data struct {
		IsValid   bool  `json:"is_valid"`
		ExpiresAt int64 `json:"expires_at"`
		Error     *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"data"`
}

// CheckToken validates the tenant's access token against the debug_token
// endpoint.
func (c *Client) CheckToken(ctx context.Context, companyID uuid.UUID) (*TokenStatus, error) {
	cfg, err := c.GetConfig(ctx, companyID)
	if err != nil {
		if integration.IsConfigMissing(err) {
			return &TokenStatus{Valid: false, Message: "Facebook access token not configured"}, nil
		}
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("input_token", cfg.AccessToken).
		SetQueryParam("access_token", fmt.Sprintf("%s|%s", cfg.AppID, cfg.AppSecret)).
		Get(c.baseURL + "/debug_token")
	if err != nil {
		return nil, &integration.TransportError{Service: models.SourceFacebook, Err: err}
	}
	if resp.IsError() {
		return nil, &integration.RemoteRejectedError{
			Service:    models.SourceFacebook,
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}

	var result debugTokenResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &integration.MalformedResponseError{Service: models.SourceFacebook, Err: err}
	}

	if !result.Data.IsValid {
		message := "Invalid token"
		if result.Data.Error != nil && result.Data.Error.Message != "" {
			message = result.Data.Error.Message
		}
		return &TokenStatus{Valid: false, Message: message}, nil
	}

	status := &TokenStatus{Valid: true, Message: "Token is valid"}
	if result.Data.ExpiresAt > 0 {
		expires := time.Unix(result.Data.ExpiresAt, 0).UTC()
		status.ExpiresAt = &expires
	}
	return status, nil
}
