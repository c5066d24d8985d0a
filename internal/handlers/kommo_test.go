package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/facebook"
	"github.com/oarthurdev/utm-n8n-facebook/internal/kommo"
	"github.com/oarthurdev/utm-n8n-facebook/internal/middleware"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/pipeline"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

// stubStore backs handler tests in memory; unimplemented Store methods panic
// through the embedded nil interface.
type stubStore struct {
	storage.Store
	company      *models.Company
	configs      map[string]string
	leadEvents   []*models.LeadEvent
	unsentEvents []models.LeadEvent
	auditEvents  []*models.Event
	markedSent   []int64
	markedError  map[int64]string
}

func newStubStore() *stubStore {
	return &stubStore{
		company: &models.Company{ID: uuid.New(), Name: "Demo", Subdomain: "demo"},
		configs: map[string]string{},
	}
}

func (s *stubStore) GetCompanyBySubdomain(ctx context.Context, subdomain string) (*models.Company, error) {
	if s.company.Subdomain != subdomain {
		return nil, storage.ErrNotFound
	}
	return s.company, nil
}

func (s *stubStore) GetCompanyConfig(ctx context.Context, companyID uuid.UUID, key string) (string, error) {
	raw, ok := s.configs[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return raw, nil
}

func (s *stubStore) CreateLeadEvent(ctx context.Context, event *models.LeadEvent) error {
	event.ID = int64(len(s.leadEvents) + 1)
	s.leadEvents = append(s.leadEvents, event)
	return nil
}

func (s *stubStore) CreateEvent(ctx context.Context, event *models.Event) error {
	s.auditEvents = append(s.auditEvents, event)
	return nil
}

func (s *stubStore) GetUnsentLeadEvents(ctx context.Context) ([]models.LeadEvent, error) {
	return s.unsentEvents, nil
}

func (s *stubStore) GetUtmDataByLeadID(ctx context.Context, companyID uuid.UUID, leadID string) (*models.UtmData, error) {
	return nil, storage.ErrNotFound
}

func (s *stubStore) MarkLeadEventSent(ctx context.Context, id int64, sentAt time.Time) error {
	s.markedSent = append(s.markedSent, id)
	return nil
}

func (s *stubStore) MarkLeadEventError(ctx context.Context, id int64, errorMessage string) error {
	if s.markedError == nil {
		s.markedError = map[int64]string{}
	}
	s.markedError[id] = errorMessage
	return nil
}

// fakeSender always accepts the event.
type fakeSender struct {
	sent []string
}

func (f *fakeSender) GetConfig(ctx context.Context, companyID uuid.UUID) (*facebook.Config, error) {
	return &facebook.Config{AccessToken: "tok", PixelID: "px", APIVersion: "v18.0"}, nil
}

func (f *fakeSender) SendEvent(ctx context.Context, cfg *facebook.Config, leadID, eventName string, user facebook.UserData, utm *models.UtmData) (*facebook.EventResult, error) {
	f.sent = append(f.sent, leadID)
	return &facebook.EventResult{EventsReceived: 1}, nil
}

func newWebhookApp(store *stubStore, sender pipeline.Sender) *fiber.App {
	log := zap.NewNop()
	kommoClient := kommo.NewClient(store, log)
	pipe := pipeline.New(store, sender, nil, log)
	handler := NewKommoHandler(store, kommoClient, pipe, log)

	app := fiber.New()
	app.Use(middleware.ExtractCompany(store, log))
	app.Post("/api/kommo/webhook", handler.Webhook)
	return app
}

func TestWebhookCapturesTrackedStageChange(t *testing.T) {
	store := newStubStore()
	store.configs[models.SettingKommoConfig] = `{"apiToken":"tok","stageIds":{"ganho":"1003"}}`
	app := newWebhookApp(store, &fakeSender{})

	body := `{"leads":[{"id":42}],"leads_status":[{"lead_id":42,"status_id":1003}]}`
	req := httptest.NewRequest("POST", "/api/kommo/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subdomain", "demo")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			ProcessedLeads int `json:"processedLeads"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Data.ProcessedLeads)

	require.Len(t, store.leadEvents, 1)
	assert.Equal(t, "42", store.leadEvents[0].LeadID)
	assert.Equal(t, "lead_ganho", store.leadEvents[0].EventType)
	assert.False(t, store.leadEvents[0].SentToFacebook)
	assert.Equal(t, store.company.ID, store.leadEvents[0].CompanyID)
}

func TestWebhookIgnoresUntrackedStage(t *testing.T) {
	store := newStubStore()
	store.configs[models.SettingKommoConfig] = `{"apiToken":"tok","stageIds":{"ganho":"1003"}}`
	app := newWebhookApp(store, &fakeSender{})

	body := `{"leads":[{"id":42}],"leads_status":[{"lead_id":42,"status_id":9999}]}`
	req := httptest.NewRequest("POST", "/api/kommo/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subdomain", "demo")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, store.leadEvents)
}

func TestWebhookEmptyPayload(t *testing.T) {
	store := newStubStore()
	store.configs[models.SettingKommoConfig] = `{"apiToken":"tok","stageIds":{"ganho":"1003"}}`
	app := newWebhookApp(store, &fakeSender{})

	req := httptest.NewRequest("POST", "/api/kommo/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subdomain", "demo")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Success)
	assert.Equal(t, "No lead information in webhook data", result.Message)
}

func TestWebhookWithoutStageMapping(t *testing.T) {
	store := newStubStore()
	store.configs[models.SettingKommoConfig] = `{"apiToken":"tok"}`
	app := newWebhookApp(store, &fakeSender{})

	body := `{"leads":[{"id":42}],"leads_status":[{"lead_id":42,"status_id":1003}]}`
	req := httptest.NewRequest("POST", "/api/kommo/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subdomain", "demo")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
