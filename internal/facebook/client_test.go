package facebook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/integration"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

// stubStore serves config reads; every other Store method panics.
type stubStore struct {
	storage.Store
	configs  map[string]string
	settings []models.Setting
}

func (s *stubStore) GetCompanyConfig(ctx context.Context, companyID uuid.UUID, key string) (string, error) {
	raw, ok := s.configs[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return raw, nil
}

func (s *stubStore) GetSettings(ctx context.Context, companyID uuid.UUID) ([]models.Setting, error) {
	return s.settings, nil
}

func TestGetConfigFromDocument(t *testing.T) {
	store := &stubStore{configs: map[string]string{
		models.SettingFacebookConfig: `{"accessToken":"tok","pixelId":"px","appId":"app","appSecret":"sec"}`,
	}}
	client := NewClient(store, zap.NewNop())

	cfg, err := client.GetConfig(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.AccessToken)
	assert.Equal(t, "px", cfg.PixelID)
	assert.Equal(t, "v18.0", cfg.APIVersion)
}

func TestGetConfigLegacyFlatKeys(t *testing.T) {
	store := &stubStore{
		configs: map[string]string{},
		settings: []models.Setting{
			{Key: "FACEBOOK_ACCESS_TOKEN", Value: "tok"},
			{Key: "FACEBOOK_PIXEL_ID", Value: "px"},
		},
	}
	client := NewClient(store, zap.NewNop())

	cfg, err := client.GetConfig(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.AccessToken)
	assert.Equal(t, "px", cfg.PixelID)
}

func TestGetConfigMissing(t *testing.T) {
	store := &stubStore{configs: map[string]string{}}
	client := NewClient(store, zap.NewNop())

	_, err := client.GetConfig(context.Background(), uuid.New())

	assert.True(t, integration.IsConfigMissing(err))
}

func TestSendEventHashesPII(t *testing.T) {
	var received conversionPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/px/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events_received":1,"fbtrace_id":"abc"}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(&stubStore{}, zap.NewNop(), server.URL)
	cfg := &Config{AccessToken: "tok", PixelID: "px", APIVersion: "v18.0"}
	utm := &models.UtmData{Source: "facebook", Campaign: "spring"}

	result, err := client.SendEvent(context.Background(), cfg, "42", "lead_ganho",
		UserData{Name: "Ana Silva", Email: "ana@example.com"}, utm)

	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsReceived)
	assert.Equal(t, "abc", result.FBTraceID)

	require.Len(t, received.Data, 1)
	event := received.Data[0]
	assert.Equal(t, "lead_ganho", event.EventName)
	assert.Equal(t, "crm", event.ActionSource)
	assert.Equal(t, "42", event.CustomData.LeadID)
	assert.Equal(t, "facebook", event.CustomData.UtmSource)
	assert.Equal(t, "spring", event.CustomData.UtmCampaign)
	assert.Equal(t, sha256hex("ana@example.com"), event.UserData["em"])
	assert.NotContains(t, event.UserData["em"], "@")
}

func TestSendEventRemoteRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token"}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(&stubStore{}, zap.NewNop(), server.URL)
	cfg := &Config{AccessToken: "bad", PixelID: "px", APIVersion: "v18.0"}

	_, err := client.SendEvent(context.Background(), cfg, "42", "lead_ganho", UserData{}, nil)

	var rejected *integration.RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Contains(t, rejected.Body, "Invalid OAuth access token")
}

func TestSendEventMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(&stubStore{}, zap.NewNop(), server.URL)
	cfg := &Config{AccessToken: "tok", PixelID: "px", APIVersion: "v18.0"}

	_, err := client.SendEvent(context.Background(), cfg, "42", "lead_ganho", UserData{}, nil)

	var malformed *integration.MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestCheckTokenValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/debug_token", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("input_token"))
		assert.Equal(t, "app|sec", r.URL.Query().Get("access_token"))
		w.Write([]byte(`{"data":{"is_valid":true,"expires_at":1767225600}}`))
	}))
	defer server.Close()

	store := &stubStore{configs: map[string]string{
		models.SettingFacebookConfig: `{"accessToken":"tok","pixelId":"px","appId":"app","appSecret":"sec"}`,
	}}
	client := NewClientWithBaseURL(store, zap.NewNop(), server.URL)

	status, err := client.CheckToken(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.True(t, status.Valid)
	require.NotNil(t, status.ExpiresAt)
}

func TestCheckTokenInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"is_valid":false,"error":{"message":"Session has expired"}}}`))
	}))
	defer server.Close()

	store := &stubStore{configs: map[string]string{
		models.SettingFacebookConfig: `{"accessToken":"tok","pixelId":"px"}`,
	}}
	client := NewClientWithBaseURL(store, zap.NewNop(), server.URL)

	status, err := client.CheckToken(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.Equal(t, "Session has expired", status.Message)
}

func TestCheckTokenUnconfigured(t *testing.T) {
	store := &stubStore{configs: map[string]string{}}
	client := NewClient(store, zap.NewNop())

	status, err := client.CheckToken(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.Equal(t, "Facebook access token not configured", status.Message)
}
