package n8n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/integration"
	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

type stubStore struct {
	storage.Store
	configs   map[string]string
	workflows []models.Workflow
}

func (s *stubStore) GetCompanyConfig(ctx context.Context, companyID uuid.UUID, key string) (string, error) {
	raw, ok := s.configs[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return raw, nil
}

func (s *stubStore) GetWorkflows(ctx context.Context, companyID uuid.UUID) ([]models.Workflow, error) {
	return s.workflows, nil
}

func writeWorkflowFile(t *testing.T, dir, workflowID, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, workflowID+".json"), []byte(content), 0o644))
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "utm-capture", `{"nodes":[{"name":"Webhook"}],"connections":{}}`)

	registry := NewRegistry(&stubStore{}, zap.NewNop(), dir)

	def, err := registry.LoadDefinition("utm-capture")

	require.NoError(t, err)
	require.Len(t, def.Nodes, 1)
	assert.Equal(t, "Webhook", def.Nodes[0]["name"])
}

func TestLoadDefinitionMissingFile(t *testing.T) {
	registry := NewRegistry(&stubStore{}, zap.NewNop(), t.TempDir())

	_, err := registry.LoadDefinition("ghost")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetWorkflowsToleratesBrokenDefinition(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "good", `{"nodes":[{"name":"Webhook"}],"connections":{}}`)
	writeWorkflowFile(t, dir, "broken", `{not json`)

	store := &stubStore{workflows: []models.Workflow{
		{ID: 1, WorkflowID: "good", Name: "Good", Type: models.WorkflowTypeWebhook, Status: models.WorkflowStatusActive},
		{ID: 2, WorkflowID: "broken", Name: "Broken", Type: models.WorkflowTypeTrigger, Status: models.WorkflowStatusActive},
		{ID: 3, WorkflowID: "missing", Name: "Missing", Type: models.WorkflowTypePoll, Status: models.WorkflowStatusInactive},
	}}
	registry := NewRegistry(store, zap.NewNop(), dir)

	workflows, err := registry.GetWorkflows(context.Background(), uuid.New())

	require.NoError(t, err)
	require.Len(t, workflows, 3)

	assert.True(t, workflows[0].Active)
	assert.Len(t, workflows[0].Nodes, 1)
	assert.Empty(t, workflows[0].LoadError)

	assert.NotEmpty(t, workflows[1].LoadError)
	assert.Empty(t, workflows[1].Nodes)

	assert.False(t, workflows[2].Active)
	assert.NotEmpty(t, workflows[2].LoadError)
}

func TestTriggerSignsRequest(t *testing.T) {
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/utm-capture", r.URL.Path)
		gotSignature = r.Header.Get("X-N8N-Signature")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	store := &stubStore{configs: map[string]string{
		models.SettingN8NConfig: `{"baseUrl":"` + server.URL + `","webhookSecret":"shh"}`,
	}}
	registry := NewRegistry(store, zap.NewNop(), t.TempDir())

	result, err := registry.Trigger(context.Background(), uuid.New(), "utm-capture",
		map[string]interface{}{"leadId": "42"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, "shh", gotSignature)
}

func TestTriggerRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := &stubStore{configs: map[string]string{
		models.SettingN8NConfig: `{"baseUrl":"` + server.URL + `"}`,
	}}
	registry := NewRegistry(store, zap.NewNop(), t.TempDir())

	_, err := registry.Trigger(context.Background(), uuid.New(), "utm-capture", nil)

	var rejected *integration.RemoteRejectedError
	assert.ErrorAs(t, err, &rejected)
}

func TestGetConfigMissing(t *testing.T) {
	registry := NewRegistry(&stubStore{configs: map[string]string{}}, zap.NewNop(), t.TempDir())

	_, err := registry.GetConfig(context.Background(), uuid.New())

	assert.True(t, integration.IsConfigMissing(err))
}

func TestGetConfigDefaultBaseURL(t *testing.T) {
	store := &stubStore{configs: map[string]string{
		models.SettingN8NConfig: `{"webhookSecret":"shh"}`,
	}}
	registry := NewRegistry(store, zap.NewNop(), t.TempDir())

	cfg, err := registry.GetConfig(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
}
