package kommo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
)

var testStageIDs = map[string]string{
	"atendido":     "1001",
	"visita_feita": "1002",
	"ganho":        "1003",
}

func TestClassifyStage(t *testing.T) {
	eventType, ok := ClassifyStage(testStageIDs, "1003")
	assert.True(t, ok)
	assert.Equal(t, models.LeadGanho, eventType)

	_, ok = ClassifyStage(testStageIDs, "9999")
	assert.False(t, ok)
}

func TestClassifyWebhookTrackedStage(t *testing.T) {
	payload := &WebhookPayload{
		Leads:       []WebhookLead{{ID: "42"}},
		LeadsStatus: []WebhookStatus{{LeadID: "42", StatusID: "1001"}},
	}

	changes := ClassifyWebhook(payload, testStageIDs)

	require.Len(t, changes, 1)
	assert.Equal(t, "42", changes[0].LeadID)
	assert.Equal(t, "1001", changes[0].StageID)
	assert.Equal(t, models.LeadAtendido, changes[0].EventType)
}

func TestClassifyWebhookUntrackedStage(t *testing.T) {
	payload := &WebhookPayload{
		Leads:       []WebhookLead{{ID: "42"}},
		LeadsStatus: []WebhookStatus{{LeadID: "42", StatusID: "5555"}},
	}

	assert.Empty(t, ClassifyWebhook(payload, testStageIDs))
}

func TestClassifyWebhookLeadWithoutStatus(t *testing.T) {
	payload := &WebhookPayload{
		Leads:       []WebhookLead{{ID: "42"}, {ID: "43"}},
		LeadsStatus: []WebhookStatus{{LeadID: "43", StatusID: "1002"}},
	}

	changes := ClassifyWebhook(payload, testStageIDs)

	require.Len(t, changes, 1)
	assert.Equal(t, "43", changes[0].LeadID)
	assert.Equal(t, models.LeadVisitaFeita, changes[0].EventType)
}

func TestWebhookPayloadDecodesNumericIDs(t *testing.T) {
	// Kommo sends ids as numbers or strings depending on the account.
	body := `{"leads":[{"id":42}],"leads_status":[{"lead_id":42,"status_id":"1003"}]}`

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	changes := ClassifyWebhook(&payload, testStageIDs)
	require.Len(t, changes, 1)
	assert.Equal(t, "42", changes[0].LeadID)
	assert.Equal(t, models.LeadGanho, changes[0].EventType)
}
