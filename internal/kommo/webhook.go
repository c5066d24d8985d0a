package kommo

import (
	"encoding/json"

	"github.com/oarthurdev/utm-n8n-facebook/internal/models"
)

// WebhookLead identifies a lead referenced by a Kommo webhook.
type WebhookLead struct {
	ID json.Number `json:"id"`
}

// WebhookStatus is one stage change reported by a Kommo webhook.
type WebhookStatus struct {
	LeadID   json.Number `json:"lead_id"`
	StatusID json.Number `json:"status_id"`
}

// WebhookPayload is the body Kommo posts on lead stage changes.
type WebhookPayload struct {
	Leads       []WebhookLead   `json:"leads"`
	LeadsStatus []WebhookStatus `json:"leads_status"`
}

// StageChange is a classified stage change ready for pipeline capture.
type StageChange struct {
	LeadID    string
	StageID   string
	EventType models.LeadEventType
}

// ClassifyStage maps a Kommo status id to the tracked event type using the
// tenant's stage mapping. Returns false when the stage is not tracked.
func ClassifyStage(stageIDs map[string]string, statusID string) (models.LeadEventType, bool) {
	for stage, id := range stageIDs {
		if id == statusID {
			return models.LeadEventTypeForStage(stage), true
		}
	}
	return "", false
}

// ClassifyWebhook pairs each lead in the payload with its stage change and
// keeps only changes into a tracked stage. Leads without a matching status
// entry or with an untracked stage are skipped.
func ClassifyWebhook(payload *WebhookPayload, stageIDs map[string]string) []StageChange {
	statusByLead := make(map[string]string, len(payload.LeadsStatus))
	for _, status := range payload.LeadsStatus {
		statusByLead[status.LeadID.String()] = status.StatusID.String()
	}

	var changes []StageChange
	for _, lead := range payload.Leads {
		leadID := lead.ID.String()
		statusID, ok := statusByLead[leadID]
		if !ok {
			continue
		}
		eventType, ok := ClassifyStage(stageIDs, statusID)
		if !ok {
			continue
		}
		changes = append(changes, StageChange{
			LeadID:    leadID,
			StageID:   statusID,
			EventType: eventType,
		})
	}
	return changes
}
