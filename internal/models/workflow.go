package models

import (
	"time"

	"github.com/google/uuid"
)

// Workflow types.
const (
	WorkflowTypeWebhook = "webhook"
	WorkflowTypeTrigger = "trigger"
	WorkflowTypePoll    = "poll"
)

// Workflow statuses.
const (
	WorkflowStatusActive   = "active"
	WorkflowStatusInactive = "inactive"
	WorkflowStatusError    = "error"
)

// Workflow references an N8N workflow definition. The node graph itself
// lives in a JSON file on disk keyed by WorkflowID; this row carries the
// tenant binding and display state.
type Workflow struct {
	ID         int64                  `gorm:"primary_key;autoIncrement" json:"id"`
	Name       string                 `gorm:"not null" json:"name"`
	Type       string                 `gorm:"not null" json:"type"`
	WorkflowID string                 `gorm:"not null" json:"workflow_id"`
	Status     string                 `gorm:"not null;default:'inactive'" json:"status"`
	Config     map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"config"`
	CompanyID  uuid.UUID              `gorm:"type:uuid;not null;index" json:"company_id"`
	Company    Company                `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CreatedAt  time.Time              `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time              `gorm:"not null;default:now()" json:"updated_at"`
}

func (Workflow) TableName() string {
	return "workflows"
}
