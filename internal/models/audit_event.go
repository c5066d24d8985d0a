package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types shown on the dashboard.
const (
	EventTypeSuccess = "success"
	EventTypeWarning = "warning"
	EventTypeError   = "error"
)

// Audit event sources.
const (
	SourceKommo    = "kommo"
	SourceFacebook = "facebook"
	SourceN8N      = "n8n"
	SourceSystem   = "system"
)

// Event is an append-only audit log entry recording integration activity.
// Rows are immutable once written and used only for display and diagnostics.
type Event struct {
	ID          int64                  `gorm:"primary_key;autoIncrement" json:"id"`
	Type        string                 `gorm:"not null" json:"type"`
	Title       string                 `gorm:"not null" json:"title"`
	Description string                 `json:"description"`
	Source      string                 `gorm:"not null" json:"source"`
	Metadata    map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"metadata"`
	CompanyID   uuid.UUID              `gorm:"type:uuid;not null;index" json:"company_id"`
	Company     Company                `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Timestamp   time.Time              `gorm:"not null;default:now()" json:"timestamp"`
}

func (Event) TableName() string {
	return "events"
}
