package models

import (
	"time"

	"github.com/google/uuid"
)

// Integration types.
const (
	IntegrationKommo    = "kommo"
	IntegrationFacebook = "facebook"
	IntegrationN8N      = "n8n"
)

// Integration statuses.
const (
	IntegrationConnected    = "connected"
	IntegrationDisconnected = "disconnected"
	IntegrationError        = "error"
)

// Integration records a tenant's connection to one external service, for
// display on the integrations page.
type Integration struct {
	ID        int64                  `gorm:"primary_key;autoIncrement" json:"id"`
	Name      string                 `gorm:"not null" json:"name"`
	Type      string                 `gorm:"not null" json:"type"`
	Config    map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"config"`
	Status    string                 `gorm:"not null;default:'disconnected'" json:"status"`
	CompanyID uuid.UUID              `gorm:"type:uuid;not null;index" json:"company_id"`
	Company   Company                `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CreatedAt time.Time              `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time              `gorm:"not null;default:now()" json:"updated_at"`
}

func (Integration) TableName() string {
	return "integrations"
}
