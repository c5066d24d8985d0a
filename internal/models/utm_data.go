package models

import (
	"time"

	"github.com/google/uuid"
)

// UtmData holds the marketing attribution captured at lead intake. At most
// one row exists per (company, lead); the first write wins and later capture
// attempts return the existing record.
type UtmData struct {
	ID        int64     `gorm:"primary_key;autoIncrement" json:"id"`
	LeadID    string    `gorm:"not null;uniqueIndex:idx_utm_company_lead,priority:2" json:"lead_id"`
	Source    string    `json:"source"`
	Medium    string    `json:"medium"`
	Campaign  string    `json:"campaign"`
	Content   string    `json:"content"`
	Term      string    `json:"term"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_utm_company_lead,priority:1" json:"company_id"`
	Company   Company   `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UtmData) TableName() string {
	return "utm_data"
}
