package models

import (
	"time"

	"github.com/google/uuid"
)

// Well-known setting keys. The *_CONFIG keys hold a JSON document with the
// full client configuration for one integration; the flat keys are the
// legacy per-credential shape still honored on reads.
const (
	SettingKommoConfig    = "KOMMO_CONFIG"
	SettingFacebookConfig = "FACEBOOK_CONFIG"
	SettingN8NConfig      = "N8N_CONFIG"
)

// Setting is a tenant-scoped key/value configuration entry. Values are
// replaced wholesale on update; the storage layer performs no partial merge.
type Setting struct {
	ID        int64     `gorm:"primary_key;autoIncrement" json:"id"`
	Key       string    `gorm:"not null;uniqueIndex:idx_settings_company_key,priority:2" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	IsSecret  bool      `gorm:"not null;default:false" json:"is_secret"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_settings_company_key,priority:1" json:"company_id"`
	Company   Company   `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}
