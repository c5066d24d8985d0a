package models

import (
	"time"

	"github.com/google/uuid"
)

// LeadEvent tracks a single lead lifecycle change and its delivery state to
// the ad platform. Rows are append-only: the delivery pipeline only ever
// flips sent_to_facebook/error_message/sent_at, never deletes.
//
// Invariant: SentToFacebook == true implies ErrorMessage == nil and
// SentAt != nil.
type LeadEvent struct {
	ID             int64      `gorm:"primary_key;autoIncrement" json:"id"`
	LeadID         string     `gorm:"not null;index" json:"lead_id"`
	EventType      string     `gorm:"not null" json:"event_type"`
	SentToFacebook bool       `gorm:"not null;default:false" json:"sent_to_facebook"`
	ErrorMessage   *string    `json:"error_message"`
	CompanyID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	Company        Company    `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	SentAt         *time.Time `json:"sent_at"`
}

func (LeadEvent) TableName() string {
	return "lead_events"
}

// Delivered reports whether the event reached its terminal-success state.
func (e *LeadEvent) Delivered() bool {
	return e.SentToFacebook
}
