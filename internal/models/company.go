package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is a tenant. Every other row in the database is owned by exactly
// one company through a foreign key; companies are resolved by subdomain.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Subdomain string    `gorm:"not null;uniqueIndex" json:"subdomain"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}
