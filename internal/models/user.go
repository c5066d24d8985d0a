package models

import "github.com/google/uuid"

type User struct {
	ID        int64     `gorm:"primary_key;autoIncrement" json:"id"`
	Username  string    `gorm:"not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null" json:"company_id"`
	Company   Company   `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

func (User) TableName() string {
	return "users"
}
