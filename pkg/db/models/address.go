package models

import "time"

// Address is a saved delivery destination owned by a user.
type Address struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      int64     `gorm:"column:user_id;not null;index"`
	Label       string    `gorm:"column:label;not null"`
	AddressText string    `gorm:"column:address_text;not null"`
	Latitude    *float64  `gorm:"column:latitude"`
	Longitude   *float64  `gorm:"column:longitude"`
	IsDefault   bool      `gorm:"column:is_default;not null;default:false"`
	Notes       *string   `gorm:"column:notes"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
