package models

import "time"

// Store is a physical shop that fulfills orders.
type Store struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	Address   string    `gorm:"column:address;not null"`
	Phone     *string   `gorm:"column:phone"`
	Latitude  *float64  `gorm:"column:latitude"`
	Longitude *float64  `gorm:"column:longitude"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasCoordinates reports whether the store can be used for distance calculations.
func (s Store) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}
