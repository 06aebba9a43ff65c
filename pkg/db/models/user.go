package models

import (
	"time"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// User is a customer or operator account. Credentials live with the identity provider.
type User struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	FullName  string         `gorm:"column:full_name;not null"`
	Phone     *string        `gorm:"column:phone"`
	Role      enums.UserRole `gorm:"column:role;type:varchar(16);not null;default:'customer'"`
	StoreID   *int64         `gorm:"column:store_id"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
