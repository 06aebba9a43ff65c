package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is a sellable size of a product with its own price.
type ProductVariant struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID int64           `gorm:"column:product_id;not null;index"`
	SKU       string          `gorm:"column:sku;not null;uniqueIndex"`
	Size      string          `gorm:"column:size;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric;not null"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
