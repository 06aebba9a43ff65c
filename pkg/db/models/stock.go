package models

import (
	"time"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// StockRecord holds the on-hand quantity of one variant at one store.
type StockRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	VariantID int64     `gorm:"column:variant_id;not null;uniqueIndex:ux_product_stocks_variant_store"`
	StoreID   int64     `gorm:"column:store_id;not null;uniqueIndex:ux_product_stocks_variant_store"`
	Quantity  int       `gorm:"column:quantity;not null;default:0;check:quantity >= 0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockRecord) TableName() string { return "product_stocks" }

// StockMovement is an append-only ledger row written for every quantity change.
type StockMovement struct {
	ID              int64             `gorm:"column:id;primaryKey;autoIncrement"`
	VariantID       int64             `gorm:"column:variant_id;not null;index:ix_stock_movements_variant_store"`
	StoreID         int64             `gorm:"column:store_id;not null;index:ix_stock_movements_variant_store"`
	QuantityChanged int               `gorm:"column:quantity_changed;not null"`
	CurrentQuantity int               `gorm:"column:current_quantity;not null"`
	Reason          enums.StockReason `gorm:"column:reason;type:varchar(32);not null"`
	Note            *string           `gorm:"column:note"`
	CreatedBy       *int64            `gorm:"column:created_by"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
}
