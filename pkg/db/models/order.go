package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// Order is the aggregate root for a customer purchase. Breakdown columns are stored
// unrounded; TotalAmount is rounded to the minor unit.
type Order struct {
	ID             int64                `gorm:"column:id;primaryKey;autoIncrement"`
	UserID         int64                `gorm:"column:user_id;not null;index"`
	StoreID        int64                `gorm:"column:store_id;not null;index"`
	AddressID      *int64               `gorm:"column:address_id"`
	DeliveryMethod enums.DeliveryMethod `gorm:"column:delivery_method;type:varchar(16);not null"`
	Status         enums.OrderStatus    `gorm:"column:status;type:varchar(32);not null;default:'PENDING';index"`
	VoucherID      *int64               `gorm:"column:voucher_id"`
	Subtotal       decimal.Decimal      `gorm:"column:subtotal;type:numeric;not null"`
	Discount       decimal.Decimal      `gorm:"column:discount;type:numeric;not null"`
	Tax            decimal.Decimal      `gorm:"column:tax;type:numeric;not null"`
	ShippingFee    decimal.Decimal      `gorm:"column:shipping_fee;type:numeric;not null"`
	DistanceKm     *float64             `gorm:"column:distance_km"`
	TotalAmount    decimal.Decimal      `gorm:"column:total_amount;type:numeric;not null"`
	Note           *string              `gorm:"column:note"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Lines []OrderLine `gorm:"foreignKey:OrderID"`
}

// OrderLine snapshots the variant at the moment of purchase.
type OrderLine struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"column:order_id;not null;index"`
	VariantID   int64           `gorm:"column:variant_id;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Size        string          `gorm:"column:size;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric;not null"`
}

func (OrderLine) TableName() string { return "order_lines" }
