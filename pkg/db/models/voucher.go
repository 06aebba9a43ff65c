package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

type Voucher struct {
	ID            int64              `gorm:"column:id;primaryKey;autoIncrement"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:varchar(16);not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric;not null"`
	EndDate       time.Time          `gorm:"column:end_date;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
