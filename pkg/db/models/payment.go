package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// Payment records the amount owed for an order and the gateway outcome.
type Payment struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       int64               `gorm:"column:order_id;not null;uniqueIndex"`
	Method        enums.PaymentMethod `gorm:"column:method;type:varchar(16);not null;default:'VNPAY'"`
	Status        enums.PaymentStatus `gorm:"column:status;type:varchar(16);not null;default:'PENDING'"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric;not null"`
	TransactionNo *string             `gorm:"column:transaction_no"`
	BankCode      *string             `gorm:"column:bank_code"`
	ResponseCode  *string             `gorm:"column:response_code"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
