package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once an order and its pending payment are persisted.
type OrderCreatedEvent struct {
	OrderID        int64                `json:"order_id"`
	UserID         int64                `json:"user_id"`
	StoreID        int64                `json:"store_id"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	LineCount      int                  `json:"line_count"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	VoucherCode    string               `json:"voucher_code,omitempty"`
}

// OrderStatusChangedEvent records every accepted lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID   int64             `json:"order_id"`
	UserID    int64             `json:"user_id"`
	StoreID   int64             `json:"store_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	Restocked bool              `json:"restocked,omitempty"`
}

// PaymentSettledEvent is emitted when the gateway confirms a successful charge.
type PaymentSettledEvent struct {
	OrderID       int64           `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionNo string          `json:"transaction_no"`
	BankCode      string          `json:"bank_code,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

// PaymentFailedEvent covers declined charges and amount mismatches.
type PaymentFailedEvent struct {
	OrderID        int64           `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	NotifiedAmount decimal.Decimal `json:"notified_amount"`
	ResponseCode   string          `json:"response_code"`
	Reason         string          `json:"reason"`
}
