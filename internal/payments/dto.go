package payments

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// Gateway acknowledgement codes.
const (
	RspConfirmed        = "00"
	RspOrderNotFound    = "01"
	RspAlreadyConfirmed = "02"
	RspInvalidAmount    = "04"
	RspInvalidSignature = "97"
	RspUnknownError     = "99"
)

// Ack is the body returned to the gateway for every notification.
type Ack struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func ack(code string) Ack {
	switch code {
	case RspConfirmed:
		return Ack{RspCode: code, Message: "Confirm Success"}
	case RspOrderNotFound:
		return Ack{RspCode: code, Message: "Order not found"}
	case RspAlreadyConfirmed:
		return Ack{RspCode: code, Message: "Order already confirmed"}
	case RspInvalidAmount:
		return Ack{RspCode: code, Message: "Invalid amount"}
	case RspInvalidSignature:
		return Ack{RspCode: code, Message: "Invalid Checksum"}
	default:
		return Ack{RspCode: RspUnknownError, Message: "Unknown error"}
	}
}

// InitiateInput is the buyer's request to be redirected to the gateway.
type InitiateInput struct {
	OrderID   int64           `json:"order_id" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	OrderInfo string          `json:"order_info" validate:"omitempty,max=255"`
	BankCode  string          `json:"bank_code" validate:"omitempty,max=20"`
	IPAddr    string          `json:"-"`
}

type InitiateResult struct {
	PaymentURL string `json:"payment_url"`
}

// StatusView is the read-only payment status of an order.
type StatusView struct {
	OrderID       int64               `json:"orderId"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status,omitempty"`
}
