package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// Caller is the authenticated identity threaded into every order operation.
type Caller struct {
	UserID int64
	Role   enums.UserRole
}

// IsOperator reports whether the caller may act on orders they do not own.
func (c Caller) IsOperator() bool {
	return c.Role.IsOperator()
}

// LineInput is one requested (variant, quantity) pair.
type LineInput struct {
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// CreateInput is the order placement request.
type CreateInput struct {
	Items          []LineInput `json:"items" validate:"required,min=1,dive"`
	VoucherCode    string      `json:"voucher_code" validate:"omitempty,max=64"`
	DeliveryMethod string      `json:"delivery_method" validate:"required,oneof=delivery pickup DELIVERY PICKUP"`
	AddressID      *int64      `json:"address_id" validate:"omitempty,gt=0"`
	StoreID        *int64      `json:"store_id" validate:"omitempty,gt=0"`
	Note           string      `json:"note" validate:"omitempty,max=500"`
}

// StatusUpdateInput carries an operator-driven transition.
type StatusUpdateInput struct {
	Status string `json:"status" validate:"required"`
}

// LineView snapshots a persisted order line.
type LineView struct {
	ID          int64           `json:"id"`
	VariantID   int64           `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PaymentView is the order's payment as exposed to clients.
type PaymentView struct {
	ID            int64               `json:"id"`
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	TransactionNo *string             `json:"transaction_no,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

// OrderView is the response shape for a single order.
type OrderView struct {
	ID             int64                `json:"id"`
	UserID         int64                `json:"user_id"`
	StoreID        int64                `json:"store_id"`
	AddressID      *int64               `json:"address_id,omitempty"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	Status         enums.OrderStatus    `json:"status"`
	VoucherCode    string               `json:"voucher_code,omitempty"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	Discount       decimal.Decimal      `json:"discount"`
	Tax            decimal.Decimal      `json:"tax"`
	ShippingFee    decimal.Decimal      `json:"shipping_fee"`
	DistanceKm     *float64             `json:"distance_km,omitempty"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Note           *string              `json:"note,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	Lines          []LineView           `json:"lines"`
	Payment        *PaymentView         `json:"payment,omitempty"`
}

func toView(order *models.Order, payment *models.Payment, voucherCode string) *OrderView {
	view := &OrderView{
		ID:             order.ID,
		UserID:         order.UserID,
		StoreID:        order.StoreID,
		AddressID:      order.AddressID,
		DeliveryMethod: order.DeliveryMethod,
		Status:         order.Status,
		VoucherCode:    voucherCode,
		Subtotal:       order.Subtotal,
		Discount:       order.Discount,
		Tax:            order.Tax,
		ShippingFee:    order.ShippingFee,
		DistanceKm:     order.DistanceKm,
		TotalAmount:    order.TotalAmount,
		Note:           order.Note,
		CreatedAt:      order.CreatedAt,
		Lines:          make([]LineView, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, LineView{
			ID:          line.ID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Size:        line.Size,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			LineTotal:   line.LineTotal,
		})
	}
	if payment != nil {
		view.Payment = &PaymentView{
			ID:            payment.ID,
			Method:        payment.Method,
			Status:        payment.Status,
			Amount:        payment.Amount,
			TransactionNo: payment.TransactionNo,
			PaidAt:        payment.PaidAt,
		}
	}
	return view
}
