// Package pricing computes order totals. Intermediate amounts stay unrounded; only the
// total is rounded to the currency minor unit.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// DefaultTaxRate is applied to the discounted subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.08")

var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrVoucherExpired  = errors.New("voucher expired")
)

var hundred = decimal.NewFromInt(100)

// MinorUnitPlaces is the precision a payable total is rounded to.
const MinorUnitPlaces = 2

// Line is one priced item.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns unitPrice x quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Input collects everything a breakdown depends on.
type Input struct {
	Lines       []Line
	Voucher     *models.Voucher
	ShippingFee decimal.Decimal
}

// Breakdown is the result of Compute.
type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
}

// Engine prices orders with a fixed tax rate.
type Engine struct {
	taxRate decimal.Decimal
}

// NewEngine builds an engine; a negative rate falls back to DefaultTaxRate.
func NewEngine(taxRate decimal.Decimal) *Engine {
	if taxRate.IsNegative() {
		taxRate = DefaultTaxRate
	}
	return &Engine{taxRate: taxRate}
}

func (e *Engine) TaxRate() decimal.Decimal {
	return e.taxRate
}

// Compute applies subtotal, voucher, tax and shipping in that order. The voucher must
// already have been checked with CheckVoucher.
func (e *Engine) Compute(in Input) Breakdown {
	subtotal := decimal.Zero
	for _, line := range in.Lines {
		subtotal = subtotal.Add(line.Total())
	}

	discount := Discount(subtotal, in.Voucher)
	taxable := subtotal.Sub(discount)

	tax := taxable.Mul(e.taxRate)

	total := taxable.Add(tax).Add(in.ShippingFee).Round(MinorUnitPlaces)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal:    subtotal,
		Discount:    discount,
		TaxableBase: taxable,
		Tax:         tax,
		ShippingFee: in.ShippingFee,
		Total:       total,
	}
}

// Discount returns the voucher reduction on subtotal, never more than subtotal itself.
func Discount(subtotal decimal.Decimal, voucher *models.Voucher) decimal.Decimal {
	if voucher == nil {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch voucher.DiscountType {
	case enums.DiscountTypePercent:
		discount = subtotal.Mul(voucher.DiscountValue).Div(hundred)
	case enums.DiscountTypeFixedAmount:
		discount = voucher.DiscountValue
	default:
		return decimal.Zero
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// CheckVoucher fails when the voucher is missing or its end date is before today in loc.
// A voucher ending today is still usable.
func CheckVoucher(code string, voucher *models.Voucher, now time.Time, loc *time.Location) error {
	if voucher == nil {
		return pkgerrors.Wrap(pkgerrors.CodeBusinessRule, ErrVoucherNotFound, fmt.Sprintf("voucher %q not found", code))
	}
	if loc == nil {
		loc = time.UTC
	}
	today := dateOf(now.In(loc))
	end := dateOf(voucher.EndDate.In(loc))
	if end.Before(today) {
		return pkgerrors.Wrap(pkgerrors.CodeBusinessRule, ErrVoucherExpired, fmt.Sprintf("voucher %q has expired", voucher.Code)).
			WithDetails(map[string]any{"end_date": voucher.EndDate.Format(time.DateOnly)})
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
