package enums

import "fmt"

// StockReason labels a stock movement in the ledger.
type StockReason string

const (
	StockReasonOrderReservation StockReason = "ORDER_RESERVATION"
	StockReasonOrderCancelled   StockReason = "ORDER_CANCELLED"
	StockReasonPaymentFailed    StockReason = "PAYMENT_FAILED"
	StockReasonAdjustment       StockReason = "ADJUSTMENT"
	StockReasonRestock          StockReason = "RESTOCK"
)

var validStockReasons = []StockReason{
	StockReasonOrderReservation,
	StockReasonOrderCancelled,
	StockReasonPaymentFailed,
	StockReasonAdjustment,
	StockReasonRestock,
}

func (r StockReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known StockReason.
func (r StockReason) IsValid() bool {
	for _, candidate := range validStockReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseStockReason(value string) (StockReason, error) {
	for _, candidate := range validStockReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock reason %q", value)
}
