package orders

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

// transitions lists the legal next states. Terminal states have no entry.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:           {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:              {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:         {enums.OrderStatusFinishedPreparing, enums.OrderStatusDelivering},
	enums.OrderStatusFinishedPreparing: {enums.OrderStatusDelivering},
	enums.OrderStatusDelivering:        {enums.OrderStatusDelivered},
}

// CanTransition reports whether from -> to is an edge of the order lifecycle.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether the customer may still cancel.
func Cancellable(status enums.OrderStatus) bool {
	return CanTransition(status, enums.OrderStatusCancelled)
}

// broadcasts reports whether entering to should notify subscribers.
func broadcasts(to enums.OrderStatus) bool {
	return to != enums.OrderStatusDelivered
}

func invalidTransition(orderID int64, from, to enums.OrderStatus) error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrInvalidTransition,
		fmt.Sprintf("order %d cannot move from %s to %s", orderID, from, to)).
		WithDetails(map[string]any{
			"order_id": orderID,
			"from":     from,
			"to":       to,
		})
}
