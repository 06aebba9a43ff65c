package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/internal/broadcast"
	"github.com/angelmondragon/coffeeshop-backend/internal/stock"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/payloads"
)

// Transition describes one status change applied inside a caller's transaction.
type Transition struct {
	To    enums.OrderStatus
	Actor *outbox.ActorRef
	// RestockReason, when set, returns every line's quantity to the store.
	RestockReason enums.StockReason
}

// Lifecycle applies status transitions. It is shared by operator updates, customer
// cancellation and payment reconciliation so every path enforces the same edges.
type Lifecycle struct {
	repo   Repository
	outbox outbox.Emitter
	ledger *stock.Ledger
}

func NewLifecycle(repo Repository, emitter outbox.Emitter, ledger *stock.Ledger) (*Lifecycle, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	return &Lifecycle{repo: repo, outbox: emitter, ledger: ledger}, nil
}

// Apply moves a locked order to t.To. The order must have been read with LockByID in
// tx. On success order.Status is updated and the returned change is non-nil when
// subscribers should be notified after commit.
func (l *Lifecycle) Apply(ctx context.Context, tx *gorm.DB, order *models.Order, t Transition) (*broadcast.StatusChange, error) {
	from := order.Status
	if !CanTransition(from, t.To) {
		return nil, invalidTransition(order.ID, from, t.To)
	}
	repo := l.repo.WithTx(tx)

	ok, err := repo.UpdateStatus(ctx, order.ID, from, t.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return nil, invalidTransition(order.ID, from, t.To)
	}

	restocked := false
	if t.RestockReason != "" {
		if err := l.restock(ctx, tx, order, t); err != nil {
			return nil, err
		}
		restocked = true
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         t.Actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			StoreID:   order.StoreID,
			From:      from,
			To:        t.To,
			Restocked: restocked,
		},
	}
	if err := l.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}

	order.Status = t.To
	if !broadcasts(t.To) {
		return nil, nil
	}
	return &broadcast.StatusChange{
		OrderID:    order.ID,
		UserID:     order.UserID,
		StoreID:    order.StoreID,
		From:       from,
		To:         t.To,
		OccurredAt: time.Now().UTC(),
	}, nil
}

func (l *Lifecycle) restock(ctx context.Context, tx *gorm.DB, order *models.Order, t Transition) error {
	lines, err := l.repo.WithTx(tx).FindLines(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	var actorID *int64
	if t.Actor != nil {
		id := t.Actor.UserID
		actorID = &id
	}
	for _, line := range lines {
		if _, err := l.ledger.Release(ctx, tx, stock.Release{
			VariantID: line.VariantID,
			StoreID:   order.StoreID,
			Quantity:  line.Quantity,
			Reason:    t.RestockReason,
			ActorID:   actorID,
			Note:      fmt.Sprintf("order %d %s", order.ID, t.To),
		}); err != nil {
			return err
		}
	}
	return nil
}
