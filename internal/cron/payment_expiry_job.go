package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/internal/broadcast"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/payloads"
)

const (
	defaultExpiryBatch = 100
	expiredReason      = "payment window expired"
)

// errNotPending ends an expiry transaction without writes when a notification
// settled the order after it was listed.
var errNotPending = errors.New("order no longer pending")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type PaymentExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Lifecycle *orders.Lifecycle
	Outbox    outbox.Emitter
	Notifier  *broadcast.Notifier
	// ExpireAfter is the gateway payment window; Grace covers notifications that
	// arrive just after it closes.
	ExpireAfter time.Duration
	Grace       time.Duration
	BatchSize   int
	Restock     bool
}

// NewPaymentExpiryJob builds the job that cancels orders whose payment never settled.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Lifecycle == nil:
		return nil, fmt.Errorf("order lifecycle required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.ExpireAfter <= 0:
		return nil, fmt.Errorf("payment window must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &paymentExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		orders:    params.Orders,
		lifecycle: params.Lifecycle,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		window:    params.ExpireAfter + params.Grace,
		batch:     batch,
		restock:   params.Restock,
		now:       time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	orders    orders.Repository
	lifecycle *orders.Lifecycle
	outbox    outbox.Emitter
	notifier  *broadcast.Notifier
	window    time.Duration
	batch     int
	restock   bool
	now       func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	pending, err := j.orders.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	var errs error
	expired := 0
	for i := range pending {
		orderCtx := j.logg.WithOrderID(ctx, pending[i].ID)
		change, err := j.expire(orderCtx, pending[i].ID)
		if errors.Is(err, errNotPending) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %d: %w", pending[i].ID, err))
			continue
		}
		expired++
		if change != nil {
			j.notifier.Notify(orderCtx, *change)
		}
		j.logg.Info(orderCtx, "order.payment_expired")
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(pending),
		"expired": expired,
	})
	j.logg.Debug(logCtx, "payment expiry sweep complete")
	return errs
}

func (j *paymentExpiryJob) expire(ctx context.Context, orderID int64) (*broadcast.StatusChange, error) {
	var change *broadcast.StatusChange
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order == nil || order.Status != enums.OrderStatusPending {
			return errNotPending
		}

		transition := orders.Transition{To: enums.OrderStatusCancelled}
		if j.restock {
			transition.RestockReason = enums.StockReasonPaymentFailed
		}
		change, err = j.lifecycle.Apply(ctx, tx, order, transition)
		if err != nil {
			return err
		}

		payment, err := repo.FindPayment(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment == nil || payment.Status.IsSettled() {
			return nil
		}
		return j.failPayment(ctx, tx, repo, order, payment)
	})
	return change, err
}

func (j *paymentExpiryJob) failPayment(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, payment *models.Payment) error {
	if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{"status": enums.PaymentStatusFailed}); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentFailedEvent{
			OrderID: order.ID,
			Amount:  payment.Amount,
			Reason:  expiredReason,
		},
	})
}
