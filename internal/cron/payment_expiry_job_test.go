package cron

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/internal/broadcast"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/stock"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
)

var expiryNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type expiryHarness struct {
	conn     *gorm.DB
	repo     orders.Repository
	outbox   *outbox.Repository
	recorder *broadcast.Recorder
}

func newExpiryHarness(t *testing.T) *expiryHarness {
	t.Helper()
	conn := dbtest.Open(t)
	require.NoError(t, conn.Create(&models.StockRecord{VariantID: 11, StoreID: 3, Quantity: 1}).Error)
	return &expiryHarness{
		conn:     conn,
		repo:     orders.NewRepository(conn),
		outbox:   outbox.NewRepository(conn),
		recorder: &broadcast.Recorder{},
	}
}

func (h *expiryHarness) job(t *testing.T, restock bool) *paymentExpiryJob {
	t.Helper()
	ledger, err := stock.NewLedger(stock.NewRepository(h.conn), nil)
	require.NoError(t, err)
	emitter := outbox.NewService(h.outbox, nil)
	lifecycle, err := orders.NewLifecycle(h.repo, emitter, ledger)
	require.NoError(t, err)
	jobIface, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:          db.FromConn(h.conn),
		Orders:      h.repo,
		Lifecycle:   lifecycle,
		Outbox:      emitter,
		Notifier:    broadcast.NewNotifier(h.recorder, nil),
		ExpireAfter: 15 * time.Minute,
		Grace:       5 * time.Minute,
		Restock:     restock,
	})
	require.NoError(t, err)
	job := jobIface.(*paymentExpiryJob)
	job.now = func() time.Time { return expiryNow }
	return job
}

func (h *expiryHarness) seed(t *testing.T, status enums.OrderStatus, age time.Duration) (*models.Order, *models.Payment) {
	t.Helper()
	ctx := context.Background()
	order, err := h.repo.CreateOrder(ctx, &models.Order{
		UserID:         7,
		StoreID:        3,
		DeliveryMethod: enums.DeliveryMethodPickup,
		Status:         status,
		Subtotal:       decimal.NewFromInt(42000),
		Discount:       decimal.Zero,
		Tax:            decimal.NewFromInt(3360),
		ShippingFee:    decimal.Zero,
		TotalAmount:    decimal.NewFromInt(45360),
		Lines: []models.OrderLine{
			{VariantID: 11, ProductName: "Latte", Size: "M", UnitPrice: decimal.NewFromInt(42000), Quantity: 1, LineTotal: decimal.NewFromInt(42000)},
		},
	})
	require.NoError(t, err)
	require.NoError(t, h.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("created_at", expiryNow.Add(-age)).Error)
	payment, err := h.repo.CreatePayment(ctx, &models.Payment{
		OrderID: order.ID,
		Method:  enums.PaymentMethodVNPay,
		Status:  enums.PaymentStatusPending,
		Amount:  order.TotalAmount,
	})
	require.NoError(t, err)
	return order, payment
}

func (h *expiryHarness) reload(t *testing.T, order *models.Order, payment *models.Payment) (enums.OrderStatus, enums.PaymentStatus) {
	t.Helper()
	var o models.Order
	require.NoError(t, h.conn.First(&o, order.ID).Error)
	var p models.Payment
	require.NoError(t, h.conn.First(&p, payment.ID).Error)
	return o.Status, p.Status
}

func TestPaymentExpiryCancelsStaleOrders(t *testing.T) {
	h := newExpiryHarness(t)
	stale, stalePayment := h.seed(t, enums.OrderStatusPending, time.Hour)
	fresh, freshPayment := h.seed(t, enums.OrderStatusPending, 10*time.Minute)

	require.NoError(t, h.job(t, false).Run(context.Background()))

	orderStatus, paymentStatus := h.reload(t, stale, stalePayment)
	assert.Equal(t, enums.OrderStatusCancelled, orderStatus)
	assert.Equal(t, enums.PaymentStatusFailed, paymentStatus)

	orderStatus, paymentStatus = h.reload(t, fresh, freshPayment)
	assert.Equal(t, enums.OrderStatusPending, orderStatus)
	assert.Equal(t, enums.PaymentStatusPending, paymentStatus)

	changes := h.recorder.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, stale.ID, changes[0].OrderID)
	assert.Equal(t, enums.OrderStatusCancelled, changes[0].To)

	events, err := h.outbox.ListForAggregate(stalePayment.ID)
	require.NoError(t, err)
	var types []enums.OutboxEventType
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, enums.EventPaymentFailed)

	var record models.StockRecord
	require.NoError(t, h.conn.Where("variant_id = ? AND store_id = ?", 11, 3).First(&record).Error)
	assert.Equal(t, 1, record.Quantity, "stock stays put unless restock is enabled")
}

func TestPaymentExpiryRestocksWhenEnabled(t *testing.T) {
	h := newExpiryHarness(t)
	h.seed(t, enums.OrderStatusPending, time.Hour)

	require.NoError(t, h.job(t, true).Run(context.Background()))

	var record models.StockRecord
	require.NoError(t, h.conn.Where("variant_id = ? AND store_id = ?", 11, 3).First(&record).Error)
	assert.Equal(t, 2, record.Quantity)
}

func TestPaymentExpiryIgnoresSettledOrders(t *testing.T) {
	h := newExpiryHarness(t)
	paid, payment := h.seed(t, enums.OrderStatusPaid, time.Hour)

	require.NoError(t, h.job(t, false).Run(context.Background()))

	orderStatus, paymentStatus := h.reload(t, paid, payment)
	assert.Equal(t, enums.OrderStatusPaid, orderStatus)
	assert.Equal(t, enums.PaymentStatusPending, paymentStatus)
	assert.Empty(t, h.recorder.Changes())
}

func TestNewPaymentExpiryJobValidates(t *testing.T) {
	_, err := NewPaymentExpiryJob(PaymentExpiryJobParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	assert.Error(t, err)
}
