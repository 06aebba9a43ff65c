package payments

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/internal/broadcast"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/payments/vnpay"
	"github.com/angelmondragon/coffeeshop-backend/internal/pricing"
	"github.com/angelmondragon/coffeeshop-backend/internal/stock"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
)

type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{seen: map[string]bool{}}
}

func (g *memoryGuard) CheckAndMark(_ context.Context, scope, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := scope + ":" + id
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memoryGuard) Release(_ context.Context, scope, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, scope+":"+id)
	return nil
}

type stuckGuard struct{ *memoryGuard }

func (stuckGuard) Release(context.Context, string, string) error {
	return errors.New("redis timeout")
}

type failingTx struct{}

func (failingTx) WithTx(context.Context, func(tx *gorm.DB) error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "begin tx")
}

type harness struct {
	conn     *gorm.DB
	svc      Service
	gateway  *vnpay.Client
	recorder *broadcast.Recorder
	registry *prometheus.Registry
	outbox   *outbox.Repository
	order    *models.Order
	payment  *models.Payment
}

type harnessOption func(*ServiceParams)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)

	gateway, err := vnpay.NewClient(config.VNPayConfig{
		TmnCode:    "TMN01",
		HashSecret: "SECRETKEY123",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example/payment/return",
		Version:    "2.1.0",
		Command:    "pay",
		OrderType:  "other",
		Locale:     "vn",
		CurrCode:   "VND",
		Timezone:   "Asia/Ho_Chi_Minh",
	})
	require.NoError(t, err)

	repo := orders.NewRepository(conn)
	order, err := repo.CreateOrder(ctx, &models.Order{
		UserID:         7,
		StoreID:        3,
		DeliveryMethod: enums.DeliveryMethodDelivery,
		Status:         enums.OrderStatusPending,
		Subtotal:       decimal.NewFromInt(84000),
		Discount:       decimal.NewFromInt(8400),
		Tax:            decimal.NewFromInt(6048),
		ShippingFee:    decimal.NewFromInt(15000),
		TotalAmount:    decimal.NewFromInt(96648),
		Lines: []models.OrderLine{
			{VariantID: 11, ProductName: "Latte", Size: "M", UnitPrice: decimal.NewFromInt(42000), Quantity: 2, LineTotal: decimal.NewFromInt(84000)},
		},
	})
	require.NoError(t, err)
	payment, err := repo.CreatePayment(ctx, &models.Payment{
		OrderID: order.ID,
		Method:  enums.PaymentMethodVNPay,
		Status:  enums.PaymentStatusPending,
		Amount:  order.TotalAmount,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Create(&models.StockRecord{VariantID: 11, StoreID: 3, Quantity: 3}).Error)

	ledger, err := stock.NewLedger(stock.NewRepository(conn), nil)
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, nil)
	lifecycle, err := orders.NewLifecycle(repo, emitter, ledger)
	require.NoError(t, err)

	h := &harness{
		conn:     conn,
		gateway:  gateway,
		recorder: &broadcast.Recorder{},
		registry: prometheus.NewRegistry(),
		outbox:   outboxRepo,
		order:    order,
		payment:  payment,
	}
	params := ServiceParams{
		Tx:        db.FromConn(conn),
		Orders:    repo,
		Lifecycle: lifecycle,
		Outbox:    emitter,
		Gateway:   gateway,
		Notifier:  broadcast.NewNotifier(h.recorder, nil),
		Metrics:   metrics.NewPaymentMetrics(h.registry),
		Now:       func() time.Time { return time.Date(2024, 6, 15, 9, 5, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(&params)
	}
	h.svc, err = NewService(params)
	require.NoError(t, err)
	return h
}

func (h *harness) notification(rspCode string, amountMinor string) vnpay.Params {
	return h.gateway.Sign(vnpay.Params{
		vnpay.ParamTxnRef:        strconv.FormatInt(h.order.ID, 10),
		vnpay.ParamAmount:        amountMinor,
		vnpay.ParamResponseCode:  rspCode,
		vnpay.ParamTransactionNo: "14012345",
		vnpay.ParamBankCode:      "NCB",
		"vnp_TmnCode":            "TMN01",
	})
}

func (h *harness) reload(t *testing.T) (*models.Order, *models.Payment) {
	t.Helper()
	var order models.Order
	require.NoError(t, h.conn.First(&order, h.order.ID).Error)
	var payment models.Payment
	require.NoError(t, h.conn.First(&payment, h.payment.ID).Error)
	return &order, &payment
}

func (h *harness) ackCount(t *testing.T, code string) float64 {
	t.Helper()
	families, err := h.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "payment_ipn_acks_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "rsp_code" && label.GetValue() == code {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandleIPNSuccessMarksPaid(t *testing.T) {
	h := newHarness(t)

	got := h.svc.HandleIPN(context.Background(), h.notification("00", "9664800"))
	assert.Equal(t, Ack{RspCode: "00", Message: "Confirm Success"}, got)

	order, payment := h.reload(t)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, enums.PaymentStatusSuccess, payment.Status)
	require.NotNil(t, payment.TransactionNo)
	assert.Equal(t, "14012345", *payment.TransactionNo)
	require.NotNil(t, payment.PaidAt)

	changes := h.recorder.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, enums.OrderStatusPaid, changes[0].To)

	events, err := h.outbox.ListForAggregate(h.payment.ID)
	require.NoError(t, err)
	var settled int
	for _, e := range events {
		if e.EventType == enums.EventPaymentSettled {
			settled++
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, float64(1), h.ackCount(t, "00"))
}

func TestHandleIPNDuplicateMutatesOnce(t *testing.T) {
	for name, opts := range map[string][]harnessOption{
		"database state": nil,
		"replay guard": {func(p *ServiceParams) { p.Guard = newMemoryGuard() }},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, opts...)
			ctx := context.Background()
			params := h.notification("00", "9664800")

			first := h.svc.HandleIPN(ctx, params)
			second := h.svc.HandleIPN(ctx, params)

			assert.Equal(t, RspConfirmed, first.RspCode)
			assert.Equal(t, RspAlreadyConfirmed, second.RspCode)
			assert.Len(t, h.recorder.Changes(), 1)

			events, err := h.outbox.ListForAggregate(h.order.ID)
			require.NoError(t, err)
			var statusEvents int
			for _, e := range events {
				if e.EventType == enums.EventOrderStatusChanged {
					statusEvents++
				}
			}
			assert.Equal(t, 1, statusEvents)
		})
	}
}

func TestHandleIPNInvalidSignature(t *testing.T) {
	h := newHarness(t)
	params := h.notification("00", "9664800")
	params[vnpay.ParamAmount] = "100"

	got := h.svc.HandleIPN(context.Background(), params)
	assert.Equal(t, RspInvalidSignature, got.RspCode)

	order, payment := h.reload(t)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Empty(t, h.recorder.Changes())
}

func TestHandleIPNUnknownOrder(t *testing.T) {
	h := newHarness(t)
	for _, ref := range []string{"999999", "ORD-abc", ""} {
		params := h.gateway.Sign(vnpay.Params{
			vnpay.ParamTxnRef:       ref,
			vnpay.ParamAmount:       "9664800",
			vnpay.ParamResponseCode: "00",
			"vnp_TmnCode":           "TMN01",
		})
		got := h.svc.HandleIPN(context.Background(), params)
		assert.Equalf(t, RspOrderNotFound, got.RspCode, "ref %q", ref)
	}
}

func TestHandleIPNUnknownOrderLogsGuardReleaseFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	h := newHarness(t, func(p *ServiceParams) {
		p.Guard = stuckGuard{newMemoryGuard()}
		p.Logger = logger.New(logger.Options{ServiceName: "payments-test", Output: buf})
	})

	params := h.gateway.Sign(vnpay.Params{
		vnpay.ParamTxnRef:        "999999",
		vnpay.ParamAmount:        "9664800",
		vnpay.ParamResponseCode:  "00",
		vnpay.ParamTransactionNo: "14099999",
		"vnp_TmnCode":            "TMN01",
	})
	got := h.svc.HandleIPN(context.Background(), params)
	assert.Equal(t, RspOrderNotFound, got.RspCode)
	assert.Contains(t, buf.String(), "payment.ipn.replay_guard_release_failed")
	assert.Contains(t, buf.String(), "redis timeout")
}

func TestHandleIPNSanitizesReference(t *testing.T) {
	h := newHarness(t)
	params := h.notification("00", "9664800")
	params[vnpay.ParamTxnRef] = "ORD-" + strconv.FormatInt(h.order.ID, 10)
	params = h.gateway.Sign(params)

	got := h.svc.HandleIPN(context.Background(), params)
	assert.Equal(t, RspConfirmed, got.RspCode)
}

func TestHandleIPNAmountMismatchCancels(t *testing.T) {
	h := newHarness(t)

	got := h.svc.HandleIPN(context.Background(), h.notification("00", "100"))
	assert.Equal(t, Ack{RspCode: "04", Message: "Invalid amount"}, got)

	order, payment := h.reload(t)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
}

func TestHandleIPNDeclinedCancelsButConfirms(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) { p.RestockOnFailure = true })

	got := h.svc.HandleIPN(context.Background(), h.notification("24", "9664800"))
	assert.Equal(t, RspConfirmed, got.RspCode)

	order, payment := h.reload(t)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.ResponseCode)
	assert.Equal(t, "24", *payment.ResponseCode)

	var record models.StockRecord
	require.NoError(t, h.conn.Where("variant_id = ? AND store_id = ?", 11, 3).First(&record).Error)
	assert.Equal(t, 5, record.Quantity)

	changes := h.recorder.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, enums.OrderStatusCancelled, changes[0].To)
}

func TestHandleIPNTransientFailureReleasesGuard(t *testing.T) {
	guard := newMemoryGuard()
	h := newHarness(t, func(p *ServiceParams) {
		p.Guard = guard
		p.Tx = failingTx{}
	})

	got := h.svc.HandleIPN(context.Background(), h.notification("00", "9664800"))
	assert.Equal(t, RspUnknownError, got.RspCode)
	assert.Empty(t, guard.seen)
	assert.Equal(t, float64(1), h.ackCount(t, "99"))
}

func TestInitiateBuildsSignedURL(t *testing.T) {
	h := newHarness(t)
	caller := orders.Caller{UserID: 7, Role: enums.UserRoleCustomer}

	res, err := h.svc.Initiate(context.Background(), caller, InitiateInput{
		OrderID: h.order.ID,
		Amount:  decimal.NewFromInt(96648),
		IPAddr:  "203.0.113.9",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	params := vnpay.FromValues(parsed.Query())
	assert.Equal(t, "9664800", params.Get(vnpay.ParamAmount))
	assert.Equal(t, strconv.FormatInt(h.order.ID, 10), params.Get(vnpay.ParamTxnRef))
	assert.True(t, h.gateway.Verify(params))
}

func TestPercentVoucherTotalIsPayable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	caller := orders.Caller{UserID: 7, Role: enums.UserRoleCustomer}

	breakdown := pricing.NewEngine(pricing.DefaultTaxRate).Compute(pricing.Input{
		Lines:   []pricing.Line{{UnitPrice: decimal.NewFromInt(33333), Quantity: 1}},
		Voucher: &models.Voucher{Code: "SAVE10", DiscountType: enums.DiscountTypePercent, DiscountValue: decimal.NewFromInt(10)},
	})
	require.True(t, breakdown.Total.Equal(decimal.RequireFromString("32399.68")), "total %s", breakdown.Total)

	require.NoError(t, h.conn.Model(&models.Order{}).Where("id = ?", h.order.ID).Updates(map[string]any{
		"subtotal":     breakdown.Subtotal,
		"discount":     breakdown.Discount,
		"tax":          breakdown.Tax,
		"shipping_fee": breakdown.ShippingFee,
		"total_amount": breakdown.Total,
	}).Error)
	require.NoError(t, h.conn.Model(&models.Payment{}).Where("id = ?", h.payment.ID).
		Update("amount", breakdown.Total).Error)

	res, err := h.svc.Initiate(ctx, caller, InitiateInput{OrderID: h.order.ID, Amount: breakdown.Total})
	require.NoError(t, err)
	parsed, err := url.Parse(res.PaymentURL)
	require.NoError(t, err)
	minor := vnpay.FromValues(parsed.Query()).Get(vnpay.ParamAmount)
	assert.Equal(t, "3239968", minor)

	got := h.svc.HandleIPN(ctx, h.notification("00", minor))
	assert.Equal(t, RspConfirmed, got.RspCode)
	order, payment := h.reload(t)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, enums.PaymentStatusSuccess, payment.Status)
}

func TestInitiateRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := orders.Caller{UserID: 7, Role: enums.UserRoleCustomer}

	_, err := h.svc.Initiate(ctx, owner, InitiateInput{OrderID: h.order.ID, Amount: decimal.NewFromInt(1000)})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = h.svc.Initiate(ctx, orders.Caller{UserID: 8, Role: enums.UserRoleCustomer}, InitiateInput{OrderID: h.order.ID, Amount: decimal.NewFromInt(96648)})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = h.svc.Initiate(ctx, owner, InitiateInput{OrderID: h.order.ID + 50, Amount: decimal.NewFromInt(96648)})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	h.svc.HandleIPN(ctx, h.notification("00", "9664800"))
	_, err = h.svc.Initiate(ctx, owner, InitiateInput{OrderID: h.order.ID, Amount: decimal.NewFromInt(96648)})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := orders.Caller{UserID: 7, Role: enums.UserRoleCustomer}

	view, err := h.svc.Status(ctx, owner, "ORD"+strconv.FormatInt(h.order.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, view.Status)
	assert.Equal(t, enums.PaymentStatusPending, view.PaymentStatus)

	_, err = h.svc.Status(ctx, owner, "abc")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = h.svc.Status(ctx, orders.Caller{UserID: 8, Role: enums.UserRoleCustomer}, strconv.FormatInt(h.order.ID, 10))
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	staffView, err := h.svc.Status(ctx, orders.Caller{UserID: 1, Role: enums.UserRoleStaff}, strconv.FormatInt(h.order.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, h.order.ID, staffView.OrderID)
}
