package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/internal/broadcast"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/payments/vnpay"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/payloads"
)

const replayScope = "vnpay-ipn"

// errOrderNotFound and errAlreadyProcessed end the notification transaction early
// without a write; they map to acknowledgement codes rather than failures.
var (
	errOrderNotFound    = errors.New("order not found")
	errAlreadyProcessed = errors.New("order already processed")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReplayGuard remembers gateway notifications already seen.
type ReplayGuard interface {
	CheckAndMark(ctx context.Context, scope, id string) (bool, error)
	Release(ctx context.Context, scope, id string) error
}

// Service starts gateway payments and reconciles their notifications.
type Service interface {
	Initiate(ctx context.Context, caller orders.Caller, input InitiateInput) (*InitiateResult, error)
	HandleIPN(ctx context.Context, params vnpay.Params) Ack
	Status(ctx context.Context, caller orders.Caller, rawOrderID string) (*StatusView, error)
}

type ServiceParams struct {
	Tx               txRunner
	Orders           orders.Repository
	Lifecycle        *orders.Lifecycle
	Outbox           outbox.Emitter
	Gateway          *vnpay.Client
	Guard            ReplayGuard
	Notifier         *broadcast.Notifier
	Metrics          *metrics.PaymentMetrics
	Logger           *logger.Logger
	RestockOnFailure bool
	Now              func() time.Time
}

type service struct {
	tx               txRunner
	orders           orders.Repository
	lifecycle        *orders.Lifecycle
	outbox           outbox.Emitter
	gateway          *vnpay.Client
	guard            ReplayGuard
	notifier         *broadcast.Notifier
	metrics          *metrics.PaymentMetrics
	logg             *logger.Logger
	restockOnFailure bool
	now              func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Lifecycle == nil:
		return nil, fmt.Errorf("order lifecycle required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Gateway == nil:
		return nil, fmt.Errorf("vnpay client required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:               p.Tx,
		orders:           p.Orders,
		lifecycle:        p.Lifecycle,
		outbox:           p.Outbox,
		gateway:          p.Gateway,
		guard:            p.Guard,
		notifier:         p.Notifier,
		metrics:          p.Metrics,
		logg:             p.Logger,
		restockOnFailure: p.RestockOnFailure,
		now:              now,
	}, nil
}

func (s *service) Initiate(ctx context.Context, caller orders.Caller, input InitiateInput) (*InitiateResult, error) {
	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", input.OrderID))
	}
	if order.UserID != caller.UserID && !caller.IsOperator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order %d is %s and cannot be paid", order.ID, order.Status))
	}
	payment, err := s.orders.FindPayment(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	expected := order.TotalAmount
	if payment != nil {
		expected = payment.Amount
	}
	if !input.Amount.Equal(expected) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the order total").
			WithDetails(map[string]any{"expected": expected.String(), "actual": input.Amount.String()})
	}

	paymentURL, err := s.gateway.BuildPaymentURL(vnpay.PaymentRequest{
		TxnRef:    strconv.FormatInt(order.ID, 10),
		Amount:    expected,
		OrderInfo: input.OrderInfo,
		BankCode:  input.BankCode,
		IPAddr:    input.IPAddr,
	}, s.now())
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID), "payment.initiated")
	}
	return &InitiateResult{PaymentURL: paymentURL}, nil
}

// notification is the part of a callback reconciliation relies on.
type notification struct {
	orderID       int64
	txnRef        string
	responseCode  string
	transactionNo string
	bankCode      string
	rawAmount     string
}

func (n notification) replayID() string {
	return n.txnRef + ":" + n.transactionNo
}

// HandleIPN reconciles one gateway notification and always returns an acknowledgement.
func (s *service) HandleIPN(ctx context.Context, params vnpay.Params) Ack {
	start := s.now()
	result := s.handleIPN(ctx, params)
	s.metrics.ObserveAck(result.RspCode, s.now().Sub(start))
	return result
}

func (s *service) handleIPN(ctx context.Context, params vnpay.Params) Ack {
	if !s.gateway.Verify(params) {
		s.warn(ctx, RspInvalidSignature, "payment.ipn.invalid_signature")
		return ack(RspInvalidSignature)
	}

	n := notification{
		txnRef:        digitsOnly(params.Get(vnpay.ParamTxnRef)),
		responseCode:  params.Get(vnpay.ParamResponseCode),
		transactionNo: params.Get(vnpay.ParamTransactionNo),
		bankCode:      params.Get(vnpay.ParamBankCode),
		rawAmount:     params.Get(vnpay.ParamAmount),
	}
	id, err := strconv.ParseInt(n.txnRef, 10, 64)
	if n.txnRef == "" || err != nil {
		s.warn(ctx, RspOrderNotFound, "payment.ipn.bad_reference")
		return ack(RspOrderNotFound)
	}
	n.orderID = id
	ctx = s.withOrder(ctx, id)

	claimed := false
	if s.guard != nil && n.transactionNo != "" {
		seen, err := s.guard.CheckAndMark(ctx, replayScope, n.replayID())
		switch {
		case err != nil:
			s.warnErr(ctx, "payment.ipn.replay_guard_unavailable", err)
		case seen:
			s.info(ctx, RspAlreadyConfirmed, "payment.ipn.replayed")
			return ack(RspAlreadyConfirmed)
		default:
			claimed = true
		}
	}

	var (
		code   string
		change *broadcast.StatusChange
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		code, change, err = s.reconcile(ctx, tx, n)
		return err
	})
	switch {
	case errors.Is(err, errOrderNotFound):
		code = RspOrderNotFound
	case errors.Is(err, errAlreadyProcessed):
		code = RspAlreadyConfirmed
	case err != nil:
		if claimed {
			if relErr := s.guard.Release(ctx, replayScope, n.replayID()); relErr != nil {
				s.warnErr(ctx, "payment.ipn.replay_guard_release_failed", relErr)
			}
		}
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "rsp_code", RspUnknownError), "payment.ipn.failed", err)
		}
		return ack(RspUnknownError)
	}
	if code == RspOrderNotFound && claimed {
		if relErr := s.guard.Release(ctx, replayScope, n.replayID()); relErr != nil {
			s.warnErr(ctx, "payment.ipn.replay_guard_release_failed", relErr)
		}
	}

	if change != nil {
		s.notifier.Notify(ctx, *change)
	}
	s.info(ctx, code, "payment.ipn.handled")
	return ack(code)
}

// reconcile runs inside the notification transaction with the order row locked.
func (s *service) reconcile(ctx context.Context, tx *gorm.DB, n notification) (string, *broadcast.StatusChange, error) {
	repo := s.orders.WithTx(tx)
	order, err := repo.LockByID(ctx, n.orderID)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}
	if order == nil {
		return "", nil, errOrderNotFound
	}
	if order.Status != enums.OrderStatusPending {
		return "", nil, errAlreadyProcessed
	}

	payment, err := repo.FindPayment(ctx, order.ID)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return "", nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("order %d has no payment", order.ID))
	}

	notified, amountErr := vnpay.ParseAmount(n.rawAmount)
	if amountErr != nil || !notified.Equal(payment.Amount) {
		change, err := s.fail(ctx, tx, order, payment, n, "amount mismatch")
		return RspInvalidAmount, change, err
	}

	if n.responseCode == RspConfirmed {
		change, err := s.settle(ctx, tx, order, payment, n)
		return RspConfirmed, change, err
	}
	change, err := s.fail(ctx, tx, order, payment, n, "gateway response "+n.responseCode)
	return RspConfirmed, change, err
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, n notification) (*broadcast.StatusChange, error) {
	change, err := s.lifecycle.Apply(ctx, tx, order, orders.Transition{To: enums.OrderStatusPaid})
	if err != nil {
		return nil, err
	}
	paidAt := s.now().UTC()
	updates := gatewayFields(n)
	updates["status"] = enums.PaymentStatusSuccess
	updates["paid_at"] = paidAt
	if err := s.orders.WithTx(tx).UpdatePayment(ctx, payment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentSettledEvent{
			OrderID:       order.ID,
			Amount:        payment.Amount,
			TransactionNo: n.transactionNo,
			BankCode:      n.bankCode,
			PaidAt:        paidAt,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment settled event")
	}
	return change, nil
}

func (s *service) fail(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, n notification, reason string) (*broadcast.StatusChange, error) {
	transition := orders.Transition{To: enums.OrderStatusCancelled}
	if s.restockOnFailure {
		transition.RestockReason = enums.StockReasonPaymentFailed
	}
	change, err := s.lifecycle.Apply(ctx, tx, order, transition)
	if err != nil {
		return nil, err
	}
	updates := gatewayFields(n)
	updates["status"] = enums.PaymentStatusFailed
	if err := s.orders.WithTx(tx).UpdatePayment(ctx, payment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}

	notified, _ := vnpay.ParseAmount(n.rawAmount)
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentFailedEvent{
			OrderID:        order.ID,
			Amount:         payment.Amount,
			NotifiedAmount: notified,
			ResponseCode:   n.responseCode,
			Reason:         reason,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed event")
	}
	return change, nil
}

func gatewayFields(n notification) map[string]any {
	updates := map[string]any{}
	if n.transactionNo != "" {
		updates["transaction_no"] = n.transactionNo
	}
	if n.bankCode != "" {
		updates["bank_code"] = n.bankCode
	}
	if n.responseCode != "" {
		updates["response_code"] = n.responseCode
	}
	return updates
}

func (s *service) Status(ctx context.Context, caller orders.Caller, rawOrderID string) (*StatusView, error) {
	digits := digitsOnly(rawOrderID)
	id, err := strconv.ParseInt(digits, 10, 64)
	if digits == "" || err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid Order ID format.")
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found.")
	}
	if order.UserID != caller.UserID && !caller.IsOperator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	view := &StatusView{OrderID: order.ID, Status: order.Status}
	payment, err := s.orders.FindPayment(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment != nil {
		view.PaymentStatus = payment.Status
	}
	return view, nil
}

func digitsOnly(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *service) withOrder(ctx context.Context, orderID int64) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithOrderID(ctx, orderID)
}

func (s *service) info(ctx context.Context, code, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "rsp_code", code), msg)
}

func (s *service) warn(ctx context.Context, code, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "rsp_code", code), msg)
}

func (s *service) warnErr(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.WarnErr(ctx, msg, err)
}
