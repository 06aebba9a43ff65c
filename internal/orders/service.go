package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/internal/addresses"
	"github.com/angelmondragon/coffeeshop-backend/internal/broadcast"
	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/internal/geo"
	"github.com/angelmondragon/coffeeshop-backend/internal/pricing"
	"github.com/angelmondragon/coffeeshop-backend/internal/shipping"
	"github.com/angelmondragon/coffeeshop-backend/internal/stock"
	"github.com/angelmondragon/coffeeshop-backend/internal/stores"
	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	"github.com/angelmondragon/coffeeshop-backend/internal/vouchers"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/coffeeshop-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order placement and lifecycle operations.
type Service interface {
	Create(ctx context.Context, caller Caller, input CreateInput) (*OrderView, error)
	Get(ctx context.Context, caller Caller, orderID int64) (*OrderView, error)
	ListForUser(ctx context.Context, caller Caller, limit, offset int) ([]OrderView, error)
	UpdateStatus(ctx context.Context, caller Caller, orderID int64, target enums.OrderStatus) (*OrderView, error)
	Cancel(ctx context.Context, caller Caller, orderID int64) (*OrderView, error)
	ValidateVoucher(ctx context.Context, code string) (*vouchers.Validation, error)
}

// ServiceParams lists the collaborators the order service is assembled from.
type ServiceParams struct {
	Tx              txRunner
	Repo            Repository
	Users           *users.Repository
	Addresses       *addresses.Repository
	Stores          *stores.Repository
	Catalog         *catalog.Repository
	VoucherRepo     *vouchers.Repository
	Vouchers        vouchers.Service
	Ledger          *stock.Ledger
	Pricing         *pricing.Engine
	Rates           shipping.Rates
	Lifecycle       *Lifecycle
	Outbox          outbox.Emitter
	Notifier        *broadcast.Notifier
	Logger          *logger.Logger
	RestockOnCancel bool
}

type service struct {
	tx              txRunner
	repo            Repository
	users           *users.Repository
	addresses       *addresses.Repository
	stores          *stores.Repository
	catalog         *catalog.Repository
	voucherRepo     *vouchers.Repository
	vouchers        vouchers.Service
	ledger          *stock.Ledger
	pricing         *pricing.Engine
	rates           shipping.Rates
	lifecycle       *Lifecycle
	outbox          outbox.Emitter
	notifier        *broadcast.Notifier
	logg            *logger.Logger
	restockOnCancel bool
}

// NewService builds the order service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Users == nil, p.Addresses == nil, p.Stores == nil, p.Catalog == nil, p.VoucherRepo == nil:
		return nil, fmt.Errorf("reference repositories required")
	case p.Vouchers == nil:
		return nil, fmt.Errorf("voucher service required")
	case p.Ledger == nil:
		return nil, fmt.Errorf("stock ledger required")
	case p.Pricing == nil:
		return nil, fmt.Errorf("pricing engine required")
	case p.Lifecycle == nil:
		return nil, fmt.Errorf("order lifecycle required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	if err := p.Rates.Validate(); err != nil {
		return nil, err
	}
	return &service{
		tx:              p.Tx,
		repo:            p.Repo,
		users:           p.Users,
		addresses:       p.Addresses,
		stores:          p.Stores,
		catalog:         p.Catalog,
		voucherRepo:     p.VoucherRepo,
		vouchers:        p.Vouchers,
		ledger:          p.Ledger,
		pricing:         p.Pricing,
		rates:           p.Rates,
		lifecycle:       p.Lifecycle,
		outbox:          p.Outbox,
		notifier:        p.Notifier,
		logg:            p.Logger,
		restockOnCancel: p.RestockOnCancel,
	}, nil
}

// placement holds everything resolved for one order before it is written.
type placement struct {
	store    *models.Store
	address  *models.Address
	shipping decimal.Decimal
	distance *float64
}

func (s *service) Create(ctx context.Context, caller Caller, input CreateInput) (*OrderView, error) {
	if caller.UserID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for i, item := range input.Items {
		if item.VariantID <= 0 || item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d requires a variant and a positive quantity", i))
		}
	}
	method, err := enums.ParseDeliveryMethod(input.DeliveryMethod)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	var (
		created *models.Order
		payment *models.Payment
		voucher *models.Voucher
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.users.WithTx(tx).FindByID(ctx, caller.UserID); err != nil {
			return err
		}

		place, err := s.resolvePlacement(ctx, tx, caller, method, input)
		if err != nil {
			return err
		}

		actorID := caller.UserID
		lines := make([]models.OrderLine, 0, len(input.Items))
		priced := make([]pricing.Line, 0, len(input.Items))
		variants := s.catalog.WithTx(tx)
		for _, item := range input.Items {
			variant, err := variants.FindVariant(ctx, item.VariantID)
			if err != nil {
				return err
			}
			if _, err := s.ledger.Reserve(ctx, tx, stock.Reservation{
				VariantID: variant.ID,
				StoreID:   place.store.ID,
				Quantity:  item.Quantity,
				ActorID:   &actorID,
				Note:      "order placement",
			}); err != nil {
				return err
			}
			line := pricing.Line{UnitPrice: variant.Price, Quantity: item.Quantity}
			priced = append(priced, line)
			lines = append(lines, models.OrderLine{
				VariantID:   variant.ID,
				ProductName: variant.ProductName,
				Size:        variant.Size,
				UnitPrice:   variant.Price,
				Quantity:    item.Quantity,
				LineTotal:   line.Total(),
			})
		}

		if code := strings.TrimSpace(input.VoucherCode); code != "" {
			voucher, err = s.vouchers.Resolve(ctx, s.voucherRepo.WithTx(tx), code)
			if err != nil {
				return err
			}
		}

		breakdown := s.pricing.Compute(pricing.Input{
			Lines:       priced,
			Voucher:     voucher,
			ShippingFee: place.shipping,
		})

		order := &models.Order{
			UserID:         caller.UserID,
			StoreID:        place.store.ID,
			DeliveryMethod: method,
			Status:         enums.OrderStatusPending,
			Subtotal:       breakdown.Subtotal,
			Discount:       breakdown.Discount,
			Tax:            breakdown.Tax,
			ShippingFee:    breakdown.ShippingFee,
			DistanceKm:     place.distance,
			TotalAmount:    breakdown.Total,
			Note:           optionalString(input.Note),
			Lines:          lines,
		}
		if place.address != nil {
			order.AddressID = &place.address.ID
		}
		if voucher != nil {
			order.VoucherID = &voucher.ID
		}

		repo := s.repo.WithTx(tx)
		if created, err = repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		payment, err = repo.CreatePayment(ctx, &models.Payment{
			OrderID: created.ID,
			Method:  enums.PaymentMethodVNPay,
			Status:  enums.PaymentStatusPending,
			Amount:  breakdown.Total,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: caller.UserID, Role: caller.Role},
			Data: payloads.OrderCreatedEvent{
				OrderID:        created.ID,
				UserID:         caller.UserID,
				StoreID:        created.StoreID,
				DeliveryMethod: method,
				LineCount:      len(lines),
				TotalAmount:    created.TotalAmount,
				VoucherCode:    voucherCode(voucher),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, created.ID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"store_id": created.StoreID,
			"total":    created.TotalAmount.String(),
			"lines":    len(created.Lines),
		})
		s.logg.Info(logCtx, "order.created")
	}
	return toView(created, payment, voucherCode(voucher)), nil
}

// resolvePlacement picks the fulfilling store and the shipping fee. Every read goes
// through tx.
func (s *service) resolvePlacement(ctx context.Context, tx *gorm.DB, caller Caller, method enums.DeliveryMethod, input CreateInput) (*placement, error) {
	storeRepo := s.stores.WithTx(tx)

	if method == enums.DeliveryMethodPickup {
		if input.StoreID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "store_id is required for pickup")
		}
		store, err := storeRepo.FindByID(ctx, *input.StoreID)
		if err != nil {
			return nil, err
		}
		if !store.IsActive {
			return nil, pkgerrors.Wrap(pkgerrors.CodeBusinessRule, shipping.ErrStoreUnavailable, "store is not accepting orders")
		}
		return &placement{store: store, shipping: decimal.Zero}, nil
	}

	if input.AddressID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address_id is required for delivery")
	}
	address, err := s.addresses.WithTx(tx).FindForUser(ctx, *input.AddressID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if address.Latitude == nil || address.Longitude == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address has no coordinates")
	}
	dest := geo.Point{Lat: *address.Latitude, Lng: *address.Longitude}

	var quote shipping.Quote
	if input.StoreID != nil {
		store, err := storeRepo.FindByID(ctx, *input.StoreID)
		if err != nil {
			return nil, err
		}
		quote, err = shipping.ForStore(dest, store, s.rates)
		if err != nil {
			return nil, err
		}
	} else {
		candidates, err := storeRepo.ListActive(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active stores")
		}
		quote, err = shipping.Nearest(dest, candidates, s.rates)
		if err != nil {
			return nil, err
		}
	}

	store, err := storeRepo.FindByID(ctx, quote.StoreID)
	if err != nil {
		return nil, err
	}
	distance := quote.DistanceKm
	return &placement{store: store, address: address, shipping: quote.Fee, distance: &distance}, nil
}

func (s *service) Get(ctx context.Context, caller Caller, orderID int64) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, orderNotFound(orderID)
	}
	if order.UserID != caller.UserID && !caller.IsOperator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	payment, err := s.repo.FindPayment(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return toView(order, payment, ""), nil
}

func (s *service) ListForUser(ctx context.Context, caller Caller, limit, offset int) ([]OrderView, error) {
	if caller.UserID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	page := pagination.Params{Limit: limit, Offset: offset}.Normalize()
	orders, err := s.repo.ListForUser(ctx, caller.UserID, page.Limit, page.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *toView(&orders[i], nil, ""))
	}
	return views, nil
}

func (s *service) UpdateStatus(ctx context.Context, caller Caller, orderID int64, target enums.OrderStatus) (*OrderView, error) {
	if !caller.IsOperator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may change order status")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", target))
	}
	transition := Transition{
		To:    target,
		Actor: &outbox.ActorRef{UserID: caller.UserID, Role: caller.Role},
	}
	if target == enums.OrderStatusCancelled && s.restockOnCancel {
		transition.RestockReason = enums.StockReasonOrderCancelled
	}
	return s.transition(ctx, orderID, transition, nil)
}

func (s *service) Cancel(ctx context.Context, caller Caller, orderID int64) (*OrderView, error) {
	if caller.UserID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	transition := Transition{
		To:    enums.OrderStatusCancelled,
		Actor: &outbox.ActorRef{UserID: caller.UserID, Role: caller.Role},
	}
	if s.restockOnCancel {
		transition.RestockReason = enums.StockReasonOrderCancelled
	}
	return s.transition(ctx, orderID, transition, func(order *models.Order) error {
		if order.UserID != caller.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		return nil
	})
}

func (s *service) transition(ctx context.Context, orderID int64, t Transition, guard func(*models.Order) error) (*OrderView, error) {
	var (
		order  *models.Order
		change *broadcast.StatusChange
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order == nil {
			return orderNotFound(orderID)
		}
		if guard != nil {
			if err := guard(order); err != nil {
				return err
			}
		}
		change, err = s.lifecycle.Apply(ctx, tx, order, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		s.notifier.Notify(ctx, *change)
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID)
		s.logg.Info(s.logg.WithField(logCtx, "status", t.To.String()), "order.status_changed")
	}
	return s.Get(ctx, Caller{UserID: order.UserID}, orderID)
}

func (s *service) ValidateVoucher(ctx context.Context, code string) (*vouchers.Validation, error) {
	return s.vouchers.Validate(ctx, code)
}

func orderNotFound(orderID int64) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", orderID))
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func voucherCode(v *models.Voucher) string {
	if v == nil {
		return ""
	}
	return v.Code
}
