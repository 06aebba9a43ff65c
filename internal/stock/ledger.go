// Package stock owns per-store inventory and its movement ledger.
package stock

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// Reservation asks for qty units of a variant at a store.
type Reservation struct {
	VariantID int64
	StoreID   int64
	Quantity  int
	ActorID   *int64
	Note      string
}

// Release returns qty units to a store.
type Release struct {
	VariantID int64
	StoreID   int64
	Quantity  int
	Reason    enums.StockReason
	ActorID   *int64
	Note      string
}

// Ledger applies stock mutations. Reserve and Release must run inside the caller's transaction.
type Ledger struct {
	repo    Repository
	metrics *metrics.StockMetrics
}

func NewLedger(repo Repository, m *metrics.StockMetrics) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &Ledger{repo: repo, metrics: m}, nil
}

// Reserve locks the stock row, checks availability and decrements it. On failure nothing
// is written. The returned movement is the ledger entry appended for the change.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, req Reservation) (*models.StockMovement, error) {
	if req.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := l.repo.WithTx(tx)

	record, err := repo.LockRecord(ctx, req.VariantID, req.StoreID)
	if err != nil {
		l.metrics.ObserveReservation("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stock record")
	}
	available := 0
	if record != nil {
		available = record.Quantity
	}
	if record == nil || available < req.Quantity {
		l.metrics.ObserveReservation("insufficient")
		return nil, insufficient(req, available)
	}

	ok, err := repo.DecrementIfAvailable(ctx, record.ID, req.Quantity)
	if err != nil {
		l.metrics.ObserveReservation("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if !ok {
		// Row changed underneath the lock (lock-less engines); treat as a lost race.
		l.metrics.ObserveReservation("insufficient")
		return nil, insufficient(req, available)
	}

	movement := &models.StockMovement{
		VariantID:       req.VariantID,
		StoreID:         req.StoreID,
		QuantityChanged: -req.Quantity,
		CurrentQuantity: available - req.Quantity,
		Reason:          enums.StockReasonOrderReservation,
		Note:            optionalNote(req.Note),
		CreatedBy:       req.ActorID,
	}
	if err := repo.AppendMovement(ctx, movement); err != nil {
		l.metrics.ObserveReservation("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock movement")
	}
	l.metrics.ObserveReservation("reserved")
	return movement, nil
}

// Release adds qty back to the row (creating it when missing) and logs a movement with
// the given reason.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, req Release) (*models.StockMovement, error) {
	if req.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !req.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock reason %q", req.Reason))
	}
	repo := l.repo.WithTx(tx)

	record, err := repo.LockRecord(ctx, req.VariantID, req.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stock record")
	}
	current := req.Quantity
	if record == nil {
		record = &models.StockRecord{VariantID: req.VariantID, StoreID: req.StoreID, Quantity: req.Quantity}
		if err := repo.CreateRecord(ctx, record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock record")
		}
	} else {
		if err := repo.Increment(ctx, record.ID, req.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}
		current = record.Quantity + req.Quantity
	}

	movement := &models.StockMovement{
		VariantID:       req.VariantID,
		StoreID:         req.StoreID,
		QuantityChanged: req.Quantity,
		CurrentQuantity: current,
		Reason:          req.Reason,
		Note:            optionalNote(req.Note),
		CreatedBy:       req.ActorID,
	}
	if err := repo.AppendMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock movement")
	}
	l.metrics.ObserveRelease(req.Reason.String())
	return movement, nil
}

// Movements lists the most recent ledger entries for a (variant, store) pair.
func (l *Ledger) Movements(ctx context.Context, variantID, storeID int64, limit int) ([]models.StockMovement, error) {
	movements, err := l.repo.ListMovements(ctx, variantID, storeID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return movements, nil
}

// Available returns the on-hand quantity, zero when no record exists.
func (l *Ledger) Available(ctx context.Context, variantID, storeID int64) (int, error) {
	record, err := l.repo.FindRecord(ctx, variantID, storeID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stock record")
	}
	if record == nil {
		return 0, nil
	}
	return record.Quantity, nil
}

func insufficient(req Reservation, available int) error {
	return pkgerrors.Wrap(pkgerrors.CodeBusinessRule, ErrInsufficientStock,
		fmt.Sprintf("insufficient stock for variant %d at store %d", req.VariantID, req.StoreID)).
		WithDetails(map[string]any{
			"variant_id": req.VariantID,
			"store_id":   req.StoreID,
			"requested":  req.Quantity,
			"available":  available,
		})
}

func optionalNote(note string) *string {
	if note == "" {
		return nil
	}
	return &note
}
