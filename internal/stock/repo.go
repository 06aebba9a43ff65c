package stock

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
)

// Repository persists stock records and their movement ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockRecord(ctx context.Context, variantID, storeID int64) (*models.StockRecord, error)
	FindRecord(ctx context.Context, variantID, storeID int64) (*models.StockRecord, error)
	DecrementIfAvailable(ctx context.Context, recordID int64, qty int) (bool, error)
	Increment(ctx context.Context, recordID int64, qty int) error
	CreateRecord(ctx context.Context, record *models.StockRecord) error
	AppendMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, variantID, storeID int64, limit int) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockRecord reads the (variant, store) row with SELECT ... FOR UPDATE. Returns nil when absent.
func (r *repository) LockRecord(ctx context.Context, variantID, storeID int64) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("variant_id = ? AND store_id = ?", variantID, storeID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindRecord(ctx context.Context, variantID, storeID int64) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND store_id = ?", variantID, storeID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DecrementIfAvailable subtracts qty only while the row still holds at least qty units.
func (r *repository) DecrementIfAvailable(ctx context.Context, recordID int64, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("id = ? AND quantity >= ?", recordID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, recordID int64, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("id = ?", recordID).
		Update("quantity", gorm.Expr("quantity + ?", qty)).Error
}

func (r *repository) CreateRecord(ctx context.Context, record *models.StockRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) AppendMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, variantID, storeID int64, limit int) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	q := r.db.WithContext(ctx).
		Where("variant_id = ? AND store_id = ?", variantID, storeID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
