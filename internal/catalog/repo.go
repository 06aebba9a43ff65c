// Package catalog reads sellable product variants.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// Variant is a sellable variant joined with its product name.
type Variant struct {
	ID          int64
	ProductID   int64
	ProductName string
	Size        string
	Price       decimal.Decimal
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindVariant returns an active variant of an active product.
func (r *Repository) FindVariant(ctx context.Context, id int64) (*Variant, error) {
	var v Variant
	err := r.db.WithContext(ctx).
		Table("product_variants AS v").
		Select("v.id, v.product_id, p.name AS product_name, v.size, v.price").
		Joins("JOIN products p ON p.id = v.product_id").
		Where("v.id = ? AND v.is_active = ? AND p.is_active = ?", id, true, true).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product variant %d not found", id))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}
	return &v, nil
}

// CreateProduct inserts a product with its variants.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product, variants []models.ProductVariant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		for i := range variants {
			variants[i].ProductID = product.ID
		}
		if len(variants) == 0 {
			return nil
		}
		return tx.Create(&variants).Error
	})
}
