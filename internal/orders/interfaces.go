package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// Repository defines persistence operations for orders, their lines and payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	LockByID(ctx context.Context, id int64) (*models.Order, error)
	FindLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	FindPayment(ctx context.Context, orderID int64) (*models.Payment, error)
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, from, to enums.OrderStatus) (bool, error)
	UpdatePayment(ctx context.Context, paymentID int64, updates map[string]any) error
}
