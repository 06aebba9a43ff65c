package stock

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/api/validators"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// LedgerReader is the read side of the stock ledger.
type LedgerReader interface {
	Movements(ctx context.Context, variantID, storeID int64, limit int) ([]models.StockMovement, error)
	Available(ctx context.Context, variantID, storeID int64) (int, error)
}

type movementView struct {
	ID              int64             `json:"id"`
	QuantityChanged int               `json:"quantity_changed"`
	CurrentQuantity int               `json:"current_quantity"`
	Reason          enums.StockReason `json:"reason"`
	Note            *string           `json:"note,omitempty"`
	CreatedBy       *int64            `json:"created_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

type movementsResponse struct {
	VariantID int64          `json:"variant_id"`
	StoreID   int64          `json:"store_id"`
	Available int            `json:"available"`
	Movements []movementView `json:"movements"`
}

// Movements lists the audit trail for one (variant, store) stock record.
func Movements(ledger LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger unavailable"))
			return
		}

		variantID, err := validators.ParsePathID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := validators.ParsePathID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultMovementLimit, 1, maxMovementLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		available, err := ledger.Available(r.Context(), variantID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movements, err := ledger.Movements(r.Context(), variantID, storeID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := movementsResponse{
			VariantID: variantID,
			StoreID:   storeID,
			Available: available,
			Movements: make([]movementView, 0, len(movements)),
		}
		for _, m := range movements {
			resp.Movements = append(resp.Movements, movementView{
				ID:              m.ID,
				QuantityChanged: m.QuantityChanged,
				CurrentQuantity: m.CurrentQuantity,
				Reason:          m.Reason,
				Note:            m.Note,
				CreatedBy:       m.CreatedBy,
				CreatedAt:       m.CreatedAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}
