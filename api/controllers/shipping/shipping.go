package shipping

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/api/validators"
	"github.com/angelmondragon/coffeeshop-backend/internal/geo"
	internalshipping "github.com/angelmondragon/coffeeshop-backend/internal/shipping"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

type calculateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type calculateForStoreRequest struct {
	StoreID   int64    `json:"store_id" validate:"required,gt=0"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type quoteResponse struct {
	Fee        decimal.Decimal `json:"fee"`
	DistanceKm float64         `json:"distance_km"`
	StoreID    int64           `json:"store_id"`
	StoreName  string          `json:"store_name"`
}

// Calculate quotes delivery from the nearest active store.
func Calculate(svc internalshipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		var req calculateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), geo.Point{Lat: *req.Latitude, Lng: *req.Longitude})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(quote))
	}
}

// CalculateForStore quotes delivery from a caller-chosen store.
func CalculateForStore(svc internalshipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		var req calculateForStoreRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.QuoteForStore(r.Context(), req.StoreID, geo.Point{Lat: *req.Latitude, Lng: *req.Longitude})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toResponse(quote))
	}
}

func toResponse(q internalshipping.Quote) quoteResponse {
	return quoteResponse{
		Fee:        q.Fee,
		DistanceKm: q.DistanceKm,
		StoreID:    q.StoreID,
		StoreName:  q.StoreName,
	}
}
