package shipping

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/internal/geo"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// Quote is the resolved origin store and fee for a destination.
type Quote struct {
	Fee        decimal.Decimal `json:"shipping_fee"`
	DistanceKm float64         `json:"distance_km"`
	StoreID    int64           `json:"store_id"`
	StoreName  string          `json:"store_name"`
}

// Nearest picks the closest candidate with coordinates. Ties keep the first store seen.
func Nearest(dest geo.Point, candidates []models.Store, rates Rates) (Quote, error) {
	if err := rates.Validate(); err != nil {
		return Quote{}, err
	}

	var nearest *models.Store
	minDist := math.MaxFloat64
	for i := range candidates {
		store := &candidates[i]
		if !store.IsActive || !store.HasCoordinates() {
			continue
		}
		d := geo.Distance(originOf(store), dest)
		if d < minDist {
			minDist = d
			nearest = store
		}
	}
	if nearest == nil {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNoServiceable, "no active store with coordinates is available for shipping")
	}

	return quoteFor(nearest, minDist, rates)
}

// ForStore prices delivery from a specific store.
func ForStore(dest geo.Point, store *models.Store, rates Rates) (Quote, error) {
	if err := rates.Validate(); err != nil {
		return Quote{}, err
	}
	if store == nil || !store.IsActive || !store.HasCoordinates() {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeBusinessRule, ErrStoreUnavailable, "store is not available for shipping")
	}
	return quoteFor(store, geo.Distance(originOf(store), dest), rates)
}

func quoteFor(store *models.Store, distance float64, rates Rates) (Quote, error) {
	fee, err := Fee(distance, rates)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Fee: fee, DistanceKm: distance, StoreID: store.ID, StoreName: store.Name}, nil
}

func originOf(store *models.Store) geo.Point {
	return geo.Point{Lat: *store.Latitude, Lng: *store.Longitude}
}

// StoreReader is the read model the standalone quote endpoints need.
type StoreReader interface {
	ListActive(ctx context.Context) ([]models.Store, error)
	FindByID(ctx context.Context, id int64) (*models.Store, error)
}

// Service resolves quotes outside of order placement.
type Service interface {
	Quote(ctx context.Context, dest geo.Point) (Quote, error)
	QuoteForStore(ctx context.Context, storeID int64, dest geo.Point) (Quote, error)
}

type service struct {
	stores StoreReader
	rates  Rates
}

func NewService(stores StoreReader, rates Rates) (Service, error) {
	if stores == nil {
		return nil, fmt.Errorf("store reader required")
	}
	return &service{stores: stores, rates: rates}, nil
}

func (s *service) Quote(ctx context.Context, dest geo.Point) (Quote, error) {
	if err := s.rates.Validate(); err != nil {
		return Quote{}, err
	}
	stores, err := s.stores.ListActive(ctx)
	if err != nil {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active stores")
	}
	return Nearest(dest, stores, s.rates)
}

func (s *service) QuoteForStore(ctx context.Context, storeID int64, dest geo.Point) (Quote, error) {
	if err := s.rates.Validate(); err != nil {
		return Quote{}, err
	}
	store, err := s.stores.FindByID(ctx, storeID)
	if err != nil {
		return Quote{}, err
	}
	return ForStore(dest, store, s.rates)
}
