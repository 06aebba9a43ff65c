package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/internal/geo"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

var testRates = Rates{
	FirstKm:      decimal.NewFromInt(15000),
	PerKm:        decimal.NewFromInt(5000),
	MaxRadiusKm:  20,
	RoundingStep: 100,
}

func ptr(v float64) *float64 { return &v }

func store(id int64, name string, lat, lng float64) models.Store {
	return models.Store{ID: id, Name: name, Latitude: ptr(lat), Longitude: ptr(lng), IsActive: true}
}

func TestFee(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     int64
	}{
		{name: "zero distance", distance: 0, want: 15000},
		{name: "exactly one km", distance: 1, want: 15000},
		{name: "under one km", distance: 0.4, want: 15000},
		{name: "rounds half up", distance: 1.03, want: 15200},
		{name: "rounds down", distance: 1.029, want: 15100},
		{name: "several km", distance: 3.26, want: 26300},
		{name: "at the radius", distance: 20, want: 110000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, err := Fee(tt.distance, testRates)
			require.NoError(t, err)
			assert.True(t, fee.Equal(decimal.NewFromInt(tt.want)), "got %s want %d", fee, tt.want)
		})
	}
}

func TestFeeOutOfServiceArea(t *testing.T) {
	_, err := Fee(20.01, testRates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfServiceArea))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestFeeRequiresPositiveRates(t *testing.T) {
	for _, rates := range []Rates{
		{FirstKm: decimal.Zero, PerKm: decimal.NewFromInt(5000)},
		{FirstKm: decimal.NewFromInt(15000), PerKm: decimal.NewFromInt(-1)},
	} {
		_, err := Fee(0.5, rates)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotConfigured))
		assert.Equal(t, pkgerrors.CodeConfiguration, pkgerrors.CodeOf(err))
	}
}

func TestNearestPicksClosestActiveStore(t *testing.T) {
	dest := geo.Point{Lat: 10.7769, Lng: 106.7009}
	inactive := store(1, "closed", 10.7770, 106.7009)
	inactive.IsActive = false
	noCoords := models.Store{ID: 2, Name: "no coords", IsActive: true}
	far := store(3, "far", 10.8200, 106.7009)
	near := store(4, "near", 10.7830, 106.7009)

	quote, err := Nearest(dest, []models.Store{inactive, noCoords, far, near}, testRates)
	require.NoError(t, err)
	assert.Equal(t, int64(4), quote.StoreID)
	assert.Equal(t, "near", quote.StoreName)
	assert.Less(t, quote.DistanceKm, 1.0)
	assert.True(t, quote.Fee.Equal(testRates.FirstKm))
}

func TestNearestTieKeepsFirst(t *testing.T) {
	dest := geo.Point{Lat: 10.7769, Lng: 106.7009}
	first := store(10, "first", 10.7800, 106.7009)
	second := store(11, "second", 10.7800, 106.7009)

	quote, err := Nearest(dest, []models.Store{first, second}, testRates)
	require.NoError(t, err)
	assert.Equal(t, int64(10), quote.StoreID)
}

func TestNearestNoServiceableStore(t *testing.T) {
	_, err := Nearest(geo.Point{}, []models.Store{{ID: 1, IsActive: true}}, testRates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoServiceable))
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestNearestOutOfServiceArea(t *testing.T) {
	dest := geo.Point{Lat: 10.7769, Lng: 106.7009}
	_, err := Nearest(dest, []models.Store{store(1, "far", 10.9769, 106.7009)}, testRates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfServiceArea))
}

func TestForStoreUnavailable(t *testing.T) {
	closed := store(5, "closed", 10.7769, 106.7009)
	closed.IsActive = false

	_, err := ForStore(geo.Point{Lat: 10.7769, Lng: 106.7009}, &closed, testRates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, pkgerrors.CodeBusinessRule, pkgerrors.CodeOf(err))
}

type stubStores struct {
	list    []models.Store
	byID    map[int64]*models.Store
	listErr error
}

func (s stubStores) ListActive(context.Context) ([]models.Store, error) {
	return s.list, s.listErr
}

func (s stubStores) FindByID(_ context.Context, id int64) (*models.Store, error) {
	if st, ok := s.byID[id]; ok {
		return st, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
}

func TestServiceQuoteForStore(t *testing.T) {
	chosen := store(7, "district 1", 10.7769, 106.7009)
	svc, err := NewService(stubStores{byID: map[int64]*models.Store{7: &chosen}}, testRates)
	require.NoError(t, err)

	quote, err := svc.QuoteForStore(context.Background(), 7, geo.Point{Lat: 10.7769, Lng: 106.7009})
	require.NoError(t, err)
	assert.Equal(t, int64(7), quote.StoreID)
	assert.True(t, quote.Fee.Equal(decimal.NewFromInt(15000)))

	_, err = svc.QuoteForStore(context.Background(), 99, geo.Point{})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestServiceRejectsMisconfiguredRatesBeforeLookup(t *testing.T) {
	svc, err := NewService(stubStores{listErr: errors.New("should not be called")}, Rates{})
	require.NoError(t, err)

	_, err = svc.Quote(context.Background(), geo.Point{})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestNewServiceRequiresStores(t *testing.T) {
	_, err := NewService(nil, testRates)
	require.Error(t, err)
}
