package shipping

import (
	"errors"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

// DefaultMaxRadiusKm bounds the delivery area around a store.
const DefaultMaxRadiusKm = 20.0

var (
	ErrNotConfigured    = errors.New("shipping rates not configured")
	ErrOutOfServiceArea = errors.New("destination outside service area")
	ErrNoServiceable    = errors.New("no serviceable store")
	ErrStoreUnavailable = errors.New("store unavailable for shipping")
)

// Rates is the distance based fee schedule.
type Rates struct {
	FirstKm      decimal.Decimal
	PerKm        decimal.Decimal
	MaxRadiusKm  float64
	RoundingStep int64
}

// Validate fails with a configuration error when either rate is zero or negative.
func (r Rates) Validate() error {
	if !r.FirstKm.IsPositive() || !r.PerKm.IsPositive() {
		return pkgerrors.Wrap(pkgerrors.CodeConfiguration, ErrNotConfigured, "shipping rates are not configured")
	}
	return nil
}

func (r Rates) maxRadius() float64 {
	if r.MaxRadiusKm <= 0 {
		return DefaultMaxRadiusKm
	}
	return r.MaxRadiusKm
}

func (r Rates) step() decimal.Decimal {
	if r.RoundingStep <= 0 {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(r.RoundingStep)
}

// Fee prices a delivery of distanceKm. The first kilometre is flat; each further
// kilometre (fractional) adds PerKm. The result is rounded half-up to RoundingStep.
func Fee(distanceKm float64, rates Rates) (decimal.Decimal, error) {
	if err := rates.Validate(); err != nil {
		return decimal.Zero, err
	}
	if distanceKm > rates.maxRadius() {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrOutOfServiceArea, "your location is outside our service area").
			WithDetails(map[string]any{"distance_km": distanceKm, "max_radius_km": rates.maxRadius()})
	}

	fee := rates.FirstKm
	if distanceKm > 1 {
		extra := decimal.NewFromFloat(distanceKm).Sub(decimal.NewFromInt(1))
		fee = fee.Add(extra.Mul(rates.PerKm))
	}
	step := rates.step()
	return fee.Div(step).Round(0).Mul(step), nil
}
