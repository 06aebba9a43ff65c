package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	p := Point{Lat: 10.7769, Lng: 106.7009}
	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Point{Lat: 10.7769, Lng: 106.7009}
	b := Point{Lat: 21.0285, Lng: 105.8542}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{
			name: "hcmc to hanoi",
			a:    Point{Lat: 10.7769, Lng: 106.7009},
			b:    Point{Lat: 21.0285, Lng: 105.8542},
			want: 1143.5,
			tol:  1,
		},
		{
			name: "one degree of latitude",
			a:    Point{Lat: 0, Lng: 0},
			b:    Point{Lat: 1, Lng: 0},
			want: EarthRadiusKm * math.Pi / 180,
			tol:  1e-6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), tt.tol)
		})
	}
}
