// Package routing computes road distances between coordinates.
package routing

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tournevent/freight/pkg/geo"
)

// Router returns the driving distance in kilometers between two points.
// Failures are returned as *freight.Error values.
type Router interface {
	Name() string
	Distance(ctx context.Context, origin, destination geo.Coordinate) (float64, error)
}

// MetersToKilometers converts and rounds to two decimal places.
func MetersToKilometers(meters float64) float64 {
	km, _ := decimal.NewFromFloat(meters).Div(decimal.NewFromInt(1000)).Round(2).Float64()
	return km
}
