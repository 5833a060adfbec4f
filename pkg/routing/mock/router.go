// Package mock provides a mock router for testing.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/tournevent/freight/pkg/geo"
	"github.com/tournevent/freight/pkg/routing"
)

// Router is a mock routing.Router returning a fixed distance.
type Router struct {
	DistanceKm float64
	OnDistance func(ctx context.Context, origin, destination geo.Coordinate) (float64, error)

	calls atomic.Int32
}

// New creates a mock router that always answers km.
func New(km float64) *Router {
	return &Router{DistanceKm: km}
}

// Name returns the router name.
func (r *Router) Name() string {
	return "mock"
}

// Distance returns DistanceKm unless OnDistance is set.
func (r *Router) Distance(ctx context.Context, origin, destination geo.Coordinate) (float64, error) {
	r.calls.Add(1)
	if r.OnDistance != nil {
		return r.OnDistance(ctx, origin, destination)
	}
	return r.DistanceKm, nil
}

// Calls returns how many times Distance ran.
func (r *Router) Calls() int {
	return int(r.calls.Load())
}

var _ routing.Router = (*Router)(nil)
