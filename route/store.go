package route

import (
	"context"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
)

// Store persists linear routes.
type Store interface {
	Create(ctx context.Context, r *Route) error
	Get(ctx context.Context, routeID id.RouteID) (*Route, error)
	List(ctx context.Context, opts ListOpts) ([]*Route, error)
	// UpdateClaimed moves ClaimedAmount from prev to next and fails with a
	// conflict if the stored value is no longer prev.
	UpdateClaimed(ctx context.Context, routeID id.RouteID, prev, next uint64) error
	// Delete removes a route that was never registered. It exists only to
	// roll back a failed creation.
	Delete(ctx context.Context, routeID id.RouteID) error
}

// ListOpts filters List. Zero-valued fields match everything.
type ListOpts struct {
	Network     string
	Depositor   types.Address
	Beneficiary types.Address
	Limit       int
	Offset      int
}
