package registry

import (
	"context"

	"github.com/xraph/streams/id"
)

// Store is the persistence contract for the registry. Implementations must
// apply Register and RecordClaimDelta atomically with respect to the
// counters, even when called concurrently for different routes.
type Store interface {
	// Register adds a record and bumps the counters of its network. It
	// fails with ErrAlreadyExists if the route is already registered.
	Register(ctx context.Context, rec *Record) error
	// RecordClaimDelta moves a record's ClaimedAmount forward to
	// newClaimed and returns the delta removed from CurrentActiveTotal.
	// It fails with ErrRecordNotFound for unknown routes and with
	// ErrInvalidDelta if newClaimed is below the stored value or above
	// the deposit.
	RecordClaimDelta(ctx context.Context, routeID id.AnyID, newClaimed uint64) (uint64, error)
	GetRecord(ctx context.Context, routeID id.AnyID) (*Record, error)
	ListRecords(ctx context.Context, opts ListOpts) ([]*Record, error)
	Totals(ctx context.Context, network string) (*Totals, error)
}

// ListOpts filters ListRecords. A zero Limit returns every match.
type ListOpts struct {
	Network string
	Kind    Kind
	Limit   int
	Offset  int
}
