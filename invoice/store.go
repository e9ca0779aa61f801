package invoice

import (
	"context"
	"time"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
)

// Store persists invoice routes. Every state transition is conditional on
// the current status so that two racing callers cannot both succeed.
type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	List(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	// MarkFunded writes the funding terms of inv (fee, net deposit,
	// schedule start, funded time) if the stored invoice is still pending.
	MarkFunded(ctx context.Context, inv *Invoice) error
	// RevertFunding returns a funded, unclaimed invoice to pending. It
	// exists only to roll back a funding whose registration failed.
	RevertFunding(ctx context.Context, invID id.InvoiceID) error
	MarkDeclined(ctx context.Context, invID id.InvoiceID, declinedAt time.Time) error
	UpdateClaimed(ctx context.Context, invID id.InvoiceID, prev, next uint64) error
}

// ListOpts filters List. Zero-valued fields match everything.
type ListOpts struct {
	Network     string
	Status      Status
	Requester   types.Address
	Beneficiary types.Address
	Payer       types.Address
	Limit       int
	Offset      int
}
