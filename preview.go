package streams

import (
	"context"
	"fmt"

	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/types"
)

// PreviewFee quotes the fee payer would be charged on amount today. It has
// no side effects.
func (e *Engine) PreviewFee(ctx context.Context, payer types.Address, asset types.AssetID, amount uint64) (fee.Quote, error) {
	tier, err := e.tiers.Tier(ctx, payer)
	if err != nil {
		return fee.Quote{}, fmt.Errorf("streams: fee tier of %s: %w", payer, err)
	}
	return e.network.FeeSchedule.Quote(amount, tier, e.Nominated(asset)), nil
}

// Claimable previews what the beneficiary of a route or invoice could
// withdraw at the given unix second. at of zero means now.
func (e *Engine) Claimable(ctx context.Context, routeID id.AnyID, at int64) (uint64, error) {
	if at == 0 {
		at = e.Now()
	}
	switch routeID.Prefix() {
	case id.PrefixRoute:
		r, err := e.GetRoute(ctx, routeID)
		if err != nil {
			return 0, err
		}
		return r.Claimable(at), nil
	case id.PrefixInvoice:
		inv, err := e.GetInvoice(ctx, routeID)
		if err != nil {
			return 0, err
		}
		return inv.Claimable(at), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRouteKind, routeID.Prefix())
	}
}

// Totals returns the registry counters of this engine's network.
func (e *Engine) Totals(ctx context.Context) (*registry.Totals, error) {
	return e.store.Totals(ctx, e.network.Name)
}

// GetRecord returns the registry record of a route or funded invoice of
// this engine's network.
func (e *Engine) GetRecord(ctx context.Context, routeID id.AnyID) (*registry.Record, error) {
	rec, err := e.store.GetRecord(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if rec.Network != e.network.Name {
		return nil, fmt.Errorf("%w: %s belongs to network %s", ErrRecordNotFound, routeID, rec.Network)
	}
	return rec, nil
}

// ListRecords lists registry records of this engine's network.
func (e *Engine) ListRecords(ctx context.Context, opts registry.ListOpts) ([]*registry.Record, error) {
	opts.Network = e.network.Name
	return e.store.ListRecords(ctx, opts)
}
