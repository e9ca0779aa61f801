package mirror

import (
	"context"
	"fmt"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	"github.com/xraph/streams/store"
	"github.com/xraph/streams/types"
)

// StoreSource observes routes through the read side of a store.
type StoreSource struct {
	routes   route.Store
	invoices invoice.Store
	assets   map[types.AssetID]types.Asset
}

// NewStoreSource reads from s. assets supplies display metadata; unknown
// assets are shown in smallest units.
func NewStoreSource(s store.Store, assets ...types.Asset) *StoreSource {
	src := &StoreSource{
		routes:   store.Routes(s),
		invoices: store.Invoices(s),
		assets:   make(map[types.AssetID]types.Asset, len(assets)),
	}
	for _, a := range assets {
		src.assets[a.ID] = a
	}
	return src
}

// Observe implements Source.
func (s *StoreSource) Observe(ctx context.Context, routeID id.AnyID) (*Observed, error) {
	switch routeID.Prefix() {
	case id.PrefixRoute:
		r, err := s.routes.Get(ctx, routeID)
		if err != nil {
			return nil, err
		}
		return &Observed{
			RouteID:       r.ID,
			Kind:          registry.KindLinear,
			Network:       r.Network,
			Asset:         s.asset(r.Asset),
			Beneficiary:   r.Beneficiary,
			Schedule:      r.Schedule,
			DepositAmount: r.DepositAmount,
			ClaimedAmount: r.ClaimedAmount,
			Funded:        true,
		}, nil

	case id.PrefixInvoice:
		inv, err := s.invoices.Get(ctx, routeID)
		if err != nil {
			return nil, err
		}
		return &Observed{
			RouteID:       inv.ID,
			Kind:          registry.KindInvoice,
			Network:       inv.Network,
			Asset:         s.asset(inv.Asset),
			Beneficiary:   inv.Beneficiary,
			Schedule:      inv.Schedule,
			DepositAmount: inv.DepositAmount,
			ClaimedAmount: inv.ClaimedAmount,
			Funded:        inv.Funded(),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", streams.ErrUnknownRouteKind, routeID.Prefix())
	}
}

func (s *StoreSource) asset(a types.AssetID) types.Asset {
	if meta, ok := s.assets[a]; ok {
		return meta
	}
	return types.Asset{ID: a}
}
