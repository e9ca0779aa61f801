package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// Snapshot is the on-disk form read by FileSource:
//
//	assets:
//	  - {id: gas, symbol: GAS, decimals: 8}
//	routes:
//	  - route_id: route_01h455vb4pex5vsknk084sn02q
//	    network: neo
//	    asset: gas
//	    beneficiary: bob
//	    schedule: {start: 1700000000, period_seconds: 2592000, payout_per_period: 100, max_periods: 12}
//	    deposit_amount: 1200
//	    claimed_amount: 100
//
// funded is only read for invoice routes; linear routes are always funded.
type Snapshot struct {
	Assets []types.Asset   `json:"assets" yaml:"assets"`
	Routes []SnapshotRoute `json:"routes" yaml:"routes"`
}

// SnapshotRoute is one route entry of a Snapshot.
type SnapshotRoute struct {
	RouteID       string           `json:"route_id" yaml:"route_id"`
	Network       string           `json:"network" yaml:"network"`
	Asset         types.AssetID    `json:"asset" yaml:"asset"`
	Beneficiary   types.Address    `json:"beneficiary" yaml:"beneficiary"`
	Schedule      vesting.Schedule `json:"schedule" yaml:"schedule"`
	DepositAmount uint64           `json:"deposit_amount" yaml:"deposit_amount"`
	ClaimedAmount uint64           `json:"claimed_amount" yaml:"claimed_amount"`
	Funded        bool             `json:"funded" yaml:"funded"`
}

// FileSource serves snapshots loaded from a YAML or JSON document.
type FileSource struct {
	observed map[string]*Observed
	order    []id.AnyID
}

// LoadFile reads a snapshot file. The format follows the extension:
// .json is JSON, anything else is YAML.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mirror: read snapshot: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Parse(data, format)
}

// Parse decodes a snapshot document in the given format ("yaml" or "json").
func Parse(data []byte, format string) (*FileSource, error) {
	var snap Snapshot
	switch format {
	case "json":
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("mirror: decode json snapshot: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("mirror: decode yaml snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("mirror: unknown snapshot format %q", format)
	}
	return FromSnapshot(snap)
}

// FromSnapshot indexes an already decoded snapshot.
func FromSnapshot(snap Snapshot) (*FileSource, error) {
	assets := make(map[types.AssetID]types.Asset, len(snap.Assets))
	for _, a := range snap.Assets {
		assets[a.ID] = a
	}

	fs := &FileSource{observed: make(map[string]*Observed, len(snap.Routes))}
	for i, r := range snap.Routes {
		rid, err := id.ParseAny(r.RouteID)
		if err != nil {
			return nil, fmt.Errorf("mirror: routes[%d]: %w", i, err)
		}
		kind, ok := registry.KindOf(rid)
		if !ok {
			return nil, fmt.Errorf("mirror: routes[%d]: %w: %q", i, streams.ErrUnknownRouteKind, rid.Prefix())
		}
		if r.ClaimedAmount > r.DepositAmount {
			return nil, fmt.Errorf("mirror: routes[%d]: claimed %d exceeds deposit %d", i, r.ClaimedAmount, r.DepositAmount)
		}
		if _, dup := fs.observed[rid.String()]; dup {
			return nil, fmt.Errorf("mirror: routes[%d]: duplicate %s", i, rid)
		}

		asset, ok := assets[r.Asset]
		if !ok {
			asset = types.Asset{ID: r.Asset}
		}
		fs.observed[rid.String()] = &Observed{
			RouteID:       rid,
			Kind:          kind,
			Network:       r.Network,
			Asset:         asset,
			Beneficiary:   r.Beneficiary,
			Schedule:      r.Schedule,
			DepositAmount: r.DepositAmount,
			ClaimedAmount: r.ClaimedAmount,
			Funded:        kind == registry.KindLinear || r.Funded,
		}
		fs.order = append(fs.order, rid)
	}
	return fs, nil
}

// Observe implements Source.
func (fs *FileSource) Observe(_ context.Context, routeID id.AnyID) (*Observed, error) {
	obs, ok := fs.observed[routeID.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in snapshot", streams.ErrRouteNotFound, routeID)
	}
	cp := *obs
	return &cp, nil
}

// IDs returns the route ids in document order.
func (fs *FileSource) IDs() []id.AnyID {
	return slices.Clone(fs.order)
}

// Totals aggregates the funded routes of network the way the registry
// would count them.
func (fs *FileSource) Totals(network string) registry.Totals {
	recs := make([]*registry.Record, 0, len(fs.order))
	for _, rid := range fs.order {
		obs := fs.observed[rid.String()]
		if !obs.Funded {
			continue
		}
		recs = append(recs, &registry.Record{
			RouteID:       obs.RouteID,
			Kind:          obs.Kind,
			Network:       obs.Network,
			Asset:         obs.Asset.ID,
			Beneficiary:   obs.Beneficiary,
			Schedule:      obs.Schedule,
			DepositAmount: obs.DepositAmount,
			ClaimedAmount: obs.ClaimedAmount,
		})
	}
	return registry.Compute(network, recs)
}

// Networks returns the distinct networks in the snapshot, sorted.
func (fs *FileSource) Networks() []string {
	var out []string
	for _, obs := range fs.observed {
		if !slices.Contains(out, obs.Network) {
			out = append(out, obs.Network)
		}
	}
	slices.Sort(out)
	return out
}
