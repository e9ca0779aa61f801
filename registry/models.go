// Package registry is the shared ledger that aggregates every registered
// route, linear or invoice, into three per-network counters:
//
//   - NumRoutes counts registrations and never decreases.
//   - TotalRouted sums every registered deposit and never decreases.
//   - CurrentActiveTotal is Σ(DepositAmount − ClaimedAmount) over all
//     registered routes, i.e. the value still held in escrow.
//
// Records are append-only. The only mutation after registration is a
// forward move of ClaimedAmount, which lowers CurrentActiveTotal by exactly
// the delta.
package registry

import (
	"time"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// Kind distinguishes the route variant behind a record.
type Kind string

const (
	KindLinear  Kind = "linear"
	KindInvoice Kind = "invoice"
)

// KindOf infers the record kind from a route identifier.
func KindOf(routeID id.ID) (Kind, bool) {
	switch routeID.Prefix() {
	case id.PrefixRoute:
		return KindLinear, true
	case id.PrefixInvoice:
		return KindInvoice, true
	default:
		return "", false
	}
}

// Record is the registry's compact copy of a route.
type Record struct {
	RouteID       id.AnyID         `json:"route_id"`
	Kind          Kind             `json:"kind"`
	Network       string           `json:"network"`
	Asset         types.AssetID    `json:"asset"`
	Depositor     types.Address    `json:"depositor"`
	Beneficiary   types.Address    `json:"beneficiary"`
	Schedule      vesting.Schedule `json:"schedule"`
	DepositAmount uint64           `json:"deposit_amount"`
	ClaimedAmount uint64           `json:"claimed_amount"`
	RegisteredAt  time.Time        `json:"registered_at"`
}

// Active is the record's contribution to CurrentActiveTotal.
func (r *Record) Active() uint64 {
	return r.DepositAmount - r.ClaimedAmount
}

// Totals are the aggregate counters of one network.
type Totals struct {
	Network            string `json:"network"`
	NumRoutes          uint64 `json:"num_routes"`
	TotalRouted        uint64 `json:"total_routed"`
	CurrentActiveTotal uint64 `json:"current_active_total"`
}

// Compute derives totals from a full set of records. Records from other
// networks are skipped.
func Compute(network string, records []*Record) Totals {
	t := Totals{Network: network}
	for _, r := range records {
		if r.Network != network {
			continue
		}
		t.NumRoutes++
		t.TotalRouted += r.DepositAmount
		t.CurrentActiveTotal += r.Active()
	}
	return t
}
