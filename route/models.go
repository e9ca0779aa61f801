package route

import (
	"maps"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// Route is a linear escrow funded by its depositor at creation. The deposit
// unlocks to the beneficiary according to Schedule.
//
// A route is exhausted once ClaimedAmount reaches DepositAmount. That state
// is computed, never stored.
type Route struct {
	types.Entity
	ID            id.RouteID        `json:"id"`
	Network       string            `json:"network"`
	Asset         types.AssetID     `json:"asset"`
	Depositor     types.Address     `json:"depositor"`
	Beneficiary   types.Address     `json:"beneficiary"`
	Schedule      vesting.Schedule  `json:"schedule"`
	DepositAmount uint64            `json:"deposit_amount"`
	FeeAmount     uint64            `json:"fee_amount"`
	ClaimedAmount uint64            `json:"claimed_amount"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Vested returns the unlocked portion of the deposit at now.
func (r *Route) Vested(now int64) uint64 {
	return vesting.Vested(r.Schedule, r.DepositAmount, now)
}

// Claimable returns what the beneficiary may withdraw at now.
func (r *Route) Claimable(now int64) uint64 {
	return vesting.Claimable(r.Schedule, r.DepositAmount, r.ClaimedAmount, now)
}

// Remaining is the escrowed balance not yet claimed.
func (r *Route) Remaining() uint64 {
	return r.DepositAmount - r.ClaimedAmount
}

// Exhausted reports whether the whole deposit has been claimed.
func (r *Route) Exhausted() bool {
	return r.ClaimedAmount == r.DepositAmount
}

// Clone returns a copy that shares no mutable state with r.
func (r *Route) Clone() *Route {
	c := *r
	c.Metadata = maps.Clone(r.Metadata)
	return &c
}
