package route

import (
	"time"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
)

// Claim is the receipt of a settled withdrawal from a linear or invoice
// route.
type Claim struct {
	RouteID       id.AnyID      `json:"route_id"`
	Network       string        `json:"network"`
	Asset         types.AssetID `json:"asset"`
	Beneficiary   types.Address `json:"beneficiary"`
	Amount        uint64        `json:"amount"`
	ClaimedAmount uint64        `json:"claimed_amount"`
	DepositAmount uint64        `json:"deposit_amount"`
	ClaimedAt     time.Time     `json:"claimed_at"`
}

// Exhausted reports whether this claim emptied the route.
func (c *Claim) Exhausted() bool {
	return c.ClaimedAmount == c.DepositAmount
}
