// Package event defines the lifecycle records emitted by the engine. They
// feed plugins and the analytics side channel; they are never read back to
// compute balances.
package event

import (
	"time"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
)

// Type names a lifecycle transition.
type Type string

const (
	TypeRouteCreated     Type = "route.created"
	TypeRouteClaimed     Type = "route.claimed"
	TypeRouteExhausted   Type = "route.exhausted"
	TypeInvoiceRequested Type = "invoice.requested"
	TypeInvoiceFunded    Type = "invoice.funded"
	TypeInvoiceDeclined  Type = "invoice.declined"
)

// Event is one lifecycle transition. Amount carries the deposit for
// creations and fundings, the claimed delta for claims, and the requested
// gross for invoice requests.
type Event struct {
	ID         id.EventID    `json:"id"`
	Type       Type          `json:"type"`
	RouteID    id.AnyID      `json:"route_id"`
	Network    string        `json:"network"`
	Asset      types.AssetID `json:"asset"`
	Actor      types.Address `json:"actor"`
	Amount     uint64        `json:"amount"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// New creates an event stamped at the given unix second.
func New(typ Type, routeID id.AnyID, network string, asset types.AssetID, actor types.Address, amount uint64, at int64) *Event {
	return &Event{
		ID:         id.NewEventID(),
		Type:       typ,
		RouteID:    routeID,
		Network:    network,
		Asset:      asset,
		Actor:      actor,
		Amount:     amount,
		OccurredAt: time.Unix(at, 0).UTC(),
	}
}

// RoutingKey is the topic used when the event is published to a broker,
// e.g. "streams.neo.route.claimed".
func (e *Event) RoutingKey() string {
	return "streams." + e.Network + "." + string(e.Type)
}
