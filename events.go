package streams

import (
	"github.com/xraph/streams/event"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/route"
)

func eventFor(c *route.Claim, now int64) *event.Event {
	return event.New(event.TypeRouteClaimed, c.RouteID, c.Network, c.Asset, c.Beneficiary, c.Amount, now)
}

func exhaustedEvent(c *route.Claim, now int64) *event.Event {
	return event.New(event.TypeRouteExhausted, c.RouteID, c.Network, c.Asset, c.Beneficiary, c.DepositAmount, now)
}

func routeCreatedEvent(r *route.Route, now int64) *event.Event {
	return event.New(event.TypeRouteCreated, r.ID, r.Network, r.Asset, r.Depositor, r.DepositAmount, now)
}

func invoiceEvent(typ event.Type, inv *invoice.Invoice, now int64) *event.Event {
	switch typ {
	case event.TypeInvoiceFunded:
		return event.New(typ, inv.ID, inv.Network, inv.Asset, inv.Payer, inv.DepositAmount, now)
	case event.TypeInvoiceDeclined:
		return event.New(typ, inv.ID, inv.Network, inv.Asset, inv.Payer, 0, now)
	default:
		return event.New(typ, inv.ID, inv.Network, inv.Asset, inv.Requester, inv.RequestedGrossAmount, now)
	}
}
