package streams

import (
	"context"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/route"
)

// hookQueue holds plugin notifications raised while the engine lock is
// held. Callers defer run before taking the lock, so hooks fire after
// Unlock and may call back into the engine.
type hookQueue struct {
	e     *Engine
	calls []func(ctx context.Context)
}

func (e *Engine) hooks() *hookQueue { return &hookQueue{e: e} }

func (q *hookQueue) run(ctx context.Context) {
	for _, call := range q.calls {
		call(ctx)
	}
	q.calls = nil
}

// Every payload is copied at enqueue time: the caller gets the original
// and a hook that outlives its timeout keeps nothing the caller can see.

func (q *hookQueue) routeCreated(r *route.Route) {
	r = r.Clone()
	q.calls = append(q.calls, func(ctx context.Context) { q.e.plugins.EmitRouteCreated(ctx, r) })
}

func (q *hookQueue) routeClaimed(c *route.Claim) {
	cp := *c
	q.calls = append(q.calls, func(ctx context.Context) { q.e.plugins.EmitRouteClaimed(ctx, &cp) })
}

func (q *hookQueue) routeExhausted(routeID id.AnyID) {
	q.calls = append(q.calls, func(ctx context.Context) { q.e.plugins.EmitRouteExhausted(ctx, routeID) })
}

func (q *hookQueue) invoiceRequested(inv *invoice.Invoice) {
	inv = inv.Clone()
	q.calls = append(q.calls, func(ctx context.Context) { q.e.plugins.EmitInvoiceRequested(ctx, inv) })
}

func (q *hookQueue) invoiceFunded(inv *invoice.Invoice) {
	inv = inv.Clone()
	q.calls = append(q.calls, func(ctx context.Context) { q.e.plugins.EmitInvoiceFunded(ctx, inv) })
}

func (q *hookQueue) invoiceDeclined(inv *invoice.Invoice) {
	inv = inv.Clone()
	q.calls = append(q.calls, func(ctx context.Context) { q.e.plugins.EmitInvoiceDeclined(ctx, inv) })
}
