// Package plugin provides an extensible plugin system for the streams engine.
// Plugins can hook into route lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/streams/event"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Route hooks
// ──────────────────────────────────────────────────

// OnRouteCreated is called after a linear route is funded and registered.
type OnRouteCreated interface {
	Plugin
	OnRouteCreated(ctx context.Context, r *route.Route) error
}

// OnRouteClaimed is called after any claim settles, linear or invoice.
type OnRouteClaimed interface {
	Plugin
	OnRouteClaimed(ctx context.Context, c *route.Claim) error
}

// OnRouteExhausted is called when a claim empties a route.
type OnRouteExhausted interface {
	Plugin
	OnRouteExhausted(ctx context.Context, routeID id.AnyID) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceRequested is called when an invoice route enters pending.
type OnInvoiceRequested interface {
	Plugin
	OnInvoiceRequested(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceFunded is called after the payer funds an invoice route.
type OnInvoiceFunded interface {
	Plugin
	OnInvoiceFunded(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceDeclined is called after the payer declines an invoice route.
type OnInvoiceDeclined interface {
	Plugin
	OnInvoiceDeclined(ctx context.Context, inv *invoice.Invoice) error
}

// ──────────────────────────────────────────────────
// Side channel and reconciliation hooks
// ──────────────────────────────────────────────────

// OnEventsFlushed receives batches of lifecycle events from the background
// flush worker. Delivery is best-effort.
type OnEventsFlushed interface {
	Plugin
	OnEventsFlushed(ctx context.Context, events []*event.Event, elapsed time.Duration) error
}

// OnRegistryDrift is called when reconciliation finds stored totals that
// differ from the totals recomputed from records.
type OnRegistryDrift interface {
	Plugin
	OnRegistryDrift(ctx context.Context, expected, actual registry.Totals) error
}
