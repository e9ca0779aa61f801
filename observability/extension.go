// Package observability provides a metrics plugin for the streams engine
// that records route and invoice lifecycle counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/streams/event"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/plugin"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnRouteCreated     = (*MetricsExtension)(nil)
	_ plugin.OnRouteClaimed     = (*MetricsExtension)(nil)
	_ plugin.OnRouteExhausted   = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceRequested = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceFunded    = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceDeclined  = (*MetricsExtension)(nil)
	_ plugin.OnEventsFlushed    = (*MetricsExtension)(nil)
	_ plugin.OnRegistryDrift    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine-wide lifecycle metrics.
// Register it as an engine plugin to track routing volume.
type MetricsExtension struct {
	factory MetricFactory

	// Route metrics
	RouteCreated   Counter
	RouteClaims    Counter
	RouteExhausted Counter
	DepositAmount  Histogram
	ClaimAmount    Histogram

	// Invoice metrics
	InvoiceRequested Counter
	InvoiceFunded    Counter
	InvoiceDeclined  Counter

	// Fee metrics
	FeesCollected Counter

	// Side channel metrics
	EventsFlushed     Counter
	EventFlushLatency Histogram

	// Reconciliation metrics
	RegistryDrift Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Route metrics
		RouteCreated:   factory.Counter("streams.route.created"),
		RouteClaims:    factory.Counter("streams.route.claims"),
		RouteExhausted: factory.Counter("streams.route.exhausted"),
		DepositAmount:  factory.Histogram("streams.route.deposit_amount"),
		ClaimAmount:    factory.Histogram("streams.route.claim_amount"),

		// Invoice metrics
		InvoiceRequested: factory.Counter("streams.invoice.requested"),
		InvoiceFunded:    factory.Counter("streams.invoice.funded"),
		InvoiceDeclined:  factory.Counter("streams.invoice.declined"),

		// Fee metrics
		FeesCollected: factory.Counter("streams.fee.collected"),

		// Side channel metrics
		EventsFlushed:     factory.Counter("streams.events.flushed"),
		EventFlushLatency: factory.Histogram("streams.events.flush.latency_ms"),

		// Reconciliation metrics
		RegistryDrift: factory.Counter("streams.registry.drift"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Route lifecycle hooks
// ──────────────────────────────────────────────────

// OnRouteCreated implements plugin.OnRouteCreated.
func (m *MetricsExtension) OnRouteCreated(_ context.Context, r *route.Route) error {
	m.RouteCreated.Inc()
	m.DepositAmount.Observe(float64(r.DepositAmount))
	m.FeesCollected.Add(float64(r.FeeAmount))
	return nil
}

// OnRouteClaimed implements plugin.OnRouteClaimed.
func (m *MetricsExtension) OnRouteClaimed(_ context.Context, c *route.Claim) error {
	m.RouteClaims.Inc()
	m.ClaimAmount.Observe(float64(c.Amount))
	return nil
}

// OnRouteExhausted implements plugin.OnRouteExhausted.
func (m *MetricsExtension) OnRouteExhausted(_ context.Context, _ id.AnyID) error {
	m.RouteExhausted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceRequested implements plugin.OnInvoiceRequested.
func (m *MetricsExtension) OnInvoiceRequested(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceRequested.Inc()
	return nil
}

// OnInvoiceFunded implements plugin.OnInvoiceFunded.
func (m *MetricsExtension) OnInvoiceFunded(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceFunded.Inc()
	m.DepositAmount.Observe(float64(inv.DepositAmount))
	m.FeesCollected.Add(float64(inv.FeeAmount))
	return nil
}

// OnInvoiceDeclined implements plugin.OnInvoiceDeclined.
func (m *MetricsExtension) OnInvoiceDeclined(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceDeclined.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Side channel and reconciliation hooks
// ──────────────────────────────────────────────────

// OnEventsFlushed implements plugin.OnEventsFlushed.
func (m *MetricsExtension) OnEventsFlushed(_ context.Context, events []*event.Event, elapsed time.Duration) error {
	m.EventsFlushed.Add(float64(len(events)))
	m.EventFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnRegistryDrift implements plugin.OnRegistryDrift.
func (m *MetricsExtension) OnRegistryDrift(_ context.Context, _, _ registry.Totals) error {
	m.RegistryDrift.Inc()
	return nil
}
