package store

import (
	"context"
	"time"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
)

// Store is the unified storage interface for routes, invoice routes and the
// registry. Methods are declared explicitly rather than by embedding the
// per-entity interfaces, whose names would collide.
type Store interface {
	// Route methods
	CreateRoute(ctx context.Context, r *route.Route) error
	GetRoute(ctx context.Context, routeID id.RouteID) (*route.Route, error)
	ListRoutes(ctx context.Context, opts route.ListOpts) ([]*route.Route, error)
	UpdateRouteClaimed(ctx context.Context, routeID id.RouteID, prev, next uint64) error
	DeleteRoute(ctx context.Context, routeID id.RouteID) error

	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	MarkInvoiceFunded(ctx context.Context, inv *invoice.Invoice) error
	RevertInvoiceFunding(ctx context.Context, invID id.InvoiceID) error
	MarkInvoiceDeclined(ctx context.Context, invID id.InvoiceID, declinedAt time.Time) error
	UpdateInvoiceClaimed(ctx context.Context, invID id.InvoiceID, prev, next uint64) error

	// Registry methods
	Register(ctx context.Context, rec *registry.Record) error
	RecordClaimDelta(ctx context.Context, routeID id.AnyID, newClaimed uint64) (uint64, error)
	GetRecord(ctx context.Context, routeID id.AnyID) (*registry.Record, error)
	ListRecords(ctx context.Context, opts registry.ListOpts) ([]*registry.Record, error)
	Totals(ctx context.Context, network string) (*registry.Totals, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// A Store already satisfies registry.Store; routes and invoices need thin
// adapters because their method names are prefixed here.
var _ registry.Store = (Store)(nil)

type routeStore struct{ s Store }

// Routes returns a route.Store view over s.
func Routes(s Store) route.Store { return routeStore{s} }

func (a routeStore) Create(ctx context.Context, r *route.Route) error {
	return a.s.CreateRoute(ctx, r)
}

func (a routeStore) Get(ctx context.Context, routeID id.RouteID) (*route.Route, error) {
	return a.s.GetRoute(ctx, routeID)
}

func (a routeStore) List(ctx context.Context, opts route.ListOpts) ([]*route.Route, error) {
	return a.s.ListRoutes(ctx, opts)
}

func (a routeStore) UpdateClaimed(ctx context.Context, routeID id.RouteID, prev, next uint64) error {
	return a.s.UpdateRouteClaimed(ctx, routeID, prev, next)
}

func (a routeStore) Delete(ctx context.Context, routeID id.RouteID) error {
	return a.s.DeleteRoute(ctx, routeID)
}

type invoiceStore struct{ s Store }

// Invoices returns an invoice.Store view over s.
func Invoices(s Store) invoice.Store { return invoiceStore{s} }

func (a invoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	return a.s.CreateInvoice(ctx, inv)
}

func (a invoiceStore) Get(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return a.s.GetInvoice(ctx, invID)
}

func (a invoiceStore) List(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return a.s.ListInvoices(ctx, opts)
}

func (a invoiceStore) MarkFunded(ctx context.Context, inv *invoice.Invoice) error {
	return a.s.MarkInvoiceFunded(ctx, inv)
}

func (a invoiceStore) RevertFunding(ctx context.Context, invID id.InvoiceID) error {
	return a.s.RevertInvoiceFunding(ctx, invID)
}

func (a invoiceStore) MarkDeclined(ctx context.Context, invID id.InvoiceID, declinedAt time.Time) error {
	return a.s.MarkInvoiceDeclined(ctx, invID, declinedAt)
}

func (a invoiceStore) UpdateClaimed(ctx context.Context, invID id.InvoiceID, prev, next uint64) error {
	return a.s.UpdateInvoiceClaimed(ctx, invID, prev, next)
}
