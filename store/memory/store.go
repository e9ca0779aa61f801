// Package memory implements store.Store in process memory. It is the
// reference backend: the registry counters are maintained incrementally
// under the same mutex that guards the records, so Register and
// RecordClaimDelta are serialized against each other.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	"github.com/xraph/streams/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	routes   map[string]*route.Route
	invoices map[string]*invoice.Invoice

	// Registry state
	records map[string]*registry.Record
	totals  map[string]*registry.Totals
}

func New() *Store {
	return &Store{
		routes:   make(map[string]*route.Route),
		invoices: make(map[string]*invoice.Invoice),
		records:  make(map[string]*registry.Record),
		totals:   make(map[string]*registry.Totals),
	}
}

// ──────────────────────────────────────────────────
// Route Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateRoute(_ context.Context, r *route.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.routes[r.ID.String()]; exists {
		return streams.ErrAlreadyExists
	}
	s.routes[r.ID.String()] = cloneRoute(r)
	return nil
}

func (s *Store) GetRoute(_ context.Context, routeID id.RouteID) (*route.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.routes[routeID.String()]; ok {
		return cloneRoute(r), nil
	}
	return nil, streams.ErrRouteNotFound
}

func (s *Store) ListRoutes(_ context.Context, opts route.ListOpts) ([]*route.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*route.Route, 0)
	for _, r := range s.routes {
		if opts.Network != "" && r.Network != opts.Network {
			continue
		}
		if opts.Depositor != "" && r.Depositor != opts.Depositor {
			continue
		}
		if opts.Beneficiary != "" && r.Beneficiary != opts.Beneficiary {
			continue
		}
		result = append(result, cloneRoute(r))
	}
	slices.SortFunc(result, func(a, b *route.Route) int { return a.ID.Compare(b.ID) })
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateRouteClaimed(_ context.Context, routeID id.RouteID, prev, next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routes[routeID.String()]
	if !ok {
		return streams.ErrRouteNotFound
	}
	if r.ClaimedAmount != prev {
		return fmt.Errorf("%w: route %s claimed %d, expected %d", streams.ErrConflict, routeID, r.ClaimedAmount, prev)
	}
	r.ClaimedAmount = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteRoute(_ context.Context, routeID id.RouteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routes[routeID.String()]; !ok {
		return streams.ErrRouteNotFound
	}
	if _, registered := s.records[routeID.String()]; registered {
		return fmt.Errorf("%w: route %s is registered", streams.ErrInvalidState, routeID)
	}
	delete(s.routes, routeID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Invoice Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID.String()]; exists {
		return streams.ErrAlreadyExists
	}
	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, streams.ErrInvoiceNotFound
}

func (s *Store) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if opts.Network != "" && inv.Network != opts.Network {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		if opts.Requester != "" && inv.Requester != opts.Requester {
			continue
		}
		if opts.Beneficiary != "" && inv.Beneficiary != opts.Beneficiary {
			continue
		}
		if opts.Payer != "" && inv.Payer != opts.Payer {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	slices.SortFunc(result, func(a, b *invoice.Invoice) int { return a.ID.Compare(b.ID) })
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) MarkInvoiceFunded(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.invoices[inv.ID.String()]
	if !ok {
		return streams.ErrInvoiceNotFound
	}
	if cur.Status != invoice.StatusPending {
		return fmt.Errorf("%w: invoice %s is %s", streams.ErrInvalidState, inv.ID, cur.Status)
	}
	cur.Status = invoice.StatusFunded
	cur.Schedule = inv.Schedule
	cur.FeeAmount = inv.FeeAmount
	cur.DepositAmount = inv.DepositAmount
	cur.FundedAt = cloneTime(inv.FundedAt)
	cur.UpdatedAt = inv.UpdatedAt
	return nil
}

func (s *Store) RevertInvoiceFunding(_ context.Context, invID id.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.invoices[invID.String()]
	if !ok {
		return streams.ErrInvoiceNotFound
	}
	if cur.Status != invoice.StatusFunded || cur.ClaimedAmount != 0 {
		return fmt.Errorf("%w: invoice %s cannot be reverted", streams.ErrInvalidState, invID)
	}
	cur.Status = invoice.StatusPending
	cur.Schedule.Start = 0
	cur.FeeAmount = 0
	cur.DepositAmount = 0
	cur.FundedAt = nil
	return nil
}

func (s *Store) MarkInvoiceDeclined(_ context.Context, invID id.InvoiceID, declinedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.invoices[invID.String()]
	if !ok {
		return streams.ErrInvoiceNotFound
	}
	if cur.Status != invoice.StatusPending {
		return fmt.Errorf("%w: invoice %s is %s", streams.ErrInvalidState, invID, cur.Status)
	}
	cur.Status = invoice.StatusDeclined
	cur.DeclinedAt = &declinedAt
	cur.UpdatedAt = declinedAt
	return nil
}

func (s *Store) UpdateInvoiceClaimed(_ context.Context, invID id.InvoiceID, prev, next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.invoices[invID.String()]
	if !ok {
		return streams.ErrInvoiceNotFound
	}
	if cur.Status != invoice.StatusFunded {
		return fmt.Errorf("%w: invoice %s is %s", streams.ErrInvalidState, invID, cur.Status)
	}
	if cur.ClaimedAmount != prev {
		return fmt.Errorf("%w: invoice %s claimed %d, expected %d", streams.ErrConflict, invID, cur.ClaimedAmount, prev)
	}
	cur.ClaimedAmount = next
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// Registry Store implementation
// ──────────────────────────────────────────────────

func (s *Store) Register(_ context.Context, rec *registry.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.RouteID.String()
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("%w: route %s already registered", streams.ErrAlreadyExists, key)
	}
	if rec.ClaimedAmount > rec.DepositAmount {
		return fmt.Errorf("%w: claimed %d exceeds deposit %d", streams.ErrInvalidDelta, rec.ClaimedAmount, rec.DepositAmount)
	}

	cp := *rec
	s.records[key] = &cp

	t := s.totalsFor(rec.Network)
	t.NumRoutes++
	t.TotalRouted += rec.DepositAmount
	t.CurrentActiveTotal += rec.Active()
	return nil
}

func (s *Store) RecordClaimDelta(_ context.Context, routeID id.AnyID, newClaimed uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[routeID.String()]
	if !ok {
		return 0, streams.ErrRecordNotFound
	}
	if newClaimed < rec.ClaimedAmount || newClaimed > rec.DepositAmount {
		return 0, fmt.Errorf("%w: route %s claimed %d of %d, got %d",
			streams.ErrInvalidDelta, routeID, rec.ClaimedAmount, rec.DepositAmount, newClaimed)
	}

	delta := newClaimed - rec.ClaimedAmount
	rec.ClaimedAmount = newClaimed
	s.totalsFor(rec.Network).CurrentActiveTotal -= delta
	return delta, nil
}

func (s *Store) GetRecord(_ context.Context, routeID id.AnyID) (*registry.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[routeID.String()]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, streams.ErrRecordNotFound
}

func (s *Store) ListRecords(_ context.Context, opts registry.ListOpts) ([]*registry.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*registry.Record, 0, len(s.records))
	for _, rec := range s.records {
		if opts.Network != "" && rec.Network != opts.Network {
			continue
		}
		if opts.Kind != "" && rec.Kind != opts.Kind {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *registry.Record) int { return a.RouteID.Compare(b.RouteID) })
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) Totals(_ context.Context, network string) (*registry.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.totals[network]; ok {
		cp := *t
		return &cp, nil
	}
	return &registry.Totals{Network: network}, nil
}

// totalsFor must be called with s.mu held for writing.
func (s *Store) totalsFor(network string) *registry.Totals {
	t, ok := s.totals[network]
	if !ok {
		t = &registry.Totals{Network: network}
		s.totals[network] = t
	}
	return t
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneRoute(r *route.Route) *route.Route {
	cp := *r
	cp.Metadata = maps.Clone(r.Metadata)
	return &cp
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.Metadata = maps.Clone(inv.Metadata)
	cp.FundedAt = cloneTime(inv.FundedAt)
	cp.DeclinedAt = cloneTime(inv.DeclinedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
