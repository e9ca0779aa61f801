package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	"github.com/xraph/streams/store/memory"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

func testSchedule() vesting.Schedule {
	return vesting.Schedule{Start: 1_000, PeriodSeconds: 60, PayoutPerPeriod: 100, MaxPeriods: 12}
}

func newRoute(network string, deposit uint64) *route.Route {
	return &route.Route{
		Entity:        types.NewEntity(1_000),
		ID:            id.NewRouteID(),
		Network:       network,
		Asset:         "gas",
		Depositor:     "alice",
		Beneficiary:   "bob",
		Schedule:      testSchedule(),
		DepositAmount: deposit,
	}
}

func newRecord(network string, deposit uint64) *registry.Record {
	return &registry.Record{
		RouteID:       id.NewRouteID(),
		Kind:          registry.KindLinear,
		Network:       network,
		Asset:         "gas",
		Depositor:     "alice",
		Beneficiary:   "bob",
		Schedule:      testSchedule(),
		DepositAmount: deposit,
		RegisteredAt:  time.Unix(1_000, 0).UTC(),
	}
}

func TestRouteLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	r := newRoute("neo", 1200)
	r.Metadata = map[string]string{"memo": "salary"}
	require.NoError(t, s.CreateRoute(ctx, r))
	assert.ErrorIs(t, s.CreateRoute(ctx, r), streams.ErrAlreadyExists)

	got, err := s.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.DepositAmount, got.DepositAmount)
	assert.Equal(t, "salary", got.Metadata["memo"])

	// Returned values are copies.
	got.Metadata["memo"] = "changed"
	again, err := s.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "salary", again.Metadata["memo"])

	require.NoError(t, s.UpdateRouteClaimed(ctx, r.ID, 0, 100))
	err = s.UpdateRouteClaimed(ctx, r.ID, 0, 200)
	assert.ErrorIs(t, err, streams.ErrConflict)

	got, err = s.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.ClaimedAmount)

	require.NoError(t, s.DeleteRoute(ctx, r.ID))
	_, err = s.GetRoute(ctx, r.ID)
	assert.ErrorIs(t, err, streams.ErrRouteNotFound)
	assert.True(t, streams.IsNotFound(err))
}

func TestDeleteRegisteredRoute(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	r := newRoute("neo", 1200)
	require.NoError(t, s.CreateRoute(ctx, r))
	rec := newRecord("neo", 1200)
	rec.RouteID = r.ID
	require.NoError(t, s.Register(ctx, rec))

	assert.ErrorIs(t, s.DeleteRoute(ctx, r.ID), streams.ErrInvalidState)
}

func TestListRoutes(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for i := range 5 {
		r := newRoute("neo", uint64(100*(i+1)))
		if i%2 == 1 {
			r.Beneficiary = "carol"
		}
		require.NoError(t, s.CreateRoute(ctx, r))
	}
	require.NoError(t, s.CreateRoute(ctx, newRoute("other", 100)))

	all, err := s.ListRoutes(ctx, route.ListOpts{Network: "neo"})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Negative(t, all[i-1].ID.Compare(all[i].ID))
	}

	carol, err := s.ListRoutes(ctx, route.ListOpts{Beneficiary: "carol"})
	require.NoError(t, err)
	assert.Len(t, carol, 2)

	page, err := s.ListRoutes(ctx, route.ListOpts{Network: "neo", Offset: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, all[3].ID, page[0].ID)

	empty, err := s.ListRoutes(ctx, route.ListOpts{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInvoiceTransitions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	inv := &invoice.Invoice{
		Entity:               types.NewEntity(1_000),
		ID:                   id.NewInvoiceID(),
		Network:              "neo",
		Asset:                "gas",
		Requester:            "bob",
		Beneficiary:          "bob",
		Payer:                "alice",
		RequestedGrossAmount: 5000,
		Schedule:             vesting.Schedule{PeriodSeconds: 60, PayoutPerPeriod: 500, MaxPeriods: 10},
		Status:               invoice.StatusPending,
	}
	require.NoError(t, s.CreateInvoice(ctx, inv))

	err := s.UpdateInvoiceClaimed(ctx, inv.ID, 0, 10)
	assert.ErrorIs(t, err, streams.ErrInvalidState)

	fundedAt := time.Unix(2_000, 0).UTC()
	funded := *inv
	funded.Schedule.Start = 2_000
	funded.FeeAmount = 25
	funded.DepositAmount = 4975
	funded.FundedAt = &fundedAt
	require.NoError(t, s.MarkInvoiceFunded(ctx, &funded))
	assert.ErrorIs(t, s.MarkInvoiceFunded(ctx, &funded), streams.ErrInvalidState)
	assert.ErrorIs(t, s.MarkInvoiceDeclined(ctx, inv.ID, fundedAt), streams.ErrInvalidState)

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusFunded, got.Status)
	assert.Equal(t, uint64(4975), got.DepositAmount)
	assert.Equal(t, int64(2_000), got.Schedule.Start)

	require.NoError(t, s.RevertInvoiceFunding(ctx, inv.ID))
	got, err = s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPending, got.Status)
	assert.Zero(t, got.DepositAmount)
	assert.Nil(t, got.FundedAt)

	require.NoError(t, s.MarkInvoiceDeclined(ctx, inv.ID, fundedAt))
	got, err = s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusDeclined, got.Status)
	require.NotNil(t, got.DeclinedAt)

	_, err = s.GetInvoice(ctx, id.NewInvoiceID())
	assert.ErrorIs(t, err, streams.ErrInvoiceNotFound)
}

func TestListInvoicesByStatus(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for i := range 4 {
		inv := &invoice.Invoice{
			ID:      id.NewInvoiceID(),
			Network: "neo",
			Payer:   "alice",
			Status:  invoice.StatusPending,
		}
		if i == 0 {
			inv.Status = invoice.StatusDeclined
		}
		require.NoError(t, s.CreateInvoice(ctx, inv))
	}

	pending, err := s.ListInvoices(ctx, invoice.ListOpts{Status: invoice.StatusPending, Payer: "alice"})
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	none, err := s.ListInvoices(ctx, invoice.ListOpts{Payer: "mallory"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRegistryCounters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newRecord("neo", 1200)
	b := newRecord("neo", 800)
	require.NoError(t, s.Register(ctx, a))
	require.NoError(t, s.Register(ctx, b))
	assert.ErrorIs(t, s.Register(ctx, a), streams.ErrAlreadyExists)

	totals, err := s.Totals(ctx, "neo")
	require.NoError(t, err)
	assert.Equal(t, registry.Totals{Network: "neo", NumRoutes: 2, TotalRouted: 2000, CurrentActiveTotal: 2000}, *totals)

	delta, err := s.RecordClaimDelta(ctx, a.RouteID, 300)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), delta)

	delta, err = s.RecordClaimDelta(ctx, a.RouteID, 300)
	require.NoError(t, err)
	assert.Zero(t, delta)

	_, err = s.RecordClaimDelta(ctx, a.RouteID, 200)
	assert.ErrorIs(t, err, streams.ErrInvalidDelta)
	_, err = s.RecordClaimDelta(ctx, a.RouteID, 1201)
	assert.ErrorIs(t, err, streams.ErrInvalidDelta)
	_, err = s.RecordClaimDelta(ctx, id.NewRouteID(), 1)
	assert.ErrorIs(t, err, streams.ErrRecordNotFound)

	totals, err = s.Totals(ctx, "neo")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), totals.NumRoutes)
	assert.Equal(t, uint64(2000), totals.TotalRouted)
	assert.Equal(t, uint64(1700), totals.CurrentActiveTotal)

	rec, err := s.GetRecord(ctx, a.RouteID)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), rec.ClaimedAmount)

	other, err := s.Totals(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, other.NumRoutes)

	records, err := s.ListRecords(ctx, registry.ListOpts{Network: "neo"})
	require.NoError(t, err)
	assert.Equal(t, *totals, registry.Compute("neo", records))
}

func TestRegistryConcurrentInvariant(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				rec := newRecord("neo", uint64(1000+w*perWorker+i))
				if err := s.Register(ctx, rec); err != nil {
					t.Error(err)
					return
				}
				for _, step := range []uint64{100, 250, rec.DepositAmount} {
					if _, err := s.RecordClaimDelta(ctx, rec.RouteID, step); err != nil {
						t.Error(fmt.Errorf("claim %d: %w", step, err))
						return
					}
				}
			}
		}()
	}

	// Readers run alongside the writers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			_, _ = s.Totals(ctx, "neo")
		}
	}()

	wg.Wait()
	<-done

	totals, err := s.Totals(ctx, "neo")
	require.NoError(t, err)
	records, err := s.ListRecords(ctx, registry.ListOpts{Network: "neo"})
	require.NoError(t, err)

	assert.Len(t, records, workers*perWorker)
	assert.Equal(t, registry.Compute("neo", records), *totals)
	assert.Zero(t, totals.CurrentActiveTotal)
}
