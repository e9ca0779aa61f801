package audithook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/streams/audit_hook"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
)

func collect(events *[]*audithook.AuditEvent) audithook.RecorderFunc {
	return func(_ context.Context, ev *audithook.AuditEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestRecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	var events []*audithook.AuditEvent
	ext := audithook.New(collect(&events))

	r := &route.Route{ID: id.NewRouteID(), Network: "neo", DepositAmount: 1200, FeeAmount: 6}
	inv := &invoice.Invoice{ID: id.NewInvoiceID(), Payer: "carol", DepositAmount: 4975}

	require.NoError(t, ext.OnRouteCreated(ctx, r))
	require.NoError(t, ext.OnInvoiceFunded(ctx, inv))
	require.NoError(t, ext.OnRouteClaimed(ctx, &route.Claim{RouteID: inv.ID, Amount: 10}))
	require.NoError(t, ext.OnRegistryDrift(ctx, registry.Totals{Network: "neo"}, registry.Totals{Network: "neo", NumRoutes: 1}))

	require.Len(t, events, 4)

	assert.Equal(t, audithook.ActionRouteCreated, events[0].Action)
	assert.Equal(t, audithook.ResourceRoute, events[0].Resource)
	assert.Equal(t, r.ID.String(), events[0].ResourceID)
	assert.Equal(t, uint64(1200), events[0].Metadata["deposit_amount"])

	assert.Equal(t, audithook.ActionInvoiceFunded, events[1].Action)
	assert.Equal(t, "carol", events[1].Metadata["payer"])

	// Claims on invoice routes are filed under the invoice resource.
	assert.Equal(t, audithook.ResourceInvoice, events[2].Resource)

	assert.Equal(t, audithook.SeverityCritical, events[3].Severity)
	assert.Equal(t, audithook.OutcomeFailure, events[3].Outcome)
	assert.NotEmpty(t, events[3].Reason)
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()
	r := &route.Route{ID: id.NewRouteID()}

	var only []*audithook.AuditEvent
	ext := audithook.New(collect(&only), audithook.WithEnabledActions(audithook.ActionRouteExhausted))
	require.NoError(t, ext.OnRouteCreated(ctx, r))
	require.NoError(t, ext.OnRouteExhausted(ctx, r.ID))
	require.Len(t, only, 1)
	assert.Equal(t, audithook.ActionRouteExhausted, only[0].Action)

	var most []*audithook.AuditEvent
	ext = audithook.New(collect(&most), audithook.WithDisabledActions(audithook.ActionRouteCreated))
	require.NoError(t, ext.OnRouteCreated(ctx, r))
	require.NoError(t, ext.OnInvoiceDeclined(ctx, &invoice.Invoice{ID: id.NewInvoiceID()}))
	require.Len(t, most, 1)
	assert.Equal(t, audithook.ActionInvoiceDeclined, most[0].Action)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	assert.NoError(t, ext.OnInvoiceRequested(context.Background(), &invoice.Invoice{ID: id.NewInvoiceID()}))
}
