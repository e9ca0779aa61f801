package streams

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/xraph/streams/event"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// RequestInvoiceInput describes an invoice route. Beneficiary defaults to
// Requester. The schedule start is chosen when the payer accepts, so
// Schedule.Start must be zero.
type RequestInvoiceInput struct {
	Requester   types.Address
	Beneficiary types.Address
	Payer       types.Address
	Asset       types.AssetID
	GrossAmount uint64
	Schedule    vesting.Schedule
	Metadata    map[string]string
}

func (in RequestInvoiceInput) validate() error {
	if err := requireAddress("requester", in.Requester); err != nil {
		return err
	}
	if err := requireAddress("beneficiary", in.Beneficiary); err != nil {
		return err
	}
	if err := requireAddress("payer", in.Payer); err != nil {
		return err
	}
	if in.Asset == "" {
		return ValidationError{Field: "asset", Message: "is required"}
	}
	if in.Schedule.Start != 0 {
		return ValidationError{Field: "start", Message: "is set by the payer on acceptance"}
	}
	if err := requireAmount("gross_amount", in.GrossAmount); err != nil {
		return err
	}
	return checkSchedule(in.Schedule, in.GrossAmount)
}

// RequestInvoice stores a pending invoice. No tokens move until the payer
// accepts it.
func (e *Engine) RequestInvoice(ctx context.Context, in RequestInvoiceInput) (*invoice.Invoice, error) {
	if in.Beneficiary == "" {
		in.Beneficiary = in.Requester
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	hooks := e.hooks()
	defer hooks.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	inv := &invoice.Invoice{
		Entity:               types.NewEntity(now),
		ID:                   id.NewInvoiceID(),
		Network:              e.network.Name,
		Asset:                in.Asset,
		Requester:            in.Requester,
		Beneficiary:          in.Beneficiary,
		Payer:                in.Payer,
		RequestedGrossAmount: in.GrossAmount,
		Schedule:             in.Schedule,
		Status:               invoice.StatusPending,
		Metadata:             maps.Clone(in.Metadata),
	}

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("streams: store invoice: %w", err)
	}

	e.logger.Info("invoice requested",
		"route_id", inv.ID.String(),
		"network", inv.Network,
		"payer", inv.Payer.String(),
		"gross", inv.RequestedGrossAmount,
	)
	hooks.invoiceRequested(inv)
	e.emit(invoiceEvent(event.TypeInvoiceRequested, inv, now))

	return inv, nil
}

// AcceptInvoice funds a pending invoice from the payer. The fee uses the
// payer's tier at this moment. startAt of zero starts vesting now; a
// later time defers it.
func (e *Engine) AcceptInvoice(ctx context.Context, invID id.InvoiceID, caller types.Address, startAt int64) (*invoice.Invoice, error) {
	hooks := e.hooks()
	defer hooks.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	inv, err := e.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if caller != inv.Payer {
		return nil, fmt.Errorf("%w: %s is not the payer of %s", ErrUnauthorized, caller, invID)
	}
	if inv.Status != invoice.StatusPending {
		return nil, fmt.Errorf("%w: invoice %s is %s", ErrInvalidState, invID, inv.Status)
	}

	now := e.Now()
	start, err := resolveStart(startAt, now)
	if err != nil {
		return nil, err
	}

	tier, err := e.tiers.Tier(ctx, inv.Payer)
	if err != nil {
		return nil, fmt.Errorf("streams: fee tier of %s: %w", inv.Payer, err)
	}
	quote := e.network.FeeSchedule.Quote(inv.RequestedGrossAmount, tier, e.Nominated(inv.Asset))

	fundedAt := time.Unix(now, 0).UTC()
	inv.Schedule.Start = start
	inv.FeeAmount = quote.Fee
	inv.DepositAmount = quote.Net
	inv.Status = invoice.StatusFunded
	inv.FundedAt = &fundedAt
	inv.Touch(now)

	var undo compensation
	if err := e.transfer(ctx, &undo, inv.Asset, inv.Payer, e.network.Escrow, quote.Amount); err != nil {
		return nil, err
	}
	if err := e.transfer(ctx, &undo, inv.Asset, e.network.Escrow, e.network.Treasury, quote.Fee); err != nil {
		e.rollback(ctx, &undo, "accept invoice", err)
		return nil, err
	}

	if err := e.store.MarkInvoiceFunded(ctx, inv); err != nil {
		e.rollback(ctx, &undo, "accept invoice", err)
		return nil, fmt.Errorf("streams: fund invoice: %w", err)
	}
	undo.push(func(ctx context.Context) error { return e.store.RevertInvoiceFunding(ctx, inv.ID) })

	if err := e.store.Register(ctx, invoiceRecord(inv)); err != nil {
		e.rollback(ctx, &undo, "accept invoice", err)
		return nil, fmt.Errorf("streams: register invoice: %w", err)
	}

	e.logger.Info("invoice funded",
		"route_id", inv.ID.String(),
		"network", inv.Network,
		"gross", quote.Amount,
		"fee", quote.Fee,
		"deposit", quote.Net,
		"tier", tier,
	)
	hooks.invoiceFunded(inv)
	e.emit(invoiceEvent(event.TypeInvoiceFunded, inv, now))

	return inv, nil
}

// DeclineInvoice rejects a pending invoice. Declined is terminal and moves
// no tokens.
func (e *Engine) DeclineInvoice(ctx context.Context, invID id.InvoiceID, caller types.Address) (*invoice.Invoice, error) {
	hooks := e.hooks()
	defer hooks.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	inv, err := e.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if caller != inv.Payer {
		return nil, fmt.Errorf("%w: %s is not the payer of %s", ErrUnauthorized, caller, invID)
	}
	if inv.Status != invoice.StatusPending {
		return nil, fmt.Errorf("%w: invoice %s is %s", ErrInvalidState, invID, inv.Status)
	}

	now := e.Now()
	declinedAt := time.Unix(now, 0).UTC()
	if err := e.store.MarkInvoiceDeclined(ctx, inv.ID, declinedAt); err != nil {
		return nil, fmt.Errorf("streams: decline invoice: %w", err)
	}
	inv.Status = invoice.StatusDeclined
	inv.DeclinedAt = &declinedAt
	inv.Touch(now)

	e.logger.Info("invoice declined", "route_id", inv.ID.String(), "network", inv.Network)
	hooks.invoiceDeclined(inv)
	e.emit(invoiceEvent(event.TypeInvoiceDeclined, inv, now))

	return inv, nil
}

// ClaimInvoice withdraws everything currently claimable from a funded
// invoice. It behaves like ClaimRoute once the invoice is funded.
func (e *Engine) ClaimInvoice(ctx context.Context, invID id.InvoiceID, caller types.Address) (*route.Claim, error) {
	hooks := e.hooks()
	defer hooks.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	inv, err := e.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if caller != inv.Beneficiary {
		return nil, fmt.Errorf("%w: %s is not the beneficiary of %s", ErrUnauthorized, caller, invID)
	}
	if !inv.Funded() {
		return nil, fmt.Errorf("%w: %w: invoice %s is %s", ErrInvalidState, ErrInvoiceNotFunded, invID, inv.Status)
	}

	now := e.Now()
	amount := inv.Claimable(now)
	if amount == 0 {
		return nil, fmt.Errorf("%w: invoice %s", ErrNothingClaimable, invID)
	}

	c := &route.Claim{
		RouteID:       inv.ID,
		Network:       inv.Network,
		Asset:         inv.Asset,
		Beneficiary:   inv.Beneficiary,
		Amount:        amount,
		DepositAmount: inv.DepositAmount,
		ClaimedAt:     time.Unix(now, 0).UTC(),
	}
	update := func(ctx context.Context, prev, next uint64) error {
		return e.store.UpdateInvoiceClaimed(ctx, inv.ID, prev, next)
	}
	if err := e.settleClaim(ctx, c, inv.ClaimedAmount, update); err != nil {
		return nil, err
	}

	e.afterClaim(hooks, c, now)
	return c, nil
}

// GetInvoice returns an invoice route of this engine's network.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	if !invID.Is(id.PrefixInvoice) {
		return nil, fmt.Errorf("%w: %s is not an invoice id", ErrInvoiceNotFound, invID)
	}
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if inv.Network != e.network.Name {
		return nil, fmt.Errorf("%w: %s belongs to network %s", ErrInvoiceNotFound, invID, inv.Network)
	}
	return inv, nil
}

// ListInvoices lists invoice routes of this engine's network.
func (e *Engine) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	opts.Network = e.network.Name
	return e.store.ListInvoices(ctx, opts)
}

// invoiceRecord registers a funded invoice. The payer is the depositor and
// only the net amount enters the registry.
func invoiceRecord(inv *invoice.Invoice) *registry.Record {
	rec := &registry.Record{
		RouteID:       inv.ID,
		Kind:          registry.KindInvoice,
		Network:       inv.Network,
		Asset:         inv.Asset,
		Depositor:     inv.Payer,
		Beneficiary:   inv.Beneficiary,
		Schedule:      inv.Schedule,
		DepositAmount: inv.DepositAmount,
		ClaimedAmount: inv.ClaimedAmount,
	}
	if inv.FundedAt != nil {
		rec.RegisteredAt = *inv.FundedAt
	}
	return rec
}
