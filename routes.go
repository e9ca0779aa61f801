package streams

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// CreateRouteInput describes a linear route. A zero Schedule.Start means
// the route starts now.
type CreateRouteInput struct {
	Depositor     types.Address
	Beneficiary   types.Address
	Asset         types.AssetID
	Schedule      vesting.Schedule
	DepositAmount uint64
	Metadata      map[string]string
}

func (in CreateRouteInput) validate() error {
	if err := requireAddress("depositor", in.Depositor); err != nil {
		return err
	}
	if err := requireAddress("beneficiary", in.Beneficiary); err != nil {
		return err
	}
	if in.Asset == "" {
		return ValidationError{Field: "asset", Message: "is required"}
	}
	if err := requireAmount("deposit_amount", in.DepositAmount); err != nil {
		return err
	}
	return checkSchedule(in.Schedule, in.DepositAmount)
}

// CreateRoute escrows DepositAmount plus the depositor's fee, forwards the
// fee to the treasury and registers the route.
func (e *Engine) CreateRoute(ctx context.Context, in CreateRouteInput) (*route.Route, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hooks := e.hooks()
	defer hooks.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	start, err := resolveStart(in.Schedule.Start, now)
	if err != nil {
		return nil, err
	}

	tier, err := e.tiers.Tier(ctx, in.Depositor)
	if err != nil {
		return nil, fmt.Errorf("streams: fee tier of %s: %w", in.Depositor, err)
	}
	feeAmount := e.network.FeeSchedule.Fee(in.DepositAmount, tier, e.Nominated(in.Asset))
	gross := in.DepositAmount + feeAmount
	if gross > types.MaxAmount {
		return nil, ValidationError{Field: "deposit_amount", Message: "deposit plus fee exceeds maximum amount"}
	}

	r := &route.Route{
		Entity:        types.NewEntity(now),
		ID:            id.NewRouteID(),
		Network:       e.network.Name,
		Asset:         in.Asset,
		Depositor:     in.Depositor,
		Beneficiary:   in.Beneficiary,
		Schedule:      in.Schedule,
		DepositAmount: in.DepositAmount,
		FeeAmount:     feeAmount,
		Metadata:      maps.Clone(in.Metadata),
	}
	r.Schedule.Start = start

	var undo compensation
	if err := e.transfer(ctx, &undo, r.Asset, r.Depositor, e.network.Escrow, gross); err != nil {
		return nil, err
	}
	if err := e.transfer(ctx, &undo, r.Asset, e.network.Escrow, e.network.Treasury, feeAmount); err != nil {
		e.rollback(ctx, &undo, "create route", err)
		return nil, err
	}

	if err := e.store.CreateRoute(ctx, r); err != nil {
		e.rollback(ctx, &undo, "create route", err)
		return nil, fmt.Errorf("streams: store route: %w", err)
	}
	undo.push(func(ctx context.Context) error { return e.store.DeleteRoute(ctx, r.ID) })

	if err := e.store.Register(ctx, linearRecord(r)); err != nil {
		e.rollback(ctx, &undo, "create route", err)
		return nil, fmt.Errorf("streams: register route: %w", err)
	}

	e.logger.Info("route created",
		"route_id", r.ID.String(),
		"network", r.Network,
		"asset", r.Asset.String(),
		"deposit", r.DepositAmount,
		"fee", r.FeeAmount,
		"tier", tier,
	)
	hooks.routeCreated(r)
	e.emit(routeCreatedEvent(r, now))

	return r, nil
}

// ClaimRoute withdraws everything currently claimable from a linear route.
// Only the beneficiary may claim.
func (e *Engine) ClaimRoute(ctx context.Context, routeID id.RouteID, caller types.Address) (*route.Claim, error) {
	hooks := e.hooks()
	defer hooks.run(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if caller != r.Beneficiary {
		return nil, fmt.Errorf("%w: %s is not the beneficiary of %s", ErrUnauthorized, caller, routeID)
	}

	now := e.Now()
	amount := r.Claimable(now)
	if amount == 0 {
		return nil, fmt.Errorf("%w: route %s", ErrNothingClaimable, routeID)
	}

	c := &route.Claim{
		RouteID:       r.ID,
		Network:       r.Network,
		Asset:         r.Asset,
		Beneficiary:   r.Beneficiary,
		Amount:        amount,
		DepositAmount: r.DepositAmount,
		ClaimedAt:     time.Unix(now, 0).UTC(),
	}
	update := func(ctx context.Context, prev, next uint64) error {
		return e.store.UpdateRouteClaimed(ctx, r.ID, prev, next)
	}
	if err := e.settleClaim(ctx, c, r.ClaimedAmount, update); err != nil {
		return nil, err
	}

	e.afterClaim(hooks, c, now)
	return c, nil
}

// GetRoute returns a linear route of this engine's network.
func (e *Engine) GetRoute(ctx context.Context, routeID id.RouteID) (*route.Route, error) {
	if !routeID.Is(id.PrefixRoute) {
		return nil, fmt.Errorf("%w: %s is not a route id", ErrRouteNotFound, routeID)
	}
	r, err := e.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if r.Network != e.network.Name {
		return nil, fmt.Errorf("%w: %s belongs to network %s", ErrRouteNotFound, routeID, r.Network)
	}
	return r, nil
}

// ListRoutes lists linear routes of this engine's network.
func (e *Engine) ListRoutes(ctx context.Context, opts route.ListOpts) ([]*route.Route, error) {
	opts.Network = e.network.Name
	return e.store.ListRoutes(ctx, opts)
}

func linearRecord(r *route.Route) *registry.Record {
	return &registry.Record{
		RouteID:       r.ID,
		Kind:          registry.KindLinear,
		Network:       r.Network,
		Asset:         r.Asset,
		Depositor:     r.Depositor,
		Beneficiary:   r.Beneficiary,
		Schedule:      r.Schedule,
		DepositAmount: r.DepositAmount,
		ClaimedAmount: r.ClaimedAmount,
		RegisteredAt:  r.CreatedAt,
	}
}
