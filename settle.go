package streams

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/route"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// compensation collects undo steps for a multi-step operation. Steps run
// in reverse order when the operation fails part way.
type compensation struct {
	steps []func(ctx context.Context) error
}

func (c *compensation) push(step func(ctx context.Context) error) {
	c.steps = append(c.steps, step)
}

// rollback runs every undo step even if earlier ones fail. A failing step
// leaves state the caller cannot repair, so it is logged at Error.
func (e *Engine) rollback(ctx context.Context, c *compensation, op string, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			e.logger.Error("compensation step failed",
				"op", op,
				"step", i,
				"cause", cause,
				"error", err,
			)
		}
	}
	c.steps = nil
}

// transfer moves tokens and records the reverse movement in c.
func (e *Engine) transfer(ctx context.Context, c *compensation, asset types.AssetID, from, to types.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := e.tokens.Transfer(ctx, asset, from, to, amount); err != nil {
		return fmt.Errorf("transfer %d %s from %s to %s: %w", amount, asset, from, to, err)
	}
	c.push(func(ctx context.Context) error {
		return e.tokens.Transfer(ctx, asset, to, from, amount)
	})
	return nil
}

// settleClaim pays out c.Amount from escrow and advances the claimed
// amount from prev in the entry store and then in the registry. The
// registry update is the last step, so it never needs to be undone.
func (e *Engine) settleClaim(ctx context.Context, c *route.Claim, prev uint64,
	update func(ctx context.Context, prev, next uint64) error,
) error {
	var undo compensation

	if err := e.transfer(ctx, &undo, c.Asset, e.network.Escrow, c.Beneficiary, c.Amount); err != nil {
		return err
	}

	next := prev + c.Amount
	if err := update(ctx, prev, next); err != nil {
		e.rollback(ctx, &undo, "claim", err)
		return err
	}
	undo.push(func(ctx context.Context) error { return update(ctx, next, prev) })

	if _, err := e.store.RecordClaimDelta(ctx, c.RouteID, next); err != nil {
		e.rollback(ctx, &undo, "claim", err)
		return fmt.Errorf("streams: record claim: %w", err)
	}

	c.ClaimedAmount = next
	return nil
}

// ──────────────────────────────────────────────────
// Validation helpers
// ──────────────────────────────────────────────────

func requireAddress(field string, a types.Address) error {
	if a.IsZero() {
		return ValidationError{Field: field, Message: "address is required"}
	}
	return nil
}

func requireAmount(field string, amount uint64) error {
	if amount == 0 {
		return ValidationError{Field: field, Message: "must be positive"}
	}
	if amount > types.MaxAmount {
		return ValidationError{Field: field, Message: fmt.Sprintf("%d exceeds maximum %d", amount, types.MaxAmount)}
	}
	return nil
}

// checkSchedule validates schedule terms against a deposit and converts
// vesting field errors into ValidationError.
func checkSchedule(s vesting.Schedule, deposit uint64) error {
	err := s.CheckDeposit(deposit)
	if err == nil {
		return nil
	}
	var fe *vesting.FieldError
	if errors.As(err, &fe) {
		return ValidationError{Field: fe.Field, Message: fe.Message}
	}
	return ValidationError{Field: "schedule", Message: err.Error()}
}

// resolveStart returns start, or now when start is unset. A start in the
// past is rejected.
func resolveStart(start, now int64) (int64, error) {
	if start == 0 {
		return now, nil
	}
	if start < now {
		return 0, ValidationError{Field: "start", Message: fmt.Sprintf("%d is before now (%d)", start, now)}
	}
	return start, nil
}

// Claim withdraws the claimable amount of a linear or invoice route,
// chosen by the identifier prefix.
func (e *Engine) Claim(ctx context.Context, routeID id.AnyID, caller types.Address) (*route.Claim, error) {
	switch routeID.Prefix() {
	case id.PrefixRoute:
		return e.ClaimRoute(ctx, routeID, caller)
	case id.PrefixInvoice:
		return e.ClaimInvoice(ctx, routeID, caller)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRouteKind, routeID.Prefix())
	}
}

// afterClaim logs a settled claim and queues its notifications.
func (e *Engine) afterClaim(hooks *hookQueue, c *route.Claim, now int64) {
	e.logger.Info("route claimed",
		"route_id", c.RouteID.String(),
		"network", c.Network,
		"beneficiary", c.Beneficiary.String(),
		"amount", c.Amount,
		"claimed", c.ClaimedAmount,
	)
	hooks.routeClaimed(c)
	e.emit(eventFor(c, now))

	if c.Exhausted() {
		e.logger.Info("route exhausted", "route_id", c.RouteID.String(), "network", c.Network)
		hooks.routeExhausted(c.RouteID)
		e.emit(exhaustedEvent(c, now))
	}
}
