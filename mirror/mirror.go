// Package mirror recomputes fee and vesting results from observed route
// state. It shares the fee and vesting packages with the engine, so a
// preview always matches what the engine would settle at the same instant,
// but it never touches engine state.
package mirror

import (
	"context"

	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// Observed is a snapshot of one linear or invoice route as seen by an
// outside observer.
type Observed struct {
	RouteID       id.AnyID
	Kind          registry.Kind
	Network       string
	Asset         types.Asset
	Beneficiary   types.Address
	Schedule      vesting.Schedule
	DepositAmount uint64
	ClaimedAmount uint64
	// Funded is always true for linear routes.
	Funded bool
}

// Source yields snapshots. Implementations must not mutate what they read.
type Source interface {
	Observe(ctx context.Context, routeID id.AnyID) (*Observed, error)
}

// Preview is what a beneficiary would see for a route at a given instant.
type Preview struct {
	RouteID          id.AnyID `json:"route_id"`
	At               int64    `json:"at"`
	Vested           uint64   `json:"vested"`
	Claimable        uint64   `json:"claimable"`
	Remaining        uint64   `json:"remaining"`
	Exhausted        bool     `json:"exhausted"`
	NextUnlock       int64    `json:"next_unlock,omitempty"`
	FullyVestedAt    int64    `json:"fully_vested_at,omitempty"`
	ClaimableDisplay string   `json:"claimable_display"`
	RemainingDisplay string   `json:"remaining_display"`
}

// Mirror answers preview queries against a Source.
type Mirror struct {
	source   Source
	schedule fee.Schedule
}

// New creates a mirror reading from src and quoting fees with feeSchedule.
func New(src Source, feeSchedule fee.Schedule) *Mirror {
	return &Mirror{source: src, schedule: feeSchedule}
}

// Preview observes routeID and evaluates it at now.
func (m *Mirror) Preview(ctx context.Context, routeID id.AnyID, now int64) (*Preview, error) {
	obs, err := m.source.Observe(ctx, routeID)
	if err != nil {
		return nil, err
	}
	return Evaluate(obs, now), nil
}

// PreviewFee quotes the fee for amount.
func (m *Mirror) PreviewFee(amount uint64, tier uint8, nominated bool) fee.Quote {
	return m.schedule.Quote(amount, tier, nominated)
}

// Evaluate computes a preview from a snapshot without any I/O.
func Evaluate(obs *Observed, now int64) *Preview {
	p := &Preview{
		RouteID:   obs.RouteID,
		At:        now,
		Remaining: obs.DepositAmount - min(obs.ClaimedAmount, obs.DepositAmount),
		Exhausted: obs.Funded && obs.ClaimedAmount >= obs.DepositAmount,
	}

	if obs.Funded {
		p.Vested = vesting.Vested(obs.Schedule, obs.DepositAmount, now)
		p.Claimable = vesting.Claimable(obs.Schedule, obs.DepositAmount, obs.ClaimedAmount, now)
		if at, ok := vesting.NextUnlock(obs.Schedule, obs.DepositAmount, now); ok {
			p.NextUnlock = at
		}
		p.FullyVestedAt = fullyVestedAt(obs.Schedule, obs.DepositAmount)
	}

	p.ClaimableDisplay = obs.Asset.Format(p.Claimable)
	p.RemainingDisplay = obs.Asset.Format(p.Remaining)
	return p
}

// fullyVestedAt returns the first period boundary at which the whole
// deposit has vested, or 0 if it cannot be represented.
func fullyVestedAt(s vesting.Schedule, deposit uint64) int64 {
	if s.PayoutPerPeriod == 0 || s.PeriodSeconds == 0 {
		return 0
	}
	periods := deposit / s.PayoutPerPeriod
	if deposit%s.PayoutPerPeriod != 0 {
		periods++
	}
	periods = min(periods, s.MaxPeriods)
	at, ok := vesting.End(vesting.Schedule{Start: s.Start, PeriodSeconds: s.PeriodSeconds, MaxPeriods: periods})
	if !ok {
		return 0
	}
	return at
}
