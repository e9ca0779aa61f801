// Package fee computes the platform fee charged when a route is funded.
//
// A Schedule holds two five-entry basis-point tables, one for nominated
// assets and one for everything else, indexed by the payer's discount tier.
// Tiers at or above the last index collapse onto it. Networks pick their
// schedule at configuration time; callers never select a table themselves.
package fee

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/xraph/streams/types"
)

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10000

// MaxTier is the highest distinct tier index.
const MaxTier = 4

// Table maps a tier (0..MaxTier) to a basis-point rate.
type Table [MaxTier + 1]uint32

// Schedule is a named pair of fee tables.
type Schedule struct {
	Name      string `json:"name" yaml:"name"`
	Nominated Table  `json:"nominated" yaml:"nominated"`
	Standard  Table  `json:"standard" yaml:"standard"`
}

// Built-in schedules.
var (
	// TieredSchedule discounts by tier and favours nominated assets.
	TieredSchedule = Schedule{
		Name:      "tiered",
		Nominated: Table{25, 20, 15, 12, 10},
		Standard:  Table{50, 45, 38, 30, 20},
	}

	// FlatSchedule charges 0.5% regardless of tier or asset.
	FlatSchedule = Schedule{
		Name:      "flat",
		Nominated: Table{50, 50, 50, 50, 50},
		Standard:  Table{50, 50, 50, 50, 50},
	}
)

// ErrUnknownSchedule is returned by ScheduleByName.
var ErrUnknownSchedule = errors.New("fee: unknown schedule")

// ScheduleByName returns a built-in schedule. An empty name selects tiered.
func ScheduleByName(name string) (Schedule, error) {
	switch name {
	case "", TieredSchedule.Name:
		return TieredSchedule, nil
	case FlatSchedule.Name:
		return FlatSchedule, nil
	default:
		return Schedule{}, fmt.Errorf("%w: %q", ErrUnknownSchedule, name)
	}
}

// Validate checks that every rate is below 100%.
func (s Schedule) Validate() error {
	for i := range s.Nominated {
		if s.Nominated[i] >= BpsDenominator || s.Standard[i] >= BpsDenominator {
			return fmt.Errorf("fee: schedule %q tier %d: rate must be below %d bps", s.Name, i, BpsDenominator)
		}
	}
	return nil
}

// Bps returns the rate for a tier and nomination status.
func (s Schedule) Bps(tier uint8, nominated bool) uint32 {
	idx := int(tier)
	if idx > MaxTier {
		idx = MaxTier
	}
	if nominated {
		return s.Nominated[idx]
	}
	return s.Standard[idx]
}

// Fee returns floor(amount * bps / 10000).
func (s Schedule) Fee(amount uint64, tier uint8, nominated bool) uint64 {
	return Apply(amount, s.Bps(tier, nominated))
}

// Quote is a fee preview.
type Quote struct {
	Amount uint64 `json:"amount"`
	Bps    uint32 `json:"bps"`
	Fee    uint64 `json:"fee"`
	Net    uint64 `json:"net"`
}

// Quote computes the fee and the amount left after deducting it.
func (s Schedule) Quote(amount uint64, tier uint8, nominated bool) Quote {
	bps := s.Bps(tier, nominated)
	f := Apply(amount, bps)
	return Quote{Amount: amount, Bps: bps, Fee: f, Net: amount - f}
}

// Apply computes floor(amount * bps / 10000) with a 128-bit intermediate.
// bps is clamped to 10000 so the result never exceeds amount.
func Apply(amount uint64, bps uint32) uint64 {
	if bps > BpsDenominator {
		bps = BpsDenominator
	}
	hi, lo := bits.Mul64(amount, uint64(bps))
	// hi < BpsDenominator because bps <= BpsDenominator, so Div64 cannot panic.
	q, _ := bits.Div64(hi, lo, BpsDenominator)
	return q
}

// TierSource resolves the discount tier of an address at the time of the
// call. Tiers may change between an invoice request and its funding, so
// callers look them up late.
type TierSource interface {
	Tier(ctx context.Context, addr types.Address) (uint8, error)
}

// StaticTiers is an in-memory TierSource. Unknown addresses are tier 0.
type StaticTiers struct {
	mu    sync.RWMutex
	tiers map[types.Address]uint8
}

// NewStaticTiers creates a StaticTiers seeded with the given map.
func NewStaticTiers(seed map[types.Address]uint8) *StaticTiers {
	st := &StaticTiers{tiers: make(map[types.Address]uint8, len(seed))}
	for k, v := range seed {
		st.tiers[k] = v
	}
	return st
}

// Set assigns a tier.
func (st *StaticTiers) Set(addr types.Address, tier uint8) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.tiers[addr] = tier
}

// Tier implements TierSource.
func (st *StaticTiers) Tier(_ context.Context, addr types.Address) (uint8, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.tiers[addr], nil
}
