package fee

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/xraph/streams/types"
)

func TestTieredBps(t *testing.T) {
	tests := []struct {
		tier      uint8
		nominated bool
		want      uint32
	}{
		{0, true, 25}, {1, true, 20}, {2, true, 15}, {3, true, 12}, {4, true, 10},
		{0, false, 50}, {1, false, 45}, {2, false, 38}, {3, false, 30}, {4, false, 20},
		{9, true, 10},
		{255, false, 20},
	}

	for _, tt := range tests {
		if got := TieredSchedule.Bps(tt.tier, tt.nominated); got != tt.want {
			t.Errorf("Bps(%d, %v) = %d, want %d", tt.tier, tt.nominated, got, tt.want)
		}
	}
}

func TestFlatIgnoresTier(t *testing.T) {
	for tier := uint8(0); tier < 8; tier++ {
		for _, nom := range []bool{true, false} {
			if got := FlatSchedule.Bps(tier, nom); got != 50 {
				t.Errorf("flat Bps(%d, %v) = %d, want 50", tier, nom, got)
			}
		}
	}
}

func TestFeeGoldenVectors(t *testing.T) {
	tests := []struct {
		name      string
		schedule  Schedule
		amount    uint64
		tier      uint8
		nominated bool
		want      uint64
	}{
		{"invoice scenario", TieredSchedule, 5000, 0, false, 25},
		{"floors", TieredSchedule, 199, 0, false, 0},
		{"nominated tier 3", TieredSchedule, 1_000_000, 3, true, 1200},
		{"standard tier 2", TieredSchedule, 123_456_789, 2, false, 469_135},
		{"flat", FlatSchedule, 1_000_000, 4, true, 5000},
		{"zero", TieredSchedule, 0, 0, false, 0},
		{"max uint64 no overflow", TieredSchedule, math.MaxUint64, 0, false, 92_233_720_368_547_758},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schedule.Fee(tt.amount, tt.tier, tt.nominated); got != tt.want {
				t.Errorf("Fee(%d) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestFeeNeverExceedsAmount(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for range 10_000 {
		amount := r.Uint64()
		tier := uint8(r.IntN(8))
		nom := r.IntN(2) == 0
		f := TieredSchedule.Fee(amount, tier, nom)
		if f > amount {
			t.Fatalf("fee %d exceeds amount %d", f, amount)
		}
		if again := TieredSchedule.Fee(amount, tier, nom); again != f {
			t.Fatalf("fee is not deterministic: %d vs %d", f, again)
		}
	}
}

func TestApplyClampsRate(t *testing.T) {
	if got := Apply(1000, 20000); got != 1000 {
		t.Errorf("Apply with rate above 100%% = %d, want 1000", got)
	}
}

func TestQuote(t *testing.T) {
	q := TieredSchedule.Quote(5000, 0, false)
	if q.Bps != 50 || q.Fee != 25 || q.Net != 4975 || q.Amount != 5000 {
		t.Errorf("unexpected quote %+v", q)
	}
}

func TestScheduleByName(t *testing.T) {
	s, err := ScheduleByName("")
	if err != nil || s.Name != "tiered" {
		t.Fatalf("empty name: got %q, %v", s.Name, err)
	}
	s, err = ScheduleByName("flat")
	if err != nil || s.Name != "flat" {
		t.Fatalf("flat: got %q, %v", s.Name, err)
	}
	if _, err := ScheduleByName("weird"); !errors.Is(err, ErrUnknownSchedule) {
		t.Fatalf("expected ErrUnknownSchedule, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := TieredSchedule.Validate(); err != nil {
		t.Fatalf("tiered: %v", err)
	}
	bad := TieredSchedule
	bad.Standard[2] = 10000
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for 100% rate")
	}
}

func TestStaticTiers(t *testing.T) {
	st := NewStaticTiers(map[types.Address]uint8{"alice": 3})
	ctx := context.Background()

	if tier, _ := st.Tier(ctx, "alice"); tier != 3 {
		t.Errorf("alice tier = %d, want 3", tier)
	}
	if tier, _ := st.Tier(ctx, "bob"); tier != 0 {
		t.Errorf("unknown address tier = %d, want 0", tier)
	}
	st.Set("bob", 4)
	if tier, _ := st.Tier(ctx, "bob"); tier != 4 {
		t.Errorf("bob tier = %d, want 4", tier)
	}
}
