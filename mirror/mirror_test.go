package mirror_test

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/xraph/streams"
	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/mirror"
	"github.com/xraph/streams/store/memory"
	tokens "github.com/xraph/streams/token/memory"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

var gas = types.Asset{ID: "gas", Symbol: "GAS", Decimals: 2}

func TestEvaluateLinear(t *testing.T) {
	rid := id.NewRouteID()
	obs := &mirror.Observed{
		RouteID:       rid,
		Asset:         gas,
		Schedule:      vesting.Schedule{Start: 1000, PeriodSeconds: 100, PayoutPerPeriod: 250, MaxPeriods: 4},
		DepositAmount: 900,
		ClaimedAmount: 250,
		Funded:        true,
	}

	p := mirror.Evaluate(obs, 1250)
	assert.Equal(t, uint64(500), p.Vested)
	assert.Equal(t, uint64(250), p.Claimable)
	assert.Equal(t, uint64(650), p.Remaining)
	assert.False(t, p.Exhausted)
	assert.Equal(t, int64(1300), p.NextUnlock)
	assert.Equal(t, int64(1400), p.FullyVestedAt)
	assert.Equal(t, "2.50 GAS", p.ClaimableDisplay)
	assert.Equal(t, "6.50 GAS", p.RemainingDisplay)

	p = mirror.Evaluate(obs, 5000)
	assert.Equal(t, uint64(900), p.Vested)
	assert.Equal(t, uint64(650), p.Claimable)
	assert.Zero(t, p.NextUnlock)
}

func TestEvaluateUnfundedInvoice(t *testing.T) {
	obs := &mirror.Observed{
		RouteID:  id.NewInvoiceID(),
		Schedule: vesting.Schedule{PeriodSeconds: 100, PayoutPerPeriod: 250, MaxPeriods: 4},
		Funded:   false,
	}

	p := mirror.Evaluate(obs, 1<<40)
	assert.Zero(t, p.Vested)
	assert.Zero(t, p.Claimable)
	assert.False(t, p.Exhausted)
	assert.Zero(t, p.NextUnlock)
	assert.Equal(t, "0", p.ClaimableDisplay)
}

func TestPreviewFee(t *testing.T) {
	m := mirror.New(nil, fee.TieredSchedule)
	assert.Equal(t, fee.Quote{Amount: 5000, Bps: 50, Fee: 25, Net: 4975}, m.PreviewFee(5000, 0, false))
	assert.Equal(t, uint64(10), m.PreviewFee(10_000, 4, true).Fee)
}

func TestParseSnapshot(t *testing.T) {
	rid := id.NewRouteID()
	inv := id.NewInvoiceID()
	doc := `
assets:
  - {id: gas, symbol: GAS, decimals: 2}
routes:
  - route_id: ` + rid.String() + `
    network: neo
    asset: gas
    beneficiary: bob
    schedule: {start: 1000, period_seconds: 100, payout_per_period: 100, max_periods: 12}
    deposit_amount: 1200
    claimed_amount: 100
  - route_id: ` + inv.String() + `
    network: neo
    asset: gas
    beneficiary: bob
    schedule: {period_seconds: 100, payout_per_period: 500, max_periods: 10}
    deposit_amount: 0
`
	fs, err := mirror.Parse([]byte(doc), "yaml")
	require.NoError(t, err)
	ids := fs.IDs()
	require.Len(t, ids, 2)
	assert.Equal(t, rid.String(), ids[0].String())
	assert.Equal(t, inv.String(), ids[1].String())

	m := mirror.New(fs, fee.TieredSchedule)
	p, err := m.Preview(context.Background(), rid, 1350)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), p.Claimable)
	assert.Equal(t, "2.00 GAS", p.ClaimableDisplay)

	p, err = m.Preview(context.Background(), inv, 1350)
	require.NoError(t, err)
	assert.Zero(t, p.Claimable)

	_, err = m.Preview(context.Background(), id.NewRouteID(), 1350)
	assert.True(t, streams.IsNotFound(err))
}

func TestParseSnapshotErrors(t *testing.T) {
	tests := map[string]string{
		"bad id":          `{"routes":[{"route_id":"nope"}]}`,
		"event id":        `{"routes":[{"route_id":"` + id.NewEventID().String() + `"}]}`,
		"claimed > total": `{"routes":[{"route_id":"` + id.NewRouteID().String() + `","deposit_amount":1,"claimed_amount":2}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := mirror.Parse([]byte(doc), "json")
			assert.Error(t, err)
		})
	}

	_, err := mirror.Parse([]byte("{}"), "toml")
	assert.Error(t, err)
}

func TestLoadFileJSON(t *testing.T) {
	rid := id.NewRouteID()
	path := filepath.Join(t.TempDir(), "snap.json")
	doc := `{"routes":[{"route_id":"` + rid.String() + `","asset":"gas","schedule":{"start":0,"period_seconds":10,"payout_per_period":5,"max_periods":3},"deposit_amount":15}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	fs, err := mirror.LoadFile(path)
	require.NoError(t, err)

	obs, err := fs.Observe(context.Background(), rid)
	require.NoError(t, err)
	assert.True(t, obs.Funded)
	assert.Equal(t, uint64(15), obs.DepositAmount)
}

// TestParityWithEngine drives an engine with random schedules and claims
// and checks that the mirror, reading either the store or a YAML export of
// it, reports exactly what the engine does.
func TestParityWithEngine(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	now := int64(1_700_000_000)
	store := memory.New()
	ledger := tokens.New()
	require.NoError(t, ledger.Mint(gas.ID, "alice", types.MaxAmount))
	require.NoError(t, ledger.Mint(gas.ID, "carol", types.MaxAmount))

	engine := streams.New(store, ledger,
		streams.WithNetwork(streams.NetworkConfig{
			Name:        "neo",
			FeeSchedule: fee.TieredSchedule,
			Escrow:      "escrow",
			Treasury:    "treasury",
		}),
		streams.WithClock(func() int64 { return now }),
	)
	live := mirror.New(mirror.NewStoreSource(store, gas), fee.TieredSchedule)

	var ids []id.AnyID
	for range 40 {
		sched := vesting.Schedule{
			PeriodSeconds:   1 + rng.Uint64N(3600),
			PayoutPerPeriod: 1 + rng.Uint64N(10_000),
			MaxPeriods:      1 + rng.Uint64N(48),
		}
		total, _ := sched.Total()
		deposit := 1 + rng.Uint64N(total)

		if rng.IntN(2) == 0 {
			r, err := engine.CreateRoute(ctx, streams.CreateRouteInput{
				Depositor: "alice", Beneficiary: "bob", Asset: gas.ID, Schedule: sched, DepositAmount: deposit,
			})
			require.NoError(t, err)
			ids = append(ids, r.ID)
			continue
		}

		inv, err := engine.RequestInvoice(ctx, streams.RequestInvoiceInput{
			Requester: "bob", Payer: "carol", Asset: gas.ID, GrossAmount: deposit, Schedule: sched,
		})
		require.NoError(t, err)
		if rng.IntN(4) > 0 {
			_, err = engine.AcceptInvoice(ctx, inv.ID, "carol", 0)
			require.NoError(t, err)
		}
		ids = append(ids, inv.ID)
	}

	for step := range 200 {
		now += rng.Int64N(7200)
		rid := ids[rng.IntN(len(ids))]

		if step%3 == 0 {
			_, _ = engine.Claim(ctx, rid, "bob")
		}

		want, err := engine.Claimable(ctx, rid, now)
		require.NoError(t, err)
		got, err := live.Preview(ctx, rid, now)
		require.NoError(t, err)
		require.Equal(t, want, got.Claimable, "store source, step %d", step)
	}

	// Export the store to a snapshot document and compare again.
	snap := mirror.Snapshot{Assets: []types.Asset{gas}}
	src := mirror.NewStoreSource(store, gas)
	for _, rid := range ids {
		obs, err := src.Observe(ctx, rid)
		require.NoError(t, err)
		snap.Routes = append(snap.Routes, mirror.SnapshotRoute{
			RouteID:       obs.RouteID.String(),
			Network:       obs.Network,
			Asset:         obs.Asset.ID,
			Beneficiary:   obs.Beneficiary,
			Schedule:      obs.Schedule,
			DepositAmount: obs.DepositAmount,
			ClaimedAmount: obs.ClaimedAmount,
			Funded:        obs.Funded,
		})
	}
	data, err := yaml.Marshal(snap)
	require.NoError(t, err)
	fs, err := mirror.Parse(data, "yaml")
	require.NoError(t, err)
	offline := mirror.New(fs, fee.TieredSchedule)

	for range 100 {
		at := now + rng.Int64N(30*24*3600)
		rid := ids[rng.IntN(len(ids))]

		want, err := engine.Claimable(ctx, rid, at)
		require.NoError(t, err)
		got, err := offline.Preview(ctx, rid, at)
		require.NoError(t, err)
		assert.Equal(t, want, got.Claimable)

		onStore, err := live.Preview(ctx, rid, at)
		require.NoError(t, err)
		assert.Equal(t, onStore.RouteID.String(), got.RouteID.String())
		onStore.RouteID, got.RouteID = id.Nil, id.Nil
		assert.Equal(t, *onStore, *got)
	}
}
