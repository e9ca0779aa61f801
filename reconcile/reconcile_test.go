package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/plugin"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/store/memory"
	"github.com/xraph/streams/vesting"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func record(network string, deposit, claimed uint64) *registry.Record {
	return &registry.Record{
		RouteID:       id.NewRouteID(),
		Kind:          registry.KindLinear,
		Network:       network,
		Asset:         "gas",
		Depositor:     "alice",
		Beneficiary:   "bob",
		Schedule:      vesting.Schedule{Start: 100, PeriodSeconds: 10, PayoutPerPeriod: 1, MaxPeriods: deposit},
		DepositAmount: deposit,
		ClaimedAmount: claimed,
		RegisteredAt:  time.Unix(100, 0).UTC(),
	}
}

func seed(t *testing.T, s registry.Store, recs ...*registry.Record) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, s.Register(context.Background(), r))
	}
}

// skewed reports totals that disagree with the records underneath.
type skewed struct {
	registry.Store
	extra uint64
}

func (s *skewed) Totals(ctx context.Context, network string) (*registry.Totals, error) {
	t, err := s.Store.Totals(ctx, network)
	if err != nil {
		return nil, err
	}
	t.CurrentActiveTotal += s.extra
	return t, nil
}

// moving reports different totals on every call.
type moving struct {
	registry.Store
	mu    sync.Mutex
	calls uint64
}

func (s *moving) Totals(ctx context.Context, network string) (*registry.Totals, error) {
	t, err := s.Store.Totals(ctx, network)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls++
	t.NumRoutes += s.calls
	s.mu.Unlock()
	return t, nil
}

type driftRecorder struct {
	mu       sync.Mutex
	expected []registry.Totals
	actual   []registry.Totals
}

func (d *driftRecorder) Name() string { return "drift-recorder" }

func (d *driftRecorder) OnRegistryDrift(_ context.Context, expected, actual registry.Totals) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expected = append(d.expected, expected)
	d.actual = append(d.actual, actual)
	return nil
}

func TestRunConsistent(t *testing.T) {
	s := memory.New()
	seed(t, s, record("neo", 100, 0), record("neo", 50, 20), record("neo", 30, 30), record("other", 999, 0))

	rec := &driftRecorder{}
	plugins := plugin.NewRegistry().WithLogger(quiet)
	require.NoError(t, plugins.Register(rec))

	r := New(s, WithPlugins(plugins), WithLogger(quiet), WithPageSize(2))
	report, err := r.Run(context.Background(), "neo")
	require.NoError(t, err)

	assert.False(t, report.Drifted())
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 1, report.Attempts)
	assert.Equal(t, registry.Totals{Network: "neo", NumRoutes: 3, TotalRouted: 180, CurrentActiveTotal: 100}, report.Expected)
	assert.False(t, report.Problems.HasErrors())
	assert.Empty(t, rec.expected)
}

func TestRunEmptyNetwork(t *testing.T) {
	report, err := New(memory.New(), WithLogger(quiet)).Run(context.Background(), "neo")
	require.NoError(t, err)
	assert.False(t, report.Drifted())
	assert.Zero(t, report.Records)
}

func TestRunDetectsDrift(t *testing.T) {
	s := &skewed{Store: memory.New(), extra: 7}
	seed(t, s, record("neo", 100, 40))

	rec := &driftRecorder{}
	plugins := plugin.NewRegistry().WithLogger(quiet)
	require.NoError(t, plugins.Register(rec))

	report, err := New(s, WithPlugins(plugins), WithLogger(quiet)).Run(context.Background(), "neo")
	require.NoError(t, err)

	require.True(t, report.Drifted())
	assert.Equal(t, uint64(60), report.Expected.CurrentActiveTotal)
	assert.Equal(t, uint64(67), report.Actual.CurrentActiveTotal)

	require.Len(t, rec.expected, 1)
	assert.Equal(t, report.Expected, rec.expected[0])
	assert.Equal(t, report.Actual, rec.actual[0])
}

func TestRunGivesUpWhenTotalsKeepMoving(t *testing.T) {
	s := &moving{Store: memory.New()}
	seed(t, s, record("neo", 10, 0))

	report, err := New(s, WithLogger(quiet)).Run(context.Background(), "neo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, streams.ErrConflict))
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Attempts)
}

func TestSchedulerRunOnce(t *testing.T) {
	s := memory.New()
	seed(t, s, record("neo", 10, 5), record("test", 20, 0))

	sched := NewScheduler(New(s, WithLogger(quiet)), []string{"neo", "test"}, "", quiet)
	_, ok := sched.Last("neo")
	assert.False(t, ok)

	sched.RunOnce()

	neo, ok := sched.Last("neo")
	require.True(t, ok)
	assert.Equal(t, uint64(5), neo.Actual.CurrentActiveTotal)

	test, ok := sched.Last("test")
	require.True(t, ok)
	assert.Equal(t, uint64(20), test.Actual.TotalRouted)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	sched := NewScheduler(New(memory.New(), WithLogger(quiet)), []string{"neo"}, "not a cron spec", quiet)
	assert.Error(t, sched.Start())
}

func TestSchedulerStartStop(t *testing.T) {
	s := memory.New()
	seed(t, s, record("neo", 10, 0))

	sched := NewScheduler(New(s, WithLogger(quiet)), []string{"neo"}, "@every 1s", quiet)
	require.NoError(t, sched.Start())
	defer func() { <-sched.Stop().Done() }()

	assert.Eventually(t, func() bool {
		_, ok := sched.Last("neo")
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}
