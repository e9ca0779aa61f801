package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/plugin"
	"github.com/xraph/streams/route"
)

type claimCounter struct {
	name   string
	claims atomic.Int64
	fail   bool
}

func (c *claimCounter) Name() string { return c.name }

func (c *claimCounter) OnRouteClaimed(_ context.Context, cl *route.Claim) error {
	c.claims.Add(int64(cl.Amount))
	if c.fail {
		return errors.New("boom")
	}
	return nil
}

type slowExhaust struct{}

func (slowExhaust) Name() string { return "slow" }

func (slowExhaust) OnRouteExhausted(ctx context.Context, _ id.AnyID) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&claimCounter{name: "a"}))
	require.Error(t, r.Register(&claimCounter{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitRouteClaimedReachesEveryPlugin(t *testing.T) {
	r := plugin.NewRegistry()
	ok := &claimCounter{name: "ok"}
	failing := &claimCounter{name: "failing", fail: true}
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(failing))

	r.EmitRouteClaimed(context.Background(), &route.Claim{Amount: 100})

	assert.Equal(t, int64(100), ok.claims.Load())
	assert.Equal(t, int64(100), failing.claims.Load(), "a failing hook still runs")
}

func TestSlowHookTimesOut(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slowExhaust{}))

	start := time.Now()
	r.EmitRouteExhausted(context.Background(), id.NewRouteID())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPluginsWithoutHooksAreIgnored(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(slowExhaust{}))

	// No OnRouteClaimed implementations; must not panic or block.
	r.EmitRouteClaimed(context.Background(), &route.Claim{})
	assert.Len(t, r.List(), 1)
}
