package extension

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streams/fee"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{Network: "neo", EventBatchSize: 7})

	assert.Equal(t, "neo", cfg.Network)
	assert.Equal(t, "tiered", cfg.FeeSchedule)
	assert.Equal(t, "streams:escrow", cfg.Escrow)
	assert.Equal(t, "streams:treasury", cfg.Treasury)
	assert.Equal(t, "/streams", cfg.BasePath)
	assert.Equal(t, 7, cfg.EventBatchSize)
	assert.Equal(t, 5*time.Second, cfg.EventFlushInterval)
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{Network: "neo", FeeSchedule: "flat"}
	prog := Config{
		Network:         "ignored",
		Treasury:        "neo:treasury",
		NominatedAssets: []string{"gas"},
		DisableRoutes:   true,
		EventBatchSize:  10,
	}

	cfg := mergeConfigurations(file, prog)

	assert.Equal(t, "neo", cfg.Network)
	assert.Equal(t, "flat", cfg.FeeSchedule)
	assert.Equal(t, "neo:treasury", cfg.Treasury)
	assert.Equal(t, "streams:escrow", cfg.Escrow)
	assert.Equal(t, []string{"gas"}, cfg.NominatedAssets)
	assert.True(t, cfg.DisableRoutes)
	assert.False(t, cfg.DisableMigrate)
	assert.Equal(t, 10, cfg.EventBatchSize)
}

func TestBuildEngine(t *testing.T) {
	e := New(
		WithNetwork("neo"),
		WithFeeSchedule("flat"),
		WithNominatedAssets("gas"),
		WithEventFlushInterval(50*time.Millisecond),
	)
	e.config = mergeWithDefaults(e.config)
	require.NoError(t, e.build())

	eng := e.Engine()
	require.NotNil(t, eng)
	assert.Equal(t, "neo", eng.Network().Name)
	assert.Equal(t, fee.FlatSchedule, eng.Network().FeeSchedule)
	assert.True(t, eng.Nominated("gas"))

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	t.Cleanup(func() { _ = e.Stop(ctx) })
	require.NoError(t, e.Health(ctx))

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/streams/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/streams/registry/totals")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildDisableRoutes(t *testing.T) {
	e := New(WithDisableRoutes())
	e.config = mergeWithDefaults(e.config)
	require.NoError(t, e.build())
	assert.Nil(t, e.Handler())
}

func TestBuildUnknownSchedule(t *testing.T) {
	e := New(WithFeeSchedule("steep"))
	e.config = mergeWithDefaults(e.config)
	assert.Error(t, e.build())
}
