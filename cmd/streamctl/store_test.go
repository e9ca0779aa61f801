package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/store/memory"
	"github.com/xraph/streams/store/sqlite"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, "memory")
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, st)

	st, err = openStore(ctx, "sqlite:"+filepath.Join(t.TempDir(), "streams.db"))
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &sqlite.Store{}, st)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Ping(ctx))

	for _, spec := range []string{"sqlite:", "postgres:", "redis:localhost"} {
		_, err := openStore(ctx, spec)
		assert.Error(t, err, spec)
	}
}

func TestNewAppOnSQLite(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	cfg.Network = "neo"
	cfg.Store = "sqlite:" + filepath.Join(t.TempDir(), "streams.db")

	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), "")
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registry/totals", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tot registry.Totals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tot))
	assert.Equal(t, registry.Totals{Network: "neo"}, tot)
}
