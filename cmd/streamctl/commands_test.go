package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/mirror"
	"github.com/xraph/streams/registry"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSnapshot(t *testing.T) (string, id.ID, id.ID) {
	t.Helper()
	linear, inv := id.NewRouteID(), id.NewInvoiceID()
	doc := `
assets:
  - {id: gas, symbol: GAS, decimals: 2}
routes:
  - route_id: ` + linear.String() + `
    network: neo
    asset: gas
    beneficiary: bob
    schedule: {start: 1000, period_seconds: 100, payout_per_period: 250, max_periods: 4}
    deposit_amount: 1000
    claimed_amount: 250
  - route_id: ` + inv.String() + `
    network: neo
    asset: gas
    beneficiary: carol
    schedule: {start: 0, period_seconds: 100, payout_per_period: 10, max_periods: 10}
    deposit_amount: 0
    funded: false
`
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path, linear, inv
}

func TestFeeCommand(t *testing.T) {
	out, err := run(t, "fee", "10000", "--json")
	require.NoError(t, err)

	var q fee.Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, fee.Quote{Amount: 10000, Bps: 50, Fee: 50, Net: 9950}, q)
}

func TestFeeCommandDecimals(t *testing.T) {
	out, err := run(t, "fee", "50", "--decimals", "2", "--tier", "4", "--nominated", "--schedule", "tiered")
	require.NoError(t, err)

	assert.Contains(t, out, "Rate:     10 bps")
	assert.Contains(t, out, "Amount:   50.00")
	assert.Contains(t, out, "Fee:      0.05")
	assert.Contains(t, out, "Net:      49.95")
}

func TestFeeCommandErrors(t *testing.T) {
	_, err := run(t, "fee", "0")
	assert.Error(t, err)

	_, err = run(t, "fee", "100", "--schedule", "steep")
	assert.Error(t, err)

	_, err = run(t, "fee", "-5")
	assert.Error(t, err)
}

func TestPreviewCommand(t *testing.T) {
	path, linear, inv := writeSnapshot(t)

	out, err := run(t, "preview", path, linear.String(), "--at", "1250", "--json")
	require.NoError(t, err)

	var previews []mirror.Preview
	require.NoError(t, json.Unmarshal([]byte(out), &previews))
	require.Len(t, previews, 1)
	assert.Equal(t, uint64(250), previews[0].Claimable)
	assert.Equal(t, "2.50 GAS", previews[0].ClaimableDisplay)

	out, err = run(t, "preview", path, "--at", "1250")
	require.NoError(t, err)
	assert.Contains(t, out, linear.String())
	assert.Contains(t, out, inv.String())
	assert.Contains(t, out, "7.50 GAS")
}

func TestPreviewCommandUnknownRoute(t *testing.T) {
	path, _, _ := writeSnapshot(t)
	_, err := run(t, "preview", path, id.NewRouteID().String())
	assert.Error(t, err)
}

func TestTotalsCommand(t *testing.T) {
	path, _, _ := writeSnapshot(t)

	out, err := run(t, "totals", path, "--json")
	require.NoError(t, err)

	var totals []registry.Totals
	require.NoError(t, json.Unmarshal([]byte(out), &totals))
	require.Len(t, totals, 1)
	assert.Equal(t, registry.Totals{Network: "neo", NumRoutes: 1, TotalRouted: 1000, CurrentActiveTotal: 750}, totals[0])

	out, err = run(t, "totals", path, "--network", "other")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "NETWORK"))
	assert.Contains(t, out, "other")
}

func TestNewAppServes(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Network = "neo"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(context.Background(), cfg, logger, "")
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registry/totals", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tot registry.Totals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tot))
	assert.Equal(t, registry.Totals{Network: "neo"}, tot)

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAppRejectsUnknownSchedule(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.FeeSchedule = "steep"

	_, err = newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), "")
	assert.Error(t, err)
}
