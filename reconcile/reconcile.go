// Package reconcile checks that the registry counters of a network still
// equal the values recomputed from its records.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/streams"
	"github.com/xraph/streams/plugin"
	"github.com/xraph/streams/registry"
)

// Report is the outcome of one reconciliation run.
type Report struct {
	Network string `json:"network"`
	// Expected is recomputed from records, Actual is what the store reports.
	Expected  registry.Totals    `json:"expected"`
	Actual    registry.Totals    `json:"actual"`
	Records   int                `json:"records"`
	Attempts  int                `json:"attempts"`
	CheckedAt time.Time          `json:"checked_at"`
	Problems  streams.MultiError `json:"-"`
}

// Drifted reports whether the stored totals differ from the recomputed
// ones.
func (r *Report) Drifted() bool {
	return r.Expected != r.Actual
}

// Reconciler recomputes registry totals.
type Reconciler struct {
	store       registry.Store
	plugins     *plugin.Registry
	logger      *slog.Logger
	pageSize    int
	maxAttempts int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPlugins routes drift notifications to OnRegistryDrift hooks.
func WithPlugins(p *plugin.Registry) Option {
	return func(r *Reconciler) { r.plugins = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithPageSize sets how many records are read per ListRecords call.
func WithPageSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// New creates a Reconciler over s.
func New(s registry.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:       s,
		logger:      slog.Default(),
		pageSize:    500,
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run recomputes the totals of network. Counters that move while records
// are being read make the comparison meaningless, so the scan is repeated
// until the stored totals are the same before and after it.
func (r *Reconciler) Run(ctx context.Context, network string) (*Report, error) {
	var report *Report
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		before, err := r.store.Totals(ctx, network)
		if err != nil {
			return nil, fmt.Errorf("reconcile: totals: %w", err)
		}

		report, err = r.scan(ctx, network)
		if err != nil {
			return nil, err
		}
		report.Attempts = attempt

		after, err := r.store.Totals(ctx, network)
		if err != nil {
			return nil, fmt.Errorf("reconcile: totals: %w", err)
		}
		report.Actual = *after
		if *before == *after {
			break
		}
		if attempt == r.maxAttempts {
			return report, fmt.Errorf("reconcile: %s: %w: totals kept changing", network, streams.ErrConflict)
		}
	}

	if report.Drifted() {
		r.logger.Error("registry drift detected",
			"network", network,
			"expected_active", report.Expected.CurrentActiveTotal,
			"actual_active", report.Actual.CurrentActiveTotal,
			"expected_routes", report.Expected.NumRoutes,
			"actual_routes", report.Actual.NumRoutes,
		)
		if r.plugins != nil {
			r.plugins.EmitRegistryDrift(ctx, report.Expected, report.Actual)
		}
	} else {
		r.logger.Debug("registry consistent",
			"network", network,
			"records", report.Records,
			"active", report.Actual.CurrentActiveTotal,
		)
	}

	return report, nil
}

func (r *Reconciler) scan(ctx context.Context, network string) (*Report, error) {
	report := &Report{
		Network:   network,
		Expected:  registry.Totals{Network: network},
		CheckedAt: time.Now().UTC(),
	}

	for offset := 0; ; offset += r.pageSize {
		page, err := r.store.ListRecords(ctx, registry.ListOpts{Network: network, Limit: r.pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("reconcile: list records: %w", err)
		}

		for _, rec := range page {
			if rec.ClaimedAmount > rec.DepositAmount {
				report.Problems.Add(fmt.Errorf("%w: %s claimed %d of %d",
					streams.ErrInvalidDelta, rec.RouteID, rec.ClaimedAmount, rec.DepositAmount))
			}
		}
		t := registry.Compute(network, page)
		report.Expected.NumRoutes += t.NumRoutes
		report.Expected.TotalRouted += t.TotalRouted
		report.Expected.CurrentActiveTotal += t.CurrentActiveTotal
		report.Records += len(page)

		if len(page) < r.pageSize {
			return report, nil
		}
	}
}
