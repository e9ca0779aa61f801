// Package httpapi exposes the read-only preview surface of streams over
// HTTP. Nothing served here mutates a route.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/streams/mirror"
	"github.com/xraph/streams/registry"
)

// TotalsReader reads the registry counters of a network.
type TotalsReader interface {
	Totals(ctx context.Context, network string) (*registry.Totals, error)
}

// Handler holds what the endpoints read from.
type Handler struct {
	mirror  *mirror.Mirror
	totals  TotalsReader
	network string
	clock   func() int64
	ping    func(context.Context) error
	logger  *slog.Logger
	metrics *prometheus.Registry
}

// Option configures a Handler.
type Option func(*Handler)

// WithNetwork selects the network reported by /registry/totals.
func WithNetwork(name string) Option {
	return func(h *Handler) { h.network = name }
}

// WithClock sets the time used when a preview omits ?at=.
func WithClock(clock func() int64) Option {
	return func(h *Handler) { h.clock = clock }
}

// WithPing makes /health report the result of ping.
func WithPing(ping func(context.Context) error) Option {
	return func(h *Handler) { h.ping = ping }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics serves reg on /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(h *Handler) { h.metrics = reg }
}

// NewHandler creates a Handler.
func NewHandler(m *mirror.Mirror, totals TotalsReader, opts ...Option) *Handler {
	h := &Handler{
		mirror:  m,
		totals:  totals,
		network: "default",
		clock:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter mounts the endpoints of h on a chi router.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.handleHealth)
	r.Get("/routes/{id}/preview", h.handlePreview)
	r.Get("/fees/quote", h.handleQuote)
	r.Get("/registry/totals", h.handleTotals)

	if h.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{}))
	}

	return r
}
