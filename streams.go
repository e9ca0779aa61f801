package streams

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/streams/event"
	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/plugin"
	"github.com/xraph/streams/store"
	"github.com/xraph/streams/token"
	"github.com/xraph/streams/types"
)

// Clock returns the current time in unix seconds.
type Clock func() int64

// SystemClock reads the wall clock.
func SystemClock() int64 { return time.Now().Unix() }

// NetworkConfig describes the network an engine instance serves.
type NetworkConfig struct {
	Name            string
	FeeSchedule     fee.Schedule
	Escrow          types.Address
	Treasury        types.Address
	NominatedAssets []types.AssetID
}

// DefaultNetwork is used when no WithNetwork option is given.
var DefaultNetwork = NetworkConfig{
	Name:        "default",
	FeeSchedule: fee.TieredSchedule,
	Escrow:      "streams:escrow",
	Treasury:    "streams:treasury",
}

// Validate checks that the configuration can settle transfers.
func (c NetworkConfig) Validate() error {
	if c.Name == "" {
		return ValidationError{Field: "network", Message: "name is required"}
	}
	if c.Escrow.IsZero() {
		return ValidationError{Field: "escrow", Message: "address is required"}
	}
	if c.Treasury.IsZero() {
		return ValidationError{Field: "treasury", Message: "address is required"}
	}
	if c.Escrow == c.Treasury {
		return ValidationError{Field: "treasury", Message: "must differ from escrow"}
	}
	if err := c.FeeSchedule.Validate(); err != nil {
		return ValidationError{Field: "fee_schedule", Message: err.Error()}
	}
	return nil
}

// Engine is the authoritative escrow engine of one network. Every mutating
// operation is serialized by a single mutex and either completes in full
// or leaves balances, routes and registry as they were. Plugin hooks run
// after the mutex is released.
type Engine struct {
	store   store.Store
	tokens  token.Transferer
	plugins *plugin.Registry
	logger  *slog.Logger

	network   NetworkConfig
	nominated map[types.AssetID]bool
	tiers     fee.TierSource

	mu sync.Mutex

	clock   Clock
	clockMu sync.Mutex
	lastNow int64

	// Lifecycle event side channel
	eventBuffer chan *event.Event
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	eventBatchSize     int
	eventFlushInterval time.Duration

	skipMigrate bool
}

// New creates an engine settling through tokens and persisting to s.
func New(s store.Store, tokens token.Transferer, opts ...Option) *Engine {
	e := &Engine{
		store:              s,
		tokens:             tokens,
		plugins:            plugin.NewRegistry(),
		logger:             slog.Default(),
		network:            DefaultNetwork,
		nominated:          make(map[types.AssetID]bool),
		tiers:              fee.NewStaticTiers(nil),
		clock:              SystemClock,
		eventBuffer:        make(chan *event.Event, 10000),
		stopChan:           make(chan struct{}),
		eventBatchSize:     100,
		eventFlushInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.network.FeeSchedule == (fee.Schedule{}) {
		e.network.FeeSchedule = fee.TieredSchedule
	}
	for _, a := range e.network.NominatedAssets {
		e.nominated[a] = true
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // duplicates are logged by the registry
	}
}

// WithNetwork sets the network name, fee schedule and settlement accounts.
func WithNetwork(cfg NetworkConfig) Option {
	return func(e *Engine) {
		e.network = cfg
	}
}

// WithTierSource sets where fee tiers are looked up.
func WithTierSource(ts fee.TierSource) Option {
	return func(e *Engine) {
		e.tiers = ts
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithEventConfig configures lifecycle event batching.
func WithEventConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		if batchSize > 0 {
			e.eventBatchSize = batchSize
		}
		if flushInterval > 0 {
			e.eventFlushInterval = flushInterval
		}
	}
}

// WithoutMigrate makes Start leave the store schema untouched.
func WithoutMigrate() Option {
	return func(e *Engine) { e.skipMigrate = true }
}

// WithNominatedAssets marks assets that get the reduced fee table.
func WithNominatedAssets(assets ...types.AssetID) Option {
	return func(e *Engine) {
		for _, a := range assets {
			e.nominated[a] = true
		}
	}
}

// Start migrates the store, initializes plugins and starts the event flush
// worker.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.network.Validate(); err != nil {
		return err
	}

	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("streams: migrate: %w", err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.eventFlushWorker(context.WithoutCancel(ctx))

	e.logger.Info("streams engine started",
		"network", e.network.Name,
		"fee_schedule", e.network.FeeSchedule.Name,
		"batch_size", e.eventBatchSize,
		"flush_interval", e.eventFlushInterval,
	)

	return nil
}

// Stop flushes pending events, shuts plugins down and closes the store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Network returns the engine's network configuration.
func (e *Engine) Network() NetworkConfig { return e.network }

// Plugins exposes the hook registry so extensions can register late.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Store returns the backing store for read-only consumers such as the
// mirror and the HTTP API.
func (e *Engine) Store() store.Store { return e.store }

// Now returns the engine clock, clamped so it never moves backwards.
func (e *Engine) Now() int64 {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()

	t := e.clock()
	if t < e.lastNow {
		t = e.lastNow
	}
	e.lastNow = t
	return t
}

// Nominated reports whether asset uses the nominated fee table.
func (e *Engine) Nominated(asset types.AssetID) bool {
	return e.nominated[asset]
}

// ──────────────────────────────────────────────────
// Lifecycle events
// ──────────────────────────────────────────────────

// emit queues a lifecycle event. The state change it describes has already
// been committed, so a full buffer drops the event instead of failing.
func (e *Engine) emit(ev *event.Event) {
	select {
	case e.eventBuffer <- ev:
	default:
		e.logger.Warn("event buffer full, dropping event",
			"event_id", ev.ID.String(),
			"type", string(ev.Type),
			"route_id", ev.RouteID.String(),
		)
	}
}

func (e *Engine) eventFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*event.Event, 0, e.eventBatchSize)
	var opened time.Time
	ticker := time.NewTicker(e.eventFlushInterval)
	defer ticker.Stop()

	add := func(ev *event.Event) {
		if len(batch) == 0 {
			opened = time.Now()
		}
		batch = append(batch, ev)
	}

	for {
		select {
		case <-e.stopChan:
			// Final flush
		drain:
			for {
				select {
				case ev := <-e.eventBuffer:
					add(ev)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				e.flushEvents(ctx, batch, time.Since(opened))
			}
			return

		case ev := <-e.eventBuffer:
			add(ev)
			if len(batch) >= e.eventBatchSize {
				e.flushEvents(ctx, batch, time.Since(opened))
				batch = make([]*event.Event, 0, e.eventBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushEvents(ctx, batch, time.Since(opened))
				batch = make([]*event.Event, 0, e.eventBatchSize)
			}
		}
	}
}

// flushEvents hands a batch to OnEventsFlushed hooks. elapsed is how long
// the oldest event in the batch waited in the buffer.
func (e *Engine) flushEvents(ctx context.Context, batch []*event.Event, elapsed time.Duration) {
	e.plugins.EmitEventsFlushed(ctx, batch, elapsed)

	e.logger.Debug("flushed event batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
