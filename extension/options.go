package extension

import (
	"time"

	"github.com/xraph/streams"
	"github.com/xraph/streams/plugin"
	"github.com/xraph/streams/store"
	"github.com/xraph/streams/token"
)

// Option configures the Streams Forge extension.
type Option func(*Extension)

// WithStore sets the store for the streams engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTokens sets the token ledger the engine settles through.
func WithTokens(t token.Transferer) Option {
	return func(e *Extension) {
		e.tokens = t
	}
}

// WithEngineOption passes a streams.Option through to the underlying engine.
func WithEngineOption(opt streams.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a streams plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, streams.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithNetwork sets the network name.
func WithNetwork(name string) Option {
	return func(e *Extension) { e.config.Network = name }
}

// WithFeeSchedule selects the fee table by name.
func WithFeeSchedule(name string) Option {
	return func(e *Extension) { e.config.FeeSchedule = name }
}

// WithNominatedAssets marks assets for the discounted fee row.
func WithNominatedAssets(assets ...string) Option {
	return func(e *Extension) {
		e.config.NominatedAssets = append(e.config.NominatedAssets, assets...)
	}
}

// WithDisableRoutes prevents the HTTP API from being built.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for streams routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithEventBatchSize sets the number of lifecycle events buffered per dispatch.
func WithEventBatchSize(size int) Option {
	return func(e *Extension) { e.config.EventBatchSize = size }
}

// WithEventFlushInterval sets how frequently the event buffer is flushed.
func WithEventFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.EventFlushInterval = d }
}
