// Package extension provides the Forge extension adapter for Streams.
//
// It implements the forge.Extension interface to integrate the streams
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.streams" or "streams" keys.
package extension

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/streams"
	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/httpapi"
	"github.com/xraph/streams/mirror"
	"github.com/xraph/streams/store"
	"github.com/xraph/streams/store/memory"
	"github.com/xraph/streams/token"
	tokens "github.com/xraph/streams/token/memory"
	"github.com/xraph/streams/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "streams"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Pay-over-time token routing engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the streams engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *streams.Engine
	store      store.Store
	tokens     token.Transferer
	engineOpts []streams.Option
	handler    http.Handler
}

// New creates a new Streams Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *streams.Engine { return e.engine }

// Handler returns the read-only HTTP API mounted under BasePath, or nil
// when routes are disabled or Register has not run.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*streams.Engine, error) {
		return e.engine, nil
	})
}

// build constructs the engine and HTTP handler from the resolved config.
func (e *Extension) build() error {
	if e.store == nil {
		e.store = memory.New()
	}
	if e.tokens == nil {
		e.tokens = tokens.New()
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}
	e.engine = streams.New(e.store, e.tokens, opts...)

	if !e.config.DisableRoutes {
		e.handler = e.buildHandler()
	}
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("streams: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("streams: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs streams.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]streams.Option, error) {
	schedule, err := fee.ScheduleByName(e.config.FeeSchedule)
	if err != nil {
		return nil, err
	}

	nominated := make([]types.AssetID, 0, len(e.config.NominatedAssets))
	for _, a := range e.config.NominatedAssets {
		nominated = append(nominated, types.AssetID(a))
	}

	opts := make([]streams.Option, 0, len(e.engineOpts)+3)
	opts = append(opts,
		streams.WithNetwork(streams.NetworkConfig{
			Name:            e.config.Network,
			FeeSchedule:     schedule,
			Escrow:          types.Address(e.config.Escrow),
			Treasury:        types.Address(e.config.Treasury),
			NominatedAssets: nominated,
		}),
		streams.WithEventConfig(e.config.EventBatchSize, e.config.EventFlushInterval),
	)
	if e.config.DisableMigrate {
		opts = append(opts, streams.WithoutMigrate())
	}

	// Pass-through options apply last so they can override the above.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

func (e *Extension) buildHandler() http.Handler {
	eng := e.engine
	h := httpapi.NewHandler(
		mirror.New(mirror.NewStoreSource(e.store), eng.Network().FeeSchedule),
		e.store,
		httpapi.WithNetwork(eng.Network().Name),
		httpapi.WithClock(eng.Now),
		httpapi.WithPing(e.store.Ping),
	)

	base := "/" + strings.Trim(e.config.BasePath, "/")
	if base == "/" {
		return httpapi.NewRouter(h)
	}
	r := chi.NewRouter()
	r.Mount(base, httpapi.NewRouter(h))
	return r
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("streams: configuration is required but not found in config files; " +
				"ensure 'extensions.streams' or 'streams' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("streams: configuration loaded",
		forge.F("network", e.config.Network),
		forge.F("fee_schedule", e.config.FeeSchedule),
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("event_batch_size", e.config.EventBatchSize),
		forge.F("event_flush_interval", e.config.EventFlushInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.streams", "streams"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("streams: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("streams: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Network == "" {
		cfg.Network = defaults.Network
	}
	if cfg.FeeSchedule == "" {
		cfg.FeeSchedule = defaults.FeeSchedule
	}
	if cfg.Escrow == "" {
		cfg.Escrow = defaults.Escrow
	}
	if cfg.Treasury == "" {
		cfg.Treasury = defaults.Treasury
	}
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.EventBatchSize == 0 {
		cfg.EventBatchSize = defaults.EventBatchSize
	}
	if cfg.EventFlushInterval == 0 {
		cfg.EventFlushInterval = defaults.EventFlushInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence; programmatic values fill gaps and bool flags
// override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&yamlConfig.Network, programmaticConfig.Network)
	fill(&yamlConfig.FeeSchedule, programmaticConfig.FeeSchedule)
	fill(&yamlConfig.Escrow, programmaticConfig.Escrow)
	fill(&yamlConfig.Treasury, programmaticConfig.Treasury)
	fill(&yamlConfig.BasePath, programmaticConfig.BasePath)

	if len(yamlConfig.NominatedAssets) == 0 {
		yamlConfig.NominatedAssets = programmaticConfig.NominatedAssets
	}
	if yamlConfig.EventBatchSize == 0 {
		yamlConfig.EventBatchSize = programmaticConfig.EventBatchSize
	}
	if yamlConfig.EventFlushInterval == 0 {
		yamlConfig.EventFlushInterval = programmaticConfig.EventFlushInterval
	}

	return mergeWithDefaults(yamlConfig)
}
