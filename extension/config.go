package extension

import "time"

// Config holds the Streams extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.streams" or "streams" keys).
type Config struct {
	// Network is the name of the network this engine settles for
	// (default: "default").
	Network string `json:"network" mapstructure:"network" yaml:"network"`

	// FeeSchedule selects the fee table: "tiered" or "flat" (default: "tiered").
	FeeSchedule string `json:"fee_schedule" mapstructure:"fee_schedule" yaml:"fee_schedule"`

	// Escrow is the custody account holding every deposit.
	Escrow string `json:"escrow" mapstructure:"escrow" yaml:"escrow"`

	// Treasury receives the fee portion of every gross amount.
	Treasury string `json:"treasury" mapstructure:"treasury" yaml:"treasury"`

	// NominatedAssets lists the assets charged the discounted fee row.
	NominatedAssets []string `json:"nominated_assets" mapstructure:"nominated_assets" yaml:"nominated_assets"`

	// DisableRoutes prevents the HTTP API from being built.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for streams routes (default: "/streams").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// EventBatchSize is the number of lifecycle events to buffer before
	// dispatching them to plugins (default: 100).
	EventBatchSize int `json:"event_batch_size" mapstructure:"event_batch_size" yaml:"event_batch_size"`

	// EventFlushInterval is how frequently the event buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	EventFlushInterval time.Duration `json:"event_flush_interval" mapstructure:"event_flush_interval" yaml:"event_flush_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Network:            "default",
		FeeSchedule:        "tiered",
		Escrow:             "streams:escrow",
		Treasury:           "streams:treasury",
		BasePath:           "/streams",
		EventBatchSize:     100,
		EventFlushInterval: 5 * time.Second,
	}
}
