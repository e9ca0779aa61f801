package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the streamctl settings. Every key can be set in the config
// file or as STREAMS_<KEY> in the environment.
type Config struct {
	Network           string        `mapstructure:"network"`
	FeeSchedule       string        `mapstructure:"fee_schedule"`
	Escrow            string        `mapstructure:"escrow"`
	Treasury          string        `mapstructure:"treasury"`
	NominatedAssets   []string      `mapstructure:"nominated_assets"`
	Store             string        `mapstructure:"store"`
	HTTPAddr          string        `mapstructure:"http_addr"`
	LogLevel          string        `mapstructure:"log_level"`
	AMQPURL           string        `mapstructure:"amqp_url"`
	ReconcileSchedule string        `mapstructure:"reconcile_schedule"`
	EventBatchSize    int           `mapstructure:"event_batch_size"`
	FlushInterval     time.Duration `mapstructure:"flush_interval"`
}

// LoadConfig reads configuration from path (optional) and the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("network", "default")
	v.SetDefault("fee_schedule", "tiered")
	v.SetDefault("escrow", "streams:escrow")
	v.SetDefault("treasury", "streams:treasury")
	v.SetDefault("nominated_assets", []string{})
	v.SetDefault("store", "memory")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("amqp_url", "")
	v.SetDefault("reconcile_schedule", "@every 15m")
	v.SetDefault("event_batch_size", 100)
	v.SetDefault("flush_interval", 5*time.Second)

	v.SetEnvPrefix("STREAMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Network == "" {
		return nil, errors.New("network must not be empty")
	}
	return &cfg, nil
}

// Logger builds the process logger for cfg.LogLevel.
func (c *Config) Logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
