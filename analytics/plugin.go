// Package analytics forwards engine lifecycle events to RabbitMQ. It is a
// best-effort side channel: nothing in the engine reads these messages
// back, and a broker outage never fails an engine operation.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/streams/event"
	"github.com/xraph/streams/plugin"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "streams_events"

var (
	_ plugin.Plugin          = (*Plugin)(nil)
	_ plugin.OnEventsFlushed = (*Plugin)(nil)
	_ plugin.OnShutdown      = (*Plugin)(nil)
)

// Plugin publishes every flushed event under its routing key, e.g.
// "streams.neo.route.claimed".
type Plugin struct {
	publisher Publisher
	exchange  string
	logger    *slog.Logger
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithExchange overrides DefaultExchange.
func WithExchange(name string) Option {
	return func(p *Plugin) { p.exchange = name }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) { p.logger = logger }
}

// New creates a Plugin publishing through pub.
func New(pub Publisher, opts ...Option) *Plugin {
	p := &Plugin{
		publisher: pub,
		exchange:  DefaultExchange,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "analytics" }

// OnEventsFlushed implements plugin.OnEventsFlushed.
func (p *Plugin) OnEventsFlushed(ctx context.Context, events []*event.Event, _ time.Duration) error {
	var errs []error
	for _, ev := range events {
		if err := p.publisher.Publish(ctx, p.exchange, ev.RoutingKey(), ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.ID, err))
		}
	}
	if len(errs) > 0 {
		p.logger.Warn("analytics publish failed",
			"failed", len(errs),
			"batch_size", len(events),
		)
	}
	return errors.Join(errs...)
}

// OnShutdown implements plugin.OnShutdown.
func (p *Plugin) OnShutdown(_ context.Context) error {
	p.publisher.Close()
	return nil
}
