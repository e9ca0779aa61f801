package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/streams/event"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit             []OnInit
	onShutdown         []OnShutdown
	onRouteCreated     []OnRouteCreated
	onRouteClaimed     []OnRouteClaimed
	onRouteExhausted   []OnRouteExhausted
	onInvoiceRequested []OnInvoiceRequested
	onInvoiceFunded    []OnInvoiceFunded
	onInvoiceDeclined  []OnInvoiceDeclined
	onEventsFlushed    []OnEventsFlushed
	onRegistryDrift    []OnRegistryDrift
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnRouteCreated); ok {
		r.onRouteCreated = append(r.onRouteCreated, v)
	}
	if v, ok := p.(OnRouteClaimed); ok {
		r.onRouteClaimed = append(r.onRouteClaimed, v)
	}
	if v, ok := p.(OnRouteExhausted); ok {
		r.onRouteExhausted = append(r.onRouteExhausted, v)
	}
	if v, ok := p.(OnInvoiceRequested); ok {
		r.onInvoiceRequested = append(r.onInvoiceRequested, v)
	}
	if v, ok := p.(OnInvoiceFunded); ok {
		r.onInvoiceFunded = append(r.onInvoiceFunded, v)
	}
	if v, ok := p.(OnInvoiceDeclined); ok {
		r.onInvoiceDeclined = append(r.onInvoiceDeclined, v)
	}
	if v, ok := p.(OnEventsFlushed); ok {
		r.onEventsFlushed = append(r.onEventsFlushed, v)
	}
	if v, ok := p.(OnRegistryDrift); ok {
		r.onRegistryDrift = append(r.onRegistryDrift, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnRouteCreated", reflect.TypeOf((*OnRouteCreated)(nil)).Elem()},
	{"OnRouteClaimed", reflect.TypeOf((*OnRouteClaimed)(nil)).Elem()},
	{"OnRouteExhausted", reflect.TypeOf((*OnRouteExhausted)(nil)).Elem()},
	{"OnInvoiceRequested", reflect.TypeOf((*OnInvoiceRequested)(nil)).Elem()},
	{"OnInvoiceFunded", reflect.TypeOf((*OnInvoiceFunded)(nil)).Elem()},
	{"OnInvoiceDeclined", reflect.TypeOf((*OnInvoiceDeclined)(nil)).Elem()},
	{"OnEventsFlushed", reflect.TypeOf((*OnEventsFlushed)(nil)).Elem()},
	{"OnRegistryDrift", reflect.TypeOf((*OnRegistryDrift)(nil)).Elem()},
}

// implementedHooks lists the hook interfaces a plugin satisfies.
func implementedHooks(p Plugin) []string {
	var hooks []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			hooks = append(hooks, h.name)
		}
	}
	return hooks
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch snapshots a hook list and calls fn for each entry, logging
// failures. Hooks never fail the operation that triggered them.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, fn func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin hook failed",
				"hook", hook,
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	dispatch(ctx, r, "OnInit", &r.onInit, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitRouteCreated emits a route created event.
func (r *Registry) EmitRouteCreated(ctx context.Context, rt *route.Route) {
	dispatch(ctx, r, "OnRouteCreated", &r.onRouteCreated, func(p OnRouteCreated) error {
		return p.OnRouteCreated(ctx, rt)
	})
}

// EmitRouteClaimed emits a claim receipt.
func (r *Registry) EmitRouteClaimed(ctx context.Context, c *route.Claim) {
	dispatch(ctx, r, "OnRouteClaimed", &r.onRouteClaimed, func(p OnRouteClaimed) error {
		return p.OnRouteClaimed(ctx, c)
	})
}

// EmitRouteExhausted emits a route exhausted event.
func (r *Registry) EmitRouteExhausted(ctx context.Context, routeID id.AnyID) {
	dispatch(ctx, r, "OnRouteExhausted", &r.onRouteExhausted, func(p OnRouteExhausted) error {
		return p.OnRouteExhausted(ctx, routeID)
	})
}

// EmitInvoiceRequested emits an invoice requested event.
func (r *Registry) EmitInvoiceRequested(ctx context.Context, inv *invoice.Invoice) {
	dispatch(ctx, r, "OnInvoiceRequested", &r.onInvoiceRequested, func(p OnInvoiceRequested) error {
		return p.OnInvoiceRequested(ctx, inv)
	})
}

// EmitInvoiceFunded emits an invoice funded event.
func (r *Registry) EmitInvoiceFunded(ctx context.Context, inv *invoice.Invoice) {
	dispatch(ctx, r, "OnInvoiceFunded", &r.onInvoiceFunded, func(p OnInvoiceFunded) error {
		return p.OnInvoiceFunded(ctx, inv)
	})
}

// EmitInvoiceDeclined emits an invoice declined event.
func (r *Registry) EmitInvoiceDeclined(ctx context.Context, inv *invoice.Invoice) {
	dispatch(ctx, r, "OnInvoiceDeclined", &r.onInvoiceDeclined, func(p OnInvoiceDeclined) error {
		return p.OnInvoiceDeclined(ctx, inv)
	})
}

// EmitEventsFlushed hands a flushed batch to the side-channel plugins.
func (r *Registry) EmitEventsFlushed(ctx context.Context, events []*event.Event, elapsed time.Duration) {
	dispatch(ctx, r, "OnEventsFlushed", &r.onEventsFlushed, func(p OnEventsFlushed) error {
		return p.OnEventsFlushed(ctx, events, elapsed)
	})
}

// EmitRegistryDrift reports a totals mismatch found by reconciliation.
func (r *Registry) EmitRegistryDrift(ctx context.Context, expected, actual registry.Totals) {
	dispatch(ctx, r, "OnRegistryDrift", &r.onRegistryDrift, func(p OnRegistryDrift) error {
		return p.OnRegistryDrift(ctx, expected, actual)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
