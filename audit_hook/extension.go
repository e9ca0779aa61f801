// Package audithook bridges streams lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/plugin"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnRouteCreated     = (*Extension)(nil)
	_ plugin.OnRouteClaimed     = (*Extension)(nil)
	_ plugin.OnRouteExhausted   = (*Extension)(nil)
	_ plugin.OnInvoiceRequested = (*Extension)(nil)
	_ plugin.OnInvoiceFunded    = (*Extension)(nil)
	_ plugin.OnInvoiceDeclined  = (*Extension)(nil)
	_ plugin.OnRegistryDrift    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audited lifecycle transition.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges streams lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Route lifecycle hooks
// ──────────────────────────────────────────────────

// OnRouteCreated implements plugin.OnRouteCreated.
func (e *Extension) OnRouteCreated(ctx context.Context, r *route.Route) error {
	return e.record(ctx, ActionRouteCreated, SeverityInfo, OutcomeSuccess,
		ResourceRoute, r.ID.String(), CategoryEscrow, nil,
		"network", r.Network,
		"asset", r.Asset.String(),
		"depositor", r.Depositor.String(),
		"beneficiary", r.Beneficiary.String(),
		"deposit_amount", r.DepositAmount,
		"fee_amount", r.FeeAmount,
	)
}

// OnRouteClaimed implements plugin.OnRouteClaimed.
func (e *Extension) OnRouteClaimed(ctx context.Context, c *route.Claim) error {
	return e.record(ctx, ActionRouteClaimed, SeverityInfo, OutcomeSuccess,
		resourceOf(c.RouteID), c.RouteID.String(), CategoryPayout, nil,
		"beneficiary", c.Beneficiary.String(),
		"amount", c.Amount,
		"claimed_amount", c.ClaimedAmount,
	)
}

// OnRouteExhausted implements plugin.OnRouteExhausted.
func (e *Extension) OnRouteExhausted(ctx context.Context, routeID id.AnyID) error {
	return e.record(ctx, ActionRouteExhausted, SeverityInfo, OutcomeSuccess,
		resourceOf(routeID), routeID.String(), CategoryPayout, nil,
	)
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceRequested implements plugin.OnInvoiceRequested.
func (e *Extension) OnInvoiceRequested(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceRequested, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryFunding, nil,
		"requester", inv.Requester.String(),
		"payer", inv.Payer.String(),
		"gross_amount", inv.RequestedGrossAmount,
	)
}

// OnInvoiceFunded implements plugin.OnInvoiceFunded.
func (e *Extension) OnInvoiceFunded(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceFunded, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryFunding, nil,
		"payer", inv.Payer.String(),
		"fee_amount", inv.FeeAmount,
		"deposit_amount", inv.DepositAmount,
		"start", inv.Schedule.Start,
	)
}

// OnInvoiceDeclined implements plugin.OnInvoiceDeclined.
func (e *Extension) OnInvoiceDeclined(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceDeclined, SeverityWarning, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryFunding, nil,
		"payer", inv.Payer.String(),
	)
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnRegistryDrift implements plugin.OnRegistryDrift.
func (e *Extension) OnRegistryDrift(ctx context.Context, expected, actual registry.Totals) error {
	return e.record(ctx, ActionRegistryDrift, SeverityCritical, OutcomeFailure,
		ResourceRegistry, expected.Network, CategoryIntegrity,
		fmt.Errorf("stored totals %+v, recomputed %+v", actual, expected),
		"network", expected.Network,
	)
}

func resourceOf(routeID id.AnyID) string {
	if routeID.Is(id.PrefixInvoice) {
		return ResourceInvoice
	}
	return ResourceRoute
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
