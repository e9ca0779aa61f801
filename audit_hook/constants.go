package audithook

// Action constants for audit events.
const (
	// Route actions
	ActionRouteCreated   = "route.created"
	ActionRouteClaimed   = "route.claimed"
	ActionRouteExhausted = "route.exhausted"

	// Invoice actions
	ActionInvoiceRequested = "invoice.requested"
	ActionInvoiceFunded    = "invoice.funded"
	ActionInvoiceDeclined  = "invoice.declined"

	// Registry actions
	ActionRegistryDrift = "registry.drift"
)

// Resource constants for audit events.
const (
	ResourceRoute    = "route"
	ResourceInvoice  = "invoice"
	ResourceRegistry = "registry"
)

// Category constants for audit events.
const (
	CategoryEscrow    = "escrow"
	CategoryPayout    = "payout"
	CategoryFunding   = "funding"
	CategoryIntegrity = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
