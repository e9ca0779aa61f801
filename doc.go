// Package streams provides pay-over-time token routing for Go applications.
//
// A route escrows a deposit that unlocks to a beneficiary over scheduled
// periods. Streams is a library, not a service: one Engine serves one
// network and settles through a token.Transferer you supply. It provides:
//
//   - Linear routes funded by the depositor at creation
//   - Invoice routes requested by the beneficiary and funded later by a payer
//   - Tiered or flat fees charged once, at funding time
//   - A registry that keeps per-network totals consistent with every route
//   - An off-chain mirror that previews the same math from observed state
//   - Lifecycle hooks, metrics and an audit trail via plugins
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/streams"
//	    "github.com/xraph/streams/store/memory"
//	    tokens "github.com/xraph/streams/token/memory"
//	)
//
//	engine := streams.New(memory.New(), tokens.New(),
//	    streams.WithNetwork(streams.NetworkConfig{
//	        Name:        "neo",
//	        FeeSchedule: fee.TieredSchedule,
//	        Escrow:      "escrow",
//	        Treasury:    "treasury",
//	    }),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Routes
//
// A linear route pays PayoutPerPeriod every PeriodSeconds, for at most
// MaxPeriods periods, until the deposit is used up:
//
//	r, err := engine.CreateRoute(ctx, streams.CreateRouteInput{
//	    Depositor:     "alice",
//	    Beneficiary:   "bob",
//	    Asset:         "gas",
//	    DepositAmount: 1200,
//	    Schedule: vesting.Schedule{
//	        PeriodSeconds:   30 * 24 * 3600,
//	        PayoutPerPeriod: 100,
//	        MaxPeriods:      12,
//	    },
//	})
//
// The depositor pays DepositAmount plus the fee. The beneficiary claims
// whatever has vested:
//
//	claim, err := engine.Claim(ctx, r.ID, "bob")
//
// # Invoices
//
// An invoice route is requested first and moves no tokens until the payer
// accepts it. The fee is taken out of the requested gross amount using the
// payer's tier at acceptance:
//
//	inv, err := engine.RequestInvoice(ctx, streams.RequestInvoiceInput{...})
//	inv, err = engine.AcceptInvoice(ctx, inv.ID, "carol", 0)
//
// A payer may instead decline, which is final.
//
// # Registry
//
// Every funded route is registered once. Per network the registry keeps
// the number of routes, the lifetime routed total and the amount still held
// in escrow; the last one always equals the sum of deposit minus claimed
// over all registered routes.
//
// # TypeID
//
// Routes, invoices and events use TypeIDs:
//
//	route_01h2xcejqtf2nbrexx3vqjhp41  // linear route
//	inv_01h455vb4pex5vsknk084sn02q    // invoice route
//	evt_01h455vb4pex5vsknk084sn02q    // lifecycle event
//
// Claim dispatches on the prefix, so callers rarely need to know which
// kind of route they hold.
package streams
