// Package invoice models routes that are requested by their beneficiary and
// funded later by a third-party payer.
package invoice

import (
	"maps"
	"time"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// Status is the funding state of an invoice route.
type Status string

const (
	StatusPending  Status = "pending"
	StatusFunded   Status = "funded"
	StatusDeclined Status = "declined"
)

// Invoice is a two-phase route. Until it is funded, FeeAmount,
// DepositAmount and Schedule.Start are zero; they are fixed at funding time
// from the payer's tier and the funding timestamp.
type Invoice struct {
	types.Entity
	ID                   id.InvoiceID      `json:"id"`
	Network              string            `json:"network"`
	Asset                types.AssetID     `json:"asset"`
	Requester            types.Address     `json:"requester"`
	Beneficiary          types.Address     `json:"beneficiary"`
	Payer                types.Address     `json:"payer"`
	RequestedGrossAmount uint64            `json:"requested_gross_amount"`
	Schedule             vesting.Schedule  `json:"schedule"`
	FeeAmount            uint64            `json:"fee_amount"`
	DepositAmount        uint64            `json:"deposit_amount"`
	ClaimedAmount        uint64            `json:"claimed_amount"`
	Status               Status            `json:"status"`
	FundedAt             *time.Time        `json:"funded_at,omitempty"`
	DeclinedAt           *time.Time        `json:"declined_at,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// Funded reports whether the payer has accepted the invoice.
func (inv *Invoice) Funded() bool { return inv.Status == StatusFunded }

// Vested returns the unlocked portion of the net deposit. Unfunded invoices
// have nothing vested.
func (inv *Invoice) Vested(now int64) uint64 {
	if !inv.Funded() {
		return 0
	}
	return vesting.Vested(inv.Schedule, inv.DepositAmount, now)
}

// Claimable returns what the beneficiary may withdraw at now. It is always
// zero before funding.
func (inv *Invoice) Claimable(now int64) uint64 {
	if !inv.Funded() {
		return 0
	}
	return vesting.Claimable(inv.Schedule, inv.DepositAmount, inv.ClaimedAmount, now)
}

// Remaining is the escrowed balance not yet claimed.
func (inv *Invoice) Remaining() uint64 {
	return inv.DepositAmount - inv.ClaimedAmount
}

// Exhausted reports whether a funded invoice has been claimed in full.
func (inv *Invoice) Exhausted() bool {
	return inv.Funded() && inv.ClaimedAmount == inv.DepositAmount
}

// Clone returns a copy that shares no mutable state with inv.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	c.Metadata = maps.Clone(inv.Metadata)
	if inv.FundedAt != nil {
		t := *inv.FundedAt
		c.FundedAt = &t
	}
	if inv.DeclinedAt != nil {
		t := *inv.DeclinedAt
		c.DeclinedAt = &t
	}
	return &c
}
