// Package memory provides an in-process token ledger for tests, previews
// and single-node deployments.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/xraph/streams"
	"github.com/xraph/streams/token"
	"github.com/xraph/streams/types"
)

var _ token.Ledger = (*Ledger)(nil)

// Transfer is one settled movement, kept for inspection.
type Transfer struct {
	Asset  types.AssetID
	From   types.Address
	To     types.Address
	Amount uint64
	At     time.Time
}

// Ledger holds balances per asset and address.
type Ledger struct {
	mu        sync.Mutex
	balances  map[types.AssetID]map[types.Address]uint64
	transfers []Transfer
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[types.AssetID]map[types.Address]uint64),
	}
}

// Mint credits amount to addr out of thin air.
func (l *Ledger) Mint(asset types.AssetID, addr types.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.account(asset)
	if bal[addr] > math.MaxUint64-amount {
		return fmt.Errorf("token/memory: mint %d %s to %s overflows balance", amount, asset, addr)
	}
	bal[addr] += amount
	return nil
}

// Transfer implements token.Transferer.
func (l *Ledger) Transfer(_ context.Context, asset types.AssetID, from, to types.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.account(asset)
	if bal[from] < amount {
		return fmt.Errorf("%w: %s holds %d %s, needs %d",
			streams.ErrInsufficientFunds, from, bal[from], asset, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	bal[from] -= amount
	bal[to] += amount
	l.transfers = append(l.transfers, Transfer{
		Asset:  asset,
		From:   from,
		To:     to,
		Amount: amount,
		At:     time.Now().UTC(),
	})
	return nil
}

// Balance implements token.BalanceReader.
func (l *Ledger) Balance(_ context.Context, asset types.AssetID, addr types.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[asset][addr], nil
}

// Transfers returns a copy of the settled transfer log.
func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Transfer, len(l.transfers))
	copy(out, l.transfers)
	return out
}

func (l *Ledger) account(asset types.AssetID) map[types.Address]uint64 {
	bal, ok := l.balances[asset]
	if !ok {
		bal = make(map[types.Address]uint64)
		l.balances[asset] = bal
	}
	return bal
}
