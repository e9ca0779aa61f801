// Package token declares the transfer primitive the engine settles through.
// Implementations move balances atomically: a transfer either happens in
// full or fails without side effects.
package token

import (
	"context"

	"github.com/xraph/streams/types"
)

// Transferer moves amount of asset from one address to another. It fails
// with an error wrapping streams.ErrInsufficientFunds when from cannot
// cover amount.
type Transferer interface {
	Transfer(ctx context.Context, asset types.AssetID, from, to types.Address, amount uint64) error
}

// BalanceReader reports balances.
type BalanceReader interface {
	Balance(ctx context.Context, asset types.AssetID, addr types.Address) (uint64, error)
}

// Ledger is a Transferer that can also report balances.
type Ledger interface {
	Transferer
	BalanceReader
}
