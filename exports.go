package streams

import (
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages for simple calls.

// Address is re-exported from types package.
type Address = types.Address

// AssetID is re-exported from types package.
type AssetID = types.AssetID

// Schedule is re-exported from vesting package.
type Schedule = vesting.Schedule

// ID is the primary identifier type for routes, invoices and events.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// MaxAmount is the largest amount the engine accepts.
const MaxAmount = types.MaxAmount
