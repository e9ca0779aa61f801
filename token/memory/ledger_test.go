package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streams"
	"github.com/xraph/streams/token/memory"
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	require.NoError(t, l.Mint("gas", "alice", 100))

	require.NoError(t, l.Transfer(ctx, "gas", "alice", "bob", 40))

	alice, _ := l.Balance(ctx, "gas", "alice")
	bob, _ := l.Balance(ctx, "gas", "bob")
	assert.Equal(t, uint64(60), alice)
	assert.Equal(t, uint64(40), bob)
	assert.Len(t, l.Transfers(), 1)
}

func TestTransferInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	require.NoError(t, l.Mint("gas", "alice", 10))

	err := l.Transfer(ctx, "gas", "alice", "bob", 11)
	require.ErrorIs(t, err, streams.ErrInsufficientFunds)

	alice, _ := l.Balance(ctx, "gas", "alice")
	assert.Equal(t, uint64(10), alice, "failed transfer must not move funds")
	assert.Empty(t, l.Transfers())
}

func TestAssetsAreIsolated(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	require.NoError(t, l.Mint("gas", "alice", 10))

	err := l.Transfer(ctx, "neo", "alice", "bob", 1)
	assert.ErrorIs(t, err, streams.ErrInsufficientFunds)
}

func TestConcurrentTransfersConserveSupply(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	require.NoError(t, l.Mint("gas", "alice", 1000))
	require.NoError(t, l.Mint("gas", "bob", 1000))

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = l.Transfer(ctx, "gas", "alice", "bob", 7)
			} else {
				_ = l.Transfer(ctx, "gas", "bob", "alice", 5)
			}
		}()
	}
	wg.Wait()

	alice, _ := l.Balance(ctx, "gas", "alice")
	bob, _ := l.Balance(ctx, "gas", "bob")
	assert.Equal(t, uint64(2000), alice+bob)
}
