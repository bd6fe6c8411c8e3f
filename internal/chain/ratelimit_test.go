package chain_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewchain/reviewchain/internal/chain"
	"github.com/reviewchain/reviewchain/internal/chain/chaintest"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(10, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow("test"), "should allow request %d in burst", i)
	}
	assert.False(t, rl.Allow("test"), "should deny request after burst exhausted")
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(100, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, "test"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "test"))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRateLimiter_SeparateEndpoints(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(10, 2)

	assert.True(t, rl.Allow("https://rpc-amoy.polygon.technology"))
	assert.True(t, rl.Allow("https://rpc-amoy.polygon.technology"))
	assert.False(t, rl.Allow("https://rpc-amoy.polygon.technology"))

	assert.True(t, rl.Allow("https://polygon-rpc.com"))
	assert.True(t, rl.Allow("https://polygon-rpc.com"))
}

func TestRateLimiter_Unlimited(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, rl.Allow("test"))
	}
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(1, 1)
	require.NoError(t, rl.Wait(context.Background(), "test"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx, "test"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	rl := chain.NewRateLimiter(100, 100)

	var wg sync.WaitGroup
	successes := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			successes <- rl.Allow("test")
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for s := range successes {
		if s {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 90)
	assert.LessOrEqual(t, count, 110)
}

func TestLimitedBackend(t *testing.T) {
	t.Parallel()
	fake := chaintest.NewBackend(80002)
	addr := common.HexToAddress("0x01")
	fake.SetBalance(addr, big.NewInt(7))

	limited := chain.NewLimitedBackend(fake, chain.NewRateLimiter(1000, 100), "amoy")
	ctx := context.Background()

	id, err := limited.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(80002), id.Uint64())

	bal, err := limited.BalanceAt(ctx, addr, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), bal.Int64())

	assert.Equal(t, 1, fake.Calls("ChainID"))
	assert.Equal(t, 1, fake.Calls("BalanceAt"))

	limited.Close()
	assert.True(t, fake.Closed())
}

func TestLimitedBackendRespectsContext(t *testing.T) {
	t.Parallel()
	fake := chaintest.NewBackend(80002)
	rl := chain.NewRateLimiter(0.001, 1)
	limited := chain.NewLimitedBackend(fake, rl, "slow")

	_, err := limited.BlockNumber(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.BlockNumber(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, fake.Calls("BlockNumber"), "throttled call must not reach the backend")
}

func TestLimitedDialer(t *testing.T) {
	t.Parallel()
	fake := chaintest.NewBackend(1)
	dial := chain.LimitedDialer(func(context.Context, string) (chain.Backend, error) {
		return fake, nil
	}, chain.DefaultRateLimiter())

	b, err := dial(context.Background(), "https://rpc.example")
	require.NoError(t, err)
	_, ok := b.(*chain.LimitedBackend)
	assert.True(t, ok)
}
