package forwardworker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/blocksource"
	"github.com/chaintrace/indexer/internal/engine"
	"github.com/chaintrace/indexer/internal/filter"
	"github.com/chaintrace/indexer/internal/store"
	"github.com/chaintrace/indexer/internal/watchset"
)

// flakySource wraps a blocksource.Source and returns a transient failure for
// a chosen block number a bounded number of times before serving it for real.
type flakySource struct {
	blocksource.Source
	mu          sync.Mutex
	failBlock   uint64
	failsLeft   int
	failedCalls int
}

func (f *flakySource) GetBlock(ctx context.Context, chainID uint32, n uint64) (blocksource.Block, error) {
	f.mu.Lock()
	if n == f.failBlock && f.failsLeft > 0 {
		f.failsLeft--
		f.failedCalls++
		f.mu.Unlock()
		return blocksource.Block{}, engine.Transient(assert.AnError)
	}
	f.mu.Unlock()
	return f.Source.GetBlock(ctx, chainID, n)
}

func TestWorkerProcessesBlocksUntilTipThenStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	alice := common.BytesToAddress([]byte{1})
	mem := store.NewMemory()
	require.NoError(t, mem.EnsureChain(ctx, 1, 1))

	src := blocksource.NewMemory()
	hash1 := common.BytesToHash([]byte{0x01})
	src.PutBlock(1, blocksource.Block{Number: 1, Transactions: []blocksource.Transaction{
		{Hash: hash1, From: alice},
	}})
	src.SetTip(1, 1)

	f := filter.New(0.01)
	f.Insert(alice)
	ws := watchset.New()
	ws.Add(1, alice)

	w := &Worker{ChainID: 1, Source: src, Store: mem, Filter: f, Watch: ws, PollInterval: 10 * time.Millisecond}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return mem.TxCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	assert.Error(t, err)
}

func TestWorkerRetriesTransientFetchThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := common.BytesToAddress([]byte{1})
	mem := store.NewMemory()
	require.NoError(t, mem.EnsureChain(ctx, 1, 7))

	backing := blocksource.NewMemory()
	backing.PutBlock(1, blocksource.Block{Number: 7, Transactions: []blocksource.Transaction{
		{Hash: common.BytesToHash([]byte{0x07}), From: alice},
	}})
	backing.SetTip(1, 7)
	src := &flakySource{Source: backing, failBlock: 7, failsLeft: 3}

	f := filter.New(0.01)
	f.Insert(alice)
	ws := watchset.New()
	ws.Add(1, alice)

	w := &Worker{ChainID: 1, Source: src, Store: mem, Filter: f, Watch: ws, PollInterval: 10 * time.Millisecond}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return mem.TxCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, src.failedCalls, "worker must have retried the transient failure the expected number of times")

	chains, err := mem.Chains(ctx)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, uint64(7), chains[0].LastKnownBlock, "watermark must advance past block 7 exactly once")

	cancel()
	<-done
}

func TestWorkerSkipsUnwatchedAddresses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	alice := common.BytesToAddress([]byte{1})
	stranger := common.BytesToAddress([]byte{9})

	mem := store.NewMemory()
	require.NoError(t, mem.EnsureChain(ctx, 1, 1))

	src := blocksource.NewMemory()
	src.PutBlock(1, blocksource.Block{Number: 1, Transactions: []blocksource.Transaction{
		{Hash: common.BytesToHash([]byte{0x01}), From: stranger},
	}})
	src.SetTip(1, 1)

	f := filter.New(0.01)
	f.Insert(alice)
	ws := watchset.New()
	ws.Add(1, alice)

	w := &Worker{ChainID: 1, Source: src, Store: mem, Filter: f, Watch: ws, PollInterval: 10 * time.Millisecond}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		chains, _ := mem.Chains(ctx)
		return len(chains) == 1 && chains[0].LastKnownBlock >= 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, mem.TxCount())
	cancel()
	<-done
}
