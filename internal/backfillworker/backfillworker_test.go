package backfillworker

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
	"github.com/chaintrace/indexer/internal/store"
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

func TestWorkerWalksRangeInReverseAndCompletes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	alice := common.BytesToAddress([]byte{1})
	src := blocksource.NewMemory()
	for n := uint64(1); n <= 3; n++ {
		src.PutBlock(1, blocksource.Block{Number: n, Transactions: []blocksource.Transaction{
			{Hash: common.BytesToHash([]byte{byte(n)}), From: alice},
		}})
	}

	mem := store.NewMemory()
	require.NoError(t, mem.ReplacePendingJobs(ctx, 1, []engine.BackfillJob{
		{Addresses: []common.Address{alice}, FromBlock: 1, ToBlock: 3},
	}))
	jobs, err := mem.PendingBackfillJobs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	w := &Worker{Job: jobs[0], Source: src, Store: mem}
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, 3, mem.TxCount())
	remaining, err := mem.PendingBackfillJobs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, remaining, 0, "job must be deleted once its range is exhausted")
}

func TestWorkerIgnoresAddressesOutsideJobSubset(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	alice := common.BytesToAddress([]byte{1})
	bob := common.BytesToAddress([]byte{2})
	src := blocksource.NewMemory()
	src.PutBlock(1, blocksource.Block{Number: 1, Transactions: []blocksource.Transaction{
		{Hash: common.BytesToHash([]byte{0x01}), From: bob},
	}})

	mem := store.NewMemory()
	require.NoError(t, mem.ReplacePendingJobs(ctx, 1, []engine.BackfillJob{
		{Addresses: []common.Address{alice}, FromBlock: 1, ToBlock: 1},
	}))
	jobs, _ := mem.PendingBackfillJobs(ctx, 1)

	w := &Worker{Job: jobs[0], Source: src, Store: mem}
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 0, mem.TxCount())
}

func TestWorkerRetriesTransientFetchThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := common.BytesToAddress([]byte{1})
	mem := blocksource.NewMemory()
	for n := uint64(5); n <= 7; n++ {
		mem.PutBlock(1, blocksource.Block{Number: n, Transactions: []blocksource.Transaction{
			{Hash: common.BytesToHash([]byte{byte(n)}), From: alice},
		}})
	}
	src := &flakySource{Source: mem, failBlock: 7, failsLeft: 3}

	st := store.NewMemory()
	require.NoError(t, st.ReplacePendingJobs(ctx, 1, []engine.BackfillJob{
		{Addresses: []common.Address{alice}, FromBlock: 5, ToBlock: 7},
	}))
	jobs, err := st.PendingBackfillJobs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	w := &Worker{Job: jobs[0], Source: src, Store: st}
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, 3, src.failedCalls, "worker must have retried the transient failure the expected number of times")
	assert.Equal(t, 3, st.TxCount(), "block 7's transaction must be written exactly once despite the retries")

	remaining, err := st.PendingBackfillJobs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, remaining, 0, "job must be fully checkpointed and deleted once its range is exhausted")
}

func TestWorkerCancellationBetweenBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	alice := common.BytesToAddress([]byte{1})
	src := blocksource.NewMemory()
	for n := uint64(1); n <= 100; n++ {
		src.PutBlock(1, blocksource.Block{Number: n})
	}

	mem := store.NewMemory()
	require.NoError(t, mem.ReplacePendingJobs(ctx, 1, []engine.BackfillJob{
		{Addresses: []common.Address{alice}, FromBlock: 1, ToBlock: 100},
	}))
	jobs, _ := mem.PendingBackfillJobs(ctx, 1)

	cancel()
	w := &Worker{Job: jobs[0], Source: src, Store: mem}
	err := w.Run(ctx)
	require.Error(t, err)
	assert.True(t, engine.Is(err, engine.KindCancelled))
}
