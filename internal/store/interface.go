package store

import (
	"context"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/engine"
)

// Interface is the persistence contract the workers and supervisor depend
// on. *Store (Postgres) and *Memory (test fixture) both satisfy it.
type Interface interface {
	Chains(ctx context.Context) ([]engine.Chain, error)
	EnsureChain(ctx context.Context, chainID uint32, startBlock uint64) error
	Accounts(ctx context.Context, chainID uint32) ([]common.Address, error)
	AddAccount(ctx context.Context, chainID uint32, address common.Address) (bool, error)
	WriteBlockResult(ctx context.Context, chainID uint32, blockNumber uint64, txs []engine.Tx) error
	PendingBackfillJobs(ctx context.Context, chainID uint32) ([]engine.BackfillJob, error)
	ReplacePendingJobs(ctx context.Context, chainID uint32, jobs []engine.BackfillJob) error
	CheckpointBackfillJob(ctx context.Context, job engine.BackfillJob, blockNumber uint64, txs []engine.Tx) error
}

var (
	_ Interface = (*Store)(nil)
	_ Interface = (*Memory)(nil)
)
