// Package backfillworker implements the reverse-range walker that covers a
// single backfill job's block range for its address subset, checkpointing
// progress after every block so a restart never re-scans completed work.
package backfillworker

import (
	"context"
	"time"

	"github.com/chaintrace/indexer/common/backoff"
	"github.com/chaintrace/indexer/internal/blocksource"
	"github.com/chaintrace/indexer/internal/engine"
	"github.com/chaintrace/indexer/internal/filter"
	"github.com/chaintrace/indexer/internal/store"
	"github.com/chaintrace/indexer/log"
)

// Worker walks Job's range from ToBlock down to FromBlock, cooperatively
// honoring ctx cancellation only between block iterations — never
// mid-transaction.
type Worker struct {
	Job    engine.BackfillJob
	Source blocksource.Source
	Store  store.Interface
	Log    log.Logger

	// localFilter, when non-nil, tightens the inclusion gate to just this
	// job's addresses so an address watched elsewhere on the chain but
	// absent from this job's subset doesn't force a full match pass.
	localFilter *filter.Filter
}

// Run walks the job to completion or until ctx is cancelled at a block
// boundary. It returns the classified error on cancellation or a fatal
// source/store failure; it returns nil once the job's range is exhausted.
func (w *Worker) Run(ctx context.Context) error {
	if w.Log == nil {
		w.Log = log.Root()
	}
	w.localFilter = filter.New(0.01)
	for _, a := range w.Job.Addresses {
		w.localFilter.Insert(a)
	}

	back := backoff.NewExponential(100*time.Millisecond, 30*time.Second, 0)
	job := w.Job

	for !job.Done() {
		if ctx.Err() != nil {
			return engine.Cancelled(ctx.Err())
		}

		n := job.ToBlock
		block, err := w.Source.GetBlock(ctx, job.ChainID, n)
		if err != nil {
			if engine.Is(err, engine.KindTransient) {
				w.Log.Debug("backfill block fetch transient failure, retrying",
					"chain", job.ChainID, "job", job.ID, "block", n, "err", err)
				select {
				case <-ctx.Done():
					return engine.Cancelled(ctx.Err())
				case <-time.After(back.NextDuration()):
				}
				continue
			}
			return err
		}
		back.Reset()

		txs := w.matchBlock(job, block)
		if err := w.Store.CheckpointBackfillJob(ctx, job, n, txs); err != nil {
			return err
		}

		if n == 0 {
			break
		}
		job.ToBlock = n - 1
	}
	return nil
}

func (w *Worker) matchBlock(job engine.BackfillJob, block blocksource.Block) []engine.Tx {
	var txs []engine.Tx
	for _, t := range block.Transactions {
		for _, addr := range blocksource.ExtractedAddresses(t) {
			if !w.localFilter.MaybeContains(addr) {
				continue
			}
			if !job.HasAddress(addr) {
				continue
			}
			txs = append(txs, engine.Tx{
				Address:     addr,
				ChainID:     job.ChainID,
				Hash:        t.Hash,
				BlockNumber: block.Number,
			})
		}
	}
	return txs
}
