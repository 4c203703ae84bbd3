// Package forwardworker implements the single long-lived per-chain task
// that tails the chain tip, matching each new block against the current
// watch-set and the chain's inclusion filter.
package forwardworker

import (
	"context"
	"time"

	"github.com/chaintrace/indexer/common/backoff"
	"github.com/chaintrace/indexer/internal/blocksource"
	"github.com/chaintrace/indexer/internal/engine"
	"github.com/chaintrace/indexer/internal/filter"
	"github.com/chaintrace/indexer/internal/store"
	"github.com/chaintrace/indexer/internal/watchset"
	"github.com/chaintrace/indexer/log"
)

// State names the forward worker's position in its Idle/Fetching/
// Writing/Advancing loop, exposed for tests and diagnostics.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateWriting
	StateAdvancing
)

// Worker tails chainID from wherever the store's watermark left off.
type Worker struct {
	ChainID      uint32
	Source       blocksource.Source
	Store        store.Interface
	Filter       *filter.Filter
	Watch        *watchset.WatchSet
	PollInterval time.Duration
	Log          log.Logger

	state State
}

// Run blocks until ctx is cancelled or an unrecoverable error occurs. A
// cancelled context yields a KindCancelled error; callers should treat any
// other returned error as KindFatal for this chain.
func (w *Worker) Run(ctx context.Context) error {
	if w.Log == nil {
		w.Log = log.Root()
	}
	back := backoff.NewExponential(100*time.Millisecond, 30*time.Second, 0)

	n, err := w.resumeBlock(ctx)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return engine.Cancelled(ctx.Err())
		}

		w.state = StateFetching
		tip, err := w.Source.Tip(ctx, w.ChainID)
		if err != nil {
			return engine.Fatal(err)
		}
		if n > tip {
			w.state = StateIdle
			select {
			case <-ctx.Done():
				return engine.Cancelled(ctx.Err())
			case <-time.After(w.pollInterval()):
				continue
			}
		}

		block, err := w.Source.GetBlock(ctx, w.ChainID, n)
		if err != nil {
			if engine.Is(err, engine.KindTransient) {
				w.Log.Debug("block fetch transient failure, retrying", "chain", w.ChainID, "block", n, "err", err)
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

		w.state = StateWriting
		if err := w.processBlock(ctx, block); err != nil {
			return err
		}

		w.state = StateAdvancing
		n++
	}
}

func (w *Worker) resumeBlock(ctx context.Context) (uint64, error) {
	chains, err := w.Store.Chains(ctx)
	if err != nil {
		return 0, engine.Fatal(err)
	}
	for _, c := range chains {
		if c.ChainID == w.ChainID {
			return c.LastKnownBlock + 1, nil
		}
	}
	return 0, engine.Fatal(engine.ErrNotFound)
}

func (w *Worker) processBlock(ctx context.Context, block blocksource.Block) error {
	var txs []engine.Tx
	for _, t := range block.Transactions {
		for _, addr := range blocksource.ExtractedAddresses(t) {
			if !w.Filter.MaybeContains(addr) {
				continue
			}
			if !w.Watch.Contains(w.ChainID, addr) {
				continue
			}
			txs = append(txs, engine.Tx{
				Address:     addr,
				ChainID:     w.ChainID,
				Hash:        t.Hash,
				BlockNumber: block.Number,
			})
		}
	}
	if err := w.Store.WriteBlockResult(ctx, w.ChainID, block.Number, txs); err != nil {
		return err
	}
	if len(txs) > 0 {
		w.Log.Debug("recorded transactions", "chain", w.ChainID, "block", block.Number, "count", len(txs))
	}
	return nil
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return time.Second
	}
	return w.PollInterval
}

// State reports the worker's current position in its state machine.
func (w *Worker) State() State { return w.state }
