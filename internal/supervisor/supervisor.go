// Package supervisor implements the per-chain orchestrator: it starts the
// forward worker, reacts to newly-watched accounts by invoking the
// Rearranger and committing the revised backfill schedule, and keeps the
// set of running backfill workers in sync with that schedule.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/chaintrace/indexer/internal/backfillworker"
	"github.com/chaintrace/indexer/internal/blocksource"
	"github.com/chaintrace/indexer/internal/engine"
	"github.com/chaintrace/indexer/internal/filter"
	"github.com/chaintrace/indexer/internal/forwardworker"
	"github.com/chaintrace/indexer/internal/rearrange"
	"github.com/chaintrace/indexer/internal/store"
	"github.com/chaintrace/indexer/internal/watchset"
	"github.com/chaintrace/indexer/log"
)

// Supervisor owns one chain's forward worker and the pool of backfill
// workers servicing its pending jobs.
type Supervisor struct {
	ChainID            uint32
	Source             blocksource.Source
	Store              store.Interface
	Filter             *filter.Filter
	Watch              *watchset.WatchSet
	MaxBackfillWorkers int64
	PollInterval       time.Duration
	Log                log.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	sem     *semaphore.Weighted
}

func jobKey(j engine.BackfillJob) string {
	return fmt.Sprintf("%d-%d-%v", j.FromBlock, j.ToBlock, j.Addresses)
}

// Run primes the inclusion filter and watch-set from the store, starts the
// forward worker and one backfill worker per pending job, then blocks
// consuming AccountAdded events until ctx is cancelled or a component
// fails fatally.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.Log == nil {
		s.Log = log.Root()
	}
	if s.MaxBackfillWorkers <= 0 {
		s.MaxBackfillWorkers = 4
	}
	s.running = make(map[string]context.CancelFunc)
	s.sem = semaphore.NewWeighted(s.MaxBackfillWorkers)

	if err := s.prime(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fw := &forwardworker.Worker{
			ChainID:      s.ChainID,
			Source:       s.Source,
			Store:        s.Store,
			Filter:       s.Filter,
			Watch:        s.Watch,
			PollInterval: s.PollInterval,
			Log:          s.Log,
		}
		return fw.Run(gctx)
	})

	jobs, err := s.Store.PendingBackfillJobs(gctx, s.ChainID)
	if err != nil {
		return engine.Fatal(err)
	}
	for _, j := range jobs {
		s.spawnBackfill(gctx, g, j)
	}

	events := make(chan watchset.AccountAdded, 64)
	sub := s.Watch.Subscribe(events)
	defer sub.Unsubscribe()

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return engine.Cancelled(gctx.Err())
			case ev := <-events:
				if ev.ChainID != s.ChainID {
					continue
				}
				if err := s.handleAccountAdded(gctx, g, ev); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

func (s *Supervisor) prime(ctx context.Context) error {
	accounts, err := s.Store.Accounts(ctx, s.ChainID)
	if err != nil {
		return engine.Fatal(err)
	}
	for _, a := range accounts {
		s.Filter.Insert(a)
		s.Watch.Add(s.ChainID, a)
	}
	return nil
}

func (s *Supervisor) handleAccountAdded(ctx context.Context, g *errgroup.Group, ev watchset.AccountAdded) error {
	s.Filter.Insert(ev.Address)

	chains, err := s.Store.Chains(ctx)
	if err != nil {
		return engine.Fatal(err)
	}
	var lastKnown uint64
	var startBlock uint64
	for _, c := range chains {
		if c.ChainID == s.ChainID {
			lastKnown, startBlock = c.LastKnownBlock, c.StartBlock
		}
	}

	existing, err := s.Store.PendingBackfillJobs(ctx, s.ChainID)
	if err != nil {
		return engine.Fatal(err)
	}

	newJobs := rearrange.Rearrange(existing, rearrange.Request{
		ChainID:   s.ChainID,
		Addresses: []engine.Address{ev.Address},
		From:      startBlock,
		To:        lastKnown,
	})

	s.diffAndReconcile(ctx, g, newJobs)
	return nil
}

// diffAndReconcile cancels backfill workers whose job no longer exists in
// newJobs, persists newJobs as the chain's pending schedule, then spawns
// workers for any job not already running.
func (s *Supervisor) diffAndReconcile(ctx context.Context, g *errgroup.Group, newJobs []engine.BackfillJob) {
	newKeys := make(map[string]bool, len(newJobs))
	for _, j := range newJobs {
		newKeys[jobKey(j)] = true
	}

	s.mu.Lock()
	for k, cancel := range s.running {
		if !newKeys[k] {
			cancel()
			delete(s.running, k)
		}
	}
	s.mu.Unlock()

	if err := s.Store.ReplacePendingJobs(ctx, s.ChainID, newJobs); err != nil {
		s.Log.Error("failed to persist rearranged backfill schedule", "chain", s.ChainID, "err", err)
		return
	}

	persisted, err := s.Store.PendingBackfillJobs(ctx, s.ChainID)
	if err != nil {
		s.Log.Error("failed to reload backfill schedule", "chain", s.ChainID, "err", err)
		return
	}
	for _, j := range persisted {
		s.spawnBackfill(ctx, g, j)
	}
}

func (s *Supervisor) spawnBackfill(ctx context.Context, g *errgroup.Group, job engine.BackfillJob) {
	key := jobKey(job)

	s.mu.Lock()
	if _, already := s.running[key]; already {
		s.mu.Unlock()
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	s.running[key] = cancel
	s.mu.Unlock()

	g.Go(func() error {
		defer func() {
			s.mu.Lock()
			delete(s.running, key)
			s.mu.Unlock()
			cancel()
		}()

		if err := s.sem.Acquire(jobCtx, 1); err != nil {
			return nil // context cancelled while waiting for a slot
		}
		defer s.sem.Release(1)

		w := &backfillworker.Worker{Job: job, Source: s.Source, Store: s.Store, Log: s.Log}
		err := w.Run(jobCtx)
		if engine.Is(err, engine.KindCancelled) {
			return nil
		}
		return err
	})
}
