// Package watchset holds the authoritative, in-memory set of watched
// (chain, address) pairs and broadcasts insertions so per-chain
// supervisors can react by scheduling backfill work.
package watchset

import (
	"sync"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/event"
)

// AccountAdded is published whenever a new address starts being watched
// on a chain. Re-adding an already-watched address publishes nothing.
type AccountAdded struct {
	ChainID uint32
	Address common.Address
}

// shrinkThreshold bounds how many deletions a per-chain set tolerates
// before its backing map is rebuilt. Accounts are never removed by this
// engine today, but the threshold keeps the type honest if that changes.
const shrinkThreshold = 1024

// WatchSet is the process-wide watched-address set, partitioned by chain.
// Reads (Contains, Snapshot) take a shared read lock; the single
// mutator path (Add) takes a write lock and publishes on feed.
type WatchSet struct {
	mu     sync.RWMutex
	chains map[uint32]*common.ShrinkingMap[common.Address, struct{}]
	feed   event.FeedOf[AccountAdded]
}

// New returns an empty WatchSet.
func New() *WatchSet {
	return &WatchSet{
		chains: make(map[uint32]*common.ShrinkingMap[common.Address, struct{}]),
	}
}

// Subscribe registers ch to receive AccountAdded events. The returned
// Subscription must be unsubscribed by the caller when done.
func (w *WatchSet) Subscribe(ch chan<- AccountAdded) event.Subscription {
	return w.feed.Subscribe(ch)
}

// Add marks address as watched on chainID. Returns true if this is a new
// addition (and publishes AccountAdded), false if the address was already
// watched (a no-op, satisfying the spec's idempotent-add requirement).
func (w *WatchSet) Add(chainID uint32, address common.Address) bool {
	w.mu.Lock()
	set, ok := w.chains[chainID]
	if !ok {
		set = common.NewShrinkingMap[common.Address, struct{}](shrinkThreshold)
		w.chains[chainID] = set
	}
	added := !set.Has(address)
	if added {
		set.Set(address, struct{}{})
	}
	w.mu.Unlock()

	if added {
		w.feed.Send(AccountAdded{ChainID: chainID, Address: address})
	}
	return added
}

// Contains reports whether address is currently watched on chainID.
func (w *WatchSet) Contains(chainID uint32, address common.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	set, ok := w.chains[chainID]
	if !ok {
		return false
	}
	return set.Has(address)
}

// Snapshot returns the addresses currently watched on chainID. The result
// is a copy and safe to use without holding any lock.
func (w *WatchSet) Snapshot(chainID uint32) []common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()

	set, ok := w.chains[chainID]
	if !ok {
		return nil
	}
	return set.Keys()
}
