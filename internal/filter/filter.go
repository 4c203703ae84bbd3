// Package filter implements the scalable inclusion filter used to cheaply
// reject blocks that involve no watched address before the expensive
// per-transaction match pass runs.
package filter

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	bloomfilter "github.com/holiman/bloomfilter/v2"

	"github.com/chaintrace/indexer/common"
)

// defaultLayerCapacity is the number of elements the first layer is sized
// for; later layers double this each time a new one is added.
const defaultLayerCapacity = 1 << 16

// Filter is a scalable approximate-membership set of addresses. It never
// forgets an inserted address (false negatives are impossible), tolerates
// a bounded false-positive rate, and grows automatically as more addresses
// are inserted than the current layer was sized for.
//
// A Filter is safe for concurrent use: inserts take an exclusive lock,
// lookups only a read lock.
type Filter struct {
	mu         sync.RWMutex
	targetFPR  float64
	layers     []*bloomfilter.Filter
	layerCount []uint64 // elements inserted into the corresponding layer
	layerCap   []uint64 // capacity the corresponding layer was sized for
}

// New returns an empty Filter targeting the given false-positive rate
// (e.g. 0.01 for 1%). targetFPR must be in (0, 1); a non-positive or >=1
// value is clamped to 0.01.
func New(targetFPR float64) *Filter {
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}
	f := &Filter{targetFPR: targetFPR}
	f.addLayer(defaultLayerCapacity)
	return f
}

func (f *Filter) addLayer(capacity uint64) {
	layer, err := bloomfilter.NewOptimal(capacity, f.targetFPR)
	if err != nil {
		// NewOptimal only fails for a degenerate (zero) capacity or FPR,
		// both of which New above already guards against.
		panic(err)
	}
	f.layers = append(f.layers, layer)
	f.layerCount = append(f.layerCount, 0)
	f.layerCap = append(f.layerCap, capacity)
}

// Insert adds addr to the filter. Idempotent for membership: inserting the
// same address twice changes no lookup result. Every call, repeated or not,
// counts toward the newest layer's capacity and so can add a new layer.
func (f *Filter) Insert(addr common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()

	newest := len(f.layers) - 1
	if f.layerCount[newest] >= f.layerCap[newest] {
		f.addLayer(f.layerCap[newest] * 2)
		newest = len(f.layers) - 1
	}
	f.layers[newest].Add(addrHash(addr))
	f.layerCount[newest]++
}

// MaybeContains reports whether addr may have been inserted. It never
// returns false for an address that was in fact inserted; it may return
// true for one that was not (a false positive), bounded by the configured
// target false-positive rate per layer.
func (f *Filter) MaybeContains(addr common.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h := addrHash(addr)
	for _, layer := range f.layers {
		if layer.Contains(h) {
			return true
		}
	}
	return false
}

// Layers reports the number of bloom filter layers currently backing the
// filter, for diagnostics and tests.
func (f *Filter) Layers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.layers)
}

func addrHash(addr common.Address) *xxhash.Digest {
	d := xxhash.New()
	_, _ = d.Write(addr.Bytes())
	return d
}
