// Package rearrange implements the pure scheduling function that rewrites
// a chain's pending backfill jobs whenever a new account starts being
// watched, so that no block range is ever scanned twice for an address
// subset it has already been scanned for.
package rearrange

import (
	"bytes"
	"sort"

	"github.com/chaintrace/indexer/internal/engine"
)

// Request describes a newly-added watch obligation: addresses must be
// scanned across [From, To] in addition to whatever the existing job set
// already covers.
type Request struct {
	ChainID   uint32
	Addresses []engine.Address
	From      uint64
	To        uint64
}

// obligation is an internal, uniform view of both pre-existing jobs and
// the new request: a set of addresses owed a scan across a block range.
type obligation struct {
	addresses []engine.Address
	from, to  uint64
}

// Rearrange computes the new pending job set for a chain given its
// existing jobs (reflecting any backfill-worker checkpoint progress
// already made) and a newly-added request. The result is the minimal set
// of address-disjoint-or-range-disjoint jobs that together cover every
// outstanding (block, address) obligation exactly once. Output jobs are
// sorted by (FromBlock, ToBlock) for determinism; IDs are left zero since
// job identity is assigned by the caller when persisting the replacement.
func Rearrange(existing []engine.BackfillJob, req Request) []engine.BackfillJob {
	obligations := make([]obligation, 0, len(existing)+1)
	for _, j := range existing {
		if j.Done() {
			continue
		}
		obligations = append(obligations, obligation{addresses: j.Addresses, from: j.FromBlock, to: j.ToBlock})
	}
	if len(req.Addresses) > 0 && req.From <= req.To {
		obligations = append(obligations, obligation{addresses: req.Addresses, from: req.From, to: req.To})
	}
	if len(obligations) == 0 {
		return nil
	}

	breakpoints := segmentBreakpoints(obligations)
	var jobs []engine.BackfillJob
	for i := 0; i+1 < len(breakpoints); i++ {
		lo, hi := breakpoints[i], breakpoints[i+1]-1
		addrs := unionAddresses(obligations, lo, hi)
		if len(addrs) == 0 {
			continue
		}

		if n := len(jobs); n > 0 {
			last := &jobs[n-1]
			if last.ToBlock+1 == lo && sameAddressSet(last.Addresses, addrs) {
				last.ToBlock = hi
				continue
			}
		}
		jobs = append(jobs, engine.BackfillJob{
			ChainID:   req.ChainID,
			Addresses: addrs,
			FromBlock: lo,
			ToBlock:   hi,
		})
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].FromBlock != jobs[j].FromBlock {
			return jobs[i].FromBlock < jobs[j].FromBlock
		}
		return jobs[i].ToBlock < jobs[j].ToBlock
	})
	return jobs
}

// segmentBreakpoints returns the sorted, deduplicated set of block numbers
// at which some obligation's range starts or ends+1. Consecutive
// breakpoints delimit a maximal elementary segment over which every
// obligation's membership is constant.
func segmentBreakpoints(obligations []obligation) []uint64 {
	set := make(map[uint64]struct{}, len(obligations)*2)
	for _, o := range obligations {
		set[o.from] = struct{}{}
		set[o.to+1] = struct{}{}
	}
	points := make([]uint64, 0, len(set))
	for p := range set {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	return points
}

// unionAddresses returns the sorted, deduplicated union of addresses owed
// a scan across every obligation whose range fully contains [lo, hi].
func unionAddresses(obligations []obligation, lo, hi uint64) []engine.Address {
	seen := make(map[engine.Address]struct{})
	for _, o := range obligations {
		if o.from <= lo && hi <= o.to {
			for _, a := range o.addresses {
				seen[a] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]engine.Address, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func sameAddressSet(a, b []engine.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
