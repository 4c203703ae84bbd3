package rearrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/engine"
)

func addr(b byte) engine.Address { return common.BytesToAddress([]byte{b}) }

// S1: a single fresh account on an empty chain produces one job spanning
// the whole known range.
func TestRearrangeFreshAccount(t *testing.T) {
	alice := addr(1)
	jobs := Rearrange(nil, Request{ChainID: 1, Addresses: []engine.Address{alice}, From: 1, To: 10})

	require.Len(t, jobs, 1)
	assert.Equal(t, []engine.Address{alice}, jobs[0].Addresses)
	assert.Equal(t, uint64(1), jobs[0].FromBlock)
	assert.Equal(t, uint64(10), jobs[0].ToBlock)
}

// S3 (adapted): bob's job has already been checkpointed down to [1,5]
// (blocks 6-10 are done) by the time carol is added over the full known
// range [1,15]. The correct schedule must not reintroduce a job for
// blocks already completed for bob — it merges the shared prefix and
// assigns the remainder solely to carol.
func TestRearrangeOverlappingCheckpointedJob(t *testing.T) {
	bob := addr(2)
	carol := addr(3)
	existing := []engine.BackfillJob{
		{ChainID: 1, Addresses: []engine.Address{bob}, FromBlock: 1, ToBlock: 5},
	}

	jobs := Rearrange(existing, Request{ChainID: 1, Addresses: []engine.Address{carol}, From: 1, To: 15})

	require.Len(t, jobs, 2)
	assert.Equal(t, []engine.Address{bob, carol}, sortedCopy(jobs[0].Addresses))
	assert.Equal(t, uint64(1), jobs[0].FromBlock)
	assert.Equal(t, uint64(5), jobs[0].ToBlock)

	assert.Equal(t, []engine.Address{carol}, jobs[1].Addresses)
	assert.Equal(t, uint64(6), jobs[1].FromBlock)
	assert.Equal(t, uint64(15), jobs[1].ToBlock)
}

// S4: adding the same address twice yields the same schedule as adding it
// once, since the WatchSet suppresses the duplicate before it ever
// reaches the Rearranger.
func TestRearrangeDuplicateAddIsNoOp(t *testing.T) {
	alice := addr(1)
	once := Rearrange(nil, Request{ChainID: 1, Addresses: []engine.Address{alice}, From: 1, To: 10})

	// Simulate a duplicate add reaching Rearrange with an empty address
	// list (as the WatchSet would produce for an address it already has).
	twice := Rearrange(once, Request{ChainID: 1, Addresses: nil, From: 1, To: 10})
	assert.Equal(t, once, twice)
}

// L1: rearranging with an empty addition is idempotent on the schedule.
func TestRearrangeIdempotentOnEmptyAddition(t *testing.T) {
	alice := addr(1)
	jobs := Rearrange(nil, Request{ChainID: 1, Addresses: []engine.Address{alice}, From: 1, To: 10})
	again := Rearrange(jobs, Request{ChainID: 1})
	assert.Equal(t, jobs, again)
}

// L2: adding two different accounts over the same block range in either
// order covers the same (block, address) obligations.
func TestRearrangeCommutativeAdds(t *testing.T) {
	x := addr(1)
	y := addr(2)

	xThenY := Rearrange(nil, Request{ChainID: 1, Addresses: []engine.Address{x}, From: 1, To: 10})
	xThenY = Rearrange(xThenY, Request{ChainID: 1, Addresses: []engine.Address{y}, From: 1, To: 10})

	yThenX := Rearrange(nil, Request{ChainID: 1, Addresses: []engine.Address{y}, From: 1, To: 10})
	yThenX = Rearrange(yThenX, Request{ChainID: 1, Addresses: []engine.Address{x}, From: 1, To: 10})

	assert.Equal(t, obligationSet(xThenY), obligationSet(yThenX))
}

func TestRearrangeNoOverlapAcrossOutputJobs(t *testing.T) {
	a, b, c := addr(1), addr(2), addr(3)
	existing := []engine.BackfillJob{
		{ChainID: 1, Addresses: []engine.Address{a}, FromBlock: 1, ToBlock: 20},
	}
	jobs := Rearrange(existing, Request{ChainID: 1, Addresses: []engine.Address{b, c}, From: 5, To: 25})

	for i := 0; i < len(jobs); i++ {
		for j := i + 1; j < len(jobs); j++ {
			rangesOverlap := jobs[i].FromBlock <= jobs[j].ToBlock && jobs[j].FromBlock <= jobs[i].ToBlock
			if rangesOverlap {
				assert.False(t, sharesAddress(jobs[i].Addresses, jobs[j].Addresses),
					"jobs %+v and %+v overlap in range and share an address", jobs[i], jobs[j])
			}
		}
	}
}

func TestRearrangeSortedOutput(t *testing.T) {
	existing := []engine.BackfillJob{
		{ChainID: 1, Addresses: []engine.Address{addr(1)}, FromBlock: 10, ToBlock: 20},
	}
	jobs := Rearrange(existing, Request{ChainID: 1, Addresses: []engine.Address{addr(2)}, From: 1, To: 30})

	for i := 1; i < len(jobs); i++ {
		assert.True(t, jobs[i-1].FromBlock <= jobs[i].FromBlock)
	}
}

// --- test helpers ---

func sortedCopy(addrs []engine.Address) []engine.Address {
	out := append([]engine.Address(nil), addrs...)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if string(out[j][:]) < string(out[i][:]) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func sharesAddress(a, b []engine.Address) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

type obligationKey struct {
	block   uint64
	address engine.Address
}

func obligationSet(jobs []engine.BackfillJob) map[obligationKey]bool {
	out := make(map[obligationKey]bool)
	for _, j := range jobs {
		for b := j.FromBlock; b <= j.ToBlock; b++ {
			for _, a := range j.Addresses {
				out[obligationKey{block: b, address: a}] = true
			}
		}
	}
	return out
}
