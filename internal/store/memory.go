package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/engine"
)

// Memory is an in-process Interface implementation for tests that don't
// need a real Postgres instance. It applies the same transactional
// grouping as Store (a write either fully lands or, since it never
// partially executes, can't be observed half-done) but has no real commit
// boundary of its own.
type Memory struct {
	mu       sync.Mutex
	chains   map[uint32]engine.Chain
	accounts map[uint32]map[common.Address]struct{}
	txs      map[common.Address]map[uint32]map[common.Hash]engine.Tx
	jobs     map[uint32][]engine.BackfillJob
	nextID   int64
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		chains:   make(map[uint32]engine.Chain),
		accounts: make(map[uint32]map[common.Address]struct{}),
		txs:      make(map[common.Address]map[uint32]map[common.Hash]engine.Tx),
		jobs:     make(map[uint32][]engine.BackfillJob),
	}
}

func (m *Memory) Chains(_ context.Context) ([]engine.Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]engine.Chain, 0, len(m.chains))
	for _, c := range m.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out, nil
}

func (m *Memory) EnsureChain(_ context.Context, chainID uint32, startBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chains[chainID]; ok {
		return nil
	}
	var lastKnown uint64
	if startBlock > 0 {
		lastKnown = startBlock - 1
	}
	m.chains[chainID] = engine.Chain{ChainID: chainID, StartBlock: startBlock, LastKnownBlock: lastKnown, UpdatedAt: time.Time{}}
	return nil
}

func (m *Memory) Accounts(_ context.Context, chainID uint32) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.accounts[chainID]
	out := make([]common.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) AddAccount(_ context.Context, chainID uint32, address common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accounts[chainID] == nil {
		m.accounts[chainID] = make(map[common.Address]struct{})
	}
	if _, ok := m.accounts[chainID][address]; ok {
		return false, nil
	}
	m.accounts[chainID][address] = struct{}{}
	return true, nil
}

func (m *Memory) WriteBlockResult(_ context.Context, chainID uint32, blockNumber uint64, txs []engine.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putTxsLocked(chainID, txs)

	c := m.chains[chainID]
	if blockNumber > c.LastKnownBlock {
		c.LastKnownBlock = blockNumber
		c.ChainID = chainID
		m.chains[chainID] = c
	}
	return nil
}

func (m *Memory) PendingBackfillJobs(_ context.Context, chainID uint32) ([]engine.BackfillJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]engine.BackfillJob(nil), m.jobs[chainID]...), nil
}

func (m *Memory) ReplacePendingJobs(_ context.Context, chainID uint32, jobs []engine.BackfillJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	replacement := make([]engine.BackfillJob, len(jobs))
	for i, j := range jobs {
		m.nextID++
		j.ID = m.nextID
		j.ChainID = chainID
		replacement[i] = j
	}
	m.jobs[chainID] = replacement
	return nil
}

func (m *Memory) CheckpointBackfillJob(_ context.Context, job engine.BackfillJob, blockNumber uint64, txs []engine.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putTxsLocked(job.ChainID, txs)

	jobs := m.jobs[job.ChainID]
	for i, j := range jobs {
		if j.ID != job.ID {
			continue
		}
		if blockNumber == 0 || blockNumber-1 < j.FromBlock {
			m.jobs[job.ChainID] = append(jobs[:i], jobs[i+1:]...)
		} else {
			jobs[i].ToBlock = blockNumber - 1
		}
		return nil
	}
	return nil
}

func (m *Memory) putTxsLocked(chainID uint32, txs []engine.Tx) {
	for _, t := range txs {
		if m.txs[t.Address] == nil {
			m.txs[t.Address] = make(map[uint32]map[common.Hash]engine.Tx)
		}
		if m.txs[t.Address][chainID] == nil {
			m.txs[t.Address][chainID] = make(map[common.Hash]engine.Tx)
		}
		m.txs[t.Address][chainID][t.Hash] = t
	}
}

// TxCount returns how many distinct (address, chainID, hash) rows have been
// recorded, for test assertions.
func (m *Memory) TxCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, byChain := range m.txs {
		for _, byHash := range byChain {
			n += len(byHash)
		}
	}
	return n
}
