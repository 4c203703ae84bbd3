package blocksource

import (
	"context"
	"fmt"
	"sync"

	"github.com/chaintrace/indexer/internal/engine"
)

// Memory is an in-memory Source fixture: blocks are preloaded by the
// caller (a test, or the demo CLI) and served back verbatim. PutBlock
// raises a chain's tip to the highest preloaded block number; SetTip
// overrides it until a later PutBlock of a higher block raises it again.
type Memory struct {
	mu     sync.RWMutex
	blocks map[uint32]map[uint64]Block
	tip    map[uint32]uint64
}

// NewMemory returns an empty Memory source.
func NewMemory() *Memory {
	return &Memory{
		blocks: make(map[uint32]map[uint64]Block),
		tip:    make(map[uint32]uint64),
	}
}

// PutBlock registers b as the block at its own Number for chainID, and
// advances the chain's tip if b.Number exceeds it.
func (m *Memory) PutBlock(chainID uint32, b Block) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.blocks[chainID] == nil {
		m.blocks[chainID] = make(map[uint64]Block)
	}
	m.blocks[chainID][b.Number] = b
	if b.Number > m.tip[chainID] {
		m.tip[chainID] = b.Number
	}
}

// SetTip overrides the tip reported for chainID, independent of which
// blocks have been preloaded. Useful for simulating a forward worker that
// is caught up to a tip whose blocks haven't been fetched yet.
func (m *Memory) SetTip(chainID uint32, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tip[chainID] = n
}

func (m *Memory) GetBlock(_ context.Context, chainID uint32, n uint64) (Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain, ok := m.blocks[chainID]
	if !ok {
		return Block{}, engine.Transient(fmt.Errorf("%w: chain %d", engine.ErrNotFound, chainID))
	}
	b, ok := chain[n]
	if !ok {
		return Block{}, engine.Transient(fmt.Errorf("%w: block %d", engine.ErrNotFound, n))
	}
	return b, nil
}

func (m *Memory) Tip(_ context.Context, chainID uint32) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tip[chainID], nil
}

var _ Source = (*Memory)(nil)
