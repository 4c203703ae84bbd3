// Package blocksource defines the abstract provider of block data that the
// forward and backfill workers read from, and ships an in-memory
// implementation for tests and the standalone demo binary. A real
// on-disk-node-database-backed implementation is out of scope.
package blocksource

import (
	"context"

	"github.com/chaintrace/indexer/common"
)

// Log is a single EVM log entry: the emitting contract address plus up to
// four 32-byte topics.
type Log struct {
	Address common.Address
	Topics  []common.Hash
}

// Transaction is the subset of a transaction's fields the engine needs to
// decide whether it involves a watched address.
type Transaction struct {
	Hash common.Hash
	From common.Address
	To   *common.Address // nil for contract-creation transactions
	Logs []Log
}

// Block is one block's worth of transactions.
type Block struct {
	Number       uint64
	Transactions []Transaction
}

// Source provides read access to a chain's block and transaction data. A
// single Source instance is expected to be safe for concurrent use.
type Source interface {
	// GetBlock returns the block at number n on chainID. It returns a
	// classified error: KindTransient if n is not yet available (e.g.
	// ahead of what the source currently holds) or the read hiccuped,
	// KindCorruption if the stored data failed a structural check.
	GetBlock(ctx context.Context, chainID uint32, n uint64) (Block, error)

	// Tip returns the highest block number this source is currently
	// willing to serve for chainID.
	Tip(ctx context.Context, chainID uint32) (uint64, error)
}

// ExtractedAddresses returns every address appearing in tx's from/to slot,
// as the emitting contract address of any of its logs, or as the low 20
// bytes of any log topic at index >= 1, per the ERC-20/721
// indexed-argument convention. topics[0] (the event signature hash, not an
// address) is never treated as an address. Duplicates are not removed.
func ExtractedAddresses(tx Transaction) []common.Address {
	addrs := []common.Address{tx.From}
	if tx.To != nil {
		addrs = append(addrs, *tx.To)
	}
	for _, l := range tx.Logs {
		addrs = append(addrs, l.Address)
		for i, topic := range l.Topics {
			if i == 0 {
				continue
			}
			addrs = append(addrs, common.BytesToAddress(topic.Bytes()))
		}
	}
	return addrs
}
