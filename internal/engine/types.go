// Package engine holds the data model shared by every indexer component:
// chains, watched accounts, recorded transactions, and pending backfill
// jobs, plus the error classification workers and the supervisor use to
// decide whether to retry, skip, or give up.
package engine

import (
	"time"

	"github.com/chaintrace/indexer/common"
)

// Address and Hash are the engine's view of the fixed-size identifiers
// defined in common; aliased here so engine types read naturally without
// importing common at every call site.
type (
	Address = common.Address
	Hash    = common.Hash
)

// Chain is the per-chain watermark row. StartBlock is the earliest block
// the indexer will ever consider; LastKnownBlock is the highest block the
// forward worker has durably processed and only ever moves forward.
type Chain struct {
	ChainID        uint32
	StartBlock     uint64
	LastKnownBlock uint64
	UpdatedAt      time.Time
}

// Account identifies a watched (address, chain) pair. Accounts are
// immutable once created; the engine never deletes them.
type Account struct {
	Address Address
	ChainID uint32
}

// Tx records that hash at BlockNumber involved Address on ChainID. The
// triple (Address, ChainID, Hash) is the primary key; writers upsert on
// conflict so retries and overlapping backfill ranges are idempotent.
type Tx struct {
	Address     Address
	ChainID     uint32
	Hash        Hash
	BlockNumber uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BackfillJob is a unit of historical work: scan [FromBlock, ToBlock] for
// activity involving any address in Addresses. ToBlock is decremented in
// place as the backfill worker walks the range in reverse, so it doubles
// as a durable checkpoint; the job is deleted once FromBlock > ToBlock.
type BackfillJob struct {
	ID         int64
	ChainID    uint32
	Addresses  []Address
	FromBlock  uint64
	ToBlock    uint64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Done reports whether the job's range has been fully consumed.
func (j BackfillJob) Done() bool {
	return j.FromBlock > j.ToBlock
}

// HasAddress reports whether addr is a member of the job's address set.
func (j BackfillJob) HasAddress(addr Address) bool {
	for _, a := range j.Addresses {
		if a == addr {
			return true
		}
	}
	return false
}
