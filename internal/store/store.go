// Package store is the relational persistence façade over the engine's
// four tables (chains, accounts, txs, backfill_jobs), backed by Postgres
// via pgx. Every mutating method that spans more than one row commits in
// a single transaction, matching the atomicity the forward/backfill
// workers and supervisor rely on.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chaintrace/indexer/common"
	"github.com/chaintrace/indexer/internal/engine"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and returns a ready Store. The caller owns
// the returned Store and must call Close when done.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, engine.Fatal(fmt.Errorf("open pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, engine.Fatal(fmt.Errorf("ping database: %w", err))
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Chains returns every declared chain row.
func (s *Store) Chains(ctx context.Context) ([]engine.Chain, error) {
	rows, err := s.pool.Query(ctx, `SELECT chain_id, start_block, last_known_block, updated_at FROM chains`)
	if err != nil {
		return nil, engine.Transient(fmt.Errorf("query chains: %w", err))
	}
	defer rows.Close()

	var out []engine.Chain
	for rows.Next() {
		var c engine.Chain
		if err := rows.Scan(&c.ChainID, &c.StartBlock, &c.LastKnownBlock, &c.UpdatedAt); err != nil {
			return nil, engine.Corruption(fmt.Errorf("scan chain row: %w", err))
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnsureChain inserts chainID with startBlock if it does not already
// exist; it never lowers an existing last_known_block.
func (s *Store) EnsureChain(ctx context.Context, chainID uint32, startBlock uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chains (chain_id, start_block, last_known_block)
		VALUES ($1, $2, $2 - 1)
		ON CONFLICT (chain_id) DO NOTHING`,
		chainID, startBlock)
	if err != nil {
		return engine.Transient(fmt.Errorf("ensure chain %d: %w", chainID, err))
	}
	return nil
}

// Accounts returns every watched address for chainID.
func (s *Store) Accounts(ctx context.Context, chainID uint32) ([]common.Address, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM accounts WHERE chain_id = $1`, chainID)
	if err != nil {
		return nil, engine.Transient(fmt.Errorf("query accounts: %w", err))
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, engine.Corruption(fmt.Errorf("scan account row: %w", err))
		}
		out = append(out, common.BytesToAddress(raw))
	}
	return out, rows.Err()
}

// AddAccount inserts (address, chainID) if absent, returning whether it was
// newly added. A primary-key conflict is treated as success, per the
// engine's idempotent-upsert policy.
func (s *Store) AddAccount(ctx context.Context, chainID uint32, address common.Address) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (address, chain_id) VALUES ($1, $2)
		ON CONFLICT (address, chain_id) DO NOTHING`,
		address.Bytes(), chainID)
	if err != nil {
		return false, engine.Transient(fmt.Errorf("add account: %w", err))
	}
	return tag.RowsAffected() > 0, nil
}

// WriteBlockResult durably advances chainID's watermark to blockNumber and
// upserts every tx in the same transaction, so a crash between the two can
// never leave the watermark ahead of what was actually recorded.
func (s *Store) WriteBlockResult(ctx context.Context, chainID uint32, blockNumber uint64, txs []engine.Tx) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return engine.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	for _, t := range txs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO txs (address, chain_id, hash, block_number)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (address, chain_id, hash) DO NOTHING`,
			t.Address.Bytes(), t.ChainID, t.Hash.Bytes(), t.BlockNumber); err != nil {
			return engine.Transient(fmt.Errorf("upsert tx: %w", err))
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chains SET last_known_block = $2, updated_at = now()
		WHERE chain_id = $1 AND last_known_block < $2`,
		chainID, blockNumber); err != nil {
		return engine.Transient(fmt.Errorf("advance watermark: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return engine.Transient(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// PendingBackfillJobs returns every undone backfill job for chainID.
func (s *Store) PendingBackfillJobs(ctx context.Context, chainID uint32) ([]engine.BackfillJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chain_id, addresses, from_block, to_block, created_at, updated_at
		FROM backfill_jobs WHERE chain_id = $1 ORDER BY from_block`,
		chainID)
	if err != nil {
		return nil, engine.Transient(fmt.Errorf("query backfill jobs: %w", err))
	}
	defer rows.Close()

	var out []engine.BackfillJob
	for rows.Next() {
		var j engine.BackfillJob
		var rawAddrs [][]byte
		if err := rows.Scan(&j.ID, &j.ChainID, &rawAddrs, &j.FromBlock, &j.ToBlock, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, engine.Corruption(fmt.Errorf("scan backfill job row: %w", err))
		}
		for _, raw := range rawAddrs {
			j.Addresses = append(j.Addresses, common.BytesToAddress(raw))
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ReplacePendingJobs atomically deletes every existing pending job for
// chainID and inserts replacements, the commit point for a Rearranger
// invocation.
func (s *Store) ReplacePendingJobs(ctx context.Context, chainID uint32, jobs []engine.BackfillJob) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return engine.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM backfill_jobs WHERE chain_id = $1`, chainID); err != nil {
		return engine.Transient(fmt.Errorf("clear backfill jobs: %w", err))
	}

	for _, j := range jobs {
		addrs := make([][]byte, len(j.Addresses))
		for i, a := range j.Addresses {
			addrs[i] = a.Bytes()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO backfill_jobs (chain_id, addresses, from_block, to_block)
			VALUES ($1, $2, $3, $4)`,
			chainID, addrs, j.FromBlock, j.ToBlock); err != nil {
			return engine.Transient(fmt.Errorf("insert backfill job: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return engine.Transient(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// CheckpointBackfillJob upserts txs found at blockNumber and moves the
// job's to_block checkpoint to blockNumber-1 in one transaction; if the
// new to_block would fall below from_block the job row is deleted instead.
func (s *Store) CheckpointBackfillJob(ctx context.Context, job engine.BackfillJob, blockNumber uint64, txs []engine.Tx) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return engine.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx)

	for _, t := range txs {
		if _, err := dbTx.Exec(ctx, `
			INSERT INTO txs (address, chain_id, hash, block_number)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (address, chain_id, hash) DO NOTHING`,
			t.Address.Bytes(), t.ChainID, t.Hash.Bytes(), t.BlockNumber); err != nil {
			return engine.Transient(fmt.Errorf("upsert tx: %w", err))
		}
	}

	if blockNumber == 0 || blockNumber-1 < job.FromBlock {
		if _, err := dbTx.Exec(ctx, `DELETE FROM backfill_jobs WHERE id = $1`, job.ID); err != nil {
			return engine.Transient(fmt.Errorf("delete completed backfill job: %w", err))
		}
	} else {
		if _, err := dbTx.Exec(ctx, `
			UPDATE backfill_jobs SET to_block = $2, updated_at = now() WHERE id = $1`,
			job.ID, blockNumber-1); err != nil {
			return engine.Transient(fmt.Errorf("checkpoint backfill job: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return engine.Transient(fmt.Errorf("commit: %w", err))
	}
	return nil
}
