package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drainReversal/internal/model"
)

// Store mirrors deployment state and emitted logs into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables used by the store when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// UpsertPools inserts or updates pool headers and their token records.
func (s *Store) UpsertPools(ctx context.Context, chainID uint64, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	queued := 0
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, name, symbol, implementation_id, controller,
				pair, exit_fee_recipient, initialized, total_supply, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				implementation_id = EXCLUDED.implementation_id,
				controller = EXCLUDED.controller,
				pair = EXCLUDED.pair,
				exit_fee_recipient = EXCLUDED.exit_fee_recipient,
				initialized = EXCLUDED.initialized,
				total_supply = EXCLUDED.total_supply,
				updated_at = now()
		`,
			int64(chainID),
			pool.Address,
			pool.Name,
			pool.Symbol,
			pool.ImplementationID,
			pool.Controller,
			pool.Pair,
			pool.ExitFeeRecipient,
			pool.Initialized,
			pool.TotalSupply,
		)
		queued++
		for _, rec := range pool.Tokens {
			batch.Queue(`
				INSERT INTO pool_tokens (
					chain_id, pool_address, token, bound, ready, token_index,
					balance, current_weight, desired_weight, updated_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
				ON CONFLICT (chain_id, pool_address, token)
				DO UPDATE SET
					bound = EXCLUDED.bound,
					ready = EXCLUDED.ready,
					token_index = EXCLUDED.token_index,
					balance = EXCLUDED.balance,
					current_weight = EXCLUDED.current_weight,
					desired_weight = EXCLUDED.desired_weight,
					updated_at = now()
			`,
				int64(chainID),
				pool.Address,
				rec.Token,
				rec.Bound,
				rec.Ready,
				int(rec.Index),
				rec.Balance,
				rec.CurrentWeight,
				rec.DesiredWeight,
			)
			queued++
		}
	}
	return s.sendBatch(ctx, batch, queued)
}

// UpsertVaultSnapshots inserts or updates vault redemption snapshots.
func (s *Store) UpsertVaultSnapshots(ctx context.Context, chainID uint64, snaps []model.VaultSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(`
			INSERT INTO vault_snapshots (
				chain_id, position_id, pool_address, pair, supply,
				settlement_balance, claim_token_balance, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,now())
			ON CONFLICT (chain_id, position_id)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				pair = EXCLUDED.pair,
				supply = EXCLUDED.supply,
				settlement_balance = EXCLUDED.settlement_balance,
				claim_token_balance = EXCLUDED.claim_token_balance,
				updated_at = now()
		`,
			int64(chainID),
			snap.PoolID,
			snap.Pool,
			snap.Pair,
			snap.Supply,
			snap.SettlementBalance,
			snap.ClaimTokenBalance,
		)
	}
	return s.sendBatch(ctx, batch, len(snaps))
}

// UpsertImplementations records the registry bindings.
func (s *Store) UpsertImplementations(ctx context.Context, chainID uint64, bindings map[string]string) error {
	if len(bindings) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for id, addr := range bindings {
		batch.Queue(`
			INSERT INTO implementations (chain_id, implementation_id, address, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (chain_id, implementation_id)
			DO UPDATE SET address = EXCLUDED.address, updated_at = now()
		`, int64(chainID), id, addr)
	}
	return s.sendBatch(ctx, batch, len(bindings))
}

// PutLogBatch stores emitted logs. Re-inserting a log is a no-op.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, lr := range logs {
		batch.Queue(`
			INSERT INTO event_logs (
				chain_id, block_number, tx_hash, log_index, address,
				topics, data, caller, method, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(lr.ChainID),
			int64(lr.BlockNumber),
			lr.TxHash,
			int64(lr.LogIndex),
			lr.Address,
			lr.Topics,
			lr.Data,
			lr.Caller,
			lr.Method,
			lr.IngestedAt,
		)
	}
	return s.sendBatch(ctx, batch, len(logs))
}

// LoadWorld returns the world state saved under name.
func (s *Store) LoadWorld(ctx context.Context, name string) (*model.WorldState, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("state name required")
	}
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT world FROM world_state WHERE name=$1`, name)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var world model.WorldState
	if err := json.Unmarshal(raw, &world); err != nil {
		return nil, false, fmt.Errorf("decode world state: %w", err)
	}
	return &world, true, nil
}

// SaveWorld upserts the world state under name.
func (s *Store) SaveWorld(ctx context.Context, name string, world *model.WorldState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	if world == nil {
		return fmt.Errorf("world state is nil")
	}
	raw, err := json.Marshal(world)
	if err != nil {
		return fmt.Errorf("encode world state: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO world_state (name, block_number, world, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET block_number = EXCLUDED.block_number, world = EXCLUDED.world, updated_at = now()
	`, name, int64(world.BlockNumber), raw)
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
