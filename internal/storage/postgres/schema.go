package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		implementation_id TEXT NOT NULL,
		controller TEXT NOT NULL,
		pair TEXT NOT NULL,
		exit_fee_recipient TEXT NOT NULL,
		initialized BOOLEAN NOT NULL,
		total_supply NUMERIC(78,0) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain_id, pool_address)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_tokens (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		token TEXT NOT NULL,
		bound BOOLEAN NOT NULL,
		ready BOOLEAN NOT NULL,
		token_index INT NOT NULL,
		balance NUMERIC(78,0) NOT NULL,
		current_weight NUMERIC(78,0) NOT NULL,
		desired_weight NUMERIC(78,0) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain_id, pool_address, token)
	)`,
	`CREATE TABLE IF NOT EXISTS vault_snapshots (
		chain_id BIGINT NOT NULL,
		position_id TEXT NOT NULL,
		pool_address TEXT NOT NULL,
		pair TEXT NOT NULL,
		supply NUMERIC(78,0) NOT NULL,
		settlement_balance NUMERIC(78,0) NOT NULL,
		claim_token_balance NUMERIC(78,0) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain_id, position_id)
	)`,
	`CREATE TABLE IF NOT EXISTS implementations (
		chain_id BIGINT NOT NULL,
		implementation_id TEXT NOT NULL,
		address TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain_id, implementation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		chain_id BIGINT NOT NULL,
		block_number BIGINT NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index BIGINT NOT NULL,
		address TEXT NOT NULL,
		topics TEXT[] NOT NULL,
		data TEXT NOT NULL,
		caller TEXT NOT NULL,
		method TEXT NOT NULL,
		ingested_at TEXT NOT NULL,
		PRIMARY KEY (chain_id, tx_hash, log_index)
	)`,
	`CREATE TABLE IF NOT EXISTS world_state (
		name TEXT PRIMARY KEY,
		block_number BIGINT NOT NULL,
		world JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}
