package model

// WorldState is the persisted state of a whole deployment between CLI runs.
type WorldState struct {
	ChainID         uint64                 `json:"chain_id"`
	BlockNumber     uint64                 `json:"block_number"`
	Tokens          map[string]TokenLedger `json:"tokens"`
	Native          map[string]string      `json:"native"`
	Wrapped         string                 `json:"wrapped"`
	Pools           []Pool                 `json:"pools"`
	Vault           []VaultSnapshot        `json:"vault"`
	Implementations map[string]string      `json:"implementations"`
	UpdatedAt       string                 `json:"updated_at"`
}

// TokenLedger is the persisted state of one plain ERC20 token.
type TokenLedger struct {
	Symbol      string            `json:"symbol"`
	Decimals    uint8             `json:"decimals"`
	TotalSupply string            `json:"total_supply"`
	Balances    map[string]string `json:"balances"`
	Allowances  []Allowance       `json:"allowances"`
}
