package model

// VaultSnapshot is the persisted redemption snapshot of one pool inside the vault.
type VaultSnapshot struct {
	PoolID            string `json:"pool_id" mapstructure:"id"`
	Pool              string `json:"pool" mapstructure:"pool"`
	Pair              string `json:"pair" mapstructure:"pair"`
	Supply            string `json:"supply" mapstructure:"supply"`
	SettlementBalance string `json:"settlement_balance" mapstructure:"settlement-balance"`
	ClaimTokenBalance string `json:"claim_token_balance" mapstructure:"claim-token-balance"`
}

// ManifestEntry is one persisted restitution transfer.
type ManifestEntry struct {
	Token     string `json:"token" mapstructure:"token"`
	Recipient string `json:"recipient" mapstructure:"recipient"`
	Amount    string `json:"amount" mapstructure:"amount"`
}
