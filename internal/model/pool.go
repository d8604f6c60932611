package model

// Pool is the persisted layout of one pool proxy.
type Pool struct {
	Address          string            `json:"address" mapstructure:"address"`
	Name             string            `json:"name" mapstructure:"name"`
	Symbol           string            `json:"symbol" mapstructure:"symbol"`
	ImplementationID string            `json:"implementation_id" mapstructure:"implementation"`
	Controller       string            `json:"controller" mapstructure:"controller"`
	SwapFee          string            `json:"swap_fee" mapstructure:"swap-fee"`
	ExitFeeRecipient string            `json:"exit_fee_recipient" mapstructure:"exit-fee-recipient"`
	Pair             string            `json:"pair" mapstructure:"pair"`
	Initialized      bool              `json:"initialized" mapstructure:"initialized"`
	TotalSupply      string            `json:"total_supply" mapstructure:"total-supply"`
	Tokens           []TokenRecord     `json:"tokens" mapstructure:"tokens"`
	Balances         map[string]string `json:"balances" mapstructure:"balances"`
	Allowances       []Allowance       `json:"allowances" mapstructure:"allowances"`
}

// TokenRecord is the persisted reserve record of one bound token.
type TokenRecord struct {
	Token                string `json:"token" mapstructure:"token"`
	Bound                bool   `json:"bound" mapstructure:"bound"`
	Ready                bool   `json:"ready" mapstructure:"ready"`
	LastWeightUpdateTime uint64 `json:"last_weight_update_time" mapstructure:"last-weight-update-time"`
	CurrentWeight        string `json:"current_weight" mapstructure:"current-weight"`
	DesiredWeight        string `json:"desired_weight" mapstructure:"desired-weight"`
	Index                uint8  `json:"index" mapstructure:"index"`
	Balance              string `json:"balance" mapstructure:"balance"`
}

// Allowance is a persisted approval. Unlimited approvals carry no amount.
type Allowance struct {
	Owner     string `json:"owner" mapstructure:"owner"`
	Spender   string `json:"spender" mapstructure:"spender"`
	Amount    string `json:"amount,omitempty" mapstructure:"amount"`
	Unlimited bool   `json:"unlimited,omitempty" mapstructure:"unlimited"`
}
