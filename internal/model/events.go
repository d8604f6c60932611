package model

// TransferEventData is the decoded ERC20 Transfer payload.
type TransferEventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ApprovalEventData is the decoded ERC20 Approval payload.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// ExitEventData is the decoded pool LOG_EXIT payload, one per token out.
type ExitEventData struct {
	Caller    string `json:"caller"`
	TokenOut  string `json:"token_out"`
	AmountOut string `json:"amount_out"`
}

// RedeemedEventData is the decoded vault Redeemed payload.
type RedeemedEventData struct {
	PoolID        string `json:"pool_id"`
	Account       string `json:"account"`
	Burned        string `json:"burned"`
	SettlementOut string `json:"settlement_out"`
	ClaimTokenOut string `json:"claim_token_out"`
}

// InitializedEventData is the decoded pool Initialized payload.
type InitializedEventData struct {
	Vault       string `json:"vault"`
	Pair        string `json:"pair"`
	PairBalance string `json:"pair_balance"`
}

// ImplementationEventData is the decoded registry ImplementationSet payload.
type ImplementationEventData struct {
	ID             string `json:"id"`
	Implementation string `json:"implementation"`
}
