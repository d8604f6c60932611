package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// tokenLedger is the storage of one plain ERC20 token.
type tokenLedger struct {
	symbol     string
	decimals   uint8
	supply     *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]Allowance
}

func newTokenLedger(symbol string, decimals uint8) *tokenLedger {
	return &tokenLedger{
		symbol:     symbol,
		decimals:   decimals,
		supply:     new(uint256.Int),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]Allowance),
	}
}

func (t *tokenLedger) balance(holder common.Address) *uint256.Int {
	if bal, ok := t.balances[holder]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (t *tokenLedger) setBalance(j *journal, holder common.Address, amount *uint256.Int) {
	prev, had := t.balances[holder]
	j.append(func() {
		if had {
			t.balances[holder] = prev
		} else {
			delete(t.balances, holder)
		}
	})
	t.balances[holder] = amount
}

func (t *tokenLedger) setSupply(j *journal, amount *uint256.Int) {
	prev := t.supply
	j.append(func() { t.supply = prev })
	t.supply = amount
}

func (t *tokenLedger) allowance(owner, spender common.Address) Allowance {
	if byOwner, ok := t.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return a
		}
	}
	return Finite(nil)
}

func (t *tokenLedger) setAllowance(owner, spender common.Address, a Allowance) {
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]Allowance)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = a
}

func (t *tokenLedger) putAllowance(j *journal, owner, spender common.Address, a Allowance) {
	prev := t.allowance(owner, spender)
	j.append(func() { t.setAllowance(owner, spender, prev) })
	t.setAllowance(owner, spender, a)
}
