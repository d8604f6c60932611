package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"drainReversal/internal/chain"
	"drainReversal/internal/events"
	"drainReversal/internal/model"
)

// RestrictedPool is the implementation of drained pools. It stays locked
// until every reserve is reinstated, charges no exit fee, and never lets
// claim tokens move into or out of the liquidity pair.
type RestrictedPool struct{}

var _ Implementation = RestrictedPool{}

// Initialize unlocks the pool once the held balance of every bound token
// equals its record. The pair's claim tokens move to vault.
func (RestrictedPool) Initialize(c *chain.Call, p Instance, vault, pair common.Address) error {
	s := p.Storage
	if s.Initialized {
		return model.ErrAlreadyInitialized
	}
	for _, token := range s.Tokens {
		rec := s.Records[token]
		held := c.BalanceOf(token, p.Address)
		if !held.Eq(rec.Balance) {
			return fmt.Errorf("%w: %s holds %s, record %s",
				model.ErrBalancesNotReinstated, token.Hex(), held.Dec(), rec.Balance.Dec())
		}
	}

	pairBalance := s.balanceOf(pair)
	s.setBalance(c, pair, new(uint256.Int))
	s.setBalance(c, vault, new(uint256.Int).Add(s.balanceOf(vault), pairBalance))
	if err := c.Emit(events.Transfer(p.Address, pair, vault, pairBalance)); err != nil {
		return err
	}
	s.setPair(c, pair)
	for _, token := range s.Tokens {
		rec := s.Records[token]
		rec.Ready = true
		s.setRecord(c, token, rec)
	}
	s.setInitialized(c)
	return c.Emit(events.Initialized(p.Address, vault, pair, pairBalance))
}

func (rp RestrictedPool) Transfer(c *chain.Call, p Instance, to common.Address, amount *uint256.Int) error {
	if err := rp.guard(p.Storage, c.Caller, to); err != nil {
		return err
	}
	return move(c, p, c.Caller, to, amount)
}

func (rp RestrictedPool) TransferFrom(c *chain.Call, p Instance, from, to common.Address, amount *uint256.Int) error {
	if err := rp.guard(p.Storage, from, to); err != nil {
		return err
	}
	if err := spendAllowance(c, p, from, amount); err != nil {
		return err
	}
	return move(c, p, from, to, amount)
}

func (RestrictedPool) Approve(c *chain.Call, p Instance, spender common.Address, allowance chain.Allowance) error {
	return approve(c, p, spender, allowance)
}

func (RestrictedPool) ExitPool(c *chain.Call, p Instance, claimAmount *uint256.Int, minAmountsOut []*uint256.Int) error {
	s := p.Storage
	if !s.Initialized {
		return model.ErrNotInitialized
	}
	if claimAmount.IsZero() {
		return model.ErrNullAmount
	}
	if len(minAmountsOut) != len(s.Tokens) {
		return fmt.Errorf("%w: %d minimums for %d tokens", model.ErrArrayLengthMismatch, len(minAmountsOut), len(s.Tokens))
	}
	plan, err := planExit(s, claimAmount, new(uint256.Int))
	if err != nil {
		return err
	}
	if err := checkMinimums(s, plan, minAmountsOut); err != nil {
		return err
	}
	return executeExit(c, p, c.Caller, plan)
}

func (RestrictedPool) ExitPoolTo(c *chain.Call, p Instance, recipient common.Address, claimAmount *uint256.Int) error {
	s := p.Storage
	if !s.Initialized {
		return model.ErrNotInitialized
	}
	if claimAmount.IsZero() {
		return model.ErrNullAmount
	}
	plan, err := planExit(s, claimAmount, new(uint256.Int))
	if err != nil {
		return err
	}
	return executeExit(c, p, recipient, plan)
}

func (RestrictedPool) ExitFee(Instance) *uint256.Int {
	return new(uint256.Int)
}

// guard runs before any other check, for every amount.
func (RestrictedPool) guard(s *Storage, from, to common.Address) error {
	if s.Pair != (common.Address{}) && (from == s.Pair || to == s.Pair) {
		return fmt.Errorf("%w: pair %s", model.ErrRestrictedTransfer, s.Pair.Hex())
	}
	if !s.Initialized {
		return model.ErrNotInitialized
	}
	return nil
}
