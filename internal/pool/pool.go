package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"drainReversal/internal/bmath"
	"drainReversal/internal/chain"
	"drainReversal/internal/events"
	"drainReversal/internal/model"
)

// Instance is the pool an implementation is executing for: the proxy's
// address and the storage it owns.
type Instance struct {
	Address common.Address
	Storage *Storage
}

// Implementation is the code a pool proxy delegates to. The call carries the
// original caller; the instance carries the proxy's storage.
type Implementation interface {
	Initialize(c *chain.Call, p Instance, vault, pair common.Address) error
	Transfer(c *chain.Call, p Instance, to common.Address, amount *uint256.Int) error
	TransferFrom(c *chain.Call, p Instance, from, to common.Address, amount *uint256.Int) error
	Approve(c *chain.Call, p Instance, spender common.Address, allowance chain.Allowance) error
	ExitPool(c *chain.Call, p Instance, claimAmount *uint256.Int, minAmountsOut []*uint256.Int) error
	ExitPoolTo(c *chain.Call, p Instance, recipient common.Address, claimAmount *uint256.Int) error
	ExitFee(p Instance) *uint256.Int
}

func move(c *chain.Call, p Instance, from, to common.Address, amount *uint256.Int) error {
	s := p.Storage
	bal := s.balanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s transfer: %w", s.Symbol, model.ErrInsufficientBalance)
	}
	s.setBalance(c, from, bal.Sub(bal, amount))
	s.setBalance(c, to, new(uint256.Int).Add(s.balanceOf(to), amount))
	return c.Emit(events.Transfer(p.Address, from, to, amount))
}

// spendAllowance charges the caller's allowance from owner. Self-transfers
// and Unlimited allowances leave the allowance untouched and emit nothing.
func spendAllowance(c *chain.Call, p Instance, owner common.Address, amount *uint256.Int) error {
	if c.Caller == owner {
		return nil
	}
	s := p.Storage
	current := s.allowance(owner, c.Caller)
	left, err := current.Spend(amount)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrBadCaller, err)
	}
	if current.IsUnlimited() {
		return nil
	}
	s.putAllowance(c, owner, c.Caller, left)
	return c.Emit(events.Approval(p.Address, owner, c.Caller, left.Amount()))
}

func approve(c *chain.Call, p Instance, spender common.Address, allowance chain.Allowance) error {
	p.Storage.putAllowance(c, c.Caller, spender, allowance)
	return c.Emit(events.Approval(p.Address, c.Caller, spender, allowance.Amount()))
}

func burn(c *chain.Call, p Instance, from common.Address, amount *uint256.Int) error {
	s := p.Storage
	bal := s.balanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s burn: %w", s.Symbol, model.ErrInsufficientBalance)
	}
	s.setBalance(c, from, bal.Sub(bal, amount))
	s.setTotalSupply(c, new(uint256.Int).Sub(s.TotalSupply, amount))
	return c.Emit(events.Transfer(p.Address, from, common.Address{}, amount))
}

// exitPlan is the outcome of burning claim tokens against the reserves.
type exitPlan struct {
	fee     *uint256.Int
	burned  *uint256.Int
	amounts []*uint256.Int
}

// planExit computes, per bound token, ScaledMul(ScaledDiv(burned, supply), balance)
// where burned is claimAmount less the exit fee.
func planExit(s *Storage, claimAmount, exitFee *uint256.Int) (*exitPlan, error) {
	fee, err := bmath.ScaledMul(claimAmount, exitFee)
	if err != nil {
		return nil, err
	}
	burned, err := bmath.Sub(claimAmount, fee)
	if err != nil {
		return nil, err
	}
	ratio, err := bmath.ScaledDiv(burned, s.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("exit ratio: %w", err)
	}

	plan := &exitPlan{fee: fee, burned: burned, amounts: make([]*uint256.Int, len(s.Tokens))}
	for i, token := range s.Tokens {
		rec := s.Records[token]
		out, err := bmath.ScaledMul(ratio, rec.Balance)
		if err != nil {
			return nil, fmt.Errorf("exit %s: %w", token.Hex(), err)
		}
		plan.amounts[i] = out
	}
	return plan, nil
}

func checkMinimums(s *Storage, plan *exitPlan, minAmountsOut []*uint256.Int) error {
	for i, token := range s.Tokens {
		if minAmountsOut[i] != nil && plan.amounts[i].Lt(minAmountsOut[i]) {
			return fmt.Errorf("exit %s: got %s want %s: %w",
				token.Hex(), plan.amounts[i].Dec(), minAmountsOut[i].Dec(), model.ErrLimitExceeded)
		}
	}
	return nil
}

// executeExit commits the burn and every record decrement before pushing any
// underlying token, so a re-entrant call observes the reduced reserves.
func executeExit(c *chain.Call, p Instance, recipient common.Address, plan *exitPlan) error {
	s := p.Storage
	if !plan.fee.IsZero() {
		if err := move(c, p, c.Caller, s.ExitFeeRecipient, plan.fee); err != nil {
			return err
		}
	}
	if err := burn(c, p, c.Caller, plan.burned); err != nil {
		return err
	}

	for i, token := range s.Tokens {
		rec := s.Records[token]
		left, err := bmath.Sub(rec.Balance, plan.amounts[i])
		if err != nil {
			return fmt.Errorf("exit %s: %w", token.Hex(), err)
		}
		rec.Balance = left
		s.setRecord(c, token, rec)
		if err := c.Emit(events.Exit(p.Address, c.Caller, token, plan.amounts[i])); err != nil {
			return err
		}
	}

	self := c.As(p.Address)
	for i, token := range s.Tokens {
		if err := self.Transfer(token, recipient, plan.amounts[i]); err != nil {
			return err
		}
	}
	return nil
}
