package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"drainReversal/internal/chain"
	"drainReversal/internal/model"
)

// DefaultExitFee is the 0.5% exit fee charged by unaffected pools.
var DefaultExitFee = uint256.NewInt(5e15)

// IndexPool is the implementation used by pools that were not drained. Claim
// tokens move freely and exits pay the exit fee to the fee recipient.
type IndexPool struct{}

var _ Implementation = IndexPool{}

// Initialize is not part of the unaffected pool's surface.
func (IndexPool) Initialize(_ *chain.Call, p Instance, _, _ common.Address) error {
	if p.Storage.Initialized {
		return model.ErrAlreadyInitialized
	}
	return fmt.Errorf("%w: initialize", model.ErrUnsupported)
}

func (IndexPool) Transfer(c *chain.Call, p Instance, to common.Address, amount *uint256.Int) error {
	return move(c, p, c.Caller, to, amount)
}

func (IndexPool) TransferFrom(c *chain.Call, p Instance, from, to common.Address, amount *uint256.Int) error {
	if err := spendAllowance(c, p, from, amount); err != nil {
		return err
	}
	return move(c, p, from, to, amount)
}

func (IndexPool) Approve(c *chain.Call, p Instance, spender common.Address, allowance chain.Allowance) error {
	return approve(c, p, spender, allowance)
}

func (ip IndexPool) ExitPool(c *chain.Call, p Instance, claimAmount *uint256.Int, minAmountsOut []*uint256.Int) error {
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
	plan, err := planExit(s, claimAmount, ip.ExitFee(p))
	if err != nil {
		return err
	}
	if err := checkMinimums(s, plan, minAmountsOut); err != nil {
		return err
	}
	return executeExit(c, p, c.Caller, plan)
}

func (ip IndexPool) ExitPoolTo(c *chain.Call, p Instance, recipient common.Address, claimAmount *uint256.Int) error {
	s := p.Storage
	if !s.Initialized {
		return model.ErrNotInitialized
	}
	if claimAmount.IsZero() {
		return model.ErrNullAmount
	}
	plan, err := planExit(s, claimAmount, ip.ExitFee(p))
	if err != nil {
		return err
	}
	return executeExit(c, p, recipient, plan)
}

// ExitFee is zero when the pool has no fee recipient.
func (IndexPool) ExitFee(p Instance) *uint256.Int {
	if p.Storage.ExitFeeRecipient == (common.Address{}) {
		return new(uint256.Int)
	}
	return DefaultExitFee.Clone()
}
