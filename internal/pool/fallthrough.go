package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"drainReversal/internal/chain"
)

// FallThrough routes the drained pools to one implementation and every other
// pool sharing the same identifier to another.
type FallThrough struct {
	restricted map[common.Address]struct{}
	target     Implementation
	fallback   Implementation
}

var _ Implementation = (*FallThrough)(nil)

// NewFallThrough routes pools in restricted to target and the rest to fallback.
func NewFallThrough(restricted []common.Address, target, fallback Implementation) *FallThrough {
	set := make(map[common.Address]struct{}, len(restricted))
	for _, addr := range restricted {
		set[addr] = struct{}{}
	}
	return &FallThrough{restricted: set, target: target, fallback: fallback}
}

// Route returns the implementation that serves the pool at addr.
func (f *FallThrough) Route(addr common.Address) Implementation {
	if _, ok := f.restricted[addr]; ok {
		return f.target
	}
	return f.fallback
}

func (f *FallThrough) Initialize(c *chain.Call, p Instance, vault, pair common.Address) error {
	return f.Route(p.Address).Initialize(c, p, vault, pair)
}

func (f *FallThrough) Transfer(c *chain.Call, p Instance, to common.Address, amount *uint256.Int) error {
	return f.Route(p.Address).Transfer(c, p, to, amount)
}

func (f *FallThrough) TransferFrom(c *chain.Call, p Instance, from, to common.Address, amount *uint256.Int) error {
	return f.Route(p.Address).TransferFrom(c, p, from, to, amount)
}

func (f *FallThrough) Approve(c *chain.Call, p Instance, spender common.Address, allowance chain.Allowance) error {
	return f.Route(p.Address).Approve(c, p, spender, allowance)
}

func (f *FallThrough) ExitPool(c *chain.Call, p Instance, claimAmount *uint256.Int, minAmountsOut []*uint256.Int) error {
	return f.Route(p.Address).ExitPool(c, p, claimAmount, minAmountsOut)
}

func (f *FallThrough) ExitPoolTo(c *chain.Call, p Instance, recipient common.Address, claimAmount *uint256.Int) error {
	return f.Route(p.Address).ExitPoolTo(c, p, recipient, claimAmount)
}

func (f *FallThrough) ExitFee(p Instance) *uint256.Int {
	return f.Route(p.Address).ExitFee(p)
}
