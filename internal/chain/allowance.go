package chain

import (
	"github.com/holiman/uint256"

	"drainReversal/internal/model"
)

// maxUint256 is the wire encoding of an unlimited allowance.
var maxUint256 = new(uint256.Int).SetAllOne()

// Allowance is either a finite amount or Unlimited. Unlimited allowances are
// never decremented by a spend.
type Allowance struct {
	amount    uint256.Int
	unlimited bool
}

// Unlimited is the allowance that covers every amount.
var Unlimited = Allowance{unlimited: true}

// Finite builds a bounded allowance.
func Finite(amount *uint256.Int) Allowance {
	var a Allowance
	if amount != nil {
		a.amount.Set(amount)
	}
	return a
}

// AllowanceFromAmount maps the wire value 2^256-1 to Unlimited.
func AllowanceFromAmount(amount *uint256.Int) Allowance {
	if amount != nil && amount.Eq(maxUint256) {
		return Unlimited
	}
	return Finite(amount)
}

// IsUnlimited reports whether the allowance is Unlimited.
func (a Allowance) IsUnlimited() bool {
	return a.unlimited
}

// Amount returns the wire value of the allowance.
func (a Allowance) Amount() *uint256.Int {
	if a.unlimited {
		return maxUint256.Clone()
	}
	return a.amount.Clone()
}

// Covers reports whether amount can be spent.
func (a Allowance) Covers(amount *uint256.Int) bool {
	return a.unlimited || !a.amount.Lt(amount)
}

// Spend returns the allowance left after spending amount.
func (a Allowance) Spend(amount *uint256.Int) (Allowance, error) {
	if a.unlimited {
		return a, nil
	}
	if a.amount.Lt(amount) {
		return a, model.ErrInsufficientAllowance
	}
	var left Allowance
	left.amount.Sub(&a.amount, amount)
	return left, nil
}
