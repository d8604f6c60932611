// Package bmath holds the fixed-point primitives every proportional
// calculation goes through. Values are unsigned 256-bit magnitudes scaled by
// Unit; both operations round half up.
package bmath

import (
	"github.com/holiman/uint256"

	"drainReversal/internal/model"
)

// Unit is the fixed-point one (1e18).
var Unit = uint256.NewInt(1_000_000_000_000_000_000)

var halfUnit = new(uint256.Int).Rsh(Unit, 1)

// ScaledMul returns (a*b + Unit/2) / Unit.
func ScaledMul(a, b *uint256.Int) (*uint256.Int, error) {
	c0, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, model.ErrArithmeticOverflow
	}
	c1, overflow := new(uint256.Int).AddOverflow(c0, halfUnit)
	if overflow {
		return nil, model.ErrArithmeticOverflow
	}
	return c1.Div(c1, Unit), nil
}

// ScaledDiv returns (a*Unit + b/2) / b.
func ScaledDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, model.ErrDivisionByZero
	}
	c0, overflow := new(uint256.Int).MulOverflow(a, Unit)
	if overflow {
		return nil, model.ErrArithmeticOverflow
	}
	half := new(uint256.Int).Rsh(b, 1)
	c1, overflow := new(uint256.Int).AddOverflow(c0, half)
	if overflow {
		return nil, model.ErrArithmeticOverflow
	}
	return c1.Div(c1, b), nil
}

// Share returns ScaledMul(ScaledDiv(part, whole), amount), the slice of amount
// owed to part out of whole.
func Share(part, whole, amount *uint256.Int) (*uint256.Int, error) {
	ratio, err := ScaledDiv(part, whole)
	if err != nil {
		return nil, err
	}
	return ScaledMul(ratio, amount)
}

// Sub returns a-b, failing with ErrInsufficientBalance when b > a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	out, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, model.ErrInsufficientBalance
	}
	return out, nil
}

// Add returns a+b, failing with ErrArithmeticOverflow past 2^256-1.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, model.ErrArithmeticOverflow
	}
	return out, nil
}
