package bmath

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"drainReversal/internal/model"
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), Unit)
}

func TestScaledMulRoundsHalfUp(t *testing.T) {
	cases := []struct {
		a, b, want *uint256.Int
	}{
		{ether(2), ether(3), ether(6)},
		{uint256.NewInt(1), new(uint256.Int).Rsh(Unit, 1), uint256.NewInt(1)},
		{uint256.NewInt(1), new(uint256.Int).SubUint64(new(uint256.Int).Rsh(Unit, 1), 1), uint256.NewInt(0)},
		{uint256.NewInt(0), ether(5), uint256.NewInt(0)},
	}
	for _, tc := range cases {
		got, err := ScaledMul(tc.a, tc.b)
		if err != nil {
			t.Fatalf("ScaledMul(%s, %s): %v", tc.a.Dec(), tc.b.Dec(), err)
		}
		if !got.Eq(tc.want) {
			t.Fatalf("ScaledMul(%s, %s) = %s, want %s", tc.a.Dec(), tc.b.Dec(), got.Dec(), tc.want.Dec())
		}
	}
}

func TestScaledDivRoundsHalfUp(t *testing.T) {
	got, err := ScaledDiv(uint256.NewInt(100), uint256.NewInt(1000))
	if err != nil {
		t.Fatalf("ScaledDiv: %v", err)
	}
	want := new(uint256.Int).Div(Unit, uint256.NewInt(10))
	if !got.Eq(want) {
		t.Fatalf("ScaledDiv(100, 1000) = %s, want %s", got.Dec(), want.Dec())
	}

	// 1/3 = 0.333...3 (truncates), 2/3 = 0.666...7 (rounds up).
	third, _ := ScaledDiv(uint256.NewInt(1), uint256.NewInt(3))
	if third.Dec() != "333333333333333333" {
		t.Fatalf("1/3 = %s", third.Dec())
	}
	twoThirds, _ := ScaledDiv(uint256.NewInt(2), uint256.NewInt(3))
	if twoThirds.Dec() != "666666666666666667" {
		t.Fatalf("2/3 = %s", twoThirds.Dec())
	}
}

func TestScaledDivByZero(t *testing.T) {
	if _, err := ScaledDiv(uint256.NewInt(1), uint256.NewInt(0)); !errors.Is(err, model.ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestOverflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	if _, err := ScaledMul(max, uint256.NewInt(2)); !errors.Is(err, model.ErrArithmeticOverflow) {
		t.Fatalf("ScaledMul overflow: got %v", err)
	}
	if _, err := ScaledMul(max, uint256.NewInt(1)); !errors.Is(err, model.ErrArithmeticOverflow) {
		t.Fatalf("ScaledMul rounding overflow: got %v", err)
	}
	if _, err := ScaledDiv(max, uint256.NewInt(1)); !errors.Is(err, model.ErrArithmeticOverflow) {
		t.Fatalf("ScaledDiv overflow: got %v", err)
	}
	if _, err := Add(max, uint256.NewInt(1)); !errors.Is(err, model.ErrArithmeticOverflow) {
		t.Fatalf("Add overflow: got %v", err)
	}
	if _, err := Sub(uint256.NewInt(1), uint256.NewInt(2)); !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("Sub underflow: got %v", err)
	}
}

func TestShare(t *testing.T) {
	got, err := Share(uint256.NewInt(100), uint256.NewInt(1000), uint256.NewInt(200))
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if got.Uint64() != 20 {
		t.Fatalf("Share = %s, want 20", got.Dec())
	}
}

func TestSharesReconstructWhole(t *testing.T) {
	supply := uint256.NewInt(1_000_000)
	reserve := uint256.NewInt(777_777_777)
	parts := []uint64{333_333, 333_333, 333_334}

	sum := new(uint256.Int)
	remainingSupply := supply.Clone()
	remainingReserve := reserve.Clone()
	for _, p := range parts {
		part := uint256.NewInt(p)
		out, err := Share(part, remainingSupply, remainingReserve)
		if err != nil {
			t.Fatalf("Share: %v", err)
		}
		sum.Add(sum, out)
		remainingSupply.Sub(remainingSupply, part)
		remainingReserve.Sub(remainingReserve, out)
	}

	diff := new(uint256.Int)
	if sum.Gt(reserve) {
		diff.Sub(sum, reserve)
	} else {
		diff.Sub(reserve, sum)
	}
	if diff.Gt(Unit) {
		t.Fatalf("sum of shares %s drifted from reserve %s", sum.Dec(), reserve.Dec())
	}
}
