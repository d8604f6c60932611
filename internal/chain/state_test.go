package chain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"drainReversal/internal/model"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	weth   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000000011")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000022")
	carol  = common.HexToAddress("0x0000000000000000000000000000000000000033")
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s := NewState(1, nil)
	require.NoError(t, s.DeployToken(tokenA, "TKA", 18))
	require.NoError(t, s.SetBalance(tokenA, alice, uint256.NewInt(1000)))
	return s
}

func TestTransfer(t *testing.T) {
	t.Run("moves balance and emits log", func(t *testing.T) {
		s := newTestState(t)
		receipt, err := s.Execute(alice, "transfer", func(c *Call) error {
			return c.Transfer(tokenA, bob, uint256.NewInt(400))
		})
		require.NoError(t, err)
		require.Len(t, receipt.Logs, 1)
		require.Equal(t, tokenA, receipt.Logs[0].Address)
		require.Equal(t, uint64(1), receipt.BlockNumber)
		require.Equal(t, uint256.NewInt(600), s.BalanceOf(tokenA, alice))
		require.Equal(t, uint256.NewInt(400), s.BalanceOf(tokenA, bob))
		require.Equal(t, uint256.NewInt(1000), s.TotalSupply(tokenA))
	})
	t.Run("insufficient balance", func(t *testing.T) {
		s := newTestState(t)
		_, err := s.Execute(bob, "transfer", func(c *Call) error {
			return c.Transfer(tokenA, alice, uint256.NewInt(1))
		})
		require.ErrorIs(t, err, model.ErrTransferFailed)
		require.ErrorIs(t, err, model.ErrInsufficientBalance)
	})
	t.Run("unknown token", func(t *testing.T) {
		s := newTestState(t)
		_, err := s.Execute(alice, "transfer", func(c *Call) error {
			return c.Transfer(weth, bob, uint256.NewInt(1))
		})
		require.ErrorIs(t, err, model.ErrTransferFailed)
	})
}

func TestExecuteRevertsFailedCall(t *testing.T) {
	s := newTestState(t)
	boom := errors.New("boom")
	_, err := s.Execute(alice, "batch", func(c *Call) error {
		if err := c.Transfer(tokenA, bob, uint256.NewInt(100)); err != nil {
			return err
		}
		if err := c.Approve(tokenA, carol, Finite(uint256.NewInt(5))); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, uint256.NewInt(1000), s.BalanceOf(tokenA, alice))
	require.True(t, s.BalanceOf(tokenA, bob).IsZero())
	require.True(t, s.AllowanceOf(tokenA, alice, carol).Amount().IsZero())
	require.Empty(t, s.Receipts())
	require.Equal(t, uint64(0), s.BlockNumber())
}

func TestExecuteRevertsOnPanic(t *testing.T) {
	s := newTestState(t)
	require.Panics(t, func() {
		_, _ = s.Execute(alice, "panic", func(c *Call) error {
			if err := c.Transfer(tokenA, bob, uint256.NewInt(100)); err != nil {
				return err
			}
			panic("unexpected")
		})
	})
	require.Equal(t, uint256.NewInt(1000), s.BalanceOf(tokenA, alice))
	require.True(t, s.BalanceOf(tokenA, bob).IsZero())
}

func TestTransferFrom(t *testing.T) {
	t.Run("finite allowance is decremented", func(t *testing.T) {
		s := newTestState(t)
		require.NoError(t, s.SetAllowance(tokenA, alice, bob, Finite(uint256.NewInt(300))))
		_, err := s.Execute(bob, "transferFrom", func(c *Call) error {
			return c.TransferFrom(tokenA, alice, carol, uint256.NewInt(200))
		})
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(100), s.AllowanceOf(tokenA, alice, bob).Amount())
		require.Equal(t, uint256.NewInt(200), s.BalanceOf(tokenA, carol))
	})
	t.Run("unlimited allowance is untouched", func(t *testing.T) {
		s := newTestState(t)
		require.NoError(t, s.SetAllowance(tokenA, alice, bob, Unlimited))
		_, err := s.Execute(bob, "transferFrom", func(c *Call) error {
			return c.TransferFrom(tokenA, alice, carol, uint256.NewInt(1000))
		})
		require.NoError(t, err)
		require.True(t, s.AllowanceOf(tokenA, alice, bob).IsUnlimited())
	})
	t.Run("insufficient allowance", func(t *testing.T) {
		s := newTestState(t)
		require.NoError(t, s.SetAllowance(tokenA, alice, bob, Finite(uint256.NewInt(10))))
		_, err := s.Execute(bob, "transferFrom", func(c *Call) error {
			return c.TransferFrom(tokenA, alice, carol, uint256.NewInt(11))
		})
		require.ErrorIs(t, err, model.ErrTransferFailed)
		require.ErrorIs(t, err, model.ErrInsufficientAllowance)
		require.Equal(t, uint256.NewInt(10), s.AllowanceOf(tokenA, alice, bob).Amount())
	})
	t.Run("owner needs no allowance", func(t *testing.T) {
		s := newTestState(t)
		_, err := s.Execute(alice, "transferFrom", func(c *Call) error {
			return c.TransferFrom(tokenA, alice, carol, uint256.NewInt(5))
		})
		require.NoError(t, err)
	})
}

func TestBurnFrom(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetAllowance(tokenA, alice, bob, Finite(uint256.NewInt(250))))
	_, err := s.Execute(bob, "burn", func(c *Call) error {
		return c.BurnFrom(tokenA, alice, uint256.NewInt(250))
	})
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(750), s.BalanceOf(tokenA, alice))
	require.Equal(t, uint256.NewInt(750), s.TotalSupply(tokenA))
	require.True(t, s.AllowanceOf(tokenA, alice, bob).Amount().IsZero())
}

func TestUnwrap(t *testing.T) {
	s := NewState(1, nil)
	require.NoError(t, s.DeployToken(weth, "WETH", 18))
	s.SetWrapped(weth)
	require.NoError(t, s.SetBalance(weth, alice, uint256.NewInt(70)))
	s.SetNativeBalance(weth, uint256.NewInt(70))

	receipt, err := s.Execute(alice, "withdraw", func(c *Call) error {
		return c.Unwrap(uint256.NewInt(70))
	})
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 1)
	require.True(t, s.BalanceOf(weth, alice).IsZero())
	require.True(t, s.TotalSupply(weth).IsZero())
	require.Equal(t, uint256.NewInt(70), s.NativeBalance(alice))
	require.True(t, s.NativeBalance(weth).IsZero())
}

func TestReceiverObservesCommittedState(t *testing.T) {
	s := newTestState(t)
	var seen *uint256.Int
	s.SetReceiver(bob, func(c *Call, token, from common.Address, amount *uint256.Int) error {
		require.Equal(t, bob, c.Caller)
		require.Equal(t, alice, c.Origin)
		seen = c.BalanceOf(tokenA, alice)
		return c.Transfer(tokenA, carol, amount)
	})
	_, err := s.Execute(alice, "transfer", func(c *Call) error {
		return c.Transfer(tokenA, bob, uint256.NewInt(10))
	})
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(990), seen)
	require.Equal(t, uint256.NewInt(10), s.BalanceOf(tokenA, carol))

	s.SetReceiver(bob, func(*Call, common.Address, common.Address, *uint256.Int) error {
		return errors.New("rejected")
	})
	_, err = s.Execute(alice, "transfer", func(c *Call) error {
		return c.Transfer(tokenA, bob, uint256.NewInt(10))
	})
	require.Error(t, err)
	require.Equal(t, uint256.NewInt(990), s.BalanceOf(tokenA, alice))
}

func TestExportImport(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.SetAllowance(tokenA, alice, bob, Unlimited))
	require.NoError(t, s.SetAllowance(tokenA, alice, carol, Finite(uint256.NewInt(7))))
	s.SetNativeBalance(carol, uint256.NewInt(42))
	s.SetWrapped(tokenA)
	s.SetBlockNumber(9)

	var world model.WorldState
	s.Export(&world)

	restored := NewState(0, nil)
	require.NoError(t, restored.Import(world))
	require.Equal(t, uint64(1), restored.ChainID())
	require.Equal(t, uint64(9), restored.BlockNumber())
	require.Equal(t, tokenA, restored.Wrapped())
	require.Equal(t, uint256.NewInt(1000), restored.BalanceOf(tokenA, alice))
	require.Equal(t, uint256.NewInt(1000), restored.TotalSupply(tokenA))
	require.True(t, restored.AllowanceOf(tokenA, alice, bob).IsUnlimited())
	require.Equal(t, uint256.NewInt(7), restored.AllowanceOf(tokenA, alice, carol).Amount())
	require.Equal(t, uint256.NewInt(42), restored.NativeBalance(carol))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		err  bool
	}{
		{in: "", want: 0},
		{in: "1000", want: 1000},
		{in: "0x10", want: 16},
		{in: "-1", err: true},
		{in: "abc", err: true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.err {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.Uint64(), tc.in)
	}

	top, err := ParseAmount("0x" + "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	require.True(t, AllowanceFromAmount(top).IsUnlimited())

	_, err = ParseAmount("0x1" + "0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
}
