package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"drainReversal/internal/chain"
	"drainReversal/internal/model"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	controller   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	stranger     = common.HexToAddress("0x0000000000000000000000000000000000000099")
	implA        = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	implB        = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func TestIDs(t *testing.T) {
	require.NotEqual(t, CorePoolID, SigmaPoolID)
	require.Equal(t, ID("IndexPool.sol"), CorePoolID)
}

func TestSetImplementation(t *testing.T) {
	state := chain.NewState(1, nil)
	reg := New[string](registryAddr, controller, nil)
	reg.Register(implA, "a")
	reg.Register(implB, "b")
	require.NoError(t, reg.Bind(CorePoolID, implA))

	t.Run("controller switches", func(t *testing.T) {
		receipt, err := state.Execute(controller, "setImplementation", func(c *chain.Call) error {
			return reg.SetImplementation(c, CorePoolID, implB)
		})
		require.NoError(t, err)
		require.Len(t, receipt.Logs, 1)
		impl, err := reg.Resolve(CorePoolID)
		require.NoError(t, err)
		require.Equal(t, "b", impl)
	})
	t.Run("stranger is rejected", func(t *testing.T) {
		_, err := state.Execute(stranger, "setImplementation", func(c *chain.Call) error {
			return reg.SetImplementation(c, CorePoolID, implA)
		})
		require.ErrorIs(t, err, model.ErrUnauthorized)
		addr, ok := reg.Implementation(CorePoolID)
		require.True(t, ok)
		require.Equal(t, implB, addr)
	})
	t.Run("unknown implementation", func(t *testing.T) {
		_, err := state.Execute(controller, "setImplementation", func(c *chain.Call) error {
			return reg.SetImplementation(c, CorePoolID, stranger)
		})
		require.ErrorIs(t, err, model.ErrUnknownImplementation)
	})
	t.Run("reverted call restores binding", func(t *testing.T) {
		_, err := state.Execute(controller, "setImplementation", func(c *chain.Call) error {
			if err := reg.SetImplementation(c, SigmaPoolID, implA); err != nil {
				return err
			}
			return model.ErrUnauthorized
		})
		require.Error(t, err)
		_, ok := reg.Implementation(SigmaPoolID)
		require.False(t, ok)
		_, err = reg.Resolve(SigmaPoolID)
		require.ErrorIs(t, err, model.ErrUnknownImplementation)
	})
}

func TestExportImport(t *testing.T) {
	reg := New[string](registryAddr, controller, nil)
	reg.Register(implA, "a")
	require.NoError(t, reg.Bind(SigmaPoolID, implA))

	restored := New[string](registryAddr, controller, nil)
	restored.Register(implA, "a")
	require.NoError(t, restored.Import(reg.Export()))
	impl, err := restored.Resolve(SigmaPoolID)
	require.NoError(t, err)
	require.Equal(t, "a", impl)
}

func TestRegisterTwicePanics(t *testing.T) {
	reg := New[int](registryAddr, controller, nil)
	reg.Register(implA, 1)
	require.Panics(t, func() { reg.Register(implA, 2) })
}
