package deployment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"drainReversal/internal/chain"
	"drainReversal/internal/config"
	"drainReversal/internal/model"
	"drainReversal/internal/registry"
	"drainReversal/internal/restitution"
)

const deploymentYAML = `
chain-id: 1
controller: "0x00000000000000000000000000000000000000c0"
registry: "0x00000000000000000000000000000000000000f0"
tokens:
  - address: "0x00000000000000000000000000000000000000a1"
    symbol: WETH
    decimals: 18
    wrapped: true
    balances:
      "0x0000000000000000000000000000000000000c02": "5"
  - address: "0x00000000000000000000000000000000000000a2"
    symbol: AAA
    decimals: 18
    balances:
      "0x0000000000000000000000000000000000000011": "1000"
    allowances:
      - owner: "0x0000000000000000000000000000000000000011"
        spender: "0x0000000000000000000000000000000000000c01"
        unlimited: true
  - address: "0x00000000000000000000000000000000000000a3"
    symbol: BBB
    decimals: 18
    balances:
      "0x0000000000000000000000000000000000000b01": "100"
      "0x0000000000000000000000000000000000000b02": "50"
  - address: "0x0000000000000000000000000000000000000d01"
    symbol: UNI-V2
    decimals: 18
    balances:
      "0x0000000000000000000000000000000000000012": "10"
    allowances:
      - owner: "0x0000000000000000000000000000000000000012"
        spender: "0x0000000000000000000000000000000000000c02"
        unlimited: true
native:
  "0x00000000000000000000000000000000000000a1": "5"
implementations:
  - address: "0x0000000000000000000000000000000000000e01"
    kind: index
  - address: "0x0000000000000000000000000000000000000e02"
    kind: restricted
  - address: "0x0000000000000000000000000000000000000e03"
    kind: fallthrough
    restricted: ["0x0000000000000000000000000000000000000b01"]
    target: "0x0000000000000000000000000000000000000e02"
    fallback: "0x0000000000000000000000000000000000000e01"
bindings:
  - name: IndexPool.sol
    implementation: "0x0000000000000000000000000000000000000e03"
  - name: SigmaIndexPoolV1.sol
    implementation: "0x0000000000000000000000000000000000000e03"
pools:
  - address: "0x0000000000000000000000000000000000000b01"
    name: Drained Index
    symbol: DRN
    implementation: IndexPool.sol
    pair: "0x0000000000000000000000000000000000000d01"
    tokens:
      - token: "0x00000000000000000000000000000000000000a2"
        balance: "400"
      - token: "0x00000000000000000000000000000000000000a3"
        balance: "100"
    balances:
      "0x0000000000000000000000000000000000000011": "800"
      "0x0000000000000000000000000000000000000d01": "200"
  - address: "0x0000000000000000000000000000000000000b02"
    name: Healthy Index
    symbol: OK
    implementation: SigmaIndexPoolV1.sol
    initialized: true
    tokens:
      - token: "0x00000000000000000000000000000000000000a3"
        balance: "50"
        ready: true
    balances:
      "0x0000000000000000000000000000000000000011": "50"
engine:
  address: "0x0000000000000000000000000000000000000c01"
  source: "0x0000000000000000000000000000000000000011"
  manifest:
    - token: "0x00000000000000000000000000000000000000a2"
      recipient: "0x0000000000000000000000000000000000000b01"
      amount: "400"
vault:
  address: "0x0000000000000000000000000000000000000c02"
  positions:
    - id: drn
      pool: "0x0000000000000000000000000000000000000b01"
      pair: "0x0000000000000000000000000000000000000d01"
      supply: "10"
      settlement-balance: "5"
      claim-token-balance: "200"
`

var (
	controller = common.HexToAddress("0xc0")
	tokenA     = common.HexToAddress("0xa2")
	tokenB     = common.HexToAddress("0xa3")
	pairToken  = common.HexToAddress("0xd01")
	drainedAt  = common.HexToAddress("0xb01")
	vaultAt    = common.HexToAddress("0xc02")
	source     = common.HexToAddress("0x11")
	lpHolder   = common.HexToAddress("0x12")
	anyone     = common.HexToAddress("0x99")
)

func loadGenesis(t *testing.T) config.Deployment {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(deploymentYAML), 0o644))
	genesis, err := config.LoadDeployment(path)
	require.NoError(t, err)
	return genesis
}

func TestBuild(t *testing.T) {
	d, err := Build(loadGenesis(t), nil)
	require.NoError(t, err)

	require.Equal(t, uint64(1), d.ChainID())
	require.Len(t, d.Pools(), 2)

	drained, err := d.Pool("DRN")
	require.NoError(t, err)
	require.Equal(t, drainedAt, drained.Address())
	require.Equal(t, controller, drained.Controller())
	require.False(t, drained.Initialized())
	require.Equal(t, pairToken, drained.Pair())

	byAddr, err := d.Pool(drainedAt.Hex())
	require.NoError(t, err)
	require.Same(t, drained, byAddr)

	_, err = d.Pool("MISSING")
	require.ErrorIs(t, err, model.ErrUnknownPool)

	addr, ok := d.Registry.Implementation(registry.CorePoolID)
	require.True(t, ok)
	require.Equal(t, common.HexToAddress("0xe03"), addr)

	require.Equal(t, uint64(1000), d.State.TotalSupply(tokenA).Uint64())
	require.True(t, d.State.AllowanceOf(tokenA, source, d.Engine.Address()).IsUnlimited())
	require.Equal(t, []string{"drn"}, d.Vault.IDs())
}

func TestTargetsMatchManifest(t *testing.T) {
	d, err := Build(loadGenesis(t), nil)
	require.NoError(t, err)

	targets, err := d.Targets()
	require.NoError(t, err)
	// Two records of DRN plus the vault's wrapped settlement currency.
	require.Len(t, targets, 3)

	built, err := restitution.BuildManifest(targets, d.State.BalanceOf)
	require.NoError(t, err)
	require.Equal(t, d.Engine.Manifest().Export(), built.Export())

	t.Run("vault held natively", func(t *testing.T) {
		d.State.SetNativeBalance(vaultAt, uint256.NewInt(5))
		targets, err := d.Targets()
		require.NoError(t, err)
		require.Len(t, targets, 2)
	})
}

func TestRestoreInitializeRedeemAcrossRuns(t *testing.T) {
	ctx := context.Background()
	genesis := loadGenesis(t)
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "world.json")}

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	first, err := Build(genesis, nil)
	require.NoError(t, err)
	_, err = first.State.Execute(anyone, "restoreBalances", first.Engine.RestoreBalances)
	require.NoError(t, err)
	drained, err := first.Pool("DRN")
	require.NoError(t, err)
	_, err = first.State.Execute(anyone, "initialize", func(c *chain.Call) error {
		return drained.Initialize(c, vaultAt, pairToken)
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, first.Export()))

	second, err := Build(genesis, nil)
	require.NoError(t, err)
	world, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, second.Restore(world))

	restored, err := second.Pool("DRN")
	require.NoError(t, err)
	require.True(t, restored.Initialized())
	require.Equal(t, uint64(200), restored.BalanceOf(vaultAt).Uint64())
	require.True(t, restored.BalanceOf(pairToken).IsZero())
	require.Equal(t, uint64(400), second.State.BalanceOf(tokenA, drainedAt).Uint64())
	require.Equal(t, uint64(600), second.State.BalanceOf(tokenA, source).Uint64())
	require.Equal(t, world.BlockNumber, second.State.BlockNumber())

	_, err = second.State.Execute(lpHolder, "redeemClaimAndExit", func(c *chain.Call) error {
		_, err := second.Vault.RedeemClaimAndExit(c, "drn")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint64(5), second.State.NativeBalance(lpHolder).Uint64())
	require.Equal(t, uint64(80), second.State.BalanceOf(tokenA, lpHolder).Uint64())
	require.Equal(t, uint64(20), second.State.BalanceOf(tokenB, lpHolder).Uint64())
	require.True(t, second.State.BalanceOf(pairToken, lpHolder).IsZero())

	snap, err := second.Vault.Snapshot("drn")
	require.NoError(t, err)
	require.True(t, snap.Supply.IsZero())
	require.True(t, snap.ClaimTokenBalance.IsZero())
}

func TestRestoreRejectsOtherChain(t *testing.T) {
	d, err := Build(loadGenesis(t), nil)
	require.NoError(t, err)
	world := d.Export()
	world.ChainID = 5
	require.Error(t, d.Restore(world))
	require.Error(t, d.Restore(nil))
}

func TestMultiStateStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	empty := &FileStateStore{Path: filepath.Join(dir, "empty.json")}
	full := &FileStateStore{Path: filepath.Join(dir, "full.json")}
	require.NoError(t, full.Save(ctx, &model.WorldState{ChainID: 1, BlockNumber: 7}))

	multi := MultiStateStore{empty, full}
	world, ok, err := multi.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), world.BlockNumber)

	require.NoError(t, multi.Save(ctx, &model.WorldState{ChainID: 1, BlockNumber: 8}))
	world, ok, err = empty.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(8), world.BlockNumber)
}
