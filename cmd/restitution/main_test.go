package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"drainReversal/internal/model"
	"drainReversal/internal/registry"
)

const deploymentYAML = `
chain-id: 1
controller: "0x00000000000000000000000000000000000000c0"
registry: "0x00000000000000000000000000000000000000f0"
tokens:
  - address: "0x00000000000000000000000000000000000000a2"
    symbol: AAA
    decimals: 18
    balances:
      "0x0000000000000000000000000000000000000011": "1000"
    allowances:
      - owner: "0x0000000000000000000000000000000000000011"
        spender: "0x0000000000000000000000000000000000000c01"
        unlimited: true
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
pools:
  - address: "0x0000000000000000000000000000000000000b01"
    name: Drained Index
    symbol: DRN
    pair: "0x0000000000000000000000000000000000000d01"
    tokens:
      - token: "0x00000000000000000000000000000000000000a2"
        balance: "400"
    balances:
      "0x0000000000000000000000000000000000000011": "800"
      "0x0000000000000000000000000000000000000d01": "200"
engine:
  address: "0x0000000000000000000000000000000000000c01"
  source: "0x0000000000000000000000000000000000000011"
  manifest:
    - token: "0x00000000000000000000000000000000000000a2"
      recipient: "0x0000000000000000000000000000000000000b01"
      amount: "400"
vault:
  address: "0x0000000000000000000000000000000000000c02"
`

const (
	controller = "0x00000000000000000000000000000000000000c0"
	anyone     = "0x0000000000000000000000000000000000000099"
)

type workspace struct {
	dir  string
	base []string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	deployment := filepath.Join(dir, "deployment.yaml")
	require.NoError(t, os.WriteFile(deployment, []byte(deploymentYAML), 0o644))
	return &workspace{dir: dir, base: []string{
		"--deployment", deployment,
		"--state-file", filepath.Join(dir, "world.json"),
		"--events-out", filepath.Join(dir, "events.jsonl"),
		"--typed-out", filepath.Join(dir, "typed.jsonl"),
		"--errors-out", filepath.Join(dir, "errors.jsonl"),
		"--log-level", "error",
	}}
}

func (w *workspace) run(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, w.base...))
	err := root.Execute()
	return out.Bytes(), err
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	n := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		n++
	}
	require.NoError(t, scanner.Err())
	return n
}

func TestRestoreThenInitialize(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "initialize", "DRN", "--caller", anyone)
	require.ErrorIs(t, err, model.ErrBalancesNotReinstated)
	_, err = os.Stat(filepath.Join(w.dir, "world.json"))
	require.True(t, os.IsNotExist(err), "a reverted call must not save state")

	out, err := w.run(t, "restore", "--caller", anyone)
	require.NoError(t, err)
	var receipt receiptView
	require.NoError(t, json.Unmarshal(out, &receipt))
	require.Equal(t, "restoreBalances", receipt.Method)
	require.Equal(t, uint64(1), receipt.Block)

	_, err = w.run(t, "initialize", "DRN", "--caller", anyone)
	require.NoError(t, err)

	out, err = w.run(t, "inspect")
	require.NoError(t, err)
	var view inspectView
	require.NoError(t, json.Unmarshal(out, &view))
	require.Equal(t, uint64(2), view.World.BlockNumber)
	require.Len(t, view.World.Pools, 1)
	require.True(t, view.World.Pools[0].Initialized)
	require.Empty(t, view.Needed)
	require.Len(t, view.Manifest, 1)

	// restore: Transfer + Restored; initialize: Transfer + Initialized.
	require.Equal(t, 4, countLines(t, filepath.Join(w.dir, "events.jsonl")))
	require.Equal(t, 4, countLines(t, filepath.Join(w.dir, "typed.jsonl")))
	_, err = os.Stat(filepath.Join(w.dir, "errors.jsonl"))
	require.True(t, os.IsNotExist(err))
}

func TestSetImplementationRequiresController(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "set-implementation", "IndexPool.sol", "0x0000000000000000000000000000000000000e02", "--caller", anyone)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = w.run(t, "set-implementation", "IndexPool.sol", "0x0000000000000000000000000000000000000e02", "--caller", controller)
	require.NoError(t, err)

	out, err := w.run(t, "inspect")
	require.NoError(t, err)
	var view inspectView
	require.NoError(t, json.Unmarshal(out, &view))
	want := common.HexToAddress("0xe02").Hex()
	require.Equal(t, want, view.World.Implementations[registry.CorePoolID.Hex()])
}

func TestCallerRequired(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "restore")
	require.Error(t, err)
}
