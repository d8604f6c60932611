package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
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
      "0x0000000000000000000000000000000000000011": "1000000000000000000000"
  - address: "0x00000000000000000000000000000000000000a2"
    symbol: UNI
    decimals: 18
    balances:
      "0x0000000000000000000000000000000000000011": 500
native:
  "0x00000000000000000000000000000000000000a1": "0x3635c9adc5dea00000"
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
    implementation: IndexPool.sol
    pair: "0x0000000000000000000000000000000000000d01"
    tokens:
      - token: "0x00000000000000000000000000000000000000a2"
        balance: "400"
    balances:
      "0x0000000000000000000000000000000000000011": "1000"
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
      claim-token-balance: "2"
`

func writeDeployment(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployment.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write deployment: %v", err)
	}
	return path
}

func TestLoadDeployment(t *testing.T) {
	d, err := LoadDeployment(writeDeployment(t, deploymentYAML))
	if err != nil {
		t.Fatalf("load deployment: %v", err)
	}

	if d.ChainID != 1 {
		t.Fatalf("chain id mismatch: %d", d.ChainID)
	}
	if d.Controller != common.HexToAddress("0xc0") {
		t.Fatalf("controller mismatch: %s", d.Controller.Hex())
	}
	if len(d.Tokens) != 2 || !d.Tokens[0].Wrapped {
		t.Fatalf("tokens mismatch: %+v", d.Tokens)
	}

	holder := common.HexToAddress("0x11")
	want, _ := uint256.FromDecimal("1000000000000000000000")
	if got := d.Tokens[0].Balances[holder]; got == nil || !got.Eq(want) {
		t.Fatalf("weth balance mismatch: %v", got)
	}
	if got := d.Tokens[1].Balances[holder]; got == nil || got.Uint64() != 500 {
		t.Fatalf("uni balance mismatch: %v", got)
	}
	if got := d.Native[common.HexToAddress("0xa1")]; got == nil || !got.Eq(want) {
		t.Fatalf("native balance mismatch: %v", got)
	}

	if len(d.Implementations) != 3 || d.Implementations[2].Kind != KindFallThrough {
		t.Fatalf("implementations mismatch: %+v", d.Implementations)
	}
	if got := d.Implementations[2].Restricted; len(got) != 1 || got[0] != common.HexToAddress("0xb01") {
		t.Fatalf("restricted pools mismatch: %v", got)
	}
	if len(d.Bindings) != 1 || d.Bindings[0].Name != "IndexPool.sol" {
		t.Fatalf("bindings mismatch: %+v", d.Bindings)
	}
	if len(d.Pools) != 1 || d.Pools[0].ImplementationID != "IndexPool.sol" || d.Pools[0].Tokens[0].Balance != "400" {
		t.Fatalf("pools mismatch: %+v", d.Pools)
	}
	if len(d.Engine.Manifest) != 1 || d.Engine.Source != holder {
		t.Fatalf("engine mismatch: %+v", d.Engine)
	}
	if len(d.Vault.Positions) != 1 || d.Vault.Positions[0].PoolID != "drn" || d.Vault.Positions[0].SettlementBalance != "5" {
		t.Fatalf("vault mismatch: %+v", d.Vault)
	}
}

func TestLoadDeploymentRejectsBadReferences(t *testing.T) {
	cases := map[string]string{
		"unknown kind": `
implementations:
  - address: "0x0000000000000000000000000000000000000e01"
    kind: sigma
`,
		"unbound implementation": `
bindings:
  - name: IndexPool.sol
    implementation: "0x0000000000000000000000000000000000000e01"
`,
		"bad address": `
controller: "0x1234"
`,
		"unquoted large amount": `
tokens:
  - address: "0x00000000000000000000000000000000000000a1"
    symbol: WETH
    balances:
      "0x0000000000000000000000000000000000000011": 1e21
`,
		"undeclared manifest token": `
engine:
  manifest:
    - token: "0x00000000000000000000000000000000000000a9"
      recipient: "0x0000000000000000000000000000000000000b01"
      amount: "1"
`,
	}
	for name, body := range cases {
		if _, err := LoadDeployment(writeDeployment(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadDeploymentDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StateFile != "./data/world.json" || cfg.MaxRetries != 5 || cfg.LogLevel != "info" {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RESTITUTION_STATE_FILE", "/tmp/other.json")
	t.Setenv("RESTITUTION_MIN_OUT", "1, 2,,3")
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StateFile != "/tmp/other.json" {
		t.Fatalf("state file mismatch: %s", cfg.StateFile)
	}
	if len(cfg.MinAmountsOut) != 3 || cfg.MinAmountsOut[2] != "3" {
		t.Fatalf("min-out mismatch: %v", cfg.MinAmountsOut)
	}
}
