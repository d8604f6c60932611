package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"drainReversal/internal/chain"
	"drainReversal/internal/model"
)

// Implementation kinds.
const (
	KindIndexPool   = "index"
	KindRestricted  = "restricted"
	KindFallThrough = "fallthrough"
)

// Deployment describes the genesis of a deployment: tokens, implementations,
// pools, the restitution manifest and the vault's frozen positions.
type Deployment struct {
	ChainID         uint64                          `mapstructure:"chain-id"`
	Controller      common.Address                  `mapstructure:"controller"`
	Registry        common.Address                  `mapstructure:"registry"`
	Tokens          []Token                         `mapstructure:"tokens"`
	Native          map[common.Address]*uint256.Int `mapstructure:"native"`
	Implementations []Implementation                `mapstructure:"implementations"`
	Bindings        []Binding                       `mapstructure:"bindings"`
	Pools           []model.Pool                    `mapstructure:"pools"`
	Engine          Engine                          `mapstructure:"engine"`
	Vault           Vault                           `mapstructure:"vault"`
}

// Token is a plain ERC20 ledger with its genesis balances.
type Token struct {
	Address    common.Address                  `mapstructure:"address"`
	Symbol     string                          `mapstructure:"symbol"`
	Decimals   uint8                           `mapstructure:"decimals"`
	Wrapped    bool                            `mapstructure:"wrapped"`
	Balances   map[common.Address]*uint256.Int `mapstructure:"balances"`
	Allowances []model.Allowance               `mapstructure:"allowances"`
}

// Implementation is pool code registered at an address. FallThrough
// implementations route Restricted pools to Target and the rest to Fallback.
type Implementation struct {
	Address    common.Address   `mapstructure:"address"`
	Kind       string           `mapstructure:"kind"`
	Restricted []common.Address `mapstructure:"restricted"`
	Target     common.Address   `mapstructure:"target"`
	Fallback   common.Address   `mapstructure:"fallback"`
}

// Binding points an implementation name at a registered address.
type Binding struct {
	Name           string         `mapstructure:"name"`
	Implementation common.Address `mapstructure:"implementation"`
}

// Engine is the restitution engine and its fixed manifest.
type Engine struct {
	Address  common.Address        `mapstructure:"address"`
	Source   common.Address        `mapstructure:"source"`
	Manifest []model.ManifestEntry `mapstructure:"manifest"`
}

// Vault is the claim redemption vault and its frozen positions.
type Vault struct {
	Address   common.Address        `mapstructure:"address"`
	Positions []model.VaultSnapshot `mapstructure:"positions"`
}

// LoadDeployment reads a deployment file (YAML, JSON or TOML).
func LoadDeployment(path string) (Deployment, error) {
	if path == "" {
		return Deployment{}, fmt.Errorf("deployment file is required")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Deployment{}, fmt.Errorf("read deployment: %w", err)
	}

	var d Deployment
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		addressHook,
		amountHook,
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&d, hook); err != nil {
		return Deployment{}, fmt.Errorf("decode deployment: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// Validate checks references between the sections of the deployment.
func (d Deployment) Validate() error {
	tokens := make(map[common.Address]bool, len(d.Tokens))
	wrapped := 0
	for _, tok := range d.Tokens {
		if tokens[tok.Address] {
			return fmt.Errorf("token %s declared twice", tok.Address.Hex())
		}
		tokens[tok.Address] = true
		if tok.Wrapped {
			wrapped++
		}
	}
	if wrapped > 1 {
		return fmt.Errorf("%d wrapped tokens declared, want at most one", wrapped)
	}

	impls := make(map[common.Address]string, len(d.Implementations))
	for _, impl := range d.Implementations {
		switch impl.Kind {
		case KindIndexPool, KindRestricted, KindFallThrough:
		default:
			return fmt.Errorf("implementation %s: unknown kind %q", impl.Address.Hex(), impl.Kind)
		}
		if _, dup := impls[impl.Address]; dup {
			return fmt.Errorf("implementation %s declared twice", impl.Address.Hex())
		}
		impls[impl.Address] = impl.Kind
	}
	for _, impl := range d.Implementations {
		if impl.Kind != KindFallThrough {
			continue
		}
		for _, ref := range []common.Address{impl.Target, impl.Fallback} {
			kind, ok := impls[ref]
			if !ok || kind == KindFallThrough {
				return fmt.Errorf("fallthrough %s: %s is not a pool implementation", impl.Address.Hex(), ref.Hex())
			}
		}
	}
	for _, b := range d.Bindings {
		if _, ok := impls[b.Implementation]; !ok {
			return fmt.Errorf("binding %s: unknown implementation %s", b.Name, b.Implementation.Hex())
		}
	}
	for _, p := range d.Pools {
		for _, rec := range p.Tokens {
			if !tokens[common.HexToAddress(rec.Token)] {
				return fmt.Errorf("pool %s: token %s is not declared", p.Symbol, rec.Token)
			}
		}
	}
	for i, entry := range d.Engine.Manifest {
		if !tokens[common.HexToAddress(entry.Token)] {
			return fmt.Errorf("manifest entry %d: token %s is not declared", i, entry.Token)
		}
	}
	return nil
}

var (
	addressType = reflect.TypeOf(common.Address{})
	amountType  = reflect.TypeOf((*uint256.Int)(nil))
)

func addressHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != addressType || from.Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(reflect.ValueOf(data).String())
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return nil, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func amountHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != amountType {
		return data, nil
	}
	var raw string
	switch from.Kind() {
	case reflect.String:
		raw = strings.TrimSpace(reflect.ValueOf(data).String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		raw = fmt.Sprintf("%d", data)
	case reflect.Float32, reflect.Float64:
		return nil, fmt.Errorf("amount %v must be quoted to keep its precision", data)
	default:
		return data, nil
	}
	out, err := chain.ParseAmount(raw)
	if err != nil {
		return nil, err
	}
	return out, nil
}
