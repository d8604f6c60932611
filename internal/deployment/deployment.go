package deployment

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"drainReversal/internal/chain"
	"drainReversal/internal/config"
	"drainReversal/internal/model"
	"drainReversal/internal/pool"
	"drainReversal/internal/registry"
	"drainReversal/internal/restitution"
	"drainReversal/internal/vault"
)

// Deployment wires the world state, the implementation registry, the pools,
// the restitution engine and the vault described by a deployment file.
type Deployment struct {
	State    *chain.State
	Registry *registry.Registry[pool.Implementation]
	Engine   *restitution.Engine
	Vault    *vault.Vault

	genesis config.Deployment
	pools   []*pool.Proxy
	byAddr  map[common.Address]*pool.Proxy
	logger  *zap.Logger
}

// Build creates a deployment in its genesis state.
func Build(genesis config.Deployment, logger *zap.Logger) (*Deployment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := genesis.Validate(); err != nil {
		return nil, err
	}

	d := &Deployment{
		State:   chain.NewState(genesis.ChainID, logger),
		genesis: genesis,
		logger:  logger,
	}
	if err := d.deployTokens(); err != nil {
		return nil, err
	}
	for holder, amount := range genesis.Native {
		d.State.SetNativeBalance(holder, amount)
	}

	reg, err := buildRegistry(genesis, logger)
	if err != nil {
		return nil, err
	}
	d.Registry = reg

	if err := d.loadPools(genesis.Pools); err != nil {
		return nil, err
	}

	manifest, err := restitution.ParseManifest(genesis.Engine.Manifest)
	if err != nil {
		return nil, err
	}
	d.Engine = restitution.NewEngine(genesis.Engine.Address, genesis.Engine.Source, manifest, logger)

	if err := d.loadVault(genesis.Vault.Positions); err != nil {
		return nil, err
	}

	logger.Info("deployment built",
		zap.Uint64("chain_id", genesis.ChainID),
		zap.Int("tokens", len(genesis.Tokens)),
		zap.Int("pools", len(d.pools)),
		zap.Int("manifest_entries", len(manifest)),
		zap.Int("vault_positions", len(genesis.Vault.Positions)),
	)
	return d, nil
}

func (d *Deployment) deployTokens() error {
	for _, tok := range d.genesis.Tokens {
		if err := d.State.DeployToken(tok.Address, tok.Symbol, tok.Decimals); err != nil {
			return err
		}
		if tok.Wrapped {
			d.State.SetWrapped(tok.Address)
		}
		for holder, amount := range tok.Balances {
			if err := d.State.SetBalance(tok.Address, holder, amount); err != nil {
				return err
			}
		}
		var setErr error
		err := chain.ImportAllowances(tok.Allowances, func(owner, spender common.Address, a chain.Allowance) {
			if setErr == nil {
				setErr = d.State.SetAllowance(tok.Address, owner, spender, a)
			}
		})
		if err != nil {
			return fmt.Errorf("token %s: %w", tok.Symbol, err)
		}
		if setErr != nil {
			return fmt.Errorf("token %s: %w", tok.Symbol, setErr)
		}
	}
	return nil
}

func buildRegistry(genesis config.Deployment, logger *zap.Logger) (*registry.Registry[pool.Implementation], error) {
	reg := registry.New[pool.Implementation](genesis.Registry, genesis.Controller, logger)

	code := make(map[common.Address]pool.Implementation, len(genesis.Implementations))
	for _, impl := range genesis.Implementations {
		switch impl.Kind {
		case config.KindIndexPool:
			code[impl.Address] = pool.IndexPool{}
		case config.KindRestricted:
			code[impl.Address] = pool.RestrictedPool{}
		}
	}
	for _, impl := range genesis.Implementations {
		if impl.Kind == config.KindFallThrough {
			code[impl.Address] = pool.NewFallThrough(impl.Restricted, code[impl.Target], code[impl.Fallback])
		}
	}
	for _, impl := range genesis.Implementations {
		reg.Register(impl.Address, code[impl.Address])
	}

	for _, b := range genesis.Bindings {
		if err := reg.Bind(registry.ID(b.Name), b.Implementation); err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.Name, err)
		}
	}
	return reg, nil
}

func (d *Deployment) loadPools(records []model.Pool) error {
	pools := make([]*pool.Proxy, 0, len(records))
	byAddr := make(map[common.Address]*pool.Proxy, len(records))
	for _, rec := range records {
		addr, err := chain.ParseAddress(rec.Address)
		if err != nil {
			return fmt.Errorf("pool %s: %w", rec.Symbol, err)
		}
		if _, dup := byAddr[addr]; dup {
			return fmt.Errorf("pool %s declared twice", addr.Hex())
		}
		storage, err := pool.ImportStorage(rec)
		if err != nil {
			return fmt.Errorf("pool %s: %w", rec.Symbol, err)
		}
		if storage.Controller == (common.Address{}) {
			storage.Controller = d.genesis.Controller
		}
		implName := rec.ImplementationID
		if implName == "" {
			implName = registry.CorePoolName
		}
		p := pool.NewProxy(addr, implName, d.Registry, storage, d.logger)
		pools = append(pools, p)
		byAddr[addr] = p
	}
	d.pools = pools
	d.byAddr = byAddr
	return nil
}

func (d *Deployment) loadVault(positions []model.VaultSnapshot) error {
	v := vault.New(d.genesis.Vault.Address, d.logger)
	if err := v.Import(positions, d.poolAt); err != nil {
		return err
	}
	d.Vault = v
	return nil
}

func (d *Deployment) poolAt(addr common.Address) (*pool.Proxy, error) {
	p, ok := d.byAddr[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownPool, addr.Hex())
	}
	return p, nil
}

// ChainID returns the chain the deployment lives on.
func (d *Deployment) ChainID() uint64 {
	return d.State.ChainID()
}

// Pools lists the pools in declaration order.
func (d *Deployment) Pools() []*pool.Proxy {
	out := make([]*pool.Proxy, len(d.pools))
	copy(out, d.pools)
	return out
}

// Pool finds a pool by address or by symbol.
func (d *Deployment) Pool(ref string) (*pool.Proxy, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return d.poolAt(common.HexToAddress(ref))
	}
	for _, p := range d.pools {
		if strings.EqualFold(p.Symbol(), ref) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownPool, ref)
}

// Targets lists the balances restitution must reach: the recorded reserves
// of every pool still waiting for initialization, and the vault's settlement
// currency not yet held natively.
func (d *Deployment) Targets() ([]restitution.Target, error) {
	var out []restitution.Target
	for _, p := range d.pools {
		if p.Initialized() {
			continue
		}
		targets, err := restitution.PoolTargets(p)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", p.Symbol(), err)
		}
		out = append(out, targets...)
	}

	wrapped := d.State.Wrapped()
	if wrapped == (common.Address{}) {
		return out, nil
	}
	owed := new(uint256.Int)
	for _, id := range d.Vault.IDs() {
		snap, err := d.Vault.Snapshot(id)
		if err != nil {
			return nil, err
		}
		if _, overflow := owed.AddOverflow(owed, snap.SettlementBalance); overflow {
			return nil, fmt.Errorf("vault settlement: %w", model.ErrArithmeticOverflow)
		}
	}
	native := d.State.NativeBalance(d.Vault.Address())
	if owed.Gt(native) {
		out = append(out, restitution.Target{
			Token:  wrapped,
			Holder: d.Vault.Address(),
			Amount: new(uint256.Int).Sub(owed, native),
		})
	}
	return out, nil
}

// Export renders the whole deployment as a persisted world state.
func (d *Deployment) Export() *model.WorldState {
	world := &model.WorldState{}
	d.State.Export(world)
	world.Pools = make([]model.Pool, 0, len(d.pools))
	for _, p := range d.pools {
		world.Pools = append(world.Pools, p.Export())
	}
	world.Vault = d.Vault.Export()
	world.Implementations = d.Registry.Export()
	world.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return world
}

// Restore replaces the genesis state with a persisted world state.
// Implementations and the manifest always come from the deployment file.
func (d *Deployment) Restore(world *model.WorldState) error {
	if world == nil {
		return fmt.Errorf("world state is nil")
	}
	if world.ChainID != 0 && world.ChainID != d.genesis.ChainID {
		return fmt.Errorf("world state is for chain %d, deployment is chain %d", world.ChainID, d.genesis.ChainID)
	}
	if err := d.State.Import(*world); err != nil {
		return fmt.Errorf("restore ledgers: %w", err)
	}
	if err := d.Registry.Import(world.Implementations); err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}
	if err := d.loadPools(world.Pools); err != nil {
		return fmt.Errorf("restore pools: %w", err)
	}
	if err := d.loadVault(world.Vault); err != nil {
		return fmt.Errorf("restore vault: %w", err)
	}
	d.logger.Debug("world state restored",
		zap.Uint64("block", world.BlockNumber),
		zap.String("updated_at", world.UpdatedAt),
	)
	return nil
}
