package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"drainReversal/internal/chain"
	"drainReversal/internal/model"
	"drainReversal/internal/registry"
)

// Decimals of every pool claim token.
const Decimals = 18

// Proxy is a pool at a fixed address. It owns its storage and resolves the
// implementation from the registry on every call, so switching an
// identifier needs no data migration.
//
// Read accessors must not race with State.Execute.
type Proxy struct {
	address  common.Address
	implName string
	implID   common.Hash
	registry *registry.Registry[Implementation]
	storage  *Storage
	logger   *zap.Logger
}

// NewProxy binds storage to address under the implementation named implName.
func NewProxy(address common.Address, implName string, reg *registry.Registry[Implementation], storage *Storage, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		address:  address,
		implName: implName,
		implID:   registry.ID(implName),
		registry: reg,
		storage:  storage,
		logger:   logger.With(zap.String("pool", storage.Symbol)),
	}
}

// Address returns the pool address.
func (p *Proxy) Address() common.Address {
	return p.address
}

// ImplementationName returns the name the pool's implementation ID is derived from.
func (p *Proxy) ImplementationName() string {
	return p.implName
}

// Export renders the pool's storage as a persisted record.
func (p *Proxy) Export() model.Pool {
	return p.storage.Export(p.address, p.implName)
}

// Initialize unlocks a drained pool and moves the pair's claim tokens to vault.
func (p *Proxy) Initialize(c *chain.Call, vault, pair common.Address) error {
	err := p.dispatch(func(impl Implementation, inst Instance) error {
		return impl.Initialize(c, inst, vault, pair)
	})
	if err != nil {
		return fmt.Errorf("%s initialize: %w", p.storage.Symbol, err)
	}
	p.logger.Debug("pool initialized",
		zap.String("vault", vault.Hex()),
		zap.String("pair", pair.Hex()),
	)
	return nil
}

// Transfer moves claim tokens from the caller.
func (p *Proxy) Transfer(c *chain.Call, to common.Address, amount *uint256.Int) error {
	return p.dispatch(func(impl Implementation, inst Instance) error {
		return impl.Transfer(c, inst, to, amount)
	})
}

// TransferFrom moves claim tokens from from using the caller's allowance.
func (p *Proxy) TransferFrom(c *chain.Call, from, to common.Address, amount *uint256.Int) error {
	return p.dispatch(func(impl Implementation, inst Instance) error {
		return impl.TransferFrom(c, inst, from, to, amount)
	})
}

// Approve sets the caller's allowance for spender.
func (p *Proxy) Approve(c *chain.Call, spender common.Address, allowance chain.Allowance) error {
	return p.dispatch(func(impl Implementation, inst Instance) error {
		return impl.Approve(c, inst, spender, allowance)
	})
}

// ExitPool burns claimAmount of the caller's claim tokens for a proportional
// share of every reserve.
func (p *Proxy) ExitPool(c *chain.Call, claimAmount *uint256.Int, minAmountsOut []*uint256.Int) error {
	err := p.dispatch(func(impl Implementation, inst Instance) error {
		return impl.ExitPool(c, inst, claimAmount, minAmountsOut)
	})
	if err != nil {
		return err
	}
	p.logger.Debug("pool exit",
		zap.String("caller", c.Caller.Hex()),
		zap.String("amount", claimAmount.Dec()),
	)
	return nil
}

// ExitPoolTo is ExitPool without minimums, paying recipient.
func (p *Proxy) ExitPoolTo(c *chain.Call, recipient common.Address, claimAmount *uint256.Int) error {
	err := p.dispatch(func(impl Implementation, inst Instance) error {
		return impl.ExitPoolTo(c, inst, recipient, claimAmount)
	})
	if err != nil {
		return err
	}
	p.logger.Debug("pool exit",
		zap.String("caller", c.Caller.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount", claimAmount.Dec()),
	)
	return nil
}

func (p *Proxy) dispatch(fn func(Implementation, Instance) error) error {
	if p.storage.locked {
		return model.ErrReentry
	}
	impl, err := p.registry.Resolve(p.implID)
	if err != nil {
		return err
	}
	p.storage.locked = true
	defer func() { p.storage.locked = false }()
	return fn(impl, Instance{Address: p.address, Storage: p.storage})
}

// Name returns the claim token name.
func (p *Proxy) Name() string { return p.storage.Name }

// Symbol returns the claim token symbol.
func (p *Proxy) Symbol() string { return p.storage.Symbol }

// BalanceOf returns holder's claim-token balance.
func (p *Proxy) BalanceOf(holder common.Address) *uint256.Int {
	return p.storage.balanceOf(holder)
}

// Allowance returns the claim-token allowance owner granted spender.
func (p *Proxy) Allowance(owner, spender common.Address) chain.Allowance {
	return p.storage.allowance(owner, spender)
}

// TotalSupply returns the claim-token supply.
func (p *Proxy) TotalSupply() *uint256.Int {
	return p.storage.TotalSupply.Clone()
}

func (p *Proxy) Controller() common.Address { return p.storage.Controller }

func (p *Proxy) SwapFee() *uint256.Int { return p.storage.SwapFee.Clone() }

func (p *Proxy) Pair() common.Address { return p.storage.Pair }

func (p *Proxy) Initialized() bool { return p.storage.Initialized }

func (p *Proxy) ExitFeeRecipient() common.Address { return p.storage.ExitFeeRecipient }

// ExitFee returns the fee charged on exits by the current implementation.
func (p *Proxy) ExitFee() (*uint256.Int, error) {
	impl, err := p.registry.Resolve(p.implID)
	if err != nil {
		return nil, err
	}
	return impl.ExitFee(Instance{Address: p.address, Storage: p.storage}), nil
}

// CurrentTokens returns the bound tokens in index order.
func (p *Proxy) CurrentTokens() []common.Address {
	out := make([]common.Address, len(p.storage.Tokens))
	copy(out, p.storage.Tokens)
	return out
}

// IsBound reports whether token is bound to the pool.
func (p *Proxy) IsBound(token common.Address) bool {
	return p.storage.Records[token].Bound
}

// Record returns the reserve record of a bound token.
func (p *Proxy) Record(token common.Address) (TokenRecord, error) {
	rec, ok := p.storage.Records[token]
	if !ok || !rec.Bound {
		return TokenRecord{}, fmt.Errorf("%w: %s", model.ErrNotBound, token.Hex())
	}
	return rec.clone(), nil
}

// Balance returns the recorded reserve of a bound token.
func (p *Proxy) Balance(token common.Address) (*uint256.Int, error) {
	rec, err := p.Record(token)
	if err != nil {
		return nil, err
	}
	return rec.Balance, nil
}
