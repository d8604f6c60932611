package vault

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"drainReversal/internal/bmath"
	"drainReversal/internal/chain"
	"drainReversal/internal/events"
	"drainReversal/internal/model"
	"drainReversal/internal/pool"
)

// Snapshot is the frozen pair position of one pool. Every redemption shrinks
// all three fields proportionally.
type Snapshot struct {
	Supply            *uint256.Int
	SettlementBalance *uint256.Int
	ClaimTokenBalance *uint256.Int
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Supply:            s.Supply.Clone(),
		SettlementBalance: s.SettlementBalance.Clone(),
		ClaimTokenBalance: s.ClaimTokenBalance.Clone(),
	}
}

type position struct {
	pool     *pool.Proxy
	pair     common.Address
	snapshot Snapshot
}

// Vault holds the settlement currency and pool claim tokens of frozen pair
// positions. Holders of a pair's shares burn them for their slice of both.
type Vault struct {
	address   common.Address
	positions map[string]*position
	logger    *zap.Logger
}

// New creates an empty vault at address.
func New(address common.Address, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{
		address:   address,
		positions: make(map[string]*position),
		logger:    logger,
	}
}

// Address returns the vault address.
func (v *Vault) Address() common.Address {
	return v.address
}

// Add registers the frozen position of a pool under id.
func (v *Vault) Add(id string, p *pool.Proxy, pair common.Address, snapshot Snapshot) error {
	if _, exist := v.positions[id]; exist {
		return fmt.Errorf("vault position %q already exists", id)
	}
	if snapshot.Supply == nil || snapshot.SettlementBalance == nil || snapshot.ClaimTokenBalance == nil {
		return fmt.Errorf("vault position %q: incomplete snapshot", id)
	}
	v.positions[id] = &position{pool: p, pair: pair, snapshot: snapshot.clone()}
	return nil
}

// IDs lists the registered positions in sorted order.
func (v *Vault) IDs() []string {
	out := make([]string, 0, len(v.positions))
	for id := range v.positions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns the current snapshot of the position id.
func (v *Vault) Snapshot(id string) (Snapshot, error) {
	pos, err := v.position(id)
	if err != nil {
		return Snapshot{}, err
	}
	return pos.snapshot.clone(), nil
}

// ConsolidateSettlementCurrency unwraps every wrapped settlement-currency
// token the vault holds. It does nothing when the vault holds none.
func (v *Vault) ConsolidateSettlementCurrency(c *chain.Call) error {
	wrapped := c.Wrapped()
	if wrapped == (common.Address{}) {
		return nil
	}
	bal := c.BalanceOf(wrapped, v.address)
	if bal.IsZero() {
		return nil
	}
	if err := c.As(v.address).Unwrap(bal); err != nil {
		return fmt.Errorf("consolidate settlement currency: %w", err)
	}
	v.logger.Debug("settlement currency consolidated", zap.String("amount", bal.Dec()))
	return nil
}

// Redemption is the outcome of one redeem.
type Redemption struct {
	Burned        *uint256.Int
	SettlementOut *uint256.Int
	ClaimTokenOut *uint256.Int
}

// RedeemClaim burns the caller's whole pair-share balance and pays out the
// proportional claim tokens and native settlement currency.
func (v *Vault) RedeemClaim(c *chain.Call, id string) (*Redemption, error) {
	pos, out, err := v.redeem(c, id)
	if err != nil {
		return nil, err
	}
	self := c.As(v.address)
	if err := pos.pool.Transfer(self, c.Caller, out.ClaimTokenOut); err != nil {
		return nil, fmt.Errorf("redeem %s claim tokens: %w", id, err)
	}
	if err := v.paySettlement(c, out.SettlementOut); err != nil {
		return nil, fmt.Errorf("redeem %s settlement: %w", id, err)
	}
	v.logRedemption(id, c.Caller, out)
	return out, nil
}

// RedeemClaimAndExit is RedeemClaim, except that the claim tokens are exited
// from the pool straight to the caller as underlying reserves.
func (v *Vault) RedeemClaimAndExit(c *chain.Call, id string) (*Redemption, error) {
	pos, out, err := v.redeem(c, id)
	if err != nil {
		return nil, err
	}
	if !out.ClaimTokenOut.IsZero() {
		if err := pos.pool.ExitPoolTo(c.As(v.address), c.Caller, out.ClaimTokenOut); err != nil {
			return nil, fmt.Errorf("redeem %s exit: %w", id, err)
		}
	}
	if err := v.paySettlement(c, out.SettlementOut); err != nil {
		return nil, fmt.Errorf("redeem %s settlement: %w", id, err)
	}
	v.logRedemption(id, c.Caller, out)
	return out, nil
}

// redeem computes the caller's share, commits the snapshot decrement and
// burns the pair shares. Payouts are left to the caller.
func (v *Vault) redeem(c *chain.Call, id string) (*position, *Redemption, error) {
	pos, err := v.position(id)
	if err != nil {
		return nil, nil, err
	}
	lp := c.BalanceOf(pos.pair, c.Caller)
	if lp.IsZero() {
		return nil, nil, model.ErrNullAmount
	}

	snap := pos.snapshot
	ratio, err := bmath.ScaledDiv(lp, snap.Supply)
	if err != nil {
		return nil, nil, fmt.Errorf("redeem %s ratio: %w", id, err)
	}
	settlementOut, err := bmath.ScaledMul(ratio, snap.SettlementBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("redeem %s settlement: %w", id, err)
	}
	claimTokenOut, err := bmath.ScaledMul(ratio, snap.ClaimTokenBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("redeem %s claim tokens: %w", id, err)
	}

	next := Snapshot{}
	if next.Supply, err = bmath.Sub(snap.Supply, lp); err != nil {
		return nil, nil, fmt.Errorf("redeem %s supply: %w", id, err)
	}
	if next.SettlementBalance, err = bmath.Sub(snap.SettlementBalance, settlementOut); err != nil {
		return nil, nil, fmt.Errorf("redeem %s settlement: %w", id, err)
	}
	if next.ClaimTokenBalance, err = bmath.Sub(snap.ClaimTokenBalance, claimTokenOut); err != nil {
		return nil, nil, fmt.Errorf("redeem %s claim tokens: %w", id, err)
	}
	pos.snapshot = next
	c.Journal(func() { pos.snapshot = snap })

	if err := c.As(v.address).BurnFrom(pos.pair, c.Caller, lp); err != nil {
		return nil, nil, fmt.Errorf("redeem %s burn: %w", id, err)
	}
	if err := c.Emit(events.Redeemed(v.address, PoolID(id), c.Caller, lp, settlementOut, claimTokenOut)); err != nil {
		return nil, nil, err
	}
	return pos, &Redemption{Burned: lp, SettlementOut: settlementOut, ClaimTokenOut: claimTokenOut}, nil
}

func (v *Vault) logRedemption(id string, account common.Address, out *Redemption) {
	v.logger.Debug("claim redeemed",
		zap.String("pool", id),
		zap.String("account", account.Hex()),
		zap.String("burned", out.Burned.Dec()),
		zap.String("settlement_out", out.SettlementOut.Dec()),
		zap.String("claim_token_out", out.ClaimTokenOut.Dec()),
	)
}

// paySettlement sends native currency to the caller, unwrapping the vault's
// wrapped holdings first when its native balance falls short.
func (v *Vault) paySettlement(c *chain.Call, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if c.NativeBalance(v.address).Lt(amount) {
		if err := v.ConsolidateSettlementCurrency(c); err != nil {
			return err
		}
	}
	return c.As(v.address).SendNative(c.Caller, amount)
}

func (v *Vault) position(id string) (*position, error) {
	pos, ok := v.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownPool, id)
	}
	return pos, nil
}

// PoolID is the identifier logged for a position.
func PoolID(id string) common.Hash {
	return crypto.Keccak256Hash([]byte(id))
}

// Export renders every position as a persisted snapshot.
func (v *Vault) Export() []model.VaultSnapshot {
	out := make([]model.VaultSnapshot, 0, len(v.positions))
	for _, id := range v.IDs() {
		pos := v.positions[id]
		out = append(out, model.VaultSnapshot{
			PoolID:            id,
			Pool:              pos.pool.Address().Hex(),
			Pair:              pos.pair.Hex(),
			Supply:            chain.FormatAmount(pos.snapshot.Supply),
			SettlementBalance: chain.FormatAmount(pos.snapshot.SettlementBalance),
			ClaimTokenBalance: chain.FormatAmount(pos.snapshot.ClaimTokenBalance),
		})
	}
	return out
}

// Import registers persisted snapshots, resolving each pool with lookup.
func (v *Vault) Import(snapshots []model.VaultSnapshot, lookup func(common.Address) (*pool.Proxy, error)) error {
	for _, in := range snapshots {
		poolAddr, err := chain.ParseAddress(in.Pool)
		if err != nil {
			return fmt.Errorf("vault %s pool: %w", in.PoolID, err)
		}
		p, err := lookup(poolAddr)
		if err != nil {
			return fmt.Errorf("vault %s: %w", in.PoolID, err)
		}
		pair, err := chain.ParseAddress(in.Pair)
		if err != nil {
			return fmt.Errorf("vault %s pair: %w", in.PoolID, err)
		}
		var snap Snapshot
		if snap.Supply, err = chain.ParseAmount(in.Supply); err != nil {
			return fmt.Errorf("vault %s supply: %w", in.PoolID, err)
		}
		if snap.SettlementBalance, err = chain.ParseAmount(in.SettlementBalance); err != nil {
			return fmt.Errorf("vault %s settlement: %w", in.PoolID, err)
		}
		if snap.ClaimTokenBalance, err = chain.ParseAmount(in.ClaimTokenBalance); err != nil {
			return fmt.Errorf("vault %s claim tokens: %w", in.PoolID, err)
		}
		if err := v.Add(in.PoolID, p, pair, snap); err != nil {
			return err
		}
	}
	return nil
}
