package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"drainReversal/internal/events"
	"drainReversal/internal/model"
)

// Call is one frame of an executing call. Caller is the immediate sender;
// Origin is the account that started the call.
type Call struct {
	state  *State
	Caller common.Address
	Origin common.Address
	Method string
}

// As returns a frame of the same call in which sender is the immediate caller.
func (c *Call) As(sender common.Address) *Call {
	return &Call{state: c.state, Caller: sender, Origin: c.Origin, Method: c.Method}
}

// Wrapped returns the wrapped settlement-currency token.
func (c *Call) Wrapped() common.Address {
	return c.state.wrapped
}

// Journal registers undo for a write made outside the token ledgers.
func (c *Call) Journal(undo func()) {
	c.state.journal.append(undo)
}

// Emit appends log to the call's logs. It accepts the result of an events
// builder directly.
func (c *Call) Emit(log *types.Log, err error) error {
	if err != nil {
		return err
	}
	c.state.emit(log)
	return nil
}

// BalanceOf returns holder's balance of token.
func (c *Call) BalanceOf(token, holder common.Address) *uint256.Int {
	return c.state.balanceOf(token, holder)
}

// NativeBalance returns holder's native balance.
func (c *Call) NativeBalance(holder common.Address) *uint256.Int {
	return c.state.nativeBalance(holder)
}

// Allowance returns the allowance owner granted spender on token.
func (c *Call) Allowance(token, owner, spender common.Address) Allowance {
	ledger, ok := c.state.tokens[token]
	if !ok {
		return Finite(nil)
	}
	return ledger.allowance(owner, spender)
}

// Approve sets the caller's allowance for spender on token.
func (c *Call) Approve(token, spender common.Address, allowance Allowance) error {
	ledger, err := c.state.token(token)
	if err != nil {
		return err
	}
	ledger.putAllowance(&c.state.journal, c.Caller, spender, allowance)
	return c.Emit(events.Approval(token, c.Caller, spender, allowance.Amount()))
}

// Transfer moves amount of token from the caller to to.
func (c *Call) Transfer(token, to common.Address, amount *uint256.Int) error {
	return c.move(token, c.Caller, to, amount)
}

// TransferFrom moves amount of token from from to to, spending the caller's
// allowance unless the caller is from.
func (c *Call) TransferFrom(token, from, to common.Address, amount *uint256.Int) error {
	if err := c.spendAllowance(token, from, amount); err != nil {
		return err
	}
	return c.move(token, from, to, amount)
}

// BurnFrom destroys amount of from's token balance, spending the caller's
// allowance unless the caller is from.
func (c *Call) BurnFrom(token, from common.Address, amount *uint256.Int) error {
	ledger, err := c.state.token(token)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransferFailed, err)
	}
	if err := c.spendAllowance(token, from, amount); err != nil {
		return err
	}
	bal := ledger.balance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: burn %s: %w", model.ErrTransferFailed, ledger.symbol, model.ErrInsufficientBalance)
	}
	ledger.setBalance(&c.state.journal, from, new(uint256.Int).Sub(bal, amount))
	ledger.setSupply(&c.state.journal, new(uint256.Int).Sub(ledger.supply, amount))
	return c.Emit(events.Transfer(token, from, common.Address{}, amount))
}

// SendNative moves amount of native currency from the caller to to.
func (c *Call) SendNative(to common.Address, amount *uint256.Int) error {
	s := c.state
	bal := s.nativeBalance(c.Caller)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: native: %w", model.ErrTransferFailed, model.ErrInsufficientBalance)
	}
	s.setNative(c.Caller, new(uint256.Int).Sub(bal, amount))
	s.setNative(to, new(uint256.Int).Add(s.nativeBalance(to), amount))
	return c.notify(to, common.Address{}, c.Caller, amount)
}

// Unwrap converts amount of the caller's wrapped settlement currency into
// native currency.
func (c *Call) Unwrap(amount *uint256.Int) error {
	s := c.state
	if s.wrapped == (common.Address{}) {
		return fmt.Errorf("%w: no wrapped currency configured", model.ErrTransferFailed)
	}
	ledger, err := s.token(s.wrapped)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransferFailed, err)
	}
	bal := ledger.balance(c.Caller)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: unwrap: %w", model.ErrTransferFailed, model.ErrInsufficientBalance)
	}
	backing := s.nativeBalance(s.wrapped)
	if backing.Lt(amount) {
		return fmt.Errorf("%w: unwrap backing: %w", model.ErrTransferFailed, model.ErrInsufficientBalance)
	}

	ledger.setBalance(&s.journal, c.Caller, new(uint256.Int).Sub(bal, amount))
	ledger.setSupply(&s.journal, new(uint256.Int).Sub(ledger.supply, amount))
	s.setNative(s.wrapped, new(uint256.Int).Sub(backing, amount))
	s.setNative(c.Caller, new(uint256.Int).Add(s.nativeBalance(c.Caller), amount))
	if err := c.Emit(events.Withdrawal(s.wrapped, c.Caller, amount)); err != nil {
		return err
	}
	return c.notify(c.Caller, common.Address{}, s.wrapped, amount)
}

func (c *Call) spendAllowance(token, from common.Address, amount *uint256.Int) error {
	if c.Caller == from {
		return nil
	}
	ledger, err := c.state.token(token)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransferFailed, err)
	}
	current := ledger.allowance(from, c.Caller)
	left, err := current.Spend(amount)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrTransferFailed, ledger.symbol, err)
	}
	if !current.IsUnlimited() {
		ledger.putAllowance(&c.state.journal, from, c.Caller, left)
	}
	return nil
}

func (c *Call) move(token, from, to common.Address, amount *uint256.Int) error {
	s := c.state
	ledger, err := s.token(token)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransferFailed, err)
	}
	bal := ledger.balance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s: %w", model.ErrTransferFailed, ledger.symbol, model.ErrInsufficientBalance)
	}
	ledger.setBalance(&s.journal, from, new(uint256.Int).Sub(bal, amount))
	ledger.setBalance(&s.journal, to, new(uint256.Int).Add(ledger.balance(to), amount))
	if err := c.Emit(events.Transfer(token, from, to, amount)); err != nil {
		return err
	}
	return c.notify(to, token, from, amount)
}

func (c *Call) notify(to, token, from common.Address, amount *uint256.Int) error {
	receiver, ok := c.state.receivers[to]
	if !ok {
		return nil
	}
	return receiver(c.As(to), token, from, amount.Clone())
}
