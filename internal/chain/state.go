package chain

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Receiver runs when an address receives native currency (token is the zero
// address) or a token. It executes as the receiving address and may call back
// into the ledger.
type Receiver func(c *Call, token, from common.Address, amount *uint256.Int) error

// Receipt describes a successfully executed call.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Caller      common.Address
	Method      string
	Logs        []*types.Log
}

// State is the in-memory world state: ERC20 ledgers, native balances and the
// wrapped settlement currency. Every mutation goes through Execute, which
// either applies the whole call or reverts all of it.
type State struct {
	mu sync.Mutex

	chainID   uint64
	block     uint64
	wrapped   common.Address
	tokens    map[common.Address]*tokenLedger
	native    map[common.Address]*uint256.Int
	receivers map[common.Address]Receiver

	journal  journal
	logs     []*types.Log
	receipts []*Receipt
	logger   *zap.Logger
}

// NewState builds an empty world state.
func NewState(chainID uint64, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{
		chainID:   chainID,
		tokens:    make(map[common.Address]*tokenLedger),
		native:    make(map[common.Address]*uint256.Int),
		receivers: make(map[common.Address]Receiver),
		logger:    logger,
	}
}

// ChainID returns the configured chain ID.
func (s *State) ChainID() uint64 {
	return s.chainID
}

// BlockNumber returns the number of the last executed call.
func (s *State) BlockNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block
}

// SetBlockNumber restores the call counter from persisted state.
func (s *State) SetBlockNumber(block uint64) {
	s.mu.Lock()
	s.block = block
	s.mu.Unlock()
}

// Execute runs fn as one atomic call made by caller. If fn fails, every
// state write and log produced during the call is undone.
func (s *State) Execute(caller common.Address, method string, fn func(c *Call) error) (receipt *Receipt, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal.reset()
	s.logs = nil

	defer func() {
		if r := recover(); r != nil {
			s.journal.revert(0)
			s.logs = nil
			panic(r)
		}
	}()

	c := &Call{state: s, Caller: caller, Origin: caller, Method: method}
	if err := fn(c); err != nil {
		reverted := s.journal.length()
		s.journal.revert(0)
		s.logs = nil
		s.logger.Debug("call reverted",
			zap.String("caller", caller.Hex()),
			zap.String("method", method),
			zap.Int("writes", reverted),
			zap.Error(err),
		)
		return nil, err
	}

	s.block++
	var blockBytes [8]byte
	binary.BigEndian.PutUint64(blockBytes[:], s.block)
	txHash := crypto.Keccak256Hash(caller.Bytes(), []byte(method), blockBytes[:])

	logs := s.logs
	for i, log := range logs {
		log.BlockNumber = s.block
		log.TxHash = txHash
		log.Index = uint(i)
	}
	receipt = &Receipt{
		TxHash:      txHash,
		BlockNumber: s.block,
		Caller:      caller,
		Method:      method,
		Logs:        logs,
	}
	s.receipts = append(s.receipts, receipt)
	s.journal.reset()
	s.logs = nil
	return receipt, nil
}

// Receipts returns the receipts of every successful call so far.
func (s *State) Receipts() []*Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out
}

// SetReceiver installs code that runs when addr receives funds. A nil
// receiver removes it.
func (s *State) SetReceiver(addr common.Address, receiver Receiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if receiver == nil {
		delete(s.receivers, addr)
		return
	}
	s.receivers[addr] = receiver
}

// SetWrapped marks token as the wrapped form of the native currency.
func (s *State) SetWrapped(token common.Address) {
	s.mu.Lock()
	s.wrapped = token
	s.mu.Unlock()
}

// Wrapped returns the wrapped settlement-currency token.
func (s *State) Wrapped() common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrapped
}

// DeployToken registers an ERC20 ledger at addr.
func (s *State) DeployToken(addr common.Address, symbol string, decimals uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[addr]; ok {
		return fmt.Errorf("token already deployed: %s", addr.Hex())
	}
	s.tokens[addr] = newTokenLedger(symbol, decimals)
	return nil
}

// Tokens lists deployed token addresses.
func (s *State) Tokens() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.Address, 0, len(s.tokens))
	for addr := range s.tokens {
		out = append(out, addr)
	}
	return out
}

// SetBalance writes a genesis token balance and adjusts total supply.
func (s *State) SetBalance(token, holder common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, err := s.token(token)
	if err != nil {
		return err
	}
	prev := ledger.balance(holder)
	ledger.supply.Sub(ledger.supply, prev)
	ledger.supply.Add(ledger.supply, amount)
	ledger.balances[holder] = amount.Clone()
	return nil
}

// SetAllowance writes a genesis allowance.
func (s *State) SetAllowance(token, owner, spender common.Address, allowance Allowance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, err := s.token(token)
	if err != nil {
		return err
	}
	ledger.setAllowance(owner, spender, allowance)
	return nil
}

// SetNativeBalance writes a genesis native balance.
func (s *State) SetNativeBalance(holder common.Address, amount *uint256.Int) {
	s.mu.Lock()
	s.native[holder] = amount.Clone()
	s.mu.Unlock()
}

// BalanceOf returns holder's balance of token.
func (s *State) BalanceOf(token, holder common.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceOf(token, holder)
}

// AllowanceOf returns the allowance owner granted spender on token.
func (s *State) AllowanceOf(token, owner, spender common.Address) Allowance {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.tokens[token]
	if !ok {
		return Finite(nil)
	}
	return ledger.allowance(owner, spender)
}

// TotalSupply returns the total supply of token.
func (s *State) TotalSupply(token common.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.tokens[token]
	if !ok {
		return new(uint256.Int)
	}
	return ledger.supply.Clone()
}

// NativeBalance returns holder's native balance.
func (s *State) NativeBalance(holder common.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nativeBalance(holder)
}

func (s *State) token(addr common.Address) (*tokenLedger, error) {
	ledger, ok := s.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("unknown token: %s", addr.Hex())
	}
	return ledger, nil
}

func (s *State) balanceOf(token, holder common.Address) *uint256.Int {
	ledger, ok := s.tokens[token]
	if !ok {
		return new(uint256.Int)
	}
	return ledger.balance(holder).Clone()
}

func (s *State) nativeBalance(holder common.Address) *uint256.Int {
	bal, ok := s.native[holder]
	if !ok {
		return new(uint256.Int)
	}
	return bal.Clone()
}

func (s *State) setNative(holder common.Address, amount *uint256.Int) {
	prev, had := s.native[holder]
	s.journal.append(func() {
		if had {
			s.native[holder] = prev
		} else {
			delete(s.native, holder)
		}
	})
	s.native[holder] = amount
}

func (s *State) emit(log *types.Log) {
	s.logs = append(s.logs, log)
}
