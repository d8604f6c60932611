package pool

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"drainReversal/internal/chain"
	"drainReversal/internal/model"
)

// TokenRecord is the reserve record of one bound token. Balance is the
// authoritative reserve used by every exit.
type TokenRecord struct {
	Bound                bool
	Ready                bool
	LastWeightUpdateTime uint64
	CurrentWeight        *uint256.Int
	DesiredWeight        *uint256.Int
	Index                uint8
	Balance              *uint256.Int
}

func (r TokenRecord) clone() TokenRecord {
	out := r
	out.CurrentWeight = cloneOrZero(r.CurrentWeight)
	out.DesiredWeight = cloneOrZero(r.DesiredWeight)
	out.Balance = cloneOrZero(r.Balance)
	return out
}

// Storage is owned by a pool proxy. Implementations read and write it through
// the proxy; every write is journaled on the executing call.
type Storage struct {
	Name             string
	Symbol           string
	Controller       common.Address
	SwapFee          *uint256.Int
	ExitFeeRecipient common.Address
	Pair             common.Address
	Initialized      bool
	TotalSupply      *uint256.Int
	Tokens           []common.Address
	Records          map[common.Address]TokenRecord

	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]chain.Allowance
	locked     bool
}

// NewStorage returns empty, uninitialized pool storage.
func NewStorage(name, symbol string) *Storage {
	return &Storage{
		Name:        name,
		Symbol:      symbol,
		SwapFee:     new(uint256.Int),
		TotalSupply: new(uint256.Int),
		Records:     make(map[common.Address]TokenRecord),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]chain.Allowance),
	}
}

// MaxTokens bounds the token list so every index fits TokenRecord.Index.
const MaxTokens = math.MaxUint8 + 1

// Bind appends token with its record to the pool's token list.
func (s *Storage) Bind(token common.Address, record TokenRecord) error {
	if _, dup := s.Records[token]; dup {
		return fmt.Errorf("token %s bound twice", token.Hex())
	}
	if len(s.Tokens) >= MaxTokens {
		return fmt.Errorf("%w: %d tokens already bound", model.ErrLimitExceeded, len(s.Tokens))
	}
	record = record.clone()
	record.Bound = true
	record.Index = uint8(len(s.Tokens))
	s.Tokens = append(s.Tokens, token)
	s.Records[token] = record
	return nil
}

// SetBalance writes a genesis claim-token balance and adjusts total supply.
func (s *Storage) SetBalance(holder common.Address, amount *uint256.Int) {
	prev := s.balanceOf(holder)
	s.TotalSupply = new(uint256.Int).Sub(s.TotalSupply, prev)
	s.TotalSupply.Add(s.TotalSupply, amount)
	s.balances[holder] = amount.Clone()
}

// SetAllowance writes a genesis claim-token allowance.
func (s *Storage) SetAllowance(owner, spender common.Address, a chain.Allowance) {
	byOwner, ok := s.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]chain.Allowance)
		s.allowances[owner] = byOwner
	}
	byOwner[spender] = a
}

func (s *Storage) balanceOf(holder common.Address) *uint256.Int {
	if bal, ok := s.balances[holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (s *Storage) allowance(owner, spender common.Address) chain.Allowance {
	if byOwner, ok := s.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return a
		}
	}
	return chain.Finite(nil)
}

func (s *Storage) setBalance(c *chain.Call, holder common.Address, amount *uint256.Int) {
	prev, had := s.balances[holder]
	c.Journal(func() {
		if had {
			s.balances[holder] = prev
		} else {
			delete(s.balances, holder)
		}
	})
	s.balances[holder] = amount
}

func (s *Storage) setTotalSupply(c *chain.Call, amount *uint256.Int) {
	prev := s.TotalSupply
	c.Journal(func() { s.TotalSupply = prev })
	s.TotalSupply = amount
}

func (s *Storage) putAllowance(c *chain.Call, owner, spender common.Address, a chain.Allowance) {
	prev := s.allowance(owner, spender)
	c.Journal(func() { s.SetAllowance(owner, spender, prev) })
	s.SetAllowance(owner, spender, a)
}

func (s *Storage) setRecord(c *chain.Call, token common.Address, record TokenRecord) {
	prev := s.Records[token]
	c.Journal(func() { s.Records[token] = prev })
	s.Records[token] = record
}

func (s *Storage) setPair(c *chain.Call, pair common.Address) {
	prev := s.Pair
	c.Journal(func() { s.Pair = prev })
	s.Pair = pair
}

func (s *Storage) setInitialized(c *chain.Call) {
	c.Journal(func() { s.Initialized = false })
	s.Initialized = true
}

// Export renders the storage as a persisted pool record.
func (s *Storage) Export(address common.Address, implementation string) model.Pool {
	out := model.Pool{
		Address:          address.Hex(),
		Name:             s.Name,
		Symbol:           s.Symbol,
		ImplementationID: implementation,
		Controller:       s.Controller.Hex(),
		SwapFee:          chain.FormatAmount(s.SwapFee),
		ExitFeeRecipient: s.ExitFeeRecipient.Hex(),
		Pair:             s.Pair.Hex(),
		Initialized:      s.Initialized,
		TotalSupply:      chain.FormatAmount(s.TotalSupply),
		Balances:         make(map[string]string, len(s.balances)),
		Allowances:       chain.ExportAllowances(s.allowances),
	}
	for _, token := range s.Tokens {
		rec := s.Records[token]
		out.Tokens = append(out.Tokens, model.TokenRecord{
			Token:                token.Hex(),
			Bound:                rec.Bound,
			Ready:                rec.Ready,
			LastWeightUpdateTime: rec.LastWeightUpdateTime,
			CurrentWeight:        chain.FormatAmount(rec.CurrentWeight),
			DesiredWeight:        chain.FormatAmount(rec.DesiredWeight),
			Index:                rec.Index,
			Balance:              chain.FormatAmount(rec.Balance),
		})
	}
	for holder, bal := range s.balances {
		if bal.IsZero() {
			continue
		}
		out.Balances[holder.Hex()] = chain.FormatAmount(bal)
	}
	return out
}

// ImportStorage rebuilds storage from a persisted pool record. When the
// record carries no total supply it is derived from the balances.
func ImportStorage(in model.Pool) (*Storage, error) {
	s := NewStorage(in.Name, in.Symbol)
	var err error
	if s.Controller, err = optionalAddress(in.Controller); err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	if s.ExitFeeRecipient, err = optionalAddress(in.ExitFeeRecipient); err != nil {
		return nil, fmt.Errorf("exit fee recipient: %w", err)
	}
	if s.Pair, err = optionalAddress(in.Pair); err != nil {
		return nil, fmt.Errorf("pair: %w", err)
	}
	if s.SwapFee, err = chain.ParseAmount(in.SwapFee); err != nil {
		return nil, fmt.Errorf("swap fee: %w", err)
	}
	s.Initialized = in.Initialized

	for i, rec := range in.Tokens {
		token, err := chain.ParseAddress(rec.Token)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		record := TokenRecord{
			Ready:                rec.Ready,
			LastWeightUpdateTime: rec.LastWeightUpdateTime,
		}
		if record.CurrentWeight, err = chain.ParseAmount(rec.CurrentWeight); err != nil {
			return nil, fmt.Errorf("token %s current weight: %w", token.Hex(), err)
		}
		if record.DesiredWeight, err = chain.ParseAmount(rec.DesiredWeight); err != nil {
			return nil, fmt.Errorf("token %s desired weight: %w", token.Hex(), err)
		}
		if record.Balance, err = chain.ParseAmount(rec.Balance); err != nil {
			return nil, fmt.Errorf("token %s balance: %w", token.Hex(), err)
		}
		if err := s.Bind(token, record); err != nil {
			return nil, err
		}
	}

	for rawHolder, rawBal := range in.Balances {
		holder, err := chain.ParseAddress(rawHolder)
		if err != nil {
			return nil, fmt.Errorf("holder: %w", err)
		}
		bal, err := chain.ParseAmount(rawBal)
		if err != nil {
			return nil, fmt.Errorf("holder %s balance: %w", holder.Hex(), err)
		}
		s.SetBalance(holder, bal)
	}
	if in.TotalSupply != "" {
		if s.TotalSupply, err = chain.ParseAmount(in.TotalSupply); err != nil {
			return nil, fmt.Errorf("total supply: %w", err)
		}
	}
	if err := chain.ImportAllowances(in.Allowances, s.SetAllowance); err != nil {
		return nil, err
	}
	return s, nil
}

func optionalAddress(raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, nil
	}
	return chain.ParseAddress(raw)
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
