package chain

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"drainReversal/internal/model"
)

// Export writes the token ledgers and native balances into world.
func (s *State) Export(world *model.WorldState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	world.ChainID = s.chainID
	world.BlockNumber = s.block
	world.Wrapped = ""
	if s.wrapped != (common.Address{}) {
		world.Wrapped = s.wrapped.Hex()
	}

	world.Tokens = make(map[string]model.TokenLedger, len(s.tokens))
	for addr, ledger := range s.tokens {
		out := model.TokenLedger{
			Symbol:      ledger.symbol,
			Decimals:    ledger.decimals,
			TotalSupply: FormatAmount(ledger.supply),
			Balances:    make(map[string]string, len(ledger.balances)),
		}
		for holder, bal := range ledger.balances {
			if bal.IsZero() {
				continue
			}
			out.Balances[holder.Hex()] = FormatAmount(bal)
		}
		out.Allowances = exportAllowances(ledger.allowances)
		world.Tokens[addr.Hex()] = out
	}

	world.Native = make(map[string]string, len(s.native))
	for holder, bal := range s.native {
		if bal.IsZero() {
			continue
		}
		world.Native[holder.Hex()] = FormatAmount(bal)
	}
}

// Import replaces the token ledgers and native balances with those in world.
func (s *State) Import(world model.WorldState) error {
	tokens := make(map[common.Address]*tokenLedger, len(world.Tokens))
	for rawAddr, in := range world.Tokens {
		addr, err := ParseAddress(rawAddr)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		ledger := newTokenLedger(in.Symbol, in.Decimals)
		for rawHolder, rawBal := range in.Balances {
			holder, err := ParseAddress(rawHolder)
			if err != nil {
				return fmt.Errorf("token %s holder: %w", in.Symbol, err)
			}
			bal, err := ParseAmount(rawBal)
			if err != nil {
				return fmt.Errorf("token %s balance: %w", in.Symbol, err)
			}
			ledger.balances[holder] = bal
		}
		supply, err := ParseAmount(in.TotalSupply)
		if err != nil {
			return fmt.Errorf("token %s supply: %w", in.Symbol, err)
		}
		ledger.supply = supply
		if err := importAllowances(in.Allowances, ledger.setAllowance); err != nil {
			return fmt.Errorf("token %s: %w", in.Symbol, err)
		}
		tokens[addr] = ledger
	}

	native := make(map[common.Address]*uint256.Int, len(world.Native))
	for rawHolder, rawBal := range world.Native {
		holder, err := ParseAddress(rawHolder)
		if err != nil {
			return fmt.Errorf("native holder: %w", err)
		}
		bal, err := ParseAmount(rawBal)
		if err != nil {
			return fmt.Errorf("native balance: %w", err)
		}
		native[holder] = bal
	}

	var wrapped common.Address
	if world.Wrapped != "" {
		addr, err := ParseAddress(world.Wrapped)
		if err != nil {
			return fmt.Errorf("wrapped: %w", err)
		}
		wrapped = addr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainID = world.ChainID
	s.block = world.BlockNumber
	s.tokens = tokens
	s.native = native
	s.wrapped = wrapped
	return nil
}

// ExportAllowances flattens an owner → spender allowance table into persisted
// records in a stable order.
func ExportAllowances(table map[common.Address]map[common.Address]Allowance) []model.Allowance {
	return exportAllowances(table)
}

// ImportAllowances parses persisted allowance records and hands each to set.
func ImportAllowances(records []model.Allowance, set func(owner, spender common.Address, a Allowance)) error {
	return importAllowances(records, set)
}

func exportAllowances(table map[common.Address]map[common.Address]Allowance) []model.Allowance {
	var out []model.Allowance
	for owner, bySpender := range table {
		for spender, a := range bySpender {
			rec := model.Allowance{Owner: owner.Hex(), Spender: spender.Hex()}
			if a.IsUnlimited() {
				rec.Unlimited = true
			} else {
				if a.amount.IsZero() {
					continue
				}
				rec.Amount = FormatAmount(&a.amount)
			}
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Spender < out[j].Spender
	})
	return out
}

func importAllowances(records []model.Allowance, set func(owner, spender common.Address, a Allowance)) error {
	for _, rec := range records {
		owner, err := ParseAddress(rec.Owner)
		if err != nil {
			return fmt.Errorf("allowance owner: %w", err)
		}
		spender, err := ParseAddress(rec.Spender)
		if err != nil {
			return fmt.Errorf("allowance spender: %w", err)
		}
		if rec.Unlimited {
			set(owner, spender, Unlimited)
			continue
		}
		amount, err := ParseAmount(rec.Amount)
		if err != nil {
			return fmt.Errorf("allowance amount: %w", err)
		}
		set(owner, spender, AllowanceFromAmount(amount))
	}
	return nil
}
