package restitution

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"drainReversal/internal/bmath"
	"drainReversal/internal/chain"
	"drainReversal/internal/model"
	"drainReversal/internal/pool"
)

// Entry is one restitution transfer.
type Entry struct {
	Token     common.Address
	Recipient common.Address
	Amount    *uint256.Int
}

// Manifest is the ordered list of transfers one restore executes.
type Manifest []Entry

// ParseManifest parses persisted entries, keeping their order.
func ParseManifest(in []model.ManifestEntry) (Manifest, error) {
	out := make(Manifest, 0, len(in))
	for i, raw := range in {
		token, err := chain.ParseAddress(raw.Token)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d token: %w", i, err)
		}
		recipient, err := chain.ParseAddress(raw.Recipient)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d recipient: %w", i, err)
		}
		amount, err := chain.ParseAmount(raw.Amount)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %d amount: %w", i, err)
		}
		out = append(out, Entry{Token: token, Recipient: recipient, Amount: amount})
	}
	return out, nil
}

// Export renders the manifest as persisted entries.
func (m Manifest) Export() []model.ManifestEntry {
	out := make([]model.ManifestEntry, 0, len(m))
	for _, e := range m {
		out = append(out, model.ManifestEntry{
			Token:     e.Token.Hex(),
			Recipient: e.Recipient.Hex(),
			Amount:    chain.FormatAmount(e.Amount),
		})
	}
	return out
}

// Totals sums the manifest per token.
func (m Manifest) Totals() (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int)
	for _, e := range m {
		sum, ok := out[e.Token]
		if !ok {
			sum = new(uint256.Int)
		}
		next, err := bmath.Add(sum, e.Amount)
		if err != nil {
			return nil, fmt.Errorf("total %s: %w", e.Token.Hex(), err)
		}
		out[e.Token] = next
	}
	return out, nil
}

// Target is the balance a holder must end up with.
type Target struct {
	Token  common.Address
	Holder common.Address
	Amount *uint256.Int
}

// PoolTargets returns one target per bound token: the pool must hold its
// recorded reserve.
func PoolTargets(p *pool.Proxy) ([]Target, error) {
	tokens := p.CurrentTokens()
	out := make([]Target, 0, len(tokens))
	for _, token := range tokens {
		bal, err := p.Balance(token)
		if err != nil {
			return nil, err
		}
		out = append(out, Target{Token: token, Holder: p.Address(), Amount: bal})
	}
	return out, nil
}

// BuildManifest computes the deficit of every target against live balances.
// Satisfied targets produce no entry; a holder above its target is an error
// because no transfer can fix it.
func BuildManifest(targets []Target, balanceOf func(token, holder common.Address) *uint256.Int) (Manifest, error) {
	var out Manifest
	for _, target := range targets {
		have := balanceOf(target.Token, target.Holder)
		if have.Gt(target.Amount) {
			return nil, fmt.Errorf("%s holds %s of %s, above target %s",
				target.Holder.Hex(), have.Dec(), target.Token.Hex(), target.Amount.Dec())
		}
		deficit := new(uint256.Int).Sub(target.Amount, have)
		if deficit.IsZero() {
			continue
		}
		out = append(out, Entry{Token: target.Token, Recipient: target.Holder, Amount: deficit})
	}
	return out, nil
}
