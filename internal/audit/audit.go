package audit

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"drainReversal/internal/restitution"
)

// Finding statuses.
const (
	StatusMatch   = "match"
	StatusOver    = "over"
	StatusUnder   = "under"
	StatusMissing = "missing"
	StatusSurplus = "surplus"
	StatusExtra   = "untracked"
)

// BalanceReader reads a live token balance at a block.
type BalanceReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address, block *big.Int) (*uint256.Int, error)
}

// Options tunes RPC retries.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Finding compares the manifest's total for one (token, holder) with the
// live deficit against its target.
type Finding struct {
	Token    string `json:"token"`
	Holder   string `json:"holder"`
	Target   string `json:"target,omitempty"`
	Live     string `json:"live"`
	Deficit  string `json:"deficit"`
	Manifest string `json:"manifest"`
	Status   string `json:"status"`
}

// Report is the outcome of one audit.
type Report struct {
	Block      string    `json:"block"`
	Findings   []Finding `json:"findings"`
	Mismatches int       `json:"mismatches"`
}

// Auditor compares a fixed manifest with live deficits. It only reads.
type Auditor struct {
	reader BalanceReader
	opts   Options
	logger *zap.Logger
}

func New(reader BalanceReader, opts Options, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{reader: reader, opts: opts, logger: logger}
}

type key struct {
	token  common.Address
	holder common.Address
}

// Run reads every target holder's balance at block (latest when nil) and
// reports, per (token, holder), whether the manifest covers the deficit
// exactly. Holders the manifest pays but no target tracks are reported with
// their live balance only.
func (a *Auditor) Run(ctx context.Context, manifest restitution.Manifest, targets []restitution.Target, block *big.Int) (*Report, error) {
	var order []key
	planned := make(map[key]*uint256.Int)
	for _, e := range manifest {
		k := key{token: e.Token, holder: e.Recipient}
		sum, ok := planned[k]
		if !ok {
			sum = new(uint256.Int)
			planned[k] = sum
			order = append(order, k)
		}
		if _, overflow := sum.AddOverflow(sum, e.Amount); overflow {
			return nil, fmt.Errorf("manifest total for %s overflows", e.Token.Hex())
		}
	}

	tracked := make(map[key]*uint256.Int, len(targets))
	for _, t := range targets {
		k := key{token: t.Token, holder: t.Holder}
		if _, ok := tracked[k]; ok {
			return nil, fmt.Errorf("target %s/%s listed twice", t.Token.Hex(), t.Holder.Hex())
		}
		tracked[k] = t.Amount
		if _, ok := planned[k]; !ok {
			order = append(order, k)
		}
	}

	report := &Report{Block: "latest"}
	if block != nil {
		report.Block = block.String()
	}
	for _, k := range order {
		live, err := a.balance(ctx, k, block)
		if err != nil {
			return nil, err
		}
		finding := compare(k, tracked[k], planned[k], live)
		if finding.Status != StatusMatch {
			report.Mismatches++
			a.logger.Warn("manifest mismatch",
				zap.String("token", finding.Token),
				zap.String("holder", finding.Holder),
				zap.String("status", finding.Status),
				zap.String("deficit", finding.Deficit),
				zap.String("manifest", finding.Manifest),
			)
		}
		report.Findings = append(report.Findings, finding)
	}

	a.logger.Info("audit finished",
		zap.String("block", report.Block),
		zap.Int("findings", len(report.Findings)),
		zap.Int("mismatches", report.Mismatches),
	)
	return report, nil
}

func (a *Auditor) balance(ctx context.Context, k key, block *big.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := a.readBalance(ctx, k.token, k.holder, func(ctx context.Context) error {
		bal, err := a.reader.BalanceOf(ctx, k.token, k.holder, block)
		if err != nil {
			return err
		}
		out = bal
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s for %s: %w", k.token.Hex(), k.holder.Hex(), err)
	}
	return out, nil
}

func compare(k key, target, planned, live *uint256.Int) Finding {
	if planned == nil {
		planned = new(uint256.Int)
	}
	f := Finding{
		Token:    k.token.Hex(),
		Holder:   k.holder.Hex(),
		Live:     live.Dec(),
		Manifest: planned.Dec(),
	}
	if target == nil {
		f.Deficit = "0"
		f.Status = StatusExtra
		return f
	}
	f.Target = target.Dec()
	if live.Gt(target) {
		f.Deficit = "0"
		f.Status = StatusSurplus
		return f
	}
	deficit := new(uint256.Int).Sub(target, live)
	f.Deficit = deficit.Dec()
	switch {
	case planned.Eq(deficit):
		f.Status = StatusMatch
	case planned.IsZero():
		f.Status = StatusMissing
	case planned.Gt(deficit):
		f.Status = StatusOver
	default:
		f.Status = StatusUnder
	}
	return f
}
