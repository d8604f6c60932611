package restitution

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"drainReversal/internal/chain"
	"drainReversal/internal/events"
)

// Engine pulls a fixed manifest from one funding source. It relies on the
// source's allowance and never holds funds across calls.
type Engine struct {
	address  common.Address
	source   common.Address
	manifest Manifest
	logger   *zap.Logger
}

// NewEngine builds an engine at address pulling manifest from source.
func NewEngine(address, source common.Address, manifest Manifest, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	fixed := make(Manifest, len(manifest))
	for i, e := range manifest {
		fixed[i] = Entry{Token: e.Token, Recipient: e.Recipient, Amount: e.Amount.Clone()}
	}
	return &Engine{address: address, source: source, manifest: fixed, logger: logger}
}

// Address returns the engine address, the spender the source must approve.
func (e *Engine) Address() common.Address {
	return e.address
}

// Source returns the funding source.
func (e *Engine) Source() common.Address {
	return e.source
}

// Manifest returns a copy of the fixed manifest.
func (e *Engine) Manifest() Manifest {
	out := make(Manifest, len(e.manifest))
	copy(out, e.manifest)
	return out
}

// RestoreBalances executes every manifest entry in order. The first failure
// fails the whole call.
func (e *Engine) RestoreBalances(c *chain.Call) error {
	self := c.As(e.address)
	for i, entry := range e.manifest {
		if err := self.TransferFrom(entry.Token, e.source, entry.Recipient, entry.Amount); err != nil {
			return fmt.Errorf("manifest entry %d (%s to %s): %w", i, entry.Token.Hex(), entry.Recipient.Hex(), err)
		}
		e.logger.Debug("restitution transfer",
			zap.Int("entry", i),
			zap.String("token", entry.Token.Hex()),
			zap.String("recipient", entry.Recipient.Hex()),
			zap.String("amount", entry.Amount.Dec()),
		)
	}
	if err := c.Emit(events.Restored(e.address, e.source, len(e.manifest))); err != nil {
		return err
	}
	e.logger.Debug("balances restored",
		zap.String("source", e.source.Hex()),
		zap.Int("entries", len(e.manifest)),
	)
	return nil
}
