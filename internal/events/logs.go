package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Transfer builds an ERC20 Transfer log. Mints and burns use the zero address.
func Transfer(token, from, to common.Address, amount *uint256.Int) (*types.Log, error) {
	return newLog("Transfer", token, []common.Hash{addressTopic(from), addressTopic(to)}, amount.ToBig())
}

// Approval builds an ERC20 Approval log.
func Approval(token, owner, spender common.Address, amount *uint256.Int) (*types.Log, error) {
	return newLog("Approval", token, []common.Hash{addressTopic(owner), addressTopic(spender)}, amount.ToBig())
}

// Withdrawal builds a wrapped-currency Withdrawal log.
func Withdrawal(wrapped, src common.Address, amount *uint256.Int) (*types.Log, error) {
	return newLog("Withdrawal", wrapped, []common.Hash{addressTopic(src)}, amount.ToBig())
}

// Exit builds a pool LOG_EXIT log for one token out.
func Exit(pool, caller, tokenOut common.Address, amount *uint256.Int) (*types.Log, error) {
	return newLog("LOG_EXIT", pool, []common.Hash{addressTopic(caller), addressTopic(tokenOut)}, amount.ToBig())
}

// Initialized builds the pool Initialized log.
func Initialized(pool, vault, pair common.Address, pairBalance *uint256.Int) (*types.Log, error) {
	return newLog("Initialized", pool, []common.Hash{addressTopic(vault), addressTopic(pair)}, pairBalance.ToBig())
}

// Redeemed builds the vault Redeemed log.
func Redeemed(vault common.Address, poolID common.Hash, account common.Address, burned, settlementOut, claimTokenOut *uint256.Int) (*types.Log, error) {
	return newLog("Redeemed", vault, []common.Hash{poolID, addressTopic(account)},
		burned.ToBig(), settlementOut.ToBig(), claimTokenOut.ToBig())
}

// Restored builds the restitution engine Restored log.
func Restored(engine, source common.Address, entries int) (*types.Log, error) {
	return newLog("Restored", engine, []common.Hash{addressTopic(source)}, uint256.NewInt(uint64(entries)).ToBig())
}

// ImplementationSet builds the registry ImplementationSet log.
func ImplementationSet(registry common.Address, id common.Hash, implementation common.Address) (*types.Log, error) {
	return newLog("ImplementationSet", registry, []common.Hash{id, addressTopic(implementation)})
}

func newLog(name string, address common.Address, indexed []common.Hash, values ...interface{}) (*types.Log, error) {
	ledgerABI, err := LedgerABI()
	if err != nil {
		return nil, fmt.Errorf("parse ledger abi: %w", err)
	}
	event, ok := ledgerABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event: %s", name)
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}

	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, event.ID)
	topics = append(topics, indexed...)
	return &types.Log{Address: address, Topics: topics, Data: data}, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
