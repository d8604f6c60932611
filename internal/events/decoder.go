package events

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"drainReversal/internal/model"
)

// Decoder turns ledger log records into typed events.
type Decoder struct {
	ledgerABI   abi.ABI
	topicToName map[string]string
}

// NewDecoder builds a decoder for every event in LedgerABI.
func NewDecoder() (*Decoder, error) {
	ledgerABI, err := LedgerABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(ledgerABI.Events))
	for name, event := range ledgerABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	return &Decoder{
		ledgerABI:   ledgerABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	event := d.ledgerABI.Events[name]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case "Transfer":
		var indexed struct {
			From common.Address
			To   common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		amounts, err := asBigInts(values, 1)
		if err != nil {
			return nil, err
		}
		decoded = model.TransferEventData{
			From:   indexed.From.Hex(),
			To:     indexed.To.Hex(),
			Amount: amounts[0].String(),
		}
	case "Approval":
		var indexed struct {
			Owner   common.Address
			Spender common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		amounts, err := asBigInts(values, 1)
		if err != nil {
			return nil, err
		}
		decoded = model.ApprovalEventData{
			Owner:   indexed.Owner.Hex(),
			Spender: indexed.Spender.Hex(),
			Amount:  amounts[0].String(),
		}
	case "Withdrawal":
		var indexed struct {
			Src common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		amounts, err := asBigInts(values, 1)
		if err != nil {
			return nil, err
		}
		decoded = model.TransferEventData{
			From:   indexed.Src.Hex(),
			To:     log.Address,
			Amount: amounts[0].String(),
		}
	case "LOG_EXIT":
		var indexed struct {
			Caller   common.Address
			TokenOut common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		amounts, err := asBigInts(values, 1)
		if err != nil {
			return nil, err
		}
		decoded = model.ExitEventData{
			Caller:    indexed.Caller.Hex(),
			TokenOut:  indexed.TokenOut.Hex(),
			AmountOut: amounts[0].String(),
		}
	case "Initialized":
		var indexed struct {
			Vault common.Address
			Pair  common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		amounts, err := asBigInts(values, 1)
		if err != nil {
			return nil, err
		}
		decoded = model.InitializedEventData{
			Vault:       indexed.Vault.Hex(),
			Pair:        indexed.Pair.Hex(),
			PairBalance: amounts[0].String(),
		}
	case "Redeemed":
		var indexed struct {
			PoolId  [32]byte
			Account common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		amounts, err := asBigInts(values, 3)
		if err != nil {
			return nil, err
		}
		decoded = model.RedeemedEventData{
			PoolID:        common.Hash(indexed.PoolId).Hex(),
			Account:       indexed.Account.Hex(),
			Burned:        amounts[0].String(),
			SettlementOut: amounts[1].String(),
			ClaimTokenOut: amounts[2].String(),
		}
	case "Restored":
		var indexed struct {
			Source common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		amounts, err := asBigInts(values, 1)
		if err != nil {
			return nil, err
		}
		decoded = model.TransferEventData{
			From:   indexed.Source.Hex(),
			To:     log.Address,
			Amount: amounts[0].String(),
		}
	case "ImplementationSet":
		var indexed struct {
			Id             [32]byte
			Implementation common.Address
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		decoded = model.ImplementationEventData{
			ID:             common.Hash(indexed.Id).Hex(),
			Implementation: indexed.Implementation.Hex(),
		}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}

	return &model.TypedEvent{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Caller:      log.Caller,
		Method:      log.Method,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInts(values []interface{}, want int) ([]*big.Int, error) {
	if len(values) != want {
		return nil, fmt.Errorf("unexpected values: %d", len(values))
	}
	out := make([]*big.Int, 0, want)
	for _, value := range values {
		v, ok := value.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unsupported int type %T", value)
		}
		out = append(out, v)
	}
	return out, nil
}
