package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransferEvent is a decoded Transfer log.
type TransferEvent struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// ApprovalEvent is a decoded Approval log.
type ApprovalEvent struct {
	Owner       common.Address
	Spender     common.Address
	Value       *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// SnapshotEvent is a decoded SnapshotCheckpointed log carrying the snapshot
// id assigned on chain.
type SnapshotEvent struct {
	ID          *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// EventTopics returns the topic0 hashes of the token events, in a shape
// FilterLogs accepts directly.
func EventTopics() ([]common.Hash, error) {
	parsed, err := TokenABI()
	if err != nil {
		return nil, err
	}
	return []common.Hash{
		parsed.Events["Transfer"].ID,
		parsed.Events["Approval"].ID,
		parsed.Events["SnapshotCheckpointed"].ID,
	}, nil
}

// DecodeTransfer decodes a Transfer log.
func DecodeTransfer(log types.Log) (TransferEvent, error) {
	event, err := tokenEvent("Transfer", log)
	if err != nil {
		return TransferEvent{}, err
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), log.Topics[1:]); err != nil {
		return TransferEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return TransferEvent{}, fmt.Errorf("unpack Transfer: %w", err)
	}
	if len(values) != 1 {
		return TransferEvent{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, err := asBigInt(values[0], "Transfer")
	if err != nil {
		return TransferEvent{}, err
	}

	return TransferEvent{
		From:        indexed.From,
		To:          indexed.To,
		Value:       value,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}

// DecodeApproval decodes an Approval log.
func DecodeApproval(log types.Log) (ApprovalEvent, error) {
	event, err := tokenEvent("Approval", log)
	if err != nil {
		return ApprovalEvent{}, err
	}

	var indexed struct {
		Owner   common.Address
		Spender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), log.Topics[1:]); err != nil {
		return ApprovalEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return ApprovalEvent{}, fmt.Errorf("unpack Approval: %w", err)
	}
	if len(values) != 1 {
		return ApprovalEvent{}, fmt.Errorf("unexpected approval values: %d", len(values))
	}
	value, err := asBigInt(values[0], "Approval")
	if err != nil {
		return ApprovalEvent{}, err
	}

	return ApprovalEvent{
		Owner:       indexed.Owner,
		Spender:     indexed.Spender,
		Value:       value,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}

// DecodeSnapshotCheckpointed decodes a SnapshotCheckpointed log.
func DecodeSnapshotCheckpointed(log types.Log) (SnapshotEvent, error) {
	event, err := tokenEvent("SnapshotCheckpointed", log)
	if err != nil {
		return SnapshotEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return SnapshotEvent{}, fmt.Errorf("unpack SnapshotCheckpointed: %w", err)
	}
	if len(values) != 1 {
		return SnapshotEvent{}, fmt.Errorf("unexpected snapshot values: %d", len(values))
	}
	id, err := asBigInt(values[0], "SnapshotCheckpointed")
	if err != nil {
		return SnapshotEvent{}, err
	}

	return SnapshotEvent{
		ID:          id,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}

// SnapshotIDFromReceipt scans a confirmed receipt for the
// SnapshotCheckpointed log emitted by the token contract and returns the
// snapshot id. The boolean is false when the receipt carries no such log.
func SnapshotIDFromReceipt(receipt *types.Receipt, tokenAddr common.Address) (*big.Int, bool) {
	if receipt == nil {
		return nil, false
	}
	parsed, err := TokenABI()
	if err != nil {
		return nil, false
	}
	topic0 := parsed.Events["SnapshotCheckpointed"].ID
	for _, log := range receipt.Logs {
		if log == nil || log.Address != tokenAddr {
			continue
		}
		if len(log.Topics) == 0 || log.Topics[0] != topic0 {
			continue
		}
		decoded, err := DecodeSnapshotCheckpointed(*log)
		if err != nil {
			continue
		}
		return decoded.ID, true
	}
	return nil, false
}

func tokenEvent(name string, log types.Log) (abi.Event, error) {
	parsed, err := TokenABI()
	if err != nil {
		return abi.Event{}, err
	}
	event, ok := parsed.Events[name]
	if !ok {
		return abi.Event{}, fmt.Errorf("unknown event: %s", name)
	}
	if len(log.Topics) == 0 {
		return abi.Event{}, fmt.Errorf("missing topics")
	}
	if log.Topics[0] != event.ID {
		return abi.Event{}, fmt.Errorf("unexpected topic0 for %s: %s", name, log.Topics[0].Hex())
	}
	indexedCount := len(indexedArguments(event.Inputs))
	if len(log.Topics) != indexedCount+1 {
		return abi.Event{}, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(log.Topics))
	}
	return event, nil
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
