package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeTransfer(t *testing.T) {
	from := common.HexToAddress("0x5555555555555555555555555555555555555555")
	to := common.HexToAddress("0x6666666666666666666666666666666666666666")
	log := buildTransferLog(t, from, to, big.NewInt(123456))

	event, err := DecodeTransfer(log)
	if err != nil {
		t.Fatalf("decode transfer: %v", err)
	}
	if event.From != from || event.To != to {
		t.Fatalf("participant mismatch: %+v", event)
	}
	if event.Value.Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("value mismatch: %s", event.Value)
	}
	if event.BlockNumber != log.BlockNumber || event.TxHash != log.TxHash {
		t.Fatalf("log position mismatch: %+v", event)
	}
}

func TestDecodeApproval(t *testing.T) {
	owner := common.HexToAddress("0x5555555555555555555555555555555555555555")
	spender := common.HexToAddress("0x7777777777777777777777777777777777777777")
	log := buildApprovalLog(t, owner, spender, big.NewInt(999))

	event, err := DecodeApproval(log)
	if err != nil {
		t.Fatalf("decode approval: %v", err)
	}
	if event.Owner != owner || event.Spender != spender {
		t.Fatalf("participant mismatch: %+v", event)
	}
	if event.Value.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("value mismatch: %s", event.Value)
	}
}

func TestDecodeSnapshotCheckpointed(t *testing.T) {
	log := buildSnapshotLog(t, big.NewInt(7))

	event, err := DecodeSnapshotCheckpointed(log)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if event.ID.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("snapshot id mismatch: %s", event.ID)
	}
}

func TestDecodeRejectsForeignLog(t *testing.T) {
	from := common.HexToAddress("0x5555555555555555555555555555555555555555")
	to := common.HexToAddress("0x6666666666666666666666666666666666666666")
	log := buildTransferLog(t, from, to, big.NewInt(1))

	if _, err := DecodeApproval(log); err == nil {
		t.Fatalf("expected topic0 mismatch error")
	}

	log.Topics = log.Topics[:2]
	if _, err := DecodeTransfer(log); err == nil {
		t.Fatalf("expected topic count error")
	}
}

func TestEventTopicsDistinct(t *testing.T) {
	topics, err := EventTopics()
	if err != nil {
		t.Fatalf("event topics: %v", err)
	}
	if len(topics) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(topics))
	}
	seen := make(map[common.Hash]bool)
	for _, topic := range topics {
		if topic == (common.Hash{}) {
			t.Fatalf("zero topic hash")
		}
		if seen[topic] {
			t.Fatalf("duplicate topic %s", topic.Hex())
		}
		seen[topic] = true
	}
}

func TestSnapshotIDFromReceipt(t *testing.T) {
	tokenAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	transfer := buildTransferLog(t,
		common.HexToAddress("0x5555555555555555555555555555555555555555"),
		common.HexToAddress("0x6666666666666666666666666666666666666666"),
		big.NewInt(1))
	transfer.Address = tokenAddr
	snapshot := buildSnapshotLog(t, big.NewInt(42))
	snapshot.Address = tokenAddr

	receipt := &types.Receipt{Logs: []*types.Log{&transfer, &snapshot}}
	id, ok := SnapshotIDFromReceipt(receipt, tokenAddr)
	if !ok {
		t.Fatalf("expected snapshot id in receipt")
	}
	if id.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("snapshot id mismatch: %s", id)
	}

	foreign := buildSnapshotLog(t, big.NewInt(42))
	foreign.Address = common.HexToAddress("0x9999999999999999999999999999999999999999")
	receipt = &types.Receipt{Logs: []*types.Log{&foreign}}
	if _, ok := SnapshotIDFromReceipt(receipt, tokenAddr); ok {
		t.Fatalf("logs from other contracts must not match")
	}

	if _, ok := SnapshotIDFromReceipt(nil, tokenAddr); ok {
		t.Fatalf("nil receipt must not match")
	}
}

func buildTransferLog(t *testing.T, from, to common.Address, value *big.Int) types.Log {
	t.Helper()
	parsed, err := TokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := parsed.Events["Transfer"]
	data, err := event.Inputs.NonIndexed().Pack(value)
	if err != nil {
		t.Fatalf("pack transfer data: %v", err)
	}
	return types.Log{
		Topics:      []common.Hash{event.ID, topicFromAddress(from), topicFromAddress(to)},
		Data:        data,
		BlockNumber: 120,
		TxHash:      common.HexToHash("0xaaaa000000000000000000000000000000000000000000000000000000000001"),
	}
}

func buildApprovalLog(t *testing.T, owner, spender common.Address, value *big.Int) types.Log {
	t.Helper()
	parsed, err := TokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := parsed.Events["Approval"]
	data, err := event.Inputs.NonIndexed().Pack(value)
	if err != nil {
		t.Fatalf("pack approval data: %v", err)
	}
	return types.Log{
		Topics:      []common.Hash{event.ID, topicFromAddress(owner), topicFromAddress(spender)},
		Data:        data,
		BlockNumber: 121,
		TxHash:      common.HexToHash("0xaaaa000000000000000000000000000000000000000000000000000000000002"),
	}
}

func buildSnapshotLog(t *testing.T, id *big.Int) types.Log {
	t.Helper()
	parsed, err := TokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := parsed.Events["SnapshotCheckpointed"]
	data, err := event.Inputs.NonIndexed().Pack(id)
	if err != nil {
		t.Fatalf("pack snapshot data: %v", err)
	}
	return types.Log{
		Topics:      []common.Hash{event.ID},
		Data:        data,
		BlockNumber: 122,
		TxHash:      common.HexToHash("0xaaaa000000000000000000000000000000000000000000000000000000000003"),
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
