package token

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeSigner struct {
	calls int
	hash  common.Hash
	err   error
	last  WriteRequest
}

func (f *fakeSigner) Submit(_ context.Context, req WriteRequest) (common.Hash, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return common.Hash{}, f.err
	}
	return f.hash, nil
}

func unpackCalldata(t *testing.T, method string, data []byte) []interface{} {
	t.Helper()
	parsed, err := TokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	if len(data) < 4 || !bytes.Equal(data[:4], m.ID) {
		t.Fatalf("calldata selector mismatch for %s", method)
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack %s calldata: %v", method, err)
	}
	return args
}

func TestTransferRequestShape(t *testing.T) {
	w := NewWriter(testRegistry(t))
	from := common.HexToAddress("0x5555555555555555555555555555555555555555")
	to := common.HexToAddress("0x6666666666666666666666666666666666666666")

	req, err := w.Transfer(testChainID, from, to, big.NewInt(1000))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if req.Kind != "transfer" || req.Method != "transfer" {
		t.Fatalf("kind mismatch: %+v", req)
	}
	if req.Source != from || req.Recipient != to {
		t.Fatalf("participant mismatch: %+v", req)
	}
	if req.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("amount mismatch: %s", req.Amount)
	}

	args := unpackCalldata(t, "transfer", req.Data)
	if args[0].(common.Address) != to {
		t.Fatalf("calldata recipient mismatch: %v", args[0])
	}
	if args[1].(*big.Int).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("calldata amount mismatch: %v", args[1])
	}
}

func TestApproveRequestShape(t *testing.T) {
	w := NewWriter(testRegistry(t))
	owner := common.HexToAddress("0x5555555555555555555555555555555555555555")
	spender := common.HexToAddress("0x7777777777777777777777777777777777777777")

	req, err := w.Approve(testChainID, owner, spender, big.NewInt(50))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if req.Source != owner || req.Spender != spender {
		t.Fatalf("participant mismatch: %+v", req)
	}
	if req.Recipient != (common.Address{}) {
		t.Fatalf("approve has no recipient role: %s", req.Recipient.Hex())
	}

	args := unpackCalldata(t, "approve", req.Data)
	if args[0].(common.Address) != spender {
		t.Fatalf("calldata spender mismatch: %v", args[0])
	}
}

func TestTransferFromRequestShape(t *testing.T) {
	w := NewWriter(testRegistry(t))
	spender := common.HexToAddress("0x7777777777777777777777777777777777777777")
	owner := common.HexToAddress("0x5555555555555555555555555555555555555555")
	to := common.HexToAddress("0x6666666666666666666666666666666666666666")

	req, err := w.TransferFrom(testChainID, spender, owner, to, big.NewInt(25))
	if err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if req.Source != owner || req.Recipient != to || req.Spender != spender {
		t.Fatalf("participant mismatch: %+v", req)
	}

	args := unpackCalldata(t, "transferFrom", req.Data)
	if args[0].(common.Address) != owner || args[1].(common.Address) != to {
		t.Fatalf("calldata participants mismatch: %v", args)
	}
}

func TestMintAndBurnRequestShape(t *testing.T) {
	w := NewWriter(testRegistry(t))
	account := common.HexToAddress("0x5555555555555555555555555555555555555555")

	mint, err := w.Mint(testChainID, account, big.NewInt(9))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if mint.Recipient != account || mint.Source != (common.Address{}) {
		t.Fatalf("mint participant mismatch: %+v", mint)
	}
	unpackCalldata(t, "mint", mint.Data)

	burn, err := w.Burn(testChainID, account, big.NewInt(9))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if burn.Source != account || burn.Recipient != (common.Address{}) {
		t.Fatalf("burn participant mismatch: %+v", burn)
	}
	unpackCalldata(t, "burn", burn.Data)
}

func TestCheckpointSnapshotRequest(t *testing.T) {
	w := NewWriter(testRegistry(t))

	req, err := w.CheckpointSnapshot(testChainID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if req.Kind != "snapshot" {
		t.Fatalf("kind mismatch: %s", req.Kind)
	}
	if len(req.Data) != 4 {
		t.Fatalf("snapshot takes no arguments, calldata is %d bytes", len(req.Data))
	}
	if req.Amount != nil {
		t.Fatalf("snapshot has no amount")
	}
}

func TestWriterRejectsBadAmounts(t *testing.T) {
	w := NewWriter(testRegistry(t))
	account := common.HexToAddress("0x5555555555555555555555555555555555555555")

	if _, err := w.Transfer(testChainID, account, account, nil); err == nil {
		t.Fatalf("expected error for nil amount")
	}
	if _, err := w.Transfer(testChainID, account, account, big.NewInt(-1)); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestWriterUnresolvedNetwork(t *testing.T) {
	w := NewWriter(testRegistry(t))
	account := common.HexToAddress("0x5555555555555555555555555555555555555555")

	_, err := w.Transfer(424242, account, account, big.NewInt(1))
	if !errors.Is(err, ErrUnresolvedAddress) {
		t.Fatalf("expected unresolved address error, got %v", err)
	}
}

func TestWriterAmountCopied(t *testing.T) {
	w := NewWriter(testRegistry(t))
	account := common.HexToAddress("0x5555555555555555555555555555555555555555")

	amount := big.NewInt(100)
	req, err := w.Transfer(testChainID, account, account, amount)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	amount.SetInt64(1)
	if req.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("request amount aliases the caller's value: %s", req.Amount)
	}
}

func TestSubmitNilSigner(t *testing.T) {
	w := NewWriter(testRegistry(t))
	req, err := w.CheckpointSnapshot(testChainID)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	_, err = w.Submit(context.Background(), nil, req)
	if !errors.Is(err, ErrSignerUnavailable) {
		t.Fatalf("expected signer unavailable, got %v", err)
	}
}

func TestSubmitUserRejectedPassthrough(t *testing.T) {
	w := NewWriter(testRegistry(t))
	req, err := w.CheckpointSnapshot(testChainID)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	signer := &fakeSigner{err: fmt.Errorf("approval: %w", ErrUserRejected)}
	_, err = w.Submit(context.Background(), signer, req)
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected rejection to pass through, got %v", err)
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		t.Fatalf("rejection must not be reported as a submission failure")
	}
}

func TestSubmitWrapsSignerFailures(t *testing.T) {
	w := NewWriter(testRegistry(t))
	req, err := w.Transfer(testChainID,
		common.HexToAddress("0x5555555555555555555555555555555555555555"),
		common.HexToAddress("0x6666666666666666666666666666666666666666"),
		big.NewInt(1))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	signer := &fakeSigner{err: errors.New("nonce too low")}
	_, err = w.Submit(context.Background(), signer, req)

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if subErr.Method != "transfer" {
		t.Fatalf("method mismatch: %s", subErr.Method)
	}
}

func TestSubmitReturnsSignerHash(t *testing.T) {
	w := NewWriter(testRegistry(t))
	req, err := w.CheckpointSnapshot(testChainID)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	want := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000000")
	signer := &fakeSigner{hash: want}
	hash, err := w.Submit(context.Background(), signer, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hash != want {
		t.Fatalf("hash mismatch: %s", hash.Hex())
	}
	if signer.calls != 1 || signer.last.Method != "snapshot" {
		t.Fatalf("signer saw wrong request: %+v", signer.last)
	}
}
