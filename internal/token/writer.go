package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"reserveScope/internal/model"
	"reserveScope/internal/registry"
)

// Signer turns a prepared write into a broadcast transaction. Implementations
// own key material, nonce and gas handling, and any approval flow; Submit
// returns once the transaction has been handed to the network. A rejection by
// the approval flow is reported by wrapping ErrUserRejected.
type Signer interface {
	Submit(ctx context.Context, req WriteRequest) (common.Hash, error)
}

// WriteRequest is a fully prepared state-changing call: target, packed
// calldata, and the participants needed to map a confirmed write back onto
// the state it touches. Participant fields are zero where a kind has no such
// role.
type WriteRequest struct {
	ChainID uint64
	To      common.Address
	Kind    model.WriteKind
	Method  string
	Data    []byte

	Source    common.Address
	Recipient common.Address
	Spender   common.Address
	Amount    *big.Int
}

// Writer prepares state-changing calls against the token contract resolved
// for a network. Preparation never touches the network; submission goes
// through a Signer supplied per call.
type Writer struct {
	reg *registry.Registry
}

// NewWriter builds a Writer over a deployment registry.
func NewWriter(reg *registry.Registry) *Writer {
	return &Writer{reg: reg}
}

func (w *Writer) prepare(chainID uint64, kind model.WriteKind, method string, args ...interface{}) (WriteRequest, error) {
	addr, ok := w.reg.TokenAddress(chainID)
	if !ok {
		return WriteRequest{}, fmt.Errorf("chain %d: %w", chainID, ErrUnresolvedAddress)
	}
	parsed, err := TokenABI()
	if err != nil {
		return WriteRequest{}, fmt.Errorf("parse token abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return WriteRequest{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return WriteRequest{ChainID: chainID, To: addr, Kind: kind, Method: method, Data: data}, nil
}

func validAmount(amount *big.Int) error {
	if amount == nil {
		return errors.New("amount is required")
	}
	if amount.Sign() < 0 {
		return errors.New("amount must not be negative")
	}
	return nil
}

// Transfer prepares a transfer of amount raw units from the sending account
// to the recipient.
func (w *Writer) Transfer(chainID uint64, from, to common.Address, amount *big.Int) (WriteRequest, error) {
	if err := validAmount(amount); err != nil {
		return WriteRequest{}, fmt.Errorf("transfer: %w", err)
	}
	req, err := w.prepare(chainID, model.WriteTransfer, "transfer", to, amount)
	if err != nil {
		return WriteRequest{}, err
	}
	req.Source = from
	req.Recipient = to
	req.Amount = new(big.Int).Set(amount)
	return req, nil
}

// Approve prepares an allowance grant from owner to spender.
func (w *Writer) Approve(chainID uint64, owner, spender common.Address, amount *big.Int) (WriteRequest, error) {
	if err := validAmount(amount); err != nil {
		return WriteRequest{}, fmt.Errorf("approve: %w", err)
	}
	req, err := w.prepare(chainID, model.WriteApprove, "approve", spender, amount)
	if err != nil {
		return WriteRequest{}, err
	}
	req.Source = owner
	req.Spender = spender
	req.Amount = new(big.Int).Set(amount)
	return req, nil
}

// TransferFrom prepares a delegated transfer: spender moves amount raw units
// from the owner account to the recipient, drawing down the owner->spender
// allowance.
func (w *Writer) TransferFrom(chainID uint64, spender, owner, to common.Address, amount *big.Int) (WriteRequest, error) {
	if err := validAmount(amount); err != nil {
		return WriteRequest{}, fmt.Errorf("transferFrom: %w", err)
	}
	req, err := w.prepare(chainID, model.WriteTransferFrom, "transferFrom", owner, to, amount)
	if err != nil {
		return WriteRequest{}, err
	}
	req.Source = owner
	req.Recipient = to
	req.Spender = spender
	req.Amount = new(big.Int).Set(amount)
	return req, nil
}

// Mint prepares an issuance of amount raw units to the recipient. Subject to
// the contract's own access control; an unauthorized caller surfaces as a
// revert at confirmation time.
func (w *Writer) Mint(chainID uint64, to common.Address, amount *big.Int) (WriteRequest, error) {
	if err := validAmount(amount); err != nil {
		return WriteRequest{}, fmt.Errorf("mint: %w", err)
	}
	req, err := w.prepare(chainID, model.WriteMint, "mint", to, amount)
	if err != nil {
		return WriteRequest{}, err
	}
	req.Recipient = to
	req.Amount = new(big.Int).Set(amount)
	return req, nil
}

// Burn prepares a destruction of amount raw units held by from.
func (w *Writer) Burn(chainID uint64, from common.Address, amount *big.Int) (WriteRequest, error) {
	if err := validAmount(amount); err != nil {
		return WriteRequest{}, fmt.Errorf("burn: %w", err)
	}
	req, err := w.prepare(chainID, model.WriteBurn, "burn", from, amount)
	if err != nil {
		return WriteRequest{}, err
	}
	req.Source = from
	req.Amount = new(big.Int).Set(amount)
	return req, nil
}

// CheckpointSnapshot prepares a call that records a new contract snapshot.
// The snapshot id is assigned on chain and recovered from the receipt logs
// after confirmation.
func (w *Writer) CheckpointSnapshot(chainID uint64) (WriteRequest, error) {
	return w.prepare(chainID, model.WriteSnapshot, "snapshot")
}

// Submit hands a prepared request to the signer. A nil signer fails with
// ErrSignerUnavailable before anything reaches the network. Rejections and
// context cancellation pass through unchanged; every other signer failure is
// wrapped as a SubmissionError.
func (w *Writer) Submit(ctx context.Context, signer Signer, req WriteRequest) (common.Hash, error) {
	if signer == nil {
		return common.Hash{}, ErrSignerUnavailable
	}
	hash, err := signer.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, ErrUserRejected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return common.Hash{}, err
		}
		return common.Hash{}, &SubmissionError{Method: req.Method, Err: err}
	}
	return hash, nil
}
