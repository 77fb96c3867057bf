package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"reserveScope/internal/token"
)

// Backend is the transport surface submission needs. chain.Client satisfies
// it; tests inject fakes.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ApproveFunc is consulted with the prepared request before anything is
// signed. Returning false vetoes the submission.
type ApproveFunc func(req token.WriteRequest) bool

// Local signs with an in-process private key. It backs the CLI and tests;
// other deployments inject their own token.Signer.
type Local struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend Backend
	approve ApproveFunc
	logger  *zap.Logger
}

// NewLocal builds a signer from a hex-encoded private key.
func NewLocal(hexKey string, backend Backend, logger *zap.Logger) (*Local, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		backend: backend,
		logger:  logger,
	}, nil
}

// Address returns the account this signer signs for.
func (l *Local) Address() common.Address { return l.address }

// SetApproval installs a veto hook consulted before signing.
func (l *Local) SetApproval(fn ApproveFunc) { l.approve = fn }

// Submit signs and broadcasts the prepared request, returning the transaction
// hash. A veto from the approval hook surfaces as ErrUserRejected.
func (l *Local) Submit(ctx context.Context, req token.WriteRequest) (common.Hash, error) {
	if l.approve != nil && !l.approve(req) {
		return common.Hash{}, token.ErrUserRejected
	}

	nonce, err := l.backend.PendingNonceAt(ctx, l.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gasLimit, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: l.address,
		To:   &req.To,
		Data: req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	// Headroom over the node's estimate.
	gasLimit += gasLimit / 5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	chainID := new(big.Int).SetUint64(req.ChainID)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), l.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	l.logger.Debug("transaction broadcast",
		zap.Uint64("chain_id", req.ChainID),
		zap.String("method", req.Method),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
	)
	return signed.Hash(), nil
}
