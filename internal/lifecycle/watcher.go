package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Backend is the transport surface the watcher needs. chain.Client satisfies
// it; tests inject fakes.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReplayCall is the call a reverted transaction is re-executed with, against
// the block it failed in, to recover the revert reason.
type ReplayCall struct {
	From common.Address
	To   common.Address
	Data []byte
}

// WatchConfig tunes receipt polling.
type WatchConfig struct {
	PollInterval     time.Duration
	MaxTransportErrs int
}

const (
	defaultPollInterval     = 2 * time.Second
	defaultMaxTransportErrs = 5
)

// Watcher drives a tracker from Submitted to a terminal state by polling for
// the transaction receipt.
type Watcher struct {
	cfg     WatchConfig
	backend Backend
	logger  *zap.Logger
}

// NewWatcher builds a watcher. Zero config fields fall back to defaults.
func NewWatcher(cfg WatchConfig, backend Backend, logger *zap.Logger) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxTransportErrs <= 0 {
		cfg.MaxTransportErrs = defaultMaxTransportErrs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{cfg: cfg, backend: backend, logger: logger}
}

// Watch polls for the tracked transaction's receipt until the tracker reaches
// a terminal state. A receipt with a failed status marks the tracker Failed
// with the recovered revert reason and still returns nil: the observation
// itself succeeded. Watch returns an error only when observation breaks off,
// from context cancellation or from repeated transport failures; on
// cancellation the tracker is left non-terminal so a caller may watch again.
func (w *Watcher) Watch(ctx context.Context, tracker *Tracker, replay ReplayCall) error {
	status := tracker.Current()
	if status.State != StateSubmitted && status.State != StateConfirming {
		return fmt.Errorf("%w: watch from %s", ErrInvalidTransition, status.State)
	}
	txHash := status.TxHash

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	transportErrs := 0
	for {
		receipt, err := w.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			return w.settle(ctx, tracker, replay, receipt)
		case errors.Is(err, ethereum.NotFound):
			// Still pending, keep polling.
			transportErrs = 0
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			transportErrs++
			w.logger.Warn("receipt poll failed",
				zap.String("tx_hash", txHash.Hex()),
				zap.Int("attempt", transportErrs),
				zap.Error(err),
			)
			if transportErrs >= w.cfg.MaxTransportErrs {
				reason := fmt.Sprintf("receipt polling failed: %v", err)
				if markErr := tracker.MarkFailed(reason); markErr != nil {
					return markErr
				}
				return fmt.Errorf("poll receipt %s: %w", txHash.Hex(), err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) settle(ctx context.Context, tracker *Tracker, replay ReplayCall, receipt *types.Receipt) error {
	// A watch resumed after cancellation may already be past Submitted.
	if tracker.Current().State == StateSubmitted {
		if err := tracker.MarkConfirming(); err != nil {
			return err
		}
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return tracker.MarkConfirmed(receipt)
	}
	reason := w.revertReason(ctx, replay, receipt)
	w.logger.Info("transaction reverted",
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.String("reason", reason),
	)
	return tracker.MarkFailed(reason)
}

// revertReason re-executes the failed call at the receipt's block and digs
// the reason string out of the node's error response.
func (w *Watcher) revertReason(ctx context.Context, replay ReplayCall, receipt *types.Receipt) string {
	if replay.To == (common.Address{}) {
		return "execution reverted"
	}
	call := ethereum.CallMsg{From: replay.From, To: &replay.To, Data: replay.Data}
	_, err := w.backend.CallContract(ctx, call, receipt.BlockNumber)
	if err == nil {
		return "execution reverted"
	}
	if reason := reasonFromError(err); reason != "" {
		return reason
	}
	return err.Error()
}

func reasonFromError(err error) string {
	// The node's revert payload travels in a private go-ethereum error type;
	// match it structurally.
	type jsonError interface {
		Error() string
		ErrorCode() int
		ErrorData() any
	}
	var jerr jsonError
	if !errors.As(err, &jerr) {
		return ""
	}
	hexData, ok := jerr.ErrorData().(string)
	if !ok {
		return ""
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return ""
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return ""
	}
	return reason
}
