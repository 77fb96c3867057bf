package token

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"reserveScope/internal/chain"
	"reserveScope/internal/registry"
)

// ScanBackend is the transport surface event scanning needs. chain.Client
// satisfies it; tests inject fakes.
type ScanBackend interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
}

// HistoryEntry is one decoded token event. Exactly one of the event pointers
// is set, named by Event.
type HistoryEntry struct {
	Event       string
	BlockNumber uint64
	Timestamp   uint64
	TxHash      common.Hash
	Transfer    *TransferEvent
	Approval    *ApprovalEvent
	Snapshot    *SnapshotEvent
}

// ScanConfig holds runtime settings for an event scan.
type ScanConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Scanner streams the token contract's events over a block range, in batches
// sized for what public endpoints accept.
type Scanner struct {
	cfg        ScanConfig
	backend    ScanBackend
	reg        *registry.Registry
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewScanner builds a Scanner with its dependencies.
func NewScanner(cfg ScanConfig, backend ScanBackend, reg *registry.Registry, logger *zap.Logger) *Scanner {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:        cfg,
		backend:    backend,
		reg:        reg,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Scan fetches and decodes the token's events on one network. A zero ToBlock
// means the latest block at the time of the call.
func (s *Scanner) Scan(ctx context.Context, chainID uint64) ([]HistoryEntry, error) {
	addr, ok := s.reg.TokenAddress(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrUnresolvedAddress)
	}

	topics, err := EventTopics()
	if err != nil {
		return nil, err
	}

	from := s.cfg.FromBlock
	to := s.cfg.ToBlock
	if to == 0 {
		latest, err := s.backend.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := s.checkpoint.Load(chainID)
	if err != nil {
		return nil, err
	}
	if ok && cp.LastScannedBlock >= from {
		from = cp.LastScannedBlock + 1
		s.logger.Info("resume from checkpoint",
			zap.Uint64("chain_id", chainID),
			zap.Uint64("last_scanned", cp.LastScannedBlock),
			zap.Uint64("from", from),
		)
	}

	if from > to {
		return nil, nil
	}

	var entries []HistoryEntry
	for start := from; start <= to; {
		end := start + s.cfg.BatchSize - 1
		if end > to || end < start {
			end = to
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		s.logger.Debug("fetch events", zap.Uint64("from", start), zap.Uint64("to", end))

		logs, err := s.filterLogsWithRetry(ctx, start, end, addr, topics)
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}

		for _, log := range logs {
			if log.Removed || s.isDuplicate(log) {
				continue
			}
			entry, err := s.decode(log)
			if err != nil {
				s.logger.Warn("skip undecodable log",
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Uint64("block_number", log.BlockNumber),
					zap.Error(err),
				)
				continue
			}
			ts, err := s.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			entry.Timestamp = ts
			entries = append(entries, entry)
		}

		if err := s.checkpoint.Save(chainID, end); err != nil {
			return nil, err
		}

		if end == to {
			break
		}
		start = end + 1
	}

	return entries, nil
}

func (s *Scanner) decode(log types.Log) (HistoryEntry, error) {
	parsed, err := TokenABI()
	if err != nil {
		return HistoryEntry{}, err
	}
	entry := HistoryEntry{BlockNumber: log.BlockNumber, TxHash: log.TxHash}

	if len(log.Topics) == 0 {
		return HistoryEntry{}, fmt.Errorf("missing topics")
	}
	switch log.Topics[0] {
	case parsed.Events["Transfer"].ID:
		ev, err := DecodeTransfer(log)
		if err != nil {
			return HistoryEntry{}, err
		}
		entry.Event = "Transfer"
		entry.Transfer = &ev
	case parsed.Events["Approval"].ID:
		ev, err := DecodeApproval(log)
		if err != nil {
			return HistoryEntry{}, err
		}
		entry.Event = "Approval"
		entry.Approval = &ev
	case parsed.Events["SnapshotCheckpointed"].ID:
		ev, err := DecodeSnapshotCheckpointed(log)
		if err != nil {
			return HistoryEntry{}, err
		}
		entry.Event = "SnapshotCheckpointed"
		entry.Snapshot = &ev
	default:
		return HistoryEntry{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
	return entry, nil
}

func (s *Scanner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, addr common.Address, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := chain.WithRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.backend.FilterLogs(ctx, fromBlock, toBlock, []common.Address{addr}, [][]common.Hash{topics})
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (s *Scanner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := chain.WithRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = s.backend.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			s.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (s *Scanner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	return false
}
