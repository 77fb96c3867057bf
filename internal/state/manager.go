package state

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"reserveScope/internal/journal"
	"reserveScope/internal/lifecycle"
	"reserveScope/internal/model"
	"reserveScope/internal/token"
)

// Session is the immutable context one operation runs under: the target
// network, the acting account, and the signer capability. It is captured by
// value at initiation, so switching network or account mid-flight never
// redirects a pending operation.
type Session struct {
	ChainID uint64
	Account common.Address
	Signer  token.Signer
}

// Write is one in-flight write operation: the prepared request plus the
// tracker following it. Each write gets its own Write; they are never reused
// across submissions.
type Write struct {
	Request token.WriteRequest
	Tracker *lifecycle.Tracker

	submittedAt time.Time
}

// SnapshotID recovers the snapshot id assigned on chain from a confirmed
// checkpoint write. The boolean is false before confirmation, for other
// write kinds, or when the receipt carries no checkpoint log.
func (w *Write) SnapshotID() (*big.Int, bool) {
	if w.Request.Kind != model.WriteSnapshot {
		return nil, false
	}
	return token.SnapshotIDFromReceipt(w.Tracker.Receipt(), w.Request.To)
}

// Manager is the application-facing surface: cached reads, prepared writes
// driven through their lifecycle, and the post-confirmation refresh that
// keeps derived state consistent with the chain.
type Manager struct {
	reader  *token.Reader
	writer  *token.Writer
	watcher *lifecycle.Watcher
	cache   *Cache
	coord   *Coordinator
	journal journal.Journal
	logger  *zap.Logger
}

// NewManager wires the manager. The journal may be nil, in which case write
// outcomes are not recorded.
func NewManager(reader *token.Reader, writer *token.Writer, watcher *lifecycle.Watcher, jrnl journal.Journal, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		reader:  reader,
		writer:  writer,
		watcher: watcher,
		cache:   NewCache(),
		journal: jrnl,
		logger:  logger,
	}
	m.coord = NewCoordinator(m.cache, m, logger)
	return m
}

// Cache exposes the derived-state cache for staleness queries.
func (m *Manager) Cache() *Cache { return m.cache }

// TokenView returns the token snapshot for a network, served from cache
// unless the entry is stale or missing.
func (m *Manager) TokenView(ctx context.Context, chainID uint64) (model.TokenSnapshot, error) {
	key := model.TokenKey(chainID)
	if !m.cache.IsStale(key) {
		if v, ok := m.cache.Get(key); ok {
			return v.(model.TokenSnapshot), nil
		}
	}
	return m.fetchTokenView(ctx, chainID)
}

// Balance returns the live balance of an account, served from cache unless
// stale. The formatted rendering uses the network's token decimals, fetched
// on demand.
func (m *Manager) Balance(ctx context.Context, chainID uint64, account common.Address) (model.BalanceRecord, error) {
	key := model.BalanceKey(chainID, account)
	if !m.cache.IsStale(key) {
		if v, ok := m.cache.Get(key); ok {
			return v.(model.BalanceRecord), nil
		}
	}
	return m.fetchBalance(ctx, chainID, account)
}

// BalanceAt returns an account's balance recorded at a contract snapshot id.
// Historical entries never go stale on their own; once fetched they are
// served from cache.
func (m *Manager) BalanceAt(ctx context.Context, chainID uint64, account common.Address, snapshotID uint64) (model.BalanceRecord, error) {
	key := model.BalanceAtKey(chainID, account, snapshotID)
	if !m.cache.IsStale(key) {
		if v, ok := m.cache.Get(key); ok {
			return v.(model.BalanceRecord), nil
		}
	}
	return m.fetchBalanceAt(ctx, chainID, account, snapshotID)
}

// SupplyAt returns the total supply recorded at a contract snapshot id.
func (m *Manager) SupplyAt(ctx context.Context, chainID uint64, snapshotID uint64) (model.BalanceRecord, error) {
	key := model.SupplyAtKey(chainID, snapshotID)
	if !m.cache.IsStale(key) {
		if v, ok := m.cache.Get(key); ok {
			return v.(model.BalanceRecord), nil
		}
	}
	return m.fetchSupplyAt(ctx, chainID, snapshotID)
}

// Allowance returns what a spender may draw from an owner, served from cache
// unless stale.
func (m *Manager) Allowance(ctx context.Context, chainID uint64, owner, spender common.Address) (model.BalanceRecord, error) {
	key := model.AllowanceKey(chainID, owner, spender)
	if !m.cache.IsStale(key) {
		if v, ok := m.cache.Get(key); ok {
			return v.(model.BalanceRecord), nil
		}
	}
	return m.fetchAllowance(ctx, chainID, owner, spender)
}

// Transfer submits a transfer of a human-readable amount from the session
// account to the recipient.
func (m *Manager) Transfer(ctx context.Context, s Session, to common.Address, amount string) (*Write, error) {
	raw, err := m.parseAmount(s.ChainID, amount)
	if err != nil {
		return nil, err
	}
	req, err := m.writer.Transfer(s.ChainID, s.Account, to, raw)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, s, req)
}

// Approve submits an allowance grant from the session account to the spender.
func (m *Manager) Approve(ctx context.Context, s Session, spender common.Address, amount string) (*Write, error) {
	raw, err := m.parseAmount(s.ChainID, amount)
	if err != nil {
		return nil, err
	}
	req, err := m.writer.Approve(s.ChainID, s.Account, spender, raw)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, s, req)
}

// TransferFrom submits a delegated transfer: the session account spends its
// allowance to move funds from the owner to the recipient.
func (m *Manager) TransferFrom(ctx context.Context, s Session, owner, to common.Address, amount string) (*Write, error) {
	raw, err := m.parseAmount(s.ChainID, amount)
	if err != nil {
		return nil, err
	}
	req, err := m.writer.TransferFrom(s.ChainID, s.Account, owner, to, raw)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, s, req)
}

// Mint submits an issuance to the recipient. Authorization is the contract's
// concern; an unauthorized session surfaces as a revert.
func (m *Manager) Mint(ctx context.Context, s Session, to common.Address, amount string) (*Write, error) {
	raw, err := m.parseAmount(s.ChainID, amount)
	if err != nil {
		return nil, err
	}
	req, err := m.writer.Mint(s.ChainID, to, raw)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, s, req)
}

// Burn submits a destruction of funds held by the given account.
func (m *Manager) Burn(ctx context.Context, s Session, from common.Address, amount string) (*Write, error) {
	raw, err := m.parseAmount(s.ChainID, amount)
	if err != nil {
		return nil, err
	}
	req, err := m.writer.Burn(s.ChainID, from, raw)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, s, req)
}

// CheckpointSnapshot submits a call recording a new contract snapshot. No
// amount is involved, so it does not require token metadata.
func (m *Manager) CheckpointSnapshot(ctx context.Context, s Session) (*Write, error) {
	req, err := m.writer.CheckpointSnapshot(s.ChainID)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, s, req)
}

// Await drives a submitted write to a terminal state: it watches for the
// receipt, refreshes affected state on confirmation, journals the outcome,
// and reports a revert as a RevertError. Cancelling the context abandons
// observation without forcing a terminal state; Await may be called again on
// the same write.
func (m *Manager) Await(ctx context.Context, w *Write) error {
	replay := lifecycle.ReplayCall{
		From: w.Tracker.Account(),
		To:   w.Request.To,
		Data: w.Request.Data,
	}
	watchErr := m.watcher.Watch(ctx, w.Tracker, replay)

	status := w.Tracker.Current()
	if status.State.Terminal() {
		m.recordOutcome(w, status)
	}
	if watchErr != nil {
		return watchErr
	}

	switch status.State {
	case lifecycle.StateConfirmed:
		m.coord.OnConfirmed(ctx, w.Request)
		m.logger.Info("write confirmed",
			zap.Uint64("chain_id", w.Request.ChainID),
			zap.String("kind", string(w.Request.Kind)),
			zap.String("tx_hash", status.TxHash.Hex()),
		)
		return nil
	case lifecycle.StateFailed:
		return &token.RevertError{Reason: status.Reason}
	default:
		return fmt.Errorf("watch ended in non-terminal state %s", status.State)
	}
}

// RefetchKey fetches the value behind one state key and stores it, repairing
// a stale entry.
func (m *Manager) RefetchKey(ctx context.Context, key model.StateKey) error {
	switch key.Kind {
	case model.KindToken:
		_, err := m.fetchTokenView(ctx, key.ChainID)
		return err
	case model.KindBalance:
		_, err := m.fetchBalance(ctx, key.ChainID, key.Account)
		return err
	case model.KindAllowance:
		_, err := m.fetchAllowance(ctx, key.ChainID, key.Account, key.Spender)
		return err
	case model.KindBalanceAt:
		_, err := m.fetchBalanceAt(ctx, key.ChainID, key.Account, key.SnapshotID)
		return err
	case model.KindSupplyAt:
		_, err := m.fetchSupplyAt(ctx, key.ChainID, key.SnapshotID)
		return err
	default:
		return fmt.Errorf("unknown state kind: %s", key.Kind)
	}
}

func (m *Manager) fetchTokenView(ctx context.Context, chainID uint64) (model.TokenSnapshot, error) {
	key := model.TokenKey(chainID)
	seq := m.cache.NextSeq()
	snap, err := m.reader.Snapshot(ctx, chainID)
	if err != nil {
		return model.TokenSnapshot{}, err
	}
	m.cache.Put(key, snap, seq)
	return snap, nil
}

func (m *Manager) fetchBalance(ctx context.Context, chainID uint64, account common.Address) (model.BalanceRecord, error) {
	snap, err := m.TokenView(ctx, chainID)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	key := model.BalanceKey(chainID, account)
	seq := m.cache.NextSeq()
	raw, err := m.reader.BalanceOf(ctx, chainID, account)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	rec := model.BalanceRecord{Raw: raw, Formatted: token.FormatAmount(raw, snap.Decimals)}
	m.cache.Put(key, rec, seq)
	return rec, nil
}

func (m *Manager) fetchBalanceAt(ctx context.Context, chainID uint64, account common.Address, snapshotID uint64) (model.BalanceRecord, error) {
	snap, err := m.TokenView(ctx, chainID)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	key := model.BalanceAtKey(chainID, account, snapshotID)
	seq := m.cache.NextSeq()
	raw, err := m.reader.BalanceOfAt(ctx, chainID, account, snapshotID)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	rec := model.BalanceRecord{Raw: raw, Formatted: token.FormatAmount(raw, snap.Decimals)}
	m.cache.Put(key, rec, seq)
	return rec, nil
}

func (m *Manager) fetchSupplyAt(ctx context.Context, chainID uint64, snapshotID uint64) (model.BalanceRecord, error) {
	snap, err := m.TokenView(ctx, chainID)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	key := model.SupplyAtKey(chainID, snapshotID)
	seq := m.cache.NextSeq()
	raw, err := m.reader.TotalSupplyAt(ctx, chainID, snapshotID)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	rec := model.BalanceRecord{Raw: raw, Formatted: token.FormatAmount(raw, snap.Decimals)}
	m.cache.Put(key, rec, seq)
	return rec, nil
}

func (m *Manager) fetchAllowance(ctx context.Context, chainID uint64, owner, spender common.Address) (model.BalanceRecord, error) {
	snap, err := m.TokenView(ctx, chainID)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	key := model.AllowanceKey(chainID, owner, spender)
	seq := m.cache.NextSeq()
	raw, err := m.reader.Allowance(ctx, chainID, owner, spender)
	if err != nil {
		return model.BalanceRecord{}, err
	}
	rec := model.BalanceRecord{Raw: raw, Formatted: token.FormatAmount(raw, snap.Decimals)}
	m.cache.Put(key, rec, seq)
	return rec, nil
}

// parseAmount converts a human-readable amount into raw units using the most
// recently fetched token snapshot. Without a fetched snapshot the conversion
// refuses to guess a decimal count.
func (m *Manager) parseAmount(chainID uint64, amount string) (*big.Int, error) {
	v, ok := m.cache.Get(model.TokenKey(chainID))
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, token.ErrMissingTokenMetadata)
	}
	snap := v.(model.TokenSnapshot)
	return token.ParseAmount(amount, snap.Decimals)
}

func (m *Manager) submit(ctx context.Context, s Session, req token.WriteRequest) (*Write, error) {
	hash, err := m.writer.Submit(ctx, s.Signer, req)
	if err != nil {
		return nil, err
	}
	tracker := lifecycle.NewTracker(req.ChainID, s.Account, req.Kind)
	if err := tracker.MarkSubmitted(hash); err != nil {
		return nil, err
	}
	m.logger.Info("write submitted",
		zap.Uint64("chain_id", req.ChainID),
		zap.String("kind", string(req.Kind)),
		zap.String("tx_hash", hash.Hex()),
	)
	return &Write{Request: req, Tracker: tracker, submittedAt: time.Now().UTC()}, nil
}

func (m *Manager) recordOutcome(w *Write, status lifecycle.Status) {
	if m.journal == nil {
		return
	}
	rec := model.WriteRecord{
		ChainID:     w.Request.ChainID,
		Account:     w.Tracker.Account().Hex(),
		Kind:        string(w.Request.Kind),
		TxHash:      status.TxHash.Hex(),
		State:       string(status.State),
		Reason:      status.Reason,
		SubmittedAt: w.submittedAt.Format(time.RFC3339Nano),
		FinishedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.journal.Record(ctx, rec); err != nil {
		m.logger.Warn("journal record failed",
			zap.String("tx_hash", rec.TxHash),
			zap.Error(err),
		)
	}
}
