package state

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"reserveScope/internal/model"
	"reserveScope/internal/token"
)

// AffectedKeys maps a confirmed write onto the cache keys whose values it may
// have changed. The mapping is fixed per write kind: a transfer touches the
// two balances, a delegated transfer additionally draws down the allowance,
// issuance and destruction move total supply and so touch the token view.
// Checkpointing a snapshot changes nothing cached, since historical views are
// immutable once recorded.
func AffectedKeys(req token.WriteRequest) []model.StateKey {
	var keys []model.StateKey
	add := func(key model.StateKey) {
		for _, existing := range keys {
			if existing == key {
				return
			}
		}
		keys = append(keys, key)
	}

	switch req.Kind {
	case model.WriteTransfer:
		add(model.BalanceKey(req.ChainID, req.Source))
		add(model.BalanceKey(req.ChainID, req.Recipient))
	case model.WriteApprove:
		add(model.AllowanceKey(req.ChainID, req.Source, req.Spender))
	case model.WriteTransferFrom:
		add(model.BalanceKey(req.ChainID, req.Source))
		add(model.BalanceKey(req.ChainID, req.Recipient))
		add(model.AllowanceKey(req.ChainID, req.Source, req.Spender))
	case model.WriteMint:
		add(model.BalanceKey(req.ChainID, req.Recipient))
		add(model.TokenKey(req.ChainID))
	case model.WriteBurn:
		add(model.BalanceKey(req.ChainID, req.Source))
		add(model.TokenKey(req.ChainID))
	case model.WriteSnapshot:
	}
	return keys
}

// Fetcher refetches the value behind one state key and stores it.
type Fetcher interface {
	RefetchKey(ctx context.Context, key model.StateKey) error
}

// Coordinator reconciles the cache after a confirmed write: it invalidates
// the affected keys first, then refetches them. It runs only on confirmed
// outcomes; failed writes leave the cache untouched.
type Coordinator struct {
	cache   *Cache
	fetcher Fetcher
	logger  *zap.Logger
}

// NewCoordinator builds a refresh coordinator.
func NewCoordinator(cache *Cache, fetcher Fetcher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cache: cache, fetcher: fetcher, logger: logger}
}

// OnConfirmed invalidates every key the confirmed write affects and then
// refetches them concurrently. All invalidations happen before the first
// refetch starts, so stale reads in between see the staleness mark. A failed
// refetch is logged and leaves its key stale for the next read to repair;
// the confirmation itself is never rolled back.
func (c *Coordinator) OnConfirmed(ctx context.Context, req token.WriteRequest) {
	keys := AffectedKeys(req)
	if len(keys) == 0 {
		return
	}
	for _, key := range keys {
		c.cache.Invalidate(key)
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key model.StateKey) {
			defer wg.Done()
			if err := c.fetcher.RefetchKey(ctx, key); err != nil {
				c.logger.Warn("state refresh failed",
					zap.String("key", key.String()),
					zap.Error(err),
				)
			}
		}(key)
	}
	wg.Wait()
}
