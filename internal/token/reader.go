package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"reserveScope/internal/chain"
	"reserveScope/internal/model"
	"reserveScope/internal/registry"
)

// CallBackend is the read-side transport dependency. chain.Client satisfies
// it; tests inject fakes.
type CallBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReaderConfig tunes the view-call retry policy. Zero values mean no retries.
type ReaderConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Reader dispatches view calls against the token contract resolved for a
// network. Every call is idempotent and side-effect free; transport failures
// are retried per config, schema mismatches are not.
type Reader struct {
	cfg     ReaderConfig
	backend CallBackend
	reg     *registry.Registry
	logger  *zap.Logger
}

// NewReader builds a Reader with its dependencies.
func NewReader(cfg ReaderConfig, backend CallBackend, reg *registry.Registry, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{cfg: cfg, backend: backend, reg: reg, logger: logger}
}

func (r *Reader) call(ctx context.Context, chainID uint64, method string, args ...interface{}) ([]interface{}, error) {
	addr, ok := r.reg.TokenAddress(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrUnresolvedAddress)
	}

	parsed, err := TokenABI()
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &addr, Data: data}
	var resp []byte
	err = chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = r.backend.CallContract(ctx, msg, nil)
		if callErr != nil {
			r.logger.Debug("view call failed",
				zap.Uint64("chain_id", chainID),
				zap.String("method", method),
				zap.Error(callErr),
			)
		}
		return callErr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &RPCError{Method: method, Err: err}
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, &DecodeError{Method: method, Err: err}
	}
	return values, nil
}

// Name returns the token name.
func (r *Reader) Name(ctx context.Context, chainID uint64) (string, error) {
	values, err := r.call(ctx, chainID, "name")
	if err != nil {
		return "", err
	}
	return asString(values[0], "name")
}

// Symbol returns the token symbol.
func (r *Reader) Symbol(ctx context.Context, chainID uint64) (string, error) {
	values, err := r.call(ctx, chainID, "symbol")
	if err != nil {
		return "", err
	}
	return asString(values[0], "symbol")
}

// Decimals returns the token decimal places.
func (r *Reader) Decimals(ctx context.Context, chainID uint64) (uint8, error) {
	values, err := r.call(ctx, chainID, "decimals")
	if err != nil {
		return 0, err
	}
	return asUint8(values[0], "decimals")
}

// TotalSupply returns the current total supply in raw units.
func (r *Reader) TotalSupply(ctx context.Context, chainID uint64) (*big.Int, error) {
	values, err := r.call(ctx, chainID, "totalSupply")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0], "totalSupply")
}

// BalanceOf returns the live balance of an account in raw units.
func (r *Reader) BalanceOf(ctx context.Context, chainID uint64, account common.Address) (*big.Int, error) {
	values, err := r.call(ctx, chainID, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0], "balanceOf")
}

// BalanceOfAt returns the balance recorded at a contract snapshot id.
func (r *Reader) BalanceOfAt(ctx context.Context, chainID uint64, account common.Address, snapshotID uint64) (*big.Int, error) {
	values, err := r.call(ctx, chainID, "balanceOfAt", account, new(big.Int).SetUint64(snapshotID))
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0], "balanceOfAt")
}

// TotalSupplyAt returns the total supply recorded at a contract snapshot id.
func (r *Reader) TotalSupplyAt(ctx context.Context, chainID uint64, snapshotID uint64) (*big.Int, error) {
	values, err := r.call(ctx, chainID, "totalSupplyAt", new(big.Int).SetUint64(snapshotID))
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0], "totalSupplyAt")
}

// Allowance returns the amount a spender may draw from an owner, in raw units.
func (r *Reader) Allowance(ctx context.Context, chainID uint64, owner, spender common.Address) (*big.Int, error) {
	values, err := r.call(ctx, chainID, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0], "allowance")
}

// VerifiedReserves returns the oracle-verified reserve amount in raw units.
func (r *Reader) VerifiedReserves(ctx context.Context, chainID uint64) (*big.Int, error) {
	values, err := r.call(ctx, chainID, "getVerifiedReserves")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0], "getVerifiedReserves")
}

// FullyBacked returns the contract's own view of whether reserves cover supply.
func (r *Reader) FullyBacked(ctx context.Context, chainID uint64) (bool, error) {
	values, err := r.call(ctx, chainID, "isFullyBacked")
	if err != nil {
		return false, err
	}
	return asBool(values[0], "isFullyBacked")
}

// ProofOfReserveAddress returns the oracle address wired into the contract.
func (r *Reader) ProofOfReserveAddress(ctx context.Context, chainID uint64) (common.Address, error) {
	values, err := r.call(ctx, chainID, "getProofOfReserveAddress")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0], "getProofOfReserveAddress")
}

// Snapshot fetches the full token view in one cycle. The individual reads run
// concurrently; any failure discards the whole cycle so callers never see a
// view mixed across cycles. FullyBacked is recomputed from the fetched pair,
// keeping the supply/reserve comparison consistent within the snapshot.
func (r *Reader) Snapshot(ctx context.Context, chainID uint64) (model.TokenSnapshot, error) {
	if _, ok := r.reg.TokenAddress(chainID); !ok {
		return model.TokenSnapshot{}, fmt.Errorf("chain %d: %w", chainID, ErrUnresolvedAddress)
	}

	var snap model.TokenSnapshot
	steps := []func(context.Context) error{
		func(ctx context.Context) error {
			v, err := r.Name(ctx, chainID)
			snap.Name = v
			return err
		},
		func(ctx context.Context) error {
			v, err := r.Symbol(ctx, chainID)
			snap.Symbol = v
			return err
		},
		func(ctx context.Context) error {
			v, err := r.Decimals(ctx, chainID)
			snap.Decimals = v
			return err
		},
		func(ctx context.Context) error {
			v, err := r.TotalSupply(ctx, chainID)
			snap.TotalSupply = v
			return err
		},
		func(ctx context.Context) error {
			v, err := r.VerifiedReserves(ctx, chainID)
			snap.VerifiedReserves = v
			return err
		},
		func(ctx context.Context) error {
			v, err := r.ProofOfReserveAddress(ctx, chainID)
			snap.OracleAddress = v
			return err
		},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(steps))
	for i, step := range steps {
		wg.Add(1)
		go func(i int, fn func(context.Context) error) {
			defer wg.Done()
			errs[i] = fn(ctx)
		}(i, step)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return model.TokenSnapshot{}, err
		}
	}

	snap.FullyBacked = snap.VerifiedReserves.Cmp(snap.TotalSupply) >= 0
	return snap, nil
}

func asString(value interface{}, method string) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &DecodeError{Method: method, Err: fmt.Errorf("unsupported string type %T", value)}
	}
	return s, nil
}

func asBool(value interface{}, method string) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, &DecodeError{Method: method, Err: fmt.Errorf("unsupported bool type %T", value)}
	}
	return b, nil
}

func asAddress(value interface{}, method string) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, &DecodeError{Method: method, Err: fmt.Errorf("unsupported address type %T", value)}
	}
}

func asBigInt(value interface{}, method string) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, &DecodeError{Method: method, Err: fmt.Errorf("unsupported int type %T", value)}
	}
}

func asUint8(value interface{}, method string) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, &DecodeError{Method: method, Err: fmt.Errorf("uint8 overflow: %s", v.String())}
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, &DecodeError{Method: method, Err: fmt.Errorf("unsupported uint8 type %T", value)}
	}
}
