package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// StateKind identifies which derived value a cache entry holds.
type StateKind string

const (
	KindToken     StateKind = "token"
	KindBalance   StateKind = "balance"
	KindAllowance StateKind = "allowance"
	KindBalanceAt StateKind = "balance_at"
	KindSupplyAt  StateKind = "supply_at"
)

// StateKey addresses one derived-state cache entry. Unused fields stay zero,
// so keys of different kinds never collide.
type StateKey struct {
	ChainID    uint64
	Kind       StateKind
	Account    common.Address
	Spender    common.Address
	SnapshotID uint64
}

// TokenKey is the per-network token snapshot entry.
func TokenKey(chainID uint64) StateKey {
	return StateKey{ChainID: chainID, Kind: KindToken}
}

// BalanceKey is the live balance entry for an account.
func BalanceKey(chainID uint64, account common.Address) StateKey {
	return StateKey{ChainID: chainID, Kind: KindBalance, Account: account}
}

// AllowanceKey is the allowance entry for an owner/spender pair.
func AllowanceKey(chainID uint64, owner, spender common.Address) StateKey {
	return StateKey{ChainID: chainID, Kind: KindAllowance, Account: owner, Spender: spender}
}

// BalanceAtKey is the historical balance entry at a contract snapshot id.
func BalanceAtKey(chainID uint64, account common.Address, snapshotID uint64) StateKey {
	return StateKey{ChainID: chainID, Kind: KindBalanceAt, Account: account, SnapshotID: snapshotID}
}

// SupplyAtKey is the historical total supply entry at a contract snapshot id.
func SupplyAtKey(chainID uint64, snapshotID uint64) StateKey {
	return StateKey{ChainID: chainID, Kind: KindSupplyAt, SnapshotID: snapshotID}
}

func (k StateKey) String() string {
	switch k.Kind {
	case KindToken:
		return fmt.Sprintf("%s:%d", k.Kind, k.ChainID)
	case KindBalance:
		return fmt.Sprintf("%s:%d:%s", k.Kind, k.ChainID, k.Account.Hex())
	case KindAllowance:
		return fmt.Sprintf("%s:%d:%s:%s", k.Kind, k.ChainID, k.Account.Hex(), k.Spender.Hex())
	case KindBalanceAt:
		return fmt.Sprintf("%s:%d:%s:%d", k.Kind, k.ChainID, k.Account.Hex(), k.SnapshotID)
	case KindSupplyAt:
		return fmt.Sprintf("%s:%d:%d", k.Kind, k.ChainID, k.SnapshotID)
	default:
		return fmt.Sprintf("%s:%d", k.Kind, k.ChainID)
	}
}
