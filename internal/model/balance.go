package model

import "math/big"

// BalanceRecord pairs a raw smallest-unit amount with its human-readable
// rendering. Raw is the only field valid for arithmetic; Formatted is derived.
type BalanceRecord struct {
	Raw       *big.Int
	Formatted string
}
