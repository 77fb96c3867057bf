package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenSnapshot is the batch-fetched view of the token contract on one network.
// All fields come from a single fetch cycle; callers must not mix fields from
// different snapshots when consistency matters.
type TokenSnapshot struct {
	Name             string
	Symbol           string
	Decimals         uint8
	TotalSupply      *big.Int
	VerifiedReserves *big.Int
	FullyBacked      bool
	OracleAddress    common.Address
}
