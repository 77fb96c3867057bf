package registry

import "github.com/ethereum/go-ethereum/common"

// Known deployments of the token and its proof-of-reserve oracle. The token
// bytecode is identical on every network; only the addresses differ.
// Redeployments ship as a new build, never as a runtime mutation.
const (
	mantleSepoliaChainID uint64 = 5003
	sepoliaChainID       uint64 = 11155111
	localChainID         uint64 = 31337
)

var defaultDeployments = map[uint64]Deployment{
	mantleSepoliaChainID: {
		Token:  common.HexToAddress("0x6c86e1a0bc5fdcd87d31bc5f79c6ab1a817f8c1d"),
		Oracle: common.HexToAddress("0x8d2e5c5da6b19d1220a0e9a0f0e5e9b8f0aa3b42"),
	},
	sepoliaChainID: {
		Token:  common.HexToAddress("0x3f1f8f52cf1c8efde01cbc9a67b3b9f875b12c6e"),
		Oracle: common.HexToAddress("0xa94b7f0d20cb7a552b2f24e57d12cf32c839db05"),
	},
	localChainID: {
		Token:  common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"),
		Oracle: common.HexToAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512"),
	},
}

// Default returns the registry of compiled-in deployments.
func Default() *Registry {
	reg, err := New(defaultDeployments)
	if err != nil {
		// defaultDeployments is static and complete; reaching this is a build defect.
		panic(err)
	}
	return reg
}
