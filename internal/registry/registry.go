package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrPartialDeployment = errors.New("partial deployment record")
)

// Deployment holds the contract addresses for one network. A network either
// has a complete record or none at all.
type Deployment struct {
	Token  common.Address
	Oracle common.Address
}

// Registry maps chain IDs to token deployments. It is populated once at
// construction and never mutated afterwards, so lookups need no locking.
type Registry struct {
	deployments map[uint64]Deployment
}

// New builds a Registry from parsed deployments. Records with a zero token or
// oracle address are rejected rather than stored partially.
func New(deployments map[uint64]Deployment) (*Registry, error) {
	out := make(map[uint64]Deployment, len(deployments))
	for chainID, dep := range deployments {
		if dep.Token == (common.Address{}) || dep.Oracle == (common.Address{}) {
			return nil, fmt.Errorf("chain %d: %w", chainID, ErrPartialDeployment)
		}
		out[chainID] = dep
	}
	return &Registry{deployments: out}, nil
}

// ParseDeployment validates and normalizes a pair of hex addresses.
func ParseDeployment(token, oracle string) (Deployment, error) {
	if !common.IsHexAddress(token) {
		return Deployment{}, fmt.Errorf("token address %q: %w", token, ErrInvalidAddress)
	}
	if !common.IsHexAddress(oracle) {
		return Deployment{}, fmt.Errorf("oracle address %q: %w", oracle, ErrInvalidAddress)
	}
	return Deployment{
		Token:  common.HexToAddress(token),
		Oracle: common.HexToAddress(oracle),
	}, nil
}

// Resolve returns the deployment for a network, or false when the network is
// not configured. Callers must treat absence as "unsupported network" and not
// attempt any call. Resolve never checks whether the contracts are live.
func (r *Registry) Resolve(chainID uint64) (Deployment, bool) {
	dep, ok := r.deployments[chainID]
	return dep, ok
}

// TokenAddress returns the token contract address for a network.
func (r *Registry) TokenAddress(chainID uint64) (common.Address, bool) {
	dep, ok := r.deployments[chainID]
	return dep.Token, ok
}

// OracleAddress returns the proof-of-reserve oracle address for a network.
func (r *Registry) OracleAddress(chainID uint64) (common.Address, bool) {
	dep, ok := r.deployments[chainID]
	return dep.Oracle, ok
}

// ChainIDs lists the configured networks in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.deployments))
	for id := range r.deployments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
