// Package config holds the per-network constants burnkit needs to talk to
// the BETH and WORM contracts and to the proving services.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultNetwork is used when no network is configured.
const DefaultNetwork = "sepolia"

// DefaultNullifierSlot is the storage slot of the nullifiers mapping in the
// BETH contract. It follows the five ERC20 slots.
const DefaultNullifierSlot = 5

// Network contains the contract addresses and endpoints of one deployment.
type Network struct {
	Name              string
	ChainID           uint64
	RPC               []string
	BETH              common.Address
	WORM              common.Address
	NullifierSlot     uint64
	ProvingEndpoints  []string
	BlockExplorerURLs []string
}

// Networks contains the known deployments by name.
var Networks = map[string]Network{
	"sepolia": {
		Name:              "sepolia",
		ChainID:           11155111,
		RPC:               []string{"https://sepolia.drpc.org"},
		BETH:              common.HexToAddress("0x198dbCAB39377f4219553Cc0e7133b7f37c6ca9e"),
		WORM:              common.HexToAddress("0x7745F3fD93ad92DA828363Dc26EDbc9b2C788935"),
		NullifierSlot:     DefaultNullifierSlot,
		ProvingEndpoints:  []string{"http://12.23.34.45:8000/prove", "http://45.34.23.12:8000/prove"},
		BlockExplorerURLs: []string{"https://sepolia.etherscan.io"},
	},
	"anvil": {
		Name:             "anvil",
		ChainID:          31337,
		RPC:              []string{"http://127.0.0.1:8545"},
		BETH:             common.HexToAddress("0xe78A0F7E598Cc8b0Bb87894B0F60dD2a88d6a8Ab"),
		WORM:             common.HexToAddress("0x5b1869D9A4C187F2EAa108f3062412ecf0526b24"),
		NullifierSlot:    DefaultNullifierSlot,
		ProvingEndpoints: []string{"http://12.23.34.45:8000/prove", "http://45.34.23.12:8000/prove"},
	},
}

// AvailableNetworks returns the sorted names of the known networks.
func AvailableNetworks() []string {
	names := make([]string, 0, len(Networks))
	for name := range Networks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NetworkByName returns the network called name, case insensitive.
func NetworkByName(name string) (Network, error) {
	n, ok := Networks[strings.ToLower(name)]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q, available: %s",
			name, strings.Join(AvailableNetworks(), ", "))
	}
	return n, nil
}

// NetworkByChainID returns the network deployed on chainID.
func NetworkByChainID(chainID uint64) (Network, error) {
	for _, n := range Networks {
		if n.ChainID == chainID {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("no network with chain id %d", chainID)
}

// DefaultProvingEndpoint returns the first proving endpoint of n.
func (n Network) DefaultProvingEndpoint() string {
	if len(n.ProvingEndpoints) == 0 {
		return ""
	}
	return n.ProvingEndpoints[0]
}
