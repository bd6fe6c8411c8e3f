// Package network describes the EVM networks reviewchain can talk to and
// where the review contracts live on each of them.
package network

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Contracts holds the deployed contract addresses on a network.
type Contracts struct {
	ReviewRegistry common.Address `json:"review_registry" yaml:"review_registry"`
	RewardToken    common.Address `json:"reward_token,omitempty" yaml:"reward_token,omitempty"`
}

// Profile is the static description of one network.
type Profile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ChainID        uint64    `json:"chain_id"`
	RPCURL         string    `json:"rpc_url"`
	ExplorerURL    string    `json:"explorer_url"`
	FaucetURL      string    `json:"faucet_url,omitempty"`
	NativeSymbol   string    `json:"native_symbol"`
	NativeDecimals int       `json:"native_decimals"`
	Testnet        bool      `json:"testnet"`
	Contracts      Contracts `json:"contracts"`
}

// IsContractsDeployed reports whether the review registry has a real
// (non-zero) address on this network.
func (p Profile) IsContractsDeployed() bool {
	return p.Contracts.ReviewRegistry != (common.Address{})
}

// TxURL links to a transaction on the network's block explorer.
func (p Profile) TxURL(hash string) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(p.ExplorerURL, "/"), hash)
}

// AddressURL links to an account or contract on the block explorer.
func (p Profile) AddressURL(addr string) string {
	if p.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(p.ExplorerURL, "/"), addr)
}

// String returns "Name (chain N)".
func (p Profile) String() string {
	return fmt.Sprintf("%s (chain %d)", p.Name, p.ChainID)
}
